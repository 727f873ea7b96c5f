package client

import (
	"context"
	"net/http"
	"time"

	"github.com/papercomputeco/chatbot/pkg/credentials"
)

// AuthClient covers /ai/auth.
type AuthClient struct {
	client *Client
}

// Login authenticates and persists the resulting session.
func (a *AuthClient) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var resp AuthResponse
	err := a.client.do(ctx, http.MethodPost, "/ai/auth/login", nil,
		AuthRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, a.store(&resp)
}

// Register creates an account and persists the resulting session.
func (a *AuthClient) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var resp AuthResponse
	if err := a.client.do(ctx, http.MethodPost, "/ai/auth/register", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, a.store(&resp)
}

// Logout tells the backend to revoke the token, when there is one, and
// clears the stored session whatever the backend answers.
func (a *AuthClient) Logout(ctx context.Context) error {
	s, err := a.client.creds.Load()
	if err == nil && s.LoggedIn() {
		if err := a.client.do(ctx, http.MethodPost, "/ai/auth/logout", nil, nil, nil); err != nil {
			a.client.logger.Warn("logout request failed", "error", err)
		}
	}
	return a.client.creds.Clear()
}

// Validate reports whether the backend still accepts the stored token.
// It is false without a token and on any failure.
func (a *AuthClient) Validate(ctx context.Context) bool {
	s, err := a.client.creds.Load()
	if err != nil || !s.LoggedIn() {
		return false
	}
	if err := a.client.do(ctx, http.MethodGet, "/ai/auth/validate", nil, nil, nil); err != nil {
		a.client.logger.Debug("token validation failed", "error", err)
		return false
	}
	return true
}

func (a *AuthClient) store(resp *AuthResponse) error {
	return a.client.creds.Save(&credentials.Session{
		Token:    resp.Token,
		Username: resp.Username,
		Roles:    resp.Roles,
		SavedAt:  time.Now().UTC(),
	})
}
