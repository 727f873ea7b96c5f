package credentials

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles granted by the backend.
const (
	RoleUser             = "ROLE_USER"
	RoleAdmin            = "ROLE_ADMIN"
	RoleKnowledgeManager = "ROLE_KNOWLEDGEMANAGER"
)

// Session represents the persisted login session in credentials.toml.
type Session struct {
	Version  int       `toml:"version"`
	Token    string    `toml:"token,omitempty"`
	Username string    `toml:"username,omitempty"`
	Roles    []string  `toml:"roles,omitempty"`
	SavedAt  time.Time `toml:"saved_at"`
}

// LoggedIn reports whether the session carries a token.
func (s *Session) LoggedIn() bool {
	return s != nil && s.Token != ""
}

// HasRole reports whether the session was granted role.
func (s *Session) HasRole(role string) bool {
	if s == nil {
		return false
	}
	return slices.Contains(s.Roles, role)
}

// HasAnyRole reports whether the session holds at least one of roles.
// An empty roles list is always satisfied.
func (s *Session) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// ExpiresAt decodes the token's exp claim without verifying the signature.
// ok is false when the token is not a JWT or carries no exp claim.
func (s *Session) ExpiresAt() (exp time.Time, ok bool) {
	if !s.LoggedIn() {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.Token, claims); err != nil {
		return time.Time{}, false
	}

	nd, err := claims.GetExpirationTime()
	if err != nil || nd == nil {
		return time.Time{}, false
	}
	return nd.Time, true
}

// Expired reports whether the token's exp claim lies before now. Tokens
// without a readable exp are never considered expired.
func (s *Session) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}
