// Package client talks to the chatbot backend's REST API under /ai.
//
// Service groups hang off Client: Auth, Chat, Knowledge and Users. Every
// request except login and registration carries the bearer token read from
// the configured credentials.Store at call time. Any response meaning the
// token is no longer accepted clears the store and yields an error matching
// ErrUnauthorized.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/logger"
	"github.com/papercomputeco/chatbot/pkg/utils"
)

const defaultTimeout = 30 * time.Second

// publicPaths never carry a bearer token.
var publicPaths = []string{"/ai/auth/login", "/ai/auth/register"}

// Config wires the backend location, credentials and logging.
type Config struct {
	// BaseURL is the backend origin, e.g. http://localhost:8080.
	BaseURL string

	// Timeout bounds every non-streaming request. Streaming requests are
	// bounded only by their context.
	Timeout time.Duration

	Credentials credentials.Store
	Logger      *slog.Logger
	Retry       *RetryConfig
	HTTPClient  *http.Client
	UserAgent   string
}

// Client provides helpers for the chatbot backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	creds      credentials.Store
	logger     *slog.Logger
	retry      RetryConfig
	userAgent  string

	Auth      *AuthClient
	Chat      *ChatClient
	Knowledge *KnowledgeClient
	Users     *UsersClient
}

// New validates cfg and returns a ready-to-use Client.
func New(cfg Config) (*Client, error) {
	baseURL, err := normalizeBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = cfg.Retry.normalized()
	}

	creds := cfg.Credentials
	if creds == nil {
		creds = credentials.NewMemoryStore(nil)
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "chatbot-cli/" + utils.Version
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		timeout:    timeout,
		creds:      creds,
		logger:     logger.OrNop(cfg.Logger),
		retry:      retry,
		userAgent:  ua,
	}
	c.Auth = &AuthClient{client: c}
	c.Chat = &ChatClient{client: c}
	c.Knowledge = &KnowledgeClient{client: c}
	c.Users = &UsersClient{client: c}
	return c, nil
}

// BaseURL returns the normalized backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func normalizeBaseURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("client: base URL required")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("client: invalid base URL: %w", err)
	}
	if u.Scheme == "" {
		return "", errors.New("client: base URL missing scheme (http/https)")
	}
	if u.Host == "" {
		return "", errors.New("client: base URL missing host")
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	return strings.TrimSuffix(u.String(), "/"), nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, path string, query url.Values, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// prepare injects the user agent and, for non-public paths, the bearer token.
func (c *Client) prepare(req *http.Request) error {
	req.Header.Set("User-Agent", c.userAgent)

	if slices.Contains(publicPaths, req.URL.Path) {
		return nil
	}

	s, err := c.creds.Load()
	if err != nil {
		return fmt.Errorf("loading credentials: %w", err)
	}
	if s.LoggedIn() {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	return nil
}

// send performs req once. Non-2xx responses are returned as *APIError,
// and unauthorized ones clear the credentials store.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if err := c.prepare(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.logger.Debug("http request",
		"method", req.Method,
		"path", req.URL.Path,
		"duration", time.Since(start),
	)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		apiErr := decodeAPIError(resp)
		if errors.Is(apiErr, ErrUnauthorized) {
			c.logger.Debug("session rejected, clearing credentials", "path", req.URL.Path)
			if err := c.creds.Clear(); err != nil {
				c.logger.Warn("failed to clear credentials", "error", err)
			}
		}
		return nil, apiErr
	}
	return resp, nil
}

// do runs a JSON round trip bounded by the client timeout, retrying GETs,
// and decodes the response body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	attempts := 1
	if method == http.MethodGet {
		attempts = c.retry.MaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := sleep(ctx, c.retry.backoffDelay(attempt)); err != nil {
			return errors.Join(lastErr, err)
		}

		req, err := c.newJSONRequest(ctx, method, path, query, in)
		if err != nil {
			return err
		}

		resp, err := c.send(req)
		if err != nil {
			lastErr = err
			if attempt < attempts && retryable(err) {
				c.logger.Debug("retrying request", "path", path, "attempt", attempt, "error", err)
				continue
			}
			return err
		}

		return decodeBody(resp, out)
	}
	return lastErr
}

func decodeBody(resp *http.Response, out any) error {
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", fmt.Sprint(page))
	}
	if size > 0 {
		q.Set("size", fmt.Sprint(size))
	}
	return q
}
