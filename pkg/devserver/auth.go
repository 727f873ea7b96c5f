package devserver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

// localsAccount is the fiber.Ctx locals key of the authenticated account.
const localsAccount = "account"

// account is a registered user.
type account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	Roles        []string
}

func (a *account) view() client.User {
	return client.User{
		ID:       a.ID,
		Username: a.Username,
		Email:    a.Email,
		Roles:    slices.Clone(a.Roles),
	}
}

func (a *account) hasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if slices.Contains(a.Roles, r) {
			return true
		}
	}
	return false
}

// tokenClaims are the claims of an issued token.
type tokenClaims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// AddAccount registers an account and returns its id.
func (s *Server) AddAccount(username, password, email string, roles ...string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hashing password: %w", err)
	}
	if len(roles) == 0 {
		roles = []string{credentials.RoleUser}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if code, taken := s.conflictLocked(0, username, email); taken {
		return 0, errors.New(code.Message)
	}

	s.nextAccountID++
	a := &account{
		ID:           s.nextAccountID,
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        slices.Clone(roles),
	}
	s.accounts[a.ID] = a
	return a.ID, nil
}

// conflictLocked reports whether username or email is used by an account
// other than id.
func (s *Server) conflictLocked(id int64, username, email string) (ErrorCode, bool) {
	for _, a := range s.accounts {
		if a.ID == id {
			continue
		}
		if a.Username == username {
			return ErrUsernameTaken, true
		}
		if email != "" && strings.EqualFold(a.Email, email) {
			return ErrEmailTaken, true
		}
	}
	return ErrorCode{}, false
}

func (s *Server) accountByName(username string) *account {
	for _, a := range s.accounts {
		if a.Username == username {
			return a
		}
	}
	return nil
}

// issueToken creates a signed token for a.
func (s *Server) issueToken(a *account) (string, error) {
	now := s.config.Now()
	claims := tokenClaims{
		Roles: slices.Clone(a.Roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   a.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.config.Secret)
}

// parseToken validates raw and returns its claims.
func (s *Server) parseToken(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.config.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.config.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func bearer(c *fiber.Ctx) string {
	h := c.Get(fiber.HeaderAuthorization)
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// authenticate resolves the bearer token to a live account.
func (s *Server) authenticate(c *fiber.Ctx) error {
	raw := bearer(c)
	if raw == "" {
		return fail(errUnauthenticated)
	}

	claims, err := s.parseToken(raw)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fail(ErrTokenExpired)
	}
	if err != nil {
		s.logger.Debug("rejected token", "error", err)
		return fail(errUnauthenticated)
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	a := s.accountByName(claims.Subject)
	s.mu.RUnlock()

	if revoked || a == nil {
		return fail(errUnauthenticated)
	}

	c.Locals(localsAccount, a)
	return c.Next()
}

// requireAnyRole admits accounts holding at least one of roles.
func requireAnyRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		a := currentAccount(c)
		if a == nil || !a.hasAnyRole(roles...) {
			return fail(ErrAccessDenied)
		}
		return c.Next()
	}
}

func currentAccount(c *fiber.Ctx) *account {
	a, _ := c.Locals(localsAccount).(*account)
	return a
}

func (s *Server) authResponse(c *fiber.Ctx, a *account) error {
	token, err := s.issueToken(a)
	if err != nil {
		s.logger.Error("failed to sign token", "error", err)
		return fail(ErrInternal)
	}
	return c.JSON(client.AuthResponse{
		Token:    token,
		Username: a.Username,
		Roles:    slices.Clone(a.Roles),
	})
}

// handleLogin exchanges credentials for a token.
func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req client.AuthRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return fail(ErrInvalidParameter)
	}

	s.mu.RLock()
	a := s.accountByName(req.Username)
	s.mu.RUnlock()

	if a == nil {
		return fail(ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(a.PasswordHash, []byte(req.Password)); err != nil {
		return fail(ErrInvalidCredentials)
	}

	s.logger.Info("login", "username", a.Username)
	return s.authResponse(c, a)
}

// handleRegister creates a ROLE_USER account and logs it in.
func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req client.RegisterRequest
	if err := c.BodyParser(&req); err != nil || req.Username == "" || req.Password == "" {
		return fail(ErrInvalidParameter)
	}

	s.mu.RLock()
	code, taken := s.conflictLocked(0, req.Username, req.Email)
	s.mu.RUnlock()
	if taken {
		return fail(code)
	}

	id, err := s.AddAccount(req.Username, req.Password, req.Email, credentials.RoleUser)
	if err != nil {
		return fail(ErrUsernameTaken, err.Error())
	}

	s.mu.RLock()
	a := s.accounts[id]
	s.mu.RUnlock()

	s.logger.Info("registered", "username", a.Username)
	return s.authResponse(c, a)
}

// handleLogout revokes the presented token.
func (s *Server) handleLogout(c *fiber.Ctx) error {
	raw := bearer(c)
	if raw == "" {
		return fail(ErrInvalidParameter, "missing Authorization header")
	}

	if claims, err := s.parseToken(raw); err == nil {
		s.mu.Lock()
		s.revoked[claims.ID] = claims.ExpiresAt.Time
		s.mu.Unlock()
	}
	return c.SendStatus(fiber.StatusOK)
}

// handleValidate answers 200 for a live token and a bare 401 otherwise.
func (s *Server) handleValidate(c *fiber.Ctx) error {
	raw := bearer(c)
	if raw == "" {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	claims, err := s.parseToken(raw)
	if err != nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	a := s.accountByName(claims.Subject)
	s.mu.RUnlock()

	if revoked || a == nil {
		return c.SendStatus(fiber.StatusUnauthorized)
	}
	return c.SendStatus(fiber.StatusOK)
}
