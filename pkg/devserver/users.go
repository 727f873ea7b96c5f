package devserver

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

func userID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fail(ErrInvalidParameter, "id must be a number")
	}
	return id, nil
}

func (s *Server) handleUserList(c *fiber.Ctx) error {
	page, size := pageParams(c, defaultUsersPage)

	s.mu.RLock()
	users := make([]client.User, 0, len(s.accounts))
	for _, a := range s.accounts {
		users = append(users, a.view())
	}
	s.mu.RUnlock()

	slices.SortFunc(users, func(a, b client.User) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return c.JSON(paginate(users, page, size))
}

func (s *Server) handleUserGet(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	s.mu.RLock()
	a, ok := s.accounts[id]
	var u client.User
	if ok {
		u = a.view()
	}
	s.mu.RUnlock()

	if !ok {
		return fail(ErrUserNotFound)
	}
	return c.JSON(u)
}

func (s *Server) handleUserCreate(c *fiber.Ctx) error {
	var in client.User
	if err := c.BodyParser(&in); err != nil || strings.TrimSpace(in.Username) == "" || in.Password == "" {
		return fail(ErrInvalidParameter, "username and password are required")
	}

	s.mu.RLock()
	code, taken := s.conflictLocked(0, in.Username, in.Email)
	s.mu.RUnlock()
	if taken {
		return fail(code)
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{credentials.RoleUser}
	}
	id, err := s.AddAccount(in.Username, in.Password, in.Email, roles...)
	if err != nil {
		return fail(ErrUsernameTaken, err.Error())
	}

	s.mu.RLock()
	u := s.accounts[id].view()
	s.mu.RUnlock()

	return c.JSON(u)
}

// handleUserUpdate replaces username, email and roles, and the password
// when one is given.
func (s *Server) handleUserUpdate(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	var in client.User
	if err := c.BodyParser(&in); err != nil || strings.TrimSpace(in.Username) == "" {
		return fail(ErrInvalidParameter, "username is required")
	}

	var hash []byte
	if in.Password != "" {
		hash, err = bcrypt.GenerateFromPassword([]byte(in.Password), s.config.BcryptCost)
		if err != nil {
			return fail(ErrInternal)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return fail(ErrUserNotFound)
	}
	if code, taken := s.conflictLocked(id, in.Username, in.Email); taken {
		return fail(code)
	}

	a.Username = in.Username
	a.Email = in.Email
	if len(in.Roles) > 0 {
		a.Roles = slices.Clone(in.Roles)
	}
	if hash != nil {
		a.PasswordHash = hash
	}
	return c.JSON(a.view())
}

func (s *Server) handleUserDelete(c *fiber.Ctx) error {
	id, err := userID(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[id]; !ok {
		return fail(ErrUserNotFound)
	}
	delete(s.accounts, id)
	return c.SendStatus(fiber.StatusOK)
}
