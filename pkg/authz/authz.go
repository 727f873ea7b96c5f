// Package authz gates CLI commands on the stored login session.
//
// Commands declare their requirements with annotations, set by RequireAuth.
// Requirements are inherited: a subcommand of a command that requires
// authentication requires it too, and the nearest command declaring roles
// decides which roles are needed.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

const (
	// AnnotationRequiresAuth marks a command that needs a valid session.
	AnnotationRequiresAuth = "chatbot/requires-auth"

	// AnnotationRoles lists, comma separated, the roles of which the
	// session must hold at least one.
	AnnotationRoles = "chatbot/roles"
)

// ErrLoginRequired is returned when a command needs a session and there is
// no valid one. Any stale credentials have been cleared by then.
var ErrLoginRequired = errors.New(`login required: run "chatbot login"`)

// ForbiddenError is returned when the session lacks every required role.
type ForbiddenError struct {
	Command  string
	Required []string
	Have     []string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s requires one of the roles %s", e.Command, strings.Join(e.Required, ", "))
}

// Validator confirms a session with the backend.
type Validator interface {
	Validate(ctx context.Context) bool
}

// RequireAuth annotates cmd as needing a valid session holding at least one
// of roles. Without roles any authenticated user passes.
func RequireAuth(cmd *cobra.Command, roles ...string) *cobra.Command {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[AnnotationRequiresAuth] = "true"
	if len(roles) > 0 {
		cmd.Annotations[AnnotationRoles] = strings.Join(roles, ",")
	}
	return cmd
}

// Requirements returns whether cmd, or any parent, requires authentication
// and the roles declared by the nearest command that declares any.
func Requirements(cmd *cobra.Command) (requiresAuth bool, roles []string) {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[AnnotationRequiresAuth] == "true" {
			requiresAuth = true
		}
		if roles == nil {
			if r, ok := c.Annotations[AnnotationRoles]; ok && r != "" {
				roles = strings.Split(r, ",")
			}
		}
	}
	return requiresAuth, roles
}

// Guard enforces command requirements against a credentials.Store.
type Guard struct {
	Store     credentials.Store
	Validator Validator
	Logger    *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Check returns the session cmd may run with. For commands without
// requirements it returns the stored session, which may be logged out.
func (g *Guard) Check(ctx context.Context, cmd *cobra.Command) (*credentials.Session, error) {
	log := logger.OrNop(g.Logger)

	session, err := g.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	requiresAuth, roles := Requirements(cmd)
	if !requiresAuth {
		return session, nil
	}

	if !session.LoggedIn() {
		return nil, ErrLoginRequired
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	if session.Expired(now()) {
		log.Debug("stored token expired", "username", session.Username)
		return nil, g.clear(log)
	}

	if g.Validator != nil && !g.Validator.Validate(ctx) {
		log.Debug("backend rejected stored token", "username", session.Username)
		return nil, g.clear(log)
	}

	if !session.HasAnyRole(roles...) {
		return nil, &ForbiddenError{
			Command:  cmd.CommandPath(),
			Required: roles,
			Have:     session.Roles,
		}
	}

	return session, nil
}

// PreRunE adapts the guard to a cobra hook.
func (g *Guard) PreRunE(cmd *cobra.Command, _ []string) error {
	_, err := g.Check(cmd.Context(), cmd)
	return err
}

func (g *Guard) clear(log *slog.Logger) error {
	if err := g.Store.Clear(); err != nil {
		log.Warn("failed to clear credentials", "error", err)
	}
	return ErrLoginRequired
}
