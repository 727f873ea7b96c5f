package devserver

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// ErrorCode is one of the backend's business error codes.
type ErrorCode struct {
	Status  int
	Code    string
	Message string
}

var (
	ErrUserNotFound       = ErrorCode{http.StatusNotFound, "USER_001", "user does not exist"}
	ErrUsernameTaken      = ErrorCode{http.StatusBadRequest, "USER_002", "username already exists"}
	ErrEmailTaken         = ErrorCode{http.StatusBadRequest, "USER_003", "email already in use"}
	ErrInvalidCredentials = ErrorCode{http.StatusUnauthorized, "AUTH_001", "invalid username or password"}
	ErrAccessDenied       = ErrorCode{http.StatusForbidden, "AUTH_002", "access to this resource is denied"}
	ErrTokenExpired       = ErrorCode{http.StatusUnauthorized, "AUTH_003", "login expired, please log in again"}
	ErrInvalidParameter   = ErrorCode{http.StatusBadRequest, "VALID_001", "invalid input parameters"}
	ErrInternal           = ErrorCode{http.StatusInternalServerError, "SYS_001", "internal server error"}

	// errUnauthenticated carries no business code, like a request that never
	// reached a controller.
	errUnauthenticated = ErrorCode{http.StatusUnauthorized, "", "full authentication is required to access this resource"}
)

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Status    int    `json:"status"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
	Message   string `json:"message"`
	Data      any    `json:"data"`
}

// apiError is returned by handlers and rendered by handleError.
type apiError struct {
	code    ErrorCode
	message string
}

func (e *apiError) Error() string {
	return e.message
}

// fail returns code as a handler error. message overrides the default text.
func fail(code ErrorCode, message ...string) error {
	msg := code.Message
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	return &apiError{code: code, message: msg}
}

// notFound returns a 404 without a business code.
func notFound(message string) error {
	return &apiError{code: ErrorCode{Status: http.StatusNotFound}, message: message}
}

// handleError renders every error returned by a handler as an ErrorEnvelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var ae *apiError
	if !errors.As(err, &ae) {
		var fe *fiber.Error
		if errors.As(err, &fe) && fe.Code == fiber.StatusNotFound {
			ae = &apiError{code: ErrorCode{Status: fe.Code}, message: fe.Message}
		} else {
			s.logger.Error("request failed", "path", c.Path(), "error", err)
			ae = &apiError{code: ErrInternal, message: ErrInternal.Message}
		}
	}

	return c.Status(ae.code.Status).JSON(ErrorEnvelope{
		Status:    ae.code.Status,
		Error:     http.StatusText(ae.code.Status),
		ErrorCode: ae.code.Code,
		Message:   ae.message,
	})
}
