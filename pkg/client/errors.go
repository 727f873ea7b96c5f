package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrUnauthorized matches, via errors.Is, every APIError that means the
// stored session is no longer usable.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response, decoded from the backend's envelope
// {status, error, errorCode, message, data} when present.
type APIError struct {
	Status  int
	Code    string
	Reason  string
	Message string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, msg)
	}
	return fmt.Sprintf("backend returned %d %s: %s", e.Status, e.Code, msg)
}

// Unauthorized reports a 401 or any AUTH_ error code.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || strings.HasPrefix(e.Code, "AUTH_")
}

// Is makes errors.Is(err, ErrUnauthorized) work.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Unauthorized()
}

type envelope struct {
	Status    int             `json:"status"`
	Error     string          `json:"error"`
	ErrorCode string          `json:"errorCode"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}
	if len(data) == 0 {
		apiErr.Message = resp.Status
		return apiErr
	}

	var payload envelope
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}

	apiErr.Code = payload.ErrorCode
	apiErr.Reason = payload.Error
	apiErr.Message = payload.Message
	if payload.Status != 0 {
		apiErr.Status = payload.Status
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}
	return apiErr
}
