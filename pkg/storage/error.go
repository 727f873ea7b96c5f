package storage

import "errors"

// ErrNilTurn is returned by Put when given a nil turn.
var ErrNilTurn = errors.New("cannot store nil turn")

// ErrMissingTurnID is returned by Put when the turn has no ID.
var ErrMissingTurnID = errors.New("turn id is required")

// NotFoundError is returned when a session has no stored turns.
type NotFoundError struct {
	SessionID string
}

func (e NotFoundError) Error() string {
	if e.SessionID == "" {
		return "session not found"
	}

	return "session not found: " + e.SessionID
}

// IsNotFound reports whether err is, or wraps, a NotFoundError.
func IsNotFound(err error) bool {
	var nf NotFoundError
	return errors.As(err, &nf)
}

// Validate checks the fields every driver requires before storing a turn.
func Validate(turn *Turn) error {
	if turn == nil {
		return ErrNilTurn
	}
	if turn.ID == "" {
		return ErrMissingTurnID
	}
	return nil
}
