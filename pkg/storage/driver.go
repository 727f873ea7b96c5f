// Package storage persists chat transcripts locally, independent of the
// backend's own history.
package storage

import (
	"context"
	"time"
)

// Turn is one completed prompt/reply exchange.
type Turn struct {
	// ID uniquely identifies the turn. Put is idempotent on ID.
	ID string `json:"id"`

	SessionID string `json:"session_id"`
	ModelID   string `json:"model_id,omitempty"`
	Prompt    string `json:"prompt"`
	Reply     string `json:"reply"`

	// Streamed is set when the reply arrived through the streaming endpoint.
	Streamed bool `json:"streamed"`

	// Chunks, Duplicates and Malformed mirror the stream decoder's counters.
	Chunks     int `json:"chunks,omitempty"`
	Duplicates int `json:"duplicates,omitempty"`
	Malformed  int `json:"malformed,omitempty"`

	// Error holds the failure text when the exchange did not complete.
	Error string `json:"error,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns how long the exchange took.
func (t *Turn) Duration() time.Duration {
	return t.CompletedAt.Sub(t.StartedAt)
}

// SessionSummary aggregates the stored turns of one session.
type SessionSummary struct {
	SessionID string    `json:"session_id"`
	Turns     int       `json:"turns"`
	FirstAt   time.Time `json:"first_at"`
	LastAt    time.Time `json:"last_at"`
}

// Driver defines the interface for persisting and retrieving transcript turns
// in a storage backend.
type Driver interface {
	// Put stores a turn. Returns true if the turn was newly inserted,
	// false if a turn with the same ID already exists, in which case
	// this is a no-op.
	Put(ctx context.Context, turn *Turn) (bool, error)

	// List returns the turns of a session in the order they started.
	// It returns NotFoundError when the session has no stored turns.
	List(ctx context.Context, sessionID string) ([]*Turn, error)

	// Sessions returns a summary per stored session, most recent first.
	Sessions(ctx context.Context) ([]SessionSummary, error)

	// Delete removes every turn of a session and returns how many were removed.
	// It returns NotFoundError when the session has no stored turns.
	Delete(ctx context.Context, sessionID string) (int, error)

	// Close closes the store and releases any resources.
	Close() error
}
