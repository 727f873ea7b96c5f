// Package inmemory provides a map-backed transcript storage driver.
package inmemory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/papercomputeco/chatbot/pkg/storage"
)

// Driver implements storage.Driver using an in-memory map.
type Driver struct {
	// mu is a read write sync mutex for locking the mapping of turns
	mu sync.RWMutex

	// turns is keyed by turn ID
	turns map[string]*storage.Turn

	// order keeps turn IDs per session in insertion order
	order map[string][]string
}

// NewDriver creates a new in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		turns: make(map[string]*storage.Turn),
		order: make(map[string][]string),
	}
}

// Put stores a copy of turn. Returns true if the turn was newly inserted,
// false if one with the same ID already existed.
func (d *Driver) Put(_ context.Context, turn *storage.Turn) (bool, error) {
	if err := storage.Validate(turn); err != nil {
		return false, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.turns[turn.ID]; ok {
		return false, nil
	}

	stored := *turn
	d.turns[turn.ID] = &stored
	d.order[turn.SessionID] = append(d.order[turn.SessionID], turn.ID)
	return true, nil
}

// List returns copies of the turns of a session ordered by start time.
func (d *Driver) List(_ context.Context, sessionID string) ([]*storage.Turn, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids, ok := d.order[sessionID]
	if !ok || len(ids) == 0 {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}

	result := make([]*storage.Turn, 0, len(ids))
	for _, id := range ids {
		t := *d.turns[id]
		result = append(result, &t)
	}

	slices.SortStableFunc(result, func(a, b *storage.Turn) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	return result, nil
}

// Sessions returns a summary per session, most recently active first.
func (d *Driver) Sessions(_ context.Context) ([]storage.SessionSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	result := make([]storage.SessionSummary, 0, len(d.order))
	for sessionID, ids := range d.order {
		summary := storage.SessionSummary{SessionID: sessionID, Turns: len(ids)}
		for _, id := range ids {
			t := d.turns[id]
			if summary.FirstAt.IsZero() || t.StartedAt.Before(summary.FirstAt) {
				summary.FirstAt = t.StartedAt
			}
			if t.CompletedAt.After(summary.LastAt) {
				summary.LastAt = t.CompletedAt
			}
		}
		result = append(result, summary)
	}

	slices.SortFunc(result, func(a, b storage.SessionSummary) int {
		if c := b.LastAt.Compare(a.LastAt); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})
	return result, nil
}

// Delete removes every turn of a session.
func (d *Driver) Delete(_ context.Context, sessionID string) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, ok := d.order[sessionID]
	if !ok {
		return 0, storage.NotFoundError{SessionID: sessionID}
	}

	for _, id := range ids {
		delete(d.turns, id)
	}
	delete(d.order, sessionID)
	return len(ids), nil
}

// Close is a no-op for the in-memory driver.
func (d *Driver) Close() error {
	return nil
}
