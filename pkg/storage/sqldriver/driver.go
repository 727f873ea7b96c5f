// Package sqldriver implements storage.Driver with ent's SQL dialect builder.
// It is database-agnostic and is embedded by the sqlite and postgres drivers,
// which supply a Dialect.
package sqldriver

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/chatbot/pkg/storage"
)

const turnsTable = "turns"

// turnColumns is the column order shared by inserts and selects.
var turnColumns = []string{
	"id", "session_id", "model_id", "prompt", "reply", "streamed",
	"chunks", "duplicates", "malformed", "error", "started_at", "completed_at",
}

// Dialect captures the differences between SQL backends.
type Dialect struct {
	// Name is an ent dialect name, dialect.SQLite or dialect.Postgres.
	Name string

	// Schema is executed statement by statement on open.
	Schema []string
}

// Driver provides transcript storage operations over an ent SQL driver.
type Driver struct {
	DB      *stdsql.DB
	Dialect Dialect

	drv *entsql.Driver
}

// New wraps db with ent's driver for the dialect and migrates the schema.
func New(ctx context.Context, db *stdsql.DB, dialect Dialect) (*Driver, error) {
	d := &Driver{
		DB:      db,
		Dialect: dialect,
		drv:     entsql.OpenDB(dialect.Name, db),
	}
	if err := d.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s schema: %w", dialect.Name, err)
	}
	return d, nil
}

func (d *Driver) migrate(ctx context.Context) error {
	for _, stmt := range d.Dialect.Schema {
		if err := d.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.Dialect.Name)
}

// Put stores a turn. Returns true if the turn was newly inserted,
// false if a turn with the same ID already existed.
func (d *Driver) Put(ctx context.Context, t *storage.Turn) (bool, error) {
	if err := storage.Validate(t); err != nil {
		return false, err
	}

	query, args := d.insertTurn(t)

	var res stdsql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return false, fmt.Errorf("failed to insert turn: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// List returns the turns of a session ordered by start time.
func (d *Driver) List(ctx context.Context, sessionID string) ([]*storage.Turn, error) {
	query, args := d.selectTurns(sessionID)

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer rows.Close()

	var turns []*storage.Turn
	for rows.Next() {
		var (
			t                  storage.Turn
			started, completed int64
		)
		if err := rows.Scan(
			&t.ID, &t.SessionID, &t.ModelID, &t.Prompt, &t.Reply, &t.Streamed,
			&t.Chunks, &t.Duplicates, &t.Malformed, &t.Error, &started, &completed,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.StartedAt = fromNanos(started)
		t.CompletedAt = fromNanos(completed)
		turns = append(turns, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turns: %w", err)
	}

	if len(turns) == 0 {
		return nil, storage.NotFoundError{SessionID: sessionID}
	}
	return turns, nil
}

// Sessions returns a summary per session, most recently active first.
func (d *Driver) Sessions(ctx context.Context) ([]storage.SessionSummary, error) {
	query, args := d.selectSessions()

	var rows entsql.Rows
	if err := d.drv.Query(ctx, query, args, &rows); err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []storage.SessionSummary{}
	for rows.Next() {
		var (
			s           storage.SessionSummary
			first, last int64
		)
		if err := rows.Scan(&s.SessionID, &s.Turns, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		s.FirstAt = fromNanos(first)
		s.LastAt = fromNanos(last)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}
	return summaries, nil
}

// Delete removes every turn of a session.
func (d *Driver) Delete(ctx context.Context, sessionID string) (int, error) {
	query, args := d.deleteTurns(sessionID)

	var res stdsql.Result
	if err := d.drv.Exec(ctx, query, args, &res); err != nil {
		return 0, fmt.Errorf("failed to delete session: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		return 0, storage.NotFoundError{SessionID: sessionID}
	}
	return int(n), nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	if d.drv == nil {
		return errors.New("driver is not open")
	}
	return d.drv.Close()
}

func (d *Driver) insertTurn(t *storage.Turn) (string, []any) {
	return d.builder().Insert(turnsTable).
		Columns(turnColumns...).
		Values(
			t.ID, t.SessionID, t.ModelID, t.Prompt, t.Reply, t.Streamed,
			t.Chunks, t.Duplicates, t.Malformed, t.Error,
			toNanos(t.StartedAt), toNanos(t.CompletedAt),
		).
		OnConflict(entsql.ConflictColumns("id"), entsql.DoNothing()).
		Query()
}

func (d *Driver) selectTurns(sessionID string) (string, []any) {
	b := d.builder()
	return b.Select(turnColumns...).
		From(b.Table(turnsTable)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy("started_at", "id").
		Query()
}

func (d *Driver) selectSessions() (string, []any) {
	b := d.builder()
	return b.Select(
		"session_id",
		entsql.As(entsql.Count("*"), "turn_count"),
		entsql.As(entsql.Min("started_at"), "first_at"),
		entsql.As(entsql.Max("completed_at"), "last_at"),
	).
		From(b.Table(turnsTable)).
		GroupBy("session_id").
		OrderBy(entsql.Desc("last_at"), "session_id").
		Query()
}

func (d *Driver) deleteTurns(sessionID string) (string, []any) {
	return d.builder().Delete(turnsTable).
		Where(entsql.EQ("session_id", sessionID)).
		Query()
}

// Times are stored as Unix nanoseconds so aggregates scan back identically
// on every backend.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
