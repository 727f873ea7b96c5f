// Package sqlite provides a SQLite-backed transcript storage driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3" // register the "sqlite3" driver

	"github.com/papercomputeco/chatbot/pkg/storage/sqldriver"
)

// Dialect is the SQLite schema.
var Dialect = sqldriver.Dialect{
	Name: dialect.SQLite,
	Schema: []string{
		`CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			model_id TEXT NOT NULL DEFAULT '',
			prompt TEXT NOT NULL,
			reply TEXT NOT NULL,
			streamed BOOLEAN NOT NULL DEFAULT 0,
			chunks INTEGER NOT NULL DEFAULT 0,
			duplicates INTEGER NOT NULL DEFAULT 0,
			malformed INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			started_at INTEGER NOT NULL,
			completed_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_turns_session ON turns(session_id, started_at)`,
	},
}

// Driver implements storage.Driver using SQLite.
type Driver struct {
	*sqldriver.Driver
}

// NewDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, dbPath string) (*Driver, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to ":memory:" is its own database, and SQLite
	// serialises writers anyway.
	db.SetMaxOpenConns(1)

	drv, err := sqldriver.New(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Driver{Driver: drv}, nil
}
