// Package devserver emulates the chatbot backend for local development and
// tests: authentication with signed tokens, chat with a scripted model that
// streams its replies, a knowledge base and user administration, all held
// in memory.
package devserver

import (
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultTokenTTL   = 24 * time.Hour
	defaultModel      = "qwen3"
	maxBatchImport    = 1000
	defaultPageSize   = 12
	defaultUsersPage  = 6
	exportTimeLayout  = "20060102_150405"
	articleTimeLayout = "2006-01-02T15:04:05"
)

// Models lists the model ids the server accepts.
var Models = []string{"qwen3", "deepseekR1"}

// Config is the dev server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Secret signs issued tokens. A random secret is generated when empty.
	Secret []byte

	// TokenTTL is the lifetime of issued tokens (defaults to 24h).
	TokenTTL time.Duration

	// ChunkDelay is slept between streamed records.
	ChunkDelay time.Duration

	// DuplicateEvery re-sends every Nth streamed record verbatim. 0 disables.
	DuplicateEvery int

	// SplitRecords writes each streamed record in two separate writes.
	SplitRecords bool

	// FailAfter makes streams report a model error after that many content
	// records. 0 disables.
	FailAfter int

	// BcryptCost is used to hash passwords (defaults to bcrypt.DefaultCost).
	BcryptCost int

	// SeedAccounts creates the demo accounts and articles on start.
	SeedAccounts bool

	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.TokenTTL <= 0 {
		c.TokenTTL = defaultTokenTTL
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = bcrypt.DefaultCost
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}
