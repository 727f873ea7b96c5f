package cmdenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/chatbot/pkg/dotdir"
	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatbot/pkg/eventstream/nop"
	"github.com/papercomputeco/chatbot/pkg/storage"
	"github.com/papercomputeco/chatbot/pkg/storage/inmemory"
	"github.com/papercomputeco/chatbot/pkg/storage/postgres"
	"github.com/papercomputeco/chatbot/pkg/storage/sqlite"
)

// ErrTranscriptsDisabled is returned by OpenTranscripts when
// transcript.provider is "none".
var ErrTranscriptsDisabled = errors.New(`transcripts are disabled (transcript.provider = "none")`)

// OpenTranscripts opens the configured transcript archive.
func (e *Env) OpenTranscripts(ctx context.Context) (storage.Driver, error) {
	t := e.Config.Transcript

	switch t.Provider {
	case "", "sqlite":
		path, err := ResolveSQLitePath(t.SQLitePath, e.ConfigDir)
		if err != nil {
			return nil, err
		}
		e.Logger.Debug("opening transcripts", "provider", "sqlite", "path", path)
		d, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, err
		}
		return d, nil

	case "postgres":
		if t.PostgresDSN == "" {
			return nil, errors.New("transcript.postgres_dsn is required for the postgres provider")
		}
		e.Logger.Debug("opening transcripts", "provider", "postgres")
		d, err := postgres.NewDriver(ctx, t.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return d, nil

	case "memory":
		return inmemory.NewDriver(), nil

	case "none":
		return nil, ErrTranscriptsDisabled

	default:
		return nil, fmt.Errorf("unknown transcript provider %q", t.Provider)
	}
}

// OpenPublisher returns a kafka publisher when brokers are configured and a
// nop publisher otherwise.
func (e *Env) OpenPublisher() (eventstream.Publisher, error) {
	ev := e.Config.Events
	if len(ev.KafkaBrokers) == 0 {
		return nop.NewPublisher(e.Logger), nil
	}

	e.Logger.Debug("publishing turn events", "brokers", strings.Join(ev.KafkaBrokers, ","), "topic", ev.KafkaTopic)
	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: ev.KafkaBrokers,
		Topic:   ev.KafkaTopic,
		Logger:  e.Logger,
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ResolveSQLitePath returns path when absolute, and otherwise places it in
// the .chatbot/ directory. CHATBOT_SQLITE overrides an empty path.
func ResolveSQLitePath(path, configDir string) (string, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("CHATBOT_SQLITE"))
	}
	if path == "" {
		return "", errors.New("no transcript database configured; set transcript.sqlite_path or pass --sqlite")
	}
	if path == ":memory:" || filepath.IsAbs(path) {
		return path, nil
	}

	return dotdir.NewManager().File(configDir, path)
}
