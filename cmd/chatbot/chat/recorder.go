package chatcmder

import (
	"context"
	"errors"
	"fmt"

	"github.com/papercomputeco/chatbot/cmd/chatbot/cmdenv"
	"github.com/papercomputeco/chatbot/pkg/chat"
	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/storage"
	"github.com/papercomputeco/chatbot/pkg/utils"
	"github.com/papercomputeco/chatbot/pkg/worker"
)

// openRecorder wires the transcript archive and the event publisher behind
// a worker pool. The returned func drains the pool and releases both.
func (c *chatCommander) openRecorder(ctx context.Context) (chat.Recorder, func(), error) {
	log := c.env.Logger

	driver, err := c.env.OpenTranscripts(ctx)
	if errors.Is(err, cmdenv.ErrTranscriptsDisabled) {
		log.Debug("transcripts disabled")
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening transcripts: %w", err)
	}

	publisher, err := c.env.OpenPublisher()
	if err != nil {
		_ = driver.Close()
		return nil, nil, fmt.Errorf("creating event publisher: %w", err)
	}

	source := eventstream.EventSource{
		BaseURL: c.env.Client.BaseURL(),
		Client:  "chatbot-cli/" + utils.Version,
	}
	if s, err := c.env.Credentials.Load(); err == nil {
		source.Username = s.Username
	}

	pool, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: publisher,
		Source:    source,
		Logger:    log,
	})
	if err != nil {
		_ = publisher.Close()
		_ = driver.Close()
		return nil, nil, fmt.Errorf("starting transcript workers: %w", err)
	}

	recorder := func(turn *storage.Turn) {
		pool.Enqueue(worker.Job{Turn: turn})
	}

	closer := func() {
		pool.Close()
		if err := publisher.Close(); err != nil {
			log.Warn("closing event publisher", "error", err)
		}
		if err := driver.Close(); err != nil {
			log.Warn("closing transcripts", "error", err)
		}
	}

	return recorder, closer, nil
}
