// Package nop provides the eventstream publisher used when no event backend
// is configured.
package nop

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

// Publisher drops every event, logging it at debug level.
type Publisher struct {
	logger *slog.Logger
}

// NewPublisher creates a new no-op eventstream publisher. l may be nil.
func NewPublisher(l *slog.Logger) *Publisher {
	return &Publisher{logger: logger.OrNop(l)}
}

// PublishTurn validates input and otherwise does nothing.
func (p *Publisher) PublishTurn(_ context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}

	p.logger.Debug("turn event dropped, no event backend configured",
		"event_id", event.EventID,
		"session_id", event.Turn.SessionID,
	)
	return nil
}

// Close is a no-op.
func (p *Publisher) Close() error {
	return nil
}
