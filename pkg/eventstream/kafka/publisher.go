// Package kafka publishes turn events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

// ErrNoBrokers is returned by NewPublisher without any broker address.
var ErrNoBrokers = errors.New("kafka publisher requires at least one broker")

// ErrNoTopic is returned by NewPublisher without a topic.
var ErrNoTopic = errors.New("kafka publisher requires a topic")

// MessageWriter is the subset of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string

	// WriteTimeout bounds each publish. Defaults to 10 seconds.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes each event as one JSON message keyed by session id, so
// all turns of a session land on the same partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger
	closed  atomic.Bool
}

// NewPublisher creates a Publisher backed by a kafka-go Writer.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if c.Topic == "" {
		return nil, ErrNoTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	return NewPublisherWithWriter(w, c), nil
}

// NewPublisherWithWriter creates a Publisher writing through w. Brokers and
// Topic in c are ignored.
func NewPublisherWithWriter(w MessageWriter, c Config) *Publisher {
	timeout := c.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Publisher{
		writer:  w,
		timeout: timeout,
		logger:  logger.OrNop(c.Logger),
	}
}

// PublishTurn marshals event and writes it to the topic.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurnEvent
	}
	if p.closed.Load() {
		return eventstream.ErrPublisherClosed
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal turn event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Turn.SessionID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write turn event: %w", err)
	}

	p.logger.Debug("turn event published",
		"event_id", event.EventID,
		"session_id", event.Turn.SessionID,
		"bytes", len(payload),
	)
	return nil
}

// Close flushes pending messages and closes the writer. Only the first call
// reaches the writer.
func (p *Publisher) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.writer.Close()
}
