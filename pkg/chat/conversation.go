// Package chat holds the state of an interactive chat: the known sessions,
// the current one and its messages, and the model replies are requested from.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/logger"
	"github.com/papercomputeco/chatbot/pkg/storage"
	"github.com/papercomputeco/chatbot/pkg/stream"
)

// Roles of a Message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrUnknownModel is returned by SelectModel for a model the backend did
// not list.
var ErrUnknownModel = errors.New("unknown model")

// ChunkError reports error records the backend sent inside an otherwise
// successful stream.
type ChunkError struct {
	Messages []string
}

func (e *ChunkError) Error() string {
	if len(e.Messages) == 1 {
		return "backend stream error: " + e.Messages[0]
	}
	return fmt.Sprintf("backend stream errors (%d): %s", len(e.Messages), e.Messages[len(e.Messages)-1])
}

// API is the backend surface a Conversation needs. *client.ChatClient
// implements it.
type API interface {
	Sessions(ctx context.Context) ([]string, error)
	History(ctx context.Context, sessionID string) ([]client.ChatResponse, error)
	Send(ctx context.Context, req client.ChatRequest) (*client.ChatResponse, error)
	SendStreaming(ctx context.Context, req client.ChatRequest, onChunk stream.Handler, opts ...client.StreamOption) (stream.Stats, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Models(ctx context.Context) ([]string, error)
}

// Recorder receives every finished exchange, including failed ones.
type Recorder func(turn *storage.Turn)

// Message is one entry of the current session.
type Message struct {
	Role    string
	Content string
}

// Config configures a Conversation.
type Config struct {
	API API

	// Recorder is optional.
	Recorder Recorder

	// Model preselects a model. LoadModels keeps it when the backend lists it.
	Model string

	Logger *slog.Logger

	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Conversation is safe for concurrent use. Network calls are made without
// holding the lock, so accessors stay responsive while a reply streams in.
type Conversation struct {
	api      API
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string

	mu       sync.RWMutex
	sessions []string
	current  string
	messages []Message
	models   []string
	model    string
	thinking bool
}

// New returns an empty Conversation.
func New(c Config) *Conversation {
	conv := &Conversation{
		api:      c.API,
		recorder: c.Recorder,
		logger:   logger.OrNop(c.Logger),
		now:      c.Now,
		newID:    c.NewID,
		model:    c.Model,
	}
	if conv.now == nil {
		conv.now = time.Now
	}
	if conv.newID == nil {
		conv.newID = uuid.NewString
	}
	return conv
}

// LoadModels fetches the available models. The preselected model is kept
// when listed, otherwise the first listed model is selected.
func (c *Conversation) LoadModels(ctx context.Context) error {
	models, err := c.api.Models(ctx)
	if err != nil {
		c.logger.Error("failed to load available models", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.models = models
	if len(models) > 0 && !slices.Contains(models, c.model) {
		c.model = models[0]
	}
	return nil
}

// SelectModel sets the model used for the next messages.
func (c *Conversation) SelectModel(model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.models) > 0 && !slices.Contains(c.models, model) {
		return fmt.Errorf("%w: %s", ErrUnknownModel, model)
	}
	c.model = model
	return nil
}

// LoadSessions merges the backend's sessions with local sessions that have
// no messages on the backend yet, local ones first, and makes the first
// session current. History is only fetched when that session exists on the
// backend.
func (c *Conversation) LoadSessions(ctx context.Context) error {
	remote, err := c.api.Sessions(ctx)
	if err != nil {
		c.logger.Error("failed to load sessions", "error", err)
		return err
	}

	onBackend := make(map[string]struct{}, len(remote))
	for _, id := range remote {
		onBackend[id] = struct{}{}
	}

	c.mu.Lock()
	merged := make([]string, 0, len(c.sessions)+len(remote))
	for _, id := range c.sessions {
		if _, ok := onBackend[id]; !ok {
			merged = append(merged, id)
		}
	}
	merged = append(merged, remote...)
	c.sessions = merged

	if len(merged) == 0 {
		c.mu.Unlock()
		return nil
	}

	first := merged[0]
	c.current = first
	c.messages = nil
	c.mu.Unlock()

	if _, ok := onBackend[first]; !ok {
		return nil
	}

	messages, err := c.history(ctx, first)
	if err != nil {
		c.logger.Error("failed to load sessions", "error", err)
		return err
	}

	c.mu.Lock()
	if c.current == first {
		c.messages = messages
	}
	c.mu.Unlock()
	return nil
}

// Switch makes sessionID current and loads its history. On failure the
// message list is left empty and the current session is unchanged.
func (c *Conversation) Switch(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	c.messages = nil
	c.mu.Unlock()

	messages, err := c.history(ctx, sessionID)
	if err != nil {
		c.logger.Error("failed to switch session", "session_id", sessionID, "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = messages
	c.current = sessionID
	c.thinking = false
	if !slices.Contains(c.sessions, sessionID) {
		c.sessions = append([]string{sessionID}, c.sessions...)
	}
	return nil
}

// NewSession creates a local session, puts it first and makes it current.
func (c *Conversation) NewSession() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.newSessionLocked()
}

func (c *Conversation) newSessionLocked() string {
	id := c.newID()
	c.sessions = append([]string{id}, c.sessions...)
	c.current = id
	c.messages = nil
	c.thinking = false
	return id
}

// Delete removes sessionID on the backend and locally. When it was current,
// the first remaining session becomes current, or a new one is created.
func (c *Conversation) Delete(ctx context.Context, sessionID string) error {
	if err := c.api.DeleteSession(ctx, sessionID); err != nil {
		c.logger.Error("failed to delete session", "session_id", sessionID, "error", err)
		return err
	}

	c.mu.Lock()
	c.sessions = slices.DeleteFunc(c.sessions, func(id string) bool { return id == sessionID })
	if c.current != sessionID {
		c.mu.Unlock()
		return nil
	}
	if len(c.sessions) == 0 {
		c.newSessionLocked()
		c.mu.Unlock()
		return nil
	}
	next := c.sessions[0]
	c.mu.Unlock()

	return c.Switch(ctx, next)
}

// Send posts content to the current session, creating one when there is
// none, and appends the complete reply.
func (c *Conversation) Send(ctx context.Context, content string) (*Message, error) {
	req, started := c.begin(content)

	resp, err := c.api.Send(ctx, req)

	c.mu.Lock()
	c.thinking = false
	var reply *Message
	if err == nil {
		msg := Message{Role: RoleAssistant, Content: resp.Message}
		c.messages = append(c.messages, msg)
		reply = &msg
	}
	c.mu.Unlock()

	turn := c.turn(req, started, false)
	if err != nil {
		c.logger.Error("failed to send message", "session_id", req.SessionID, "error", err)
		turn.Error = err.Error()
	} else {
		turn.Reply = resp.Message
		turn.Chunks = 1
	}
	c.record(turn)

	return reply, err
}

// SendStreaming posts content to the current session, creating one when
// there is none, and grows a single assistant message from the streamed
// chunks. onChunk, if set, sees each appended fragment.
func (c *Conversation) SendStreaming(ctx context.Context, content string, onChunk func(string), opts ...client.StreamOption) (stream.Stats, error) {
	req, started := c.begin(content)

	var (
		assistant   = -1
		reply       []byte
		chunkErrors []string
	)
	handler := func(msg stream.Message) {
		if msg.Error != "" {
			c.logger.Warn("backend reported a stream error",
				"session_id", req.SessionID,
				"error", msg.Error,
			)
			chunkErrors = append(chunkErrors, msg.Error)
			return
		}

		c.mu.Lock()
		if assistant < 0 || assistant >= len(c.messages) {
			c.messages = append(c.messages, Message{Role: RoleAssistant, Content: msg.Message})
			assistant = len(c.messages) - 1
			c.thinking = false
		} else {
			c.messages[assistant].Content += msg.Message
		}
		c.mu.Unlock()

		reply = append(reply, msg.Message...)
		if onChunk != nil {
			onChunk(msg.Message)
		}
	}

	stats, err := c.api.SendStreaming(ctx, req, handler, opts...)

	c.mu.Lock()
	c.thinking = false
	c.mu.Unlock()

	if err == nil && len(chunkErrors) > 0 {
		err = &ChunkError{Messages: chunkErrors}
	}

	turn := c.turn(req, started, true)
	turn.Reply = string(reply)
	turn.Chunks = stats.Emitted
	turn.Duplicates = stats.Duplicates
	turn.Malformed = stats.Malformed
	if err != nil {
		c.logger.Error("failed to stream message", "session_id", req.SessionID, "error", err)
		turn.Error = err.Error()
	}
	c.record(turn)

	return stats, err
}

// Reset forgets everything, as after logout.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessions = nil
	c.current = ""
	c.messages = nil
	c.models = nil
	c.model = ""
	c.thinking = false
}

// Sessions returns the known session ids, current ordering.
func (c *Conversation) Sessions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.sessions)
}

// Current returns the current session id, or "" when there is none.
func (c *Conversation) Current() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Messages returns a copy of the current session's messages.
func (c *Conversation) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.messages)
}

// Models returns the models listed by the last LoadModels.
func (c *Conversation) Models() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.models)
}

// Model returns the selected model.
func (c *Conversation) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Thinking reports whether a reply is pending and no part of it arrived yet.
func (c *Conversation) Thinking() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thinking
}

// begin appends the user message and builds the request.
func (c *Conversation) begin(content string) (client.ChatRequest, time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == "" {
		c.newSessionLocked()
	}

	c.messages = append(c.messages, Message{Role: RoleUser, Content: content})
	c.thinking = true

	return client.ChatRequest{
		Message:   content,
		SessionID: c.current,
		ModelID:   c.model,
	}, c.now()
}

func (c *Conversation) history(ctx context.Context, sessionID string) ([]Message, error) {
	items, err := c.api.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(items))
	for _, item := range items {
		role := item.Role
		if role == "" {
			role = RoleAssistant
		}
		messages = append(messages, Message{Role: role, Content: item.Message})
	}
	return messages, nil
}

func (c *Conversation) turn(req client.ChatRequest, started time.Time, streamed bool) *storage.Turn {
	return &storage.Turn{
		ID:          c.newID(),
		SessionID:   req.SessionID,
		ModelID:     req.ModelID,
		Prompt:      req.Message,
		Streamed:    streamed,
		StartedAt:   started,
		CompletedAt: c.now(),
	}
}

func (c *Conversation) record(turn *storage.Turn) {
	if c.recorder != nil {
		c.recorder(turn)
	}
}
