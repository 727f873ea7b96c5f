package client

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/papercomputeco/chatbot/pkg/stream"
)

// ChatClient covers /ai/chat.
type ChatClient struct {
	client *Client
}

// Sessions lists the ids of the caller's sessions known to the backend.
func (c *ChatClient) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	if err := c.client.do(ctx, http.MethodGet, "/ai/chat/sessions", nil, nil, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// History returns the stored messages of a session, oldest first.
func (c *ChatClient) History(ctx context.Context, sessionID string) ([]ChatResponse, error) {
	var items []ChatResponse
	path := "/ai/chat/history/" + url.PathEscape(sessionID)
	if err := c.client.do(ctx, http.MethodGet, path, nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Send posts a message and waits for the complete reply.
func (c *ChatClient) Send(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var resp ChatResponse
	if err := c.client.do(ctx, http.MethodPost, "/ai/chat/send", nil, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSession removes a session and its history.
func (c *ChatClient) DeleteSession(ctx context.Context, sessionID string) error {
	path := "/ai/chat/sessions/" + url.PathEscape(sessionID)
	return c.client.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// Models lists the model ids the backend can answer with.
func (c *ChatClient) Models(ctx context.Context) ([]string, error) {
	var models []string
	if err := c.client.do(ctx, http.MethodGet, "/ai/chat/models", nil, nil, &models); err != nil {
		return nil, err
	}
	return models, nil
}

// StreamOption configures SendStreaming.
type StreamOption func(*streamOptions)

type streamOptions struct {
	raw       io.Writer
	malformed func(error)
	readSize  int
}

// WithRawCopy copies the undecoded response body to w as it is read.
func WithRawCopy(w io.Writer) StreamOption {
	return func(o *streamOptions) { o.raw = w }
}

// WithMalformedHandler receives every record that could not be decoded.
func WithMalformedHandler(fn func(error)) StreamOption {
	return func(o *streamOptions) { o.malformed = fn }
}

// WithReadSize sets the transport read size, mostly for tests.
func WithReadSize(n int) StreamOption {
	return func(o *streamOptions) { o.readSize = n }
}

// SendStreaming posts a message to the reactive endpoint and delivers each
// unique decoded chunk to onChunk, in order, as the response arrives. It
// returns when the stream ends, ctx is done or the transport fails. The
// returned Stats are valid in every case. Streaming requests are never
// retried.
func (c *ChatClient) SendStreaming(ctx context.Context, req ChatRequest, onChunk stream.Handler, opts ...StreamOption) (stream.Stats, error) {
	o := &streamOptions{}
	for _, opt := range opts {
		opt(o)
	}

	httpReq, err := c.client.newJSONRequest(ctx, http.MethodPost, "/ai/chat/send/reactive", nil, req)
	if err != nil {
		return stream.Stats{}, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.send(httpReq)
	if err != nil {
		return stream.Stats{}, err
	}
	defer resp.Body.Close()

	decoderOpts := []stream.Option{stream.WithLogger(c.client.logger)}
	if o.malformed != nil {
		decoderOpts = append(decoderOpts, stream.WithErrorHandler(o.malformed))
	}
	decoder := stream.NewDecoder(onChunk, decoderOpts...)

	var drainOpts []stream.DrainOption
	if o.raw != nil {
		drainOpts = append(drainOpts, stream.WithTee(o.raw))
	}
	if o.readSize > 0 {
		drainOpts = append(drainOpts, stream.WithReadSize(o.readSize))
	}

	err = stream.Drain(ctx, resp.Body, decoder, drainOpts...)
	stats := decoder.Stats()
	c.client.logger.Debug("stream finished",
		"session_id", req.SessionID,
		"emitted", stats.Emitted,
		"duplicates", stats.Duplicates,
		"malformed", stats.Malformed,
	)
	return stats, err
}
