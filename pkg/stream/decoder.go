package stream

import (
	"encoding/json"
	"iter"
	"log/slog"
	"strings"

	"github.com/papercomputeco/chatbot/pkg/logger"
)

// Handler receives each unique decoded Message in extraction order.
type Handler func(Message)

// Stats counts what a Decoder did with the records it extracted.
type Stats struct {
	Emitted    int
	Duplicates int
	Malformed  int
	Discarded  int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the logger malformed records are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(d *Decoder) {
		d.logger = logger.OrNop(l)
	}
}

// WithErrorHandler registers fn to receive a *MalformedPayloadError for
// every record whose payload is not a JSON object. Decoding continues.
func WithErrorHandler(fn func(error)) Option {
	return func(d *Decoder) {
		d.onError = fn
	}
}

// Decoder reassembles Messages from arbitrarily split stream fragments and
// suppresses duplicate deliveries. One Decoder serves exactly one stream.
//
// A Decoder is not safe for concurrent use: Feed and Close must be called
// from the goroutine reading the transport.
type Decoder struct {
	handler Handler
	onError func(error)
	logger  *slog.Logger

	// buf holds the received text that has not been consumed into an
	// emitted or discarded record.
	buf strings.Builder

	// received is the number of bytes accepted so far, used by FeedSnapshot.
	received int

	seen   map[Key]struct{}
	stats  Stats
	closed bool
}

// NewDecoder returns a Decoder delivering Messages to handler.
func NewDecoder(handler Handler, opts ...Option) *Decoder {
	d := &Decoder{
		handler: handler,
		logger:  logger.Nop(),
		seen:    make(map[Key]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Feed appends an incremental fragment and delivers every record it
// completes before returning. Feed after Close is ignored.
func (d *Decoder) Feed(chunk string) {
	if d.closed {
		d.logger.Debug("feed after close ignored", "bytes", len(chunk))
		return
	}
	if chunk == "" {
		return
	}

	d.buf.WriteString(chunk)
	d.received += len(chunk)

	for msg := range d.records(false) {
		d.deliver(msg)
	}
}

// FeedSnapshot accepts the entire text received so far, as delivered by
// transports that report cumulative progress, and feeds only the part not
// yet seen. A snapshot that does not extend the previous one is treated as
// a plain fragment.
func (d *Decoder) FeedSnapshot(total string) {
	if len(total) >= d.received {
		d.Feed(total[d.received:])
		return
	}
	d.Feed(total)
}

// Close flushes the tail record, if any, as the final record of the stream
// and makes the Decoder inert. Close is idempotent.
func (d *Decoder) Close() {
	if d.closed {
		return
	}

	for msg := range d.records(true) {
		d.deliver(msg)
	}

	d.closed = true
	d.buf.Reset()
}

// Stats returns the counters accumulated so far.
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Buffered returns the text held back waiting for a record boundary.
func (d *Decoder) Buffered() string {
	return d.buf.String()
}

// records yields the parsed payload of every complete record in the buffer.
// It scans with a moving offset and compacts the buffer once, after the
// last record it consumed. With final set, the tail candidate is treated as
// complete.
func (d *Decoder) records(final bool) iter.Seq[Message] {
	return func(yield func(Message) bool) {
		buffer := d.buf.String()
		pos := 0
		defer func() { d.compact(buffer, pos) }()

		for {
			start := strings.Index(buffer[pos:], Marker)
			if start < 0 {
				pos = noiseCut(buffer, pos)
				return
			}
			start += pos

			end := -1
			if next := strings.Index(buffer[start+len(Marker):], Marker); next >= 0 {
				end = start + len(Marker) + next
			}

			if end < 0 {
				if !final {
					// Tail candidate: keep it, minus anything before the marker.
					pos = start
					return
				}
				end = len(buffer)
			}
			pos = end

			msg, ok := d.parse(buffer[start:end])
			if !ok {
				continue
			}
			if !yield(msg) {
				return
			}
		}
	}
}

// parse turns one raw record into a Message. It returns false for records
// that carry nothing and for malformed ones, which are reported. Only a JSON
// object is a valid payload.
func (d *Decoder) parse(record string) (Message, bool) {
	payload := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(record), Marker))
	if payload == "" || payload == Marker {
		d.stats.Discarded++
		return Message{}, false
	}

	var msg Message
	err := ErrNotObject
	if strings.HasPrefix(payload, "{") {
		err = json.Unmarshal([]byte(payload), &msg)
	}
	if err != nil {
		d.stats.Malformed++
		perr := &MalformedPayloadError{Raw: record, Err: err}
		d.logger.Warn("failed to parse streaming chunk",
			"error", err,
			"chunk", record,
		)
		if d.onError != nil {
			d.onError(perr)
		}
		return Message{}, false
	}

	return msg, true
}

// deliver hands msg to the handler unless its key was already delivered.
func (d *Decoder) deliver(msg Message) {
	key := msg.Key()
	if _, dup := d.seen[key]; dup {
		d.stats.Duplicates++
		return
	}

	d.seen[key] = struct{}{}
	d.stats.Emitted++

	if d.handler != nil {
		d.handler(msg)
	}
}

// noiseCut returns the offset from which buffer, holding no marker after
// pos, is kept: only the bytes that could still be the start of a marker
// split across fragments.
func noiseCut(buffer string, pos int) int {
	keep := len(Marker) - 1
	if len(buffer)-pos <= keep {
		return pos
	}
	return len(buffer) - keep
}

// compact drops the first pos bytes of buffer, which is the content of buf.
func (d *Decoder) compact(buffer string, pos int) {
	if pos == 0 {
		return
	}
	rest := buffer[pos:]
	d.buf.Reset()
	d.buf.WriteString(rest)
}
