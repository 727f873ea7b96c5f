// Package stream decodes the chatbot backend's streaming chat response.
//
// The backend writes a sequence of JSON objects, each introduced by the
// literal marker "data:". Transport fragments are not aligned with those
// records: one fragment may hold several records, or a record may be split
// across fragments. A Decoder buffers fragments, cuts complete records out
// of the buffer, parses them and hands each unique Message to a handler.
//
// A record is only complete once the next marker arrives (or the stream
// ends), so the last record of a fragment is held back until then:
//
//	Feed(`data:{..1..}data:{..2`)  -> handler(1), buffer = `data:{..2`
//	Feed(`..}`)                    -> buffer = `data:{..2..}`
//	Close()                        -> handler(2)
//
// There is no escaping: a payload that contains the marker is split at it.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Marker introduces every record on the wire. It is case-sensitive.
const Marker = "data:"

// Message is the payload of one streamed record.
type Message struct {
	// Message is the text fragment to append to the assistant reply.
	Message string `json:"message"`

	// SessionID is the chat session the fragment belongs to.
	SessionID string `json:"sessionId"`

	// Sequence orders fragments within a session.
	Sequence Sequence `json:"sequence"`

	Role    string `json:"role,omitempty"`
	ModelID string `json:"modelId,omitempty"`

	// Error is set when the backend failed while serialising a fragment.
	Error string `json:"error,omitempty"`
}

// Key is the composite identity used to suppress duplicate deliveries.
type Key struct {
	Message   string
	SessionID string
	Sequence  string
}

// Key returns the composite key of m.
func (m Message) Key() Key {
	return Key{
		Message:   m.Message,
		SessionID: m.SessionID,
		Sequence:  m.Sequence.String(),
	}
}

// Sequence is the record's sequence value. The backend contract calls it a
// number but deployed backends also send opaque strings (UUIDs), so both
// JSON numbers and JSON strings are accepted and kept in textual form.
// Numbers are held in canonical form, so 1, 1.0 and 1e0 are the same
// sequence; strings are held verbatim.
type Sequence struct {
	raw string
	set bool
}

// NewSequence returns a numeric Sequence.
func NewSequence(n int64) Sequence {
	return Sequence{raw: strconv.FormatInt(n, 10), set: true}
}

// ParseSequence returns a Sequence holding s verbatim.
func ParseSequence(s string) Sequence {
	return Sequence{raw: s, set: true}
}

// String returns the textual form, or "" when the field was absent.
func (s Sequence) String() string {
	return s.raw
}

// IsSet reports whether the record carried a sequence.
func (s Sequence) IsSet() bool {
	return s.set
}

// Int64 returns the numeric value when the sequence is an integer.
func (s Sequence) Int64() (int64, bool) {
	n, err := strconv.ParseInt(s.raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (s *Sequence) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Sequence{}
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = ParseSequence(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("sequence must be a number or string: %w", err)
	}
	raw, err := canonicalNumber(num)
	if err != nil {
		return fmt.Errorf("sequence must be a number or string: %w", err)
	}
	*s = ParseSequence(raw)
	return nil
}

// canonicalNumber renders n as an integer when its value is integral and
// fits an int64, and in shortest float form otherwise.
func canonicalNumber(n json.Number) (string, error) {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}

	f, err := n.Float64()
	if err != nil {
		return "", err
	}
	if f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64 {
		return strconv.FormatInt(int64(f), 10), nil
	}
	return strconv.FormatFloat(f, 'g', -1, 64), nil
}

// MarshalJSON writes integers as JSON numbers and anything else as a string.
func (s Sequence) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	if _, ok := s.Int64(); ok {
		return []byte(s.raw), nil
	}
	return json.Marshal(s.raw)
}
