package stream

import (
	"errors"
	"fmt"
)

// ErrStreamClosed is returned by Drain when the context ends the stream.
var ErrStreamClosed = errors.New("stream closed")

// ErrNotObject is the cause of a MalformedPayloadError whose payload is
// valid JSON but not an object, such as null or an array.
var ErrNotObject = errors.New("payload is not a JSON object")

// MalformedPayloadError reports a record whose payload is not a JSON object.
// The record is dropped and decoding continues.
type MalformedPayloadError struct {
	// Raw is the record as cut from the buffer, marker included.
	Raw string
	Err error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed stream payload %q: %v", e.Raw, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure of the underlying connection. Messages
// delivered before the failure remain valid.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
