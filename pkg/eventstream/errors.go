package eventstream

import "errors"

var (
	// ErrNilTurnEvent indicates a nil turn event payload was provided to a publisher.
	ErrNilTurnEvent = errors.New("nil turn event")

	// ErrPublisherClosed is returned by PublishTurn after Close.
	ErrPublisherClosed = errors.New("event publisher closed")
)
