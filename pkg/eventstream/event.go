package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/chatbot/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTurnRecorded is emitted after a chat turn is persisted locally.
	EventTypeTurnRecorded = "chatbot.turn.recorded"
)

// TurnRecordedEvent is a transport-neutral event payload for a recorded turn.
type TurnRecordedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Stream        StreamMeta   `json:"stream"`
	Turn          storage.Turn `json:"turn"`
}

// EventSource identifies where the turn originated.
type EventSource struct {
	BaseURL  string `json:"base_url,omitempty"`
	Username string `json:"username,omitempty"`
	Client   string `json:"client"`
}

// StreamMeta captures transport metadata for the recorded turn.
type StreamMeta struct {
	Streaming  bool  `json:"streaming"`
	DurationMs int64 `json:"duration_ms"`
	Chunks     int   `json:"chunks"`
	Duplicates int   `json:"duplicates"`
	Malformed  int   `json:"malformed"`
}

// NewTurnRecordedEvent builds the event for turn with a fresh event id.
func NewTurnRecordedEvent(turn *storage.Turn, source EventSource, now time.Time) *TurnRecordedEvent {
	return &TurnRecordedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTurnRecorded,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        source,
		Stream: StreamMeta{
			Streaming:  turn.Streamed,
			DurationMs: turn.Duration().Milliseconds(),
			Chunks:     turn.Chunks,
			Duplicates: turn.Duplicates,
			Malformed:  turn.Malformed,
		},
		Turn: *turn,
	}
}
