package eventstream_test

import (
	"encoding/json"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/storage"
)

var _ = Describe("Event", func() {
	now := time.Unix(1735689600, 0).UTC()
	turn := &storage.Turn{
		ID:          "t1",
		SessionID:   "s1",
		ModelID:     "qwen3",
		Prompt:      "hello",
		Reply:       "hi",
		Streamed:    true,
		Chunks:      4,
		Duplicates:  2,
		StartedAt:   now.Add(-2 * time.Second),
		CompletedAt: now,
	}

	It("builds a TurnRecordedEvent from a turn", func() {
		event := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{
			BaseURL:  "http://localhost:8080",
			Username: "alice",
			Client:   "chatbot-cli",
		}, now)

		Expect(event.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(event.EventType).To(Equal(eventstream.EventTypeTurnRecorded))
		Expect(strings.HasPrefix(event.EventID, "evt_")).To(BeTrue())
		Expect(event.EmittedAt).To(Equal(now))
		Expect(event.Stream.Streaming).To(BeTrue())
		Expect(event.Stream.DurationMs).To(Equal(int64(2000)))
		Expect(event.Stream.Chunks).To(Equal(4))
		Expect(event.Stream.Duplicates).To(Equal(2))
		Expect(event.Turn.SessionID).To(Equal("s1"))
	})

	It("issues a distinct event id per event", func() {
		a := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, now)
		b := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{}, now)
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("marshals with expected top-level keys", func() {
		event := eventstream.NewTurnRecordedEvent(turn, eventstream.EventSource{Client: "chatbot-cli"}, now)

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("stream"))
		Expect(got).To(HaveKey("turn"))
	})

	It("defines stable event constants", func() {
		Expect(eventstream.SchemaVersionV1).To(BeNumerically(">", 0))
		Expect(eventstream.EventTypeTurnRecorded).To(Equal("chatbot.turn.recorded"))
	})

	It("provides ErrNilTurnEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilTurnEvent).To(MatchError("nil turn event"))
	})
})
