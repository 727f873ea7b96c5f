package nop_test

import (
	"bytes"
	"context"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/eventstream/nop"
	"github.com/papercomputeco/chatbot/pkg/storage"
)

var _ = Describe("Publisher", func() {
	It("creates a non-nil publisher without a logger", func() {
		p := nop.NewPublisher(nil)
		Expect(p).NotTo(BeNil())
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		p := nop.NewPublisher(nil)
		err := p.PublishTurn(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
	})

	It("logs and drops non-nil events", func() {
		var buf bytes.Buffer
		l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		p := nop.NewPublisher(l)
		err := p.PublishTurn(context.Background(), &eventstream.TurnRecordedEvent{
			EventID: "evt_1",
			Turn:    storage.Turn{SessionID: "s1"},
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(buf.String()).To(ContainSubstring("evt_1"))
		Expect(buf.String()).To(ContainSubstring("session_id=s1"))
	})

	It("closes successfully", func() {
		p := nop.NewPublisher(nil)
		Expect(p.Close()).To(Succeed())
	})
})
