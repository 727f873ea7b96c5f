package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatbot/pkg/eventstream"
	"github.com/papercomputeco/chatbot/pkg/eventstream/kafka"
	"github.com/papercomputeco/chatbot/pkg/storage"
)

type fakeWriter struct {
	messages    []kafkago.Message
	err         error
	closed      bool
	hadDeadline bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, f.hadDeadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		writer *fakeWriter
		pub    *kafka.Publisher
		event  *eventstream.TurnRecordedEvent
	)

	BeforeEach(func() {
		writer = &fakeWriter{}
		pub = kafka.NewPublisherWithWriter(writer, kafka.Config{})
		event = eventstream.NewTurnRecordedEvent(&storage.Turn{
			ID:        "t1",
			SessionID: "s1",
			Prompt:    "hello",
			Reply:     "hi",
		}, eventstream.EventSource{Client: "chatbot-cli"}, time.Unix(1735689600, 0))
	})

	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"})
		Expect(err).To(MatchError(kafka.ErrNoBrokers))

		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(kafka.ErrNoTopic))
	})

	It("creates a publisher from broker config without dialing", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "chatbot.turns"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("writes the event keyed by session id", func() {
		Expect(pub.PublishTurn(context.Background(), event)).To(Succeed())
		Expect(writer.messages).To(HaveLen(1))
		Expect(writer.hadDeadline).To(BeTrue())

		msg := writer.messages[0]
		Expect(string(msg.Key)).To(Equal("s1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{
			Key:   "event_type",
			Value: []byte(eventstream.EventTypeTurnRecorded),
		}))

		var decoded eventstream.TurnRecordedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Turn.Reply).To(Equal("hi"))
	})

	It("rejects nil events", func() {
		Expect(pub.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(writer.messages).To(BeEmpty())
	})

	It("wraps writer errors", func() {
		boom := errors.New("broker down")
		writer.err = boom
		err := pub.PublishTurn(context.Background(), event)
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("write turn event"))
	})

	It("closes the writer", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(writer.closed).To(BeTrue())
	})

	It("refuses events once closed", func() {
		Expect(pub.Close()).To(Succeed())
		Expect(pub.Close()).To(Succeed())
		Expect(pub.PublishTurn(context.Background(), event)).To(MatchError(eventstream.ErrPublisherClosed))
		Expect(writer.messages).To(BeEmpty())
	})
})
