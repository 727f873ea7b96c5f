package stream_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/stream"
)

var _ = Describe("Drain", func() {
	var got []stream.Message

	BeforeEach(func() {
		got = nil
	})

	It("decodes a reader one byte at a time and flushes the tail", func() {
		d := collect(&got)
		err := stream.Drain(context.Background(), iotest.OneByteReader(strings.NewReader(transcript)), d)

		Expect(err).NotTo(HaveOccurred())
		Expect(texts(got)).To(Equal("Hello wörld!"))
	})

	It("copies the raw bytes to the tee writer", func() {
		var raw bytes.Buffer
		d := collect(&got)
		err := stream.Drain(context.Background(), strings.NewReader(transcript), d,
			stream.WithTee(&raw),
			stream.WithReadSize(7),
		)

		Expect(err).NotTo(HaveOccurred())
		Expect(raw.String()).To(Equal(transcript))
	})

	It("returns a transport error and keeps what was delivered", func() {
		boom := errors.New("connection reset")
		src := io.MultiReader(
			strings.NewReader(`data:{"message":"a","sessionId":"s","sequence":1}data:{"message":"b","sessionId":"s","sequence":2}`),
			iotest.ErrReader(boom),
		)

		d := collect(&got)
		err := stream.Drain(context.Background(), src, d)

		var terr *stream.TransportError
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(errors.Is(err, boom)).To(BeTrue())
		Expect(texts(got)).To(Equal("ab"))
	})

	It("stops when the context is cancelled", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		d := collect(&got)
		err := stream.Drain(ctx, strings.NewReader(transcript), d)

		Expect(errors.Is(err, stream.ErrStreamClosed)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		Expect(got).To(BeEmpty())
	})
})
