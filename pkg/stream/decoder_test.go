package stream_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/logger"
	"github.com/papercomputeco/chatbot/pkg/stream"
)

// collect returns a decoder that appends every delivered message to out.
func collect(out *[]stream.Message, opts ...stream.Option) *stream.Decoder {
	return stream.NewDecoder(func(m stream.Message) {
		*out = append(*out, m)
	}, opts...)
}

func texts(msgs []stream.Message) string {
	var sb strings.Builder
	for _, m := range msgs {
		sb.WriteString(m.Message)
	}
	return sb.String()
}

const transcript = `data:{"message":"Hel","sessionId":"s1","sequence":1}` + "\n\n" +
	`data:{"message":"lo","sessionId":"s1","sequence":2}` + "\n\n" +
	`data: {"message":" wör","sessionId":"s1","sequence":3}` + "\n\n" +
	`data:not-json` + "\n\n" +
	`data:{"message":"ld","sessionId":"s1","sequence":4}` + "\n\n" +
	`data:{"message":"lo","sessionId":"s1","sequence":2}` + "\n\n" +
	`data:` + "\n\n" +
	`data:{"message":"!","sessionId":"s1","sequence":"5"}` + "\n\n"

var _ = Describe("Decoder", func() {
	var got []stream.Message

	BeforeEach(func() {
		got = nil
	})

	Describe("Feed", func() {
		It("holds back the last record until a later marker arrives", func() {
			d := collect(&got)

			d.Feed(`data:{"message":"Hi","sessionId":"s1","sequ`)
			Expect(got).To(BeEmpty())

			d.Feed(`ence":1}data:{"message":" there","sessionId":"s1","sequence":2}`)
			Expect(got).To(HaveLen(1))
			Expect(got[0].Message).To(Equal("Hi"))
			Expect(got[0].SessionID).To(Equal("s1"))
			Expect(got[0].Sequence.String()).To(Equal("1"))
			Expect(d.Buffered()).To(Equal(`data:{"message":" there","sessionId":"s1","sequence":2}`))

			d.Close()
			Expect(got).To(HaveLen(2))
			Expect(got[1].Message).To(Equal(" there"))
			Expect(got[1].Sequence.String()).To(Equal("2"))
		})

		It("delivers several records from one fragment in order", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1}data:{"message":"b","sessionId":"s","sequence":2}data:{"message":"c","sessionId":"s","sequence":3}`)

			Expect(texts(got)).To(Equal("ab"))
			d.Close()
			Expect(texts(got)).To(Equal("abc"))
		})

		It("handles a marker split across fragments", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1}da`)
			Expect(got).To(BeEmpty())

			d.Feed(`ta:{"message":"b","sessionId":"s","sequence":2}`)
			Expect(texts(got)).To(Equal("a"))

			d.Close()
			Expect(texts(got)).To(Equal("ab"))
		})

		It("drops text before the first marker", func() {
			d := collect(&got)
			d.Feed(`: keep-alive` + "\n" + `data:{"message":"a","sessionId":"s","sequence":1}`)
			d.Close()

			Expect(got).To(HaveLen(1))
			Expect(got[0].Message).To(Equal("a"))
		})

		It("keeps only a possible partial marker when no marker was seen", func() {
			d := collect(&got)
			d.Feed("some noise without any marker, dat")
			Expect(d.Buffered()).To(Equal(" dat"))
		})

		It("ignores fragments after close", func() {
			d := collect(&got)
			d.Close()
			d.Feed(`data:{"message":"late","sessionId":"s","sequence":1}data:`)

			Expect(got).To(BeEmpty())
			Expect(d.Buffered()).To(BeEmpty())
		})

		It("keeps decoding when the handler does not return before the next fragment is processed", func() {
			done := make(chan string, 4)
			d := stream.NewDecoder(func(m stream.Message) {
				go func() { done <- m.Message }()
			})

			d.Feed(`data:{"message":"x","sessionId":"s","sequence":1}data:{"message":"y","sessionId":"s","sequence":2}`)
			d.Close()

			Eventually(done).Should(Receive())
			Eventually(done).Should(Receive())
			Expect(d.Stats().Emitted).To(Equal(2))
		})
	})

	Describe("duplicate suppression", func() {
		It("delivers a repeated record once", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"A","sessionId":"s1","sequence":1}data:{"message":"A","sessionId":"s1","sequence":1}`)
			d.Close()

			Expect(got).To(HaveLen(1))
			Expect(d.Stats().Duplicates).To(Equal(1))
		})

		It("treats any differing key field as a new record", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"A","sessionId":"s1","sequence":1}`)
			d.Feed(`data:{"message":"A","sessionId":"s2","sequence":1}`)
			d.Feed(`data:{"message":"A","sessionId":"s1","sequence":2}`)
			d.Feed(`data:{"message":"B","sessionId":"s1","sequence":1}`)
			d.Close()

			Expect(got).To(HaveLen(4))
		})

		It("matches numeric and string sequences with the same text", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"A","sessionId":"s1","sequence":7}data:{"message":"A","sessionId":"s1","sequence":"7"}`)
			d.Close()

			Expect(got).To(HaveLen(1))
		})

		It("treats equal numeric sequences written differently as one record", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1}`)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1.0}`)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1e0}`)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":"1.0"}`)
			d.Close()

			Expect(got).To(HaveLen(2))
			Expect(got[0].Sequence.String()).To(Equal("1"))
			Expect(got[1].Sequence.String()).To(Equal("1.0"))
			Expect(d.Stats().Duplicates).To(Equal(2))
		})

		It("never delivers a key twice for any split of a noisy stream", func() {
			d := collect(&got)
			for _, part := range splitAt(transcript, 3, 17, 40, 41, 90, 130) {
				d.Feed(part)
			}
			d.Close()

			keys := map[stream.Key]int{}
			for _, m := range got {
				keys[m.Key()]++
			}
			for k, n := range keys {
				Expect(n).To(Equal(1), "key %+v delivered %d times", k, n)
			}
		})
	})

	Describe("malformed and empty records", func() {
		It("reports a corrupt record and keeps going", func() {
			var reported []error
			var logBuf bytes.Buffer
			d := collect(&got,
				stream.WithErrorHandler(func(err error) { reported = append(reported, err) }),
				stream.WithLogger(logger.New(logger.WithWriter(&logBuf))),
			)

			d.Feed(`data:not-json`)
			d.Feed(`data:{"message":"B","sessionId":"s1","sequence":1}`)
			d.Close()

			Expect(got).To(HaveLen(1))
			Expect(got[0].Message).To(Equal("B"))

			Expect(reported).To(HaveLen(1))
			var perr *stream.MalformedPayloadError
			Expect(errors.As(reported[0], &perr)).To(BeTrue())
			Expect(perr.Raw).To(Equal("data:not-json"))
			Expect(logBuf.String()).To(ContainSubstring("failed to parse streaming chunk"))
			Expect(d.Stats().Malformed).To(Equal(1))
		})

		It("reports payloads that are valid JSON but not an object", func() {
			var errs []error
			d := collect(&got, stream.WithErrorHandler(func(err error) {
				errs = append(errs, err)
			}))
			d.Feed(`data:nulldata:[1]data:"text"data:{"message":"ok"}`)
			d.Close()

			Expect(texts(got)).To(Equal("ok"))
			Expect(d.Stats().Malformed).To(Equal(3))
			Expect(errs).To(HaveLen(3))

			var perr *stream.MalformedPayloadError
			Expect(errors.As(errs[0], &perr)).To(BeTrue())
			Expect(perr.Raw).To(Equal("data:null"))
			Expect(errors.Is(errs[0], stream.ErrNotObject)).To(BeTrue())
		})

		It("produces no callback for an empty payload", func() {
			d := collect(&got)
			d.Feed("data:   \n\ndata:")
			d.Close()

			Expect(got).To(BeEmpty())
			Expect(d.Stats().Discarded).To(Equal(2))
			Expect(d.Stats().Malformed).To(BeZero())
		})

		It("discards everything when no marker ever arrives", func() {
			d := collect(&got)
			d.Feed(`{"message":"no marker","sessionId":"s","sequence":1}`)
			d.Close()

			Expect(got).To(BeEmpty())
			Expect(d.Stats()).To(Equal(stream.Stats{}))
		})

		It("carries the backend error field through", func() {
			d := collect(&got)
			d.Feed(`data: {"error": "model unavailable"}`)
			d.Close()

			Expect(got).To(HaveLen(1))
			Expect(got[0].Error).To(Equal("model unavailable"))
			Expect(got[0].Sequence.IsSet()).To(BeFalse())
		})
	})

	Describe("Close", func() {
		It("is idempotent", func() {
			d := collect(&got)
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1}`)
			d.Close()
			d.Close()

			Expect(got).To(HaveLen(1))
		})

		It("reports a truncated tail as malformed", func() {
			var reported int
			d := collect(&got, stream.WithErrorHandler(func(error) { reported++ }))
			d.Feed(`data:{"message":"a","sessionId":"s","sequence":1}data:{"message":"cut`)
			d.Close()

			Expect(got).To(HaveLen(1))
			Expect(reported).To(Equal(1))
		})
	})

	Describe("large fragments", func() {
		It("decodes many records from one fragment in linear time", func() {
			const n = 40000
			var b strings.Builder
			for i := range n {
				fmt.Fprintf(&b, `data:{"message":"chunk %d","sessionId":"s","sequence":%d}`, i, i)
			}

			d := collect(&got)
			began := time.Now()
			d.Feed(b.String())
			d.Close()

			Expect(time.Since(began)).To(BeNumerically("<", 2*time.Second))
			Expect(got).To(HaveLen(n))
			Expect(got[n-1].Message).To(Equal(fmt.Sprintf("chunk %d", n-1)))
			Expect(d.Buffered()).To(BeEmpty())
		})

		It("keeps only the tail record after a long fragment", func() {
			d := collect(&got)
			d.Feed(strings.Repeat(`data:{"message":"x","sessionId":"s","sequence":1}`, 100) + `data:{"mess`)

			Expect(got).To(HaveLen(1))
			Expect(d.Buffered()).To(Equal(`data:{"mess`))
		})
	})

	Describe("FeedSnapshot", func() {
		It("decodes cumulative snapshots like incremental fragments", func() {
			d := collect(&got)
			for i := 10; i < len(transcript); i += 13 {
				d.FeedSnapshot(transcript[:i])
			}
			d.FeedSnapshot(transcript)
			d.Close()

			Expect(texts(got)).To(Equal(decodeWhole(transcript)))
			Expect(d.Stats().Malformed).To(Equal(1))
		})
	})

	Describe("fragmentation invariance", func() {
		It("yields the same output for every two-way split", func() {
			want := decodeWhole(transcript)
			Expect(want).To(Equal("Hello wörld!"))

			for i := 0; i <= len(transcript); i++ {
				var out []stream.Message
				d := collect(&out)
				d.Feed(transcript[:i])
				d.Feed(transcript[i:])
				d.Close()
				Expect(texts(out)).To(Equal(want), "split at %d", i)
			}
		})

		It("yields the same output for random multi-way splits", func() {
			want := decodeWhole(transcript)
			r := rand.New(rand.NewSource(42))

			for range 200 {
				var out []stream.Message
				d := collect(&out)
				rest := transcript
				for rest != "" {
					n := 1 + r.Intn(12)
					if n > len(rest) {
						n = len(rest)
					}
					d.Feed(rest[:n])
					rest = rest[n:]
				}
				d.Close()
				Expect(texts(out)).To(Equal(want))
			}
		})
	})
})

var _ = Describe("Sequence", func() {
	It("exposes integer values", func() {
		n, ok := stream.NewSequence(12).Int64()
		Expect(ok).To(BeTrue())
		Expect(n).To(Equal(int64(12)))
	})

	It("keeps opaque string values", func() {
		s := stream.ParseSequence("2f1c7a4e-uuid")
		_, ok := s.Int64()
		Expect(ok).To(BeFalse())
		Expect(s.String()).To(Equal("2f1c7a4e-uuid"))
	})

	It("rejects non-scalar values", func() {
		var s stream.Sequence
		Expect(s.UnmarshalJSON([]byte(`{"a":1}`))).NotTo(Succeed())
	})

	It("canonicalises numeric values", func() {
		for raw, want := range map[string]string{
			`1`: "1", `1.0`: "1", `1e0`: "1", `-0`: "0", `1.50`: "1.5", `2.5e1`: "25",
		} {
			var seq stream.Sequence
			Expect(json.Unmarshal([]byte(raw), &seq)).To(Succeed())
			Expect(seq.String()).To(Equal(want), raw)
		}
	})

	It("writes integers back as numbers", func() {
		b, err := stream.NewSequence(3).MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal("3"))

		b, err = stream.ParseSequence("abc").MarshalJSON()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(b)).To(Equal(`"abc"`))
	})
})

func decodeWhole(text string) string {
	var out []stream.Message
	d := collect(&out)
	d.Feed(text)
	d.Close()
	return texts(out)
}

func splitAt(s string, offsets ...int) []string {
	parts := make([]string, 0, len(offsets)+1)
	prev := 0
	for _, off := range offsets {
		if off > len(s) {
			break
		}
		parts = append(parts, s[prev:off])
		prev = off
	}
	return append(parts, s[prev:])
}
