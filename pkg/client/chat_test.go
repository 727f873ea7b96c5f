package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
	"github.com/papercomputeco/chatbot/pkg/stream"
)

// streamingServer writes each fragment as its own flushed write.
func streamingServer(fragments ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(r.URL.Path).To(Equal("/ai/chat/send/reactive"))
		Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))

		var req client.ChatRequest
		Expect(json.NewDecoder(r.Body).Decode(&req)).To(Succeed())
		Expect(req.SessionID).To(Equal("s1"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			_, _ = io.WriteString(w, f)
			flusher.Flush()
		}
	}))
}

var _ = Describe("ChatClient", func() {
	var (
		ctx   context.Context
		store *credentials.MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = credentials.NewMemoryStore(&credentials.Session{Token: "tok"})
	})

	Describe("SendStreaming", func() {
		It("decodes split and duplicated records in order", func() {
			fragments := []string{
				`data:{"message":"Hel","sessionId":"s1","sequence":1}` + "\n\n",
				`data:{"message":"Hel","sessionId":"s1","sequence":1}` + "\n\ndata:{\"mess",
				`age":"lo","sessionId":"s1","sequence":2}` + "\n\n",
			}
			srv := streamingServer(fragments...)
			defer srv.Close()

			c := newClient(srv.URL, store)

			var (
				got []string
				raw bytes.Buffer
			)
			stats, err := c.Chat.SendStreaming(ctx,
				client.ChatRequest{Message: "hi", SessionID: "s1", ModelID: "qwen3"},
				func(m stream.Message) { got = append(got, m.Message) },
				client.WithRawCopy(&raw),
				client.WithReadSize(16),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"Hel", "lo"}))
			Expect(stats.Emitted).To(Equal(2))
			Expect(stats.Duplicates).To(Equal(1))
			Expect(raw.String()).To(Equal(strings.Join(fragments, "")))
		})

		It("reports malformed records and keeps going", func() {
			srv := streamingServer(
				`data:{"message":"a","sessionId":"s1","sequence":"u-1"}`,
				`data:{broken`,
				`data:{"message":"b","sessionId":"s1","sequence":"u-2"}`,
			)
			defer srv.Close()

			c := newClient(srv.URL, store)

			var (
				got       []string
				malformed []error
			)
			stats, err := c.Chat.SendStreaming(ctx,
				client.ChatRequest{Message: "hi", SessionID: "s1"},
				func(m stream.Message) { got = append(got, m.Message) },
				client.WithMalformedHandler(func(err error) { malformed = append(malformed, err) }),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal([]string{"a", "b"}))
			Expect(stats.Malformed).To(Equal(1))
			Expect(malformed).To(HaveLen(1))

			var perr *stream.MalformedPayloadError
			Expect(errors.As(malformed[0], &perr)).To(BeTrue())
		})

		It("returns the decoded API error for a rejected request", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"errorCode": "AUTH_003", "message": "expired"})
			}))
			defer srv.Close()

			c := newClient(srv.URL, store)
			called := false
			_, err := c.Chat.SendStreaming(ctx,
				client.ChatRequest{Message: "hi", SessionID: "s1"},
				func(stream.Message) { called = true },
			)
			Expect(err).To(MatchError(client.ErrUnauthorized))
			Expect(called).To(BeFalse())
		})

		It("stops with a transport error when the context is cancelled", func() {
			release := make(chan struct{})
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = io.WriteString(w, `data:{"message":"a","sessionId":"s1","sequence":1}data:{"message":"b"`)
				w.(http.Flusher).Flush()
				<-release
			}))
			defer srv.Close()
			defer close(release)

			c := newClient(srv.URL, store)
			ctx, cancel := context.WithCancel(ctx)

			var got []string
			_, err := c.Chat.SendStreaming(ctx,
				client.ChatRequest{Message: "hi", SessionID: "s1"},
				func(m stream.Message) {
					got = append(got, m.Message)
					cancel()
				},
			)

			var terr *stream.TransportError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(got).To(Equal([]string{"a"}))
		})
	})

	Describe("non-streaming calls", func() {
		It("sends a message and decodes the reply", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.URL.Path).To(Equal("/ai/chat/send"))
				writeJSON(w, http.StatusOK, client.ChatResponse{Message: "hello", SessionID: "s1", ModelID: "qwen3"})
			}))
			defer srv.Close()

			c := newClient(srv.URL, store)
			resp, err := c.Chat.Send(ctx, client.ChatRequest{Message: "hi", SessionID: "s1", ModelID: "qwen3"})
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.Message).To(Equal("hello"))
		})

		It("loads history and deletes sessions with escaped ids", func() {
			var paths []string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				paths = append(paths, r.Method+" "+r.URL.EscapedPath())
				switch r.Method {
				case http.MethodGet:
					writeJSON(w, http.StatusOK, []client.ChatResponse{
						{Role: "user", Message: "hi"},
						{Role: "assistant", Message: "hello"},
					})
				case http.MethodDelete:
					w.WriteHeader(http.StatusNoContent)
				}
			}))
			defer srv.Close()

			c := newClient(srv.URL, store)
			history, err := c.Chat.History(ctx, "a b")
			Expect(err).NotTo(HaveOccurred())
			Expect(history).To(HaveLen(2))
			Expect(history[1].Role).To(Equal("assistant"))

			Expect(c.Chat.DeleteSession(ctx, "a b")).To(Succeed())
			Expect(paths).To(Equal([]string{
				"GET /ai/chat/history/a%20b",
				"DELETE /ai/chat/sessions/a%20b",
			}))
		})
	})
})
