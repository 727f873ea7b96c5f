// Package storagetest holds the behaviour every storage.Driver must show,
// shared by the driver test suites.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/storage"
)

// Epoch is the start time used by NewTurn.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTurn builds a turn in sessionID that starts offset after Epoch and
// takes one second.
func NewTurn(id, sessionID string, offset time.Duration) *storage.Turn {
	started := Epoch.Add(offset)
	return &storage.Turn{
		ID:          id,
		SessionID:   sessionID,
		ModelID:     "qwen3",
		Prompt:      "prompt " + id,
		Reply:       "reply " + id,
		Streamed:    true,
		Chunks:      3,
		Duplicates:  1,
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
	}
}

// DescribeDriver registers the shared driver specs. newDriver is called
// before each test and the returned driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
			driver = nil
		}
	})

	Describe("Put", func() {
		It("stores a new turn", func() {
			isNew, err := driver.Put(ctx, NewTurn("t1", "s1", 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())
		})

		It("is idempotent on the turn id", func() {
			_, err := driver.Put(ctx, NewTurn("t1", "s1", 0))
			Expect(err).NotTo(HaveOccurred())

			again := NewTurn("t1", "s1", time.Minute)
			again.Reply = "changed"
			isNew, err := driver.Put(ctx, again)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())

			turns, err := driver.List(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
			Expect(turns[0].Reply).To(Equal("reply t1"))
		})

		It("rejects a nil turn", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilTurn))
		})

		It("rejects a turn without an id", func() {
			_, err := driver.Put(ctx, NewTurn("", "s1", 0))
			Expect(err).To(MatchError(storage.ErrMissingTurnID))
		})
	})

	Describe("List", func() {
		It("returns turns ordered by start time with all fields", func() {
			for _, t := range []*storage.Turn{
				NewTurn("b", "s1", 2*time.Minute),
				NewTurn("a", "s1", time.Minute),
				NewTurn("c", "s2", 0),
			} {
				_, err := driver.Put(ctx, t)
				Expect(err).NotTo(HaveOccurred())
			}

			turns, err := driver.List(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(2))
			Expect(turns[0].ID).To(Equal("a"))
			Expect(turns[1].ID).To(Equal("b"))

			got := turns[0]
			Expect(got.SessionID).To(Equal("s1"))
			Expect(got.ModelID).To(Equal("qwen3"))
			Expect(got.Prompt).To(Equal("prompt a"))
			Expect(got.Reply).To(Equal("reply a"))
			Expect(got.Streamed).To(BeTrue())
			Expect(got.Chunks).To(Equal(3))
			Expect(got.Duplicates).To(Equal(1))
			Expect(got.StartedAt.Equal(Epoch.Add(time.Minute))).To(BeTrue())
			Expect(got.Duration()).To(Equal(time.Second))
		})

		It("returns NotFoundError for an unknown session", func() {
			_, err := driver.List(ctx, "missing")
			Expect(err).To(HaveOccurred())
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(err).To(MatchError(storage.NotFoundError{SessionID: "missing"}))
		})
	})

	Describe("Sessions", func() {
		It("returns an empty list when nothing is stored", func() {
			sessions, err := driver.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(BeEmpty())
		})

		It("summarises sessions most recent first", func() {
			for _, t := range []*storage.Turn{
				NewTurn("a", "old", 0),
				NewTurn("b", "old", time.Minute),
				NewTurn("c", "new", time.Hour),
			} {
				_, err := driver.Put(ctx, t)
				Expect(err).NotTo(HaveOccurred())
			}

			sessions, err := driver.Sessions(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(sessions).To(HaveLen(2))

			Expect(sessions[0].SessionID).To(Equal("new"))
			Expect(sessions[0].Turns).To(Equal(1))

			Expect(sessions[1].SessionID).To(Equal("old"))
			Expect(sessions[1].Turns).To(Equal(2))
			Expect(sessions[1].FirstAt.Equal(Epoch)).To(BeTrue())
			Expect(sessions[1].LastAt.Equal(Epoch.Add(time.Minute + time.Second))).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		It("removes every turn of the session", func() {
			_, err := driver.Put(ctx, NewTurn("a", "s1", 0))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, NewTurn("b", "s1", time.Minute))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, NewTurn("c", "s2", 0))
			Expect(err).NotTo(HaveOccurred())

			n, err := driver.Delete(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))

			_, err = driver.List(ctx, "s1")
			Expect(storage.IsNotFound(err)).To(BeTrue())

			remaining, err := driver.List(ctx, "s2")
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(HaveLen(1))
		})

		It("returns NotFoundError for an unknown session", func() {
			_, err := driver.Delete(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
}
