package sqldriver

import (
	"time"

	"entgo.io/ent/dialect"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/storage"
)

var _ = Describe("Queries", func() {
	turn := &storage.Turn{
		ID:          "t1",
		SessionID:   "what? 'quoted'",
		Prompt:      "is ? a placeholder",
		StartedAt:   time.Unix(10, 0),
		CompletedAt: time.Unix(11, 0),
	}

	Context("postgres", func() {
		d := &Driver{Dialect: Dialect{Name: dialect.Postgres}}

		It("numbers the insert placeholders and ignores conflicts on id", func() {
			query, args := d.insertTurn(turn)
			Expect(query).To(ContainSubstring("$12"))
			Expect(query).NotTo(ContainSubstring("?"))
			Expect(query).To(ContainSubstring("ON CONFLICT"))
			Expect(query).To(ContainSubstring("DO NOTHING"))
			Expect(args).To(HaveLen(len(turnColumns)))
			Expect(args[1]).To(Equal("what? 'quoted'"))
			Expect(args[10]).To(Equal(time.Unix(10, 0).UnixNano()))
		})

		It("passes the session id as an argument", func() {
			query, args := d.selectTurns(turn.SessionID)
			Expect(query).To(ContainSubstring("$1"))
			Expect(query).NotTo(ContainSubstring("quoted"))
			Expect(args).To(Equal([]any{turn.SessionID}))

			query, args = d.deleteTurns(turn.SessionID)
			Expect(query).To(ContainSubstring("$1"))
			Expect(args).To(Equal([]any{turn.SessionID}))
		})

		It("quotes identifiers with double quotes", func() {
			query, args := d.selectSessions()
			Expect(query).NotTo(ContainSubstring("`"))
			Expect(query).To(ContainSubstring("GROUP BY"))
			Expect(args).To(BeEmpty())
		})
	})

	Context("sqlite", func() {
		d := &Driver{Dialect: Dialect{Name: dialect.SQLite}}

		It("uses question mark placeholders", func() {
			query, args := d.insertTurn(turn)
			Expect(query).NotTo(ContainSubstring("$1"))
			Expect(query).To(ContainSubstring("?"))
			Expect(query).To(ContainSubstring("ON CONFLICT"))
			Expect(args).To(HaveLen(len(turnColumns)))
		})
	})
})
