package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/credentials"
)

var _ = Describe("KnowledgeClient", func() {
	var (
		ctx   context.Context
		store *credentials.MemoryStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = credentials.NewMemoryStore(&credentials.Session{Token: "tok"})
	})

	It("passes paging and keyword parameters", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/ai/knowledge/search"))
			Expect(r.URL.Query().Get("keyword")).To(Equal("refund policy"))
			Expect(r.URL.Query().Get("page")).To(Equal("2"))
			Expect(r.URL.Query().Get("size")).To(Equal("5"))
			writeJSON(w, http.StatusOK, client.Page[client.Knowledge]{
				Content:       []client.Knowledge{{ID: 6, Title: "Refunds"}},
				CurrentPage:   2,
				PageSize:      5,
				TotalElements: 6,
				TotalPages:    2,
			})
		}))
		defer srv.Close()

		c := newClient(srv.URL, store)
		page, err := c.Knowledge.Search(ctx, "refund policy", 2, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(page.Content).To(HaveLen(1))
		Expect(page.Content[0].Title).To(Equal("Refunds"))
		Expect(page.TotalPages).To(Equal(2))
	})

	It("updates by id and refuses items without one", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPut))
			Expect(r.URL.Path).To(Equal("/ai/knowledge/3"))
			var item client.Knowledge
			Expect(json.NewDecoder(r.Body).Decode(&item)).To(Succeed())
			writeJSON(w, http.StatusOK, item)
		}))
		defer srv.Close()

		c := newClient(srv.URL, store)

		_, err := c.Knowledge.Update(ctx, client.Knowledge{Title: "no id"})
		Expect(err).To(HaveOccurred())

		updated, err := c.Knowledge.Update(ctx, client.Knowledge{ID: 3, Title: "t", Content: "c", Category: "faq"})
		Expect(err).NotTo(HaveOccurred())
		Expect(updated.Category).To(Equal("faq"))
	})

	It("batch imports a list", func() {
		var got []client.Knowledge
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/ai/knowledge/batch-import"))
			Expect(json.NewDecoder(r.Body).Decode(&got)).To(Succeed())
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := newClient(srv.URL, store)
		Expect(c.Knowledge.BatchImport(ctx, nil)).NotTo(Succeed())
		Expect(c.Knowledge.BatchImport(ctx, []client.Knowledge{{Title: "a"}, {Title: "b"}})).To(Succeed())
		Expect(got).To(HaveLen(2))
	})

	It("downloads exports with the server's filename", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.URL.Path).To(Equal("/ai/knowledge/export/csv"))
			w.Header().Set("Content-Disposition", `attachment; filename="kb-2026.csv"`)
			_, _ = io.WriteString(w, "id,title\n1,a\n")
		}))
		defer srv.Close()

		c := newClient(srv.URL, store)
		var buf bytes.Buffer
		name, err := c.Knowledge.Export(ctx, client.ExportCSV, &buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("kb-2026.csv"))
		Expect(buf.String()).To(Equal("id,title\n1,a\n"))
	})

	It("falls back to a default export filename", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "xlsx-bytes")
		}))
		defer srv.Close()

		c := newClient(srv.URL, store)
		name, err := c.Knowledge.Export(ctx, client.ExportExcelStreamingNIO, io.Discard)
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("knowledge.xlsx"))
	})

	It("rejects unknown export formats", func() {
		c := newClient("http://localhost:1", store)
		_, err := c.Knowledge.Export(ctx, client.ExportFormat("pdf"), io.Discard)
		Expect(err).To(MatchError(ContainSubstring("unknown export format")))
	})
})

var _ = Describe("UsersClient", func() {
	It("creates users without an id", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal(http.MethodPost))
			Expect(r.URL.Path).To(Equal("/ai/users"))

			var raw map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&raw)).To(Succeed())
			Expect(raw).NotTo(HaveKey("id"))

			writeJSON(w, http.StatusOK, client.User{ID: 9, Username: raw["username"].(string)})
		}))
		defer srv.Close()

		c := newClient(srv.URL, credentials.NewMemoryStore(&credentials.Session{Token: "tok"}))
		created, err := c.Users.Create(context.Background(), client.User{ID: 4, Username: "bob", Roles: []string{credentials.RoleUser}})
		Expect(err).NotTo(HaveOccurred())
		Expect(created.ID).To(Equal(int64(9)))
	})
})
