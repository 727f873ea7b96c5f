package devserver_test

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/chatbot/pkg/client"
	"github.com/papercomputeco/chatbot/pkg/devserver"
)

var _ = Describe("Knowledge", func() {
	var (
		server *devserver.Server
		token  string
	)

	BeforeEach(func() {
		server = newServer()
		token = login(server.App(), "manager", "manager")
	})

	page := func(path string) client.Page[client.Knowledge] {
		resp := request(server.App(), http.MethodGet, path, token, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		return decode[client.Page[client.Knowledge]](resp)
	}

	It("pages from 1", func() {
		first := page("/ai/knowledge?page=1&size=2")
		Expect(first.Content).To(HaveLen(2))
		Expect(first.CurrentPage).To(Equal(1))
		Expect(first.TotalElements).To(Equal(int64(3)))
		Expect(first.TotalPages).To(Equal(2))
		Expect(first.Content[0].ID).To(Equal(int64(1)))

		second := page("/ai/knowledge?page=2&size=2")
		Expect(second.Content).To(HaveLen(1))
		Expect(second.Content[0].ID).To(Equal(int64(3)))

		beyond := page("/ai/knowledge?page=9&size=2")
		Expect(beyond.Content).To(BeEmpty())
	})

	It("searches title and content ignoring case", func() {
		result := page("/ai/knowledge/search?keyword=MODELS")
		Expect(result.Content).To(HaveLen(1))
		Expect(result.Content[0].Title).To(Equal("Supported models"))
	})

	It("requires a search keyword", func() {
		resp := request(server.App(), http.MethodGet, "/ai/knowledge/search", token, nil)
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("filters by category", func() {
		result := page("/ai/knowledge/category/chat")
		Expect(result.Content).To(HaveLen(1))
		Expect(result.Content[0].Category).To(Equal("chat"))
	})

	It("creates, reads, updates and deletes an article", func() {
		resp := request(server.App(), http.MethodPost, "/ai/knowledge", token, client.Knowledge{
			Title: "New", Content: "Body", Category: "misc",
		})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		created := decode[client.Knowledge](resp)
		Expect(created.ID).To(Equal(int64(4)))
		Expect(created.CreatedAt).NotTo(BeEmpty())

		path := fmt.Sprintf("/ai/knowledge/%d", created.ID)
		got := decode[client.Knowledge](request(server.App(), http.MethodGet, path, token, nil))
		Expect(got.Title).To(Equal("New"))

		resp = request(server.App(), http.MethodPut, path, token, client.Knowledge{Title: "Renamed", Content: "Body"})
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(decode[client.Knowledge](resp).Title).To(Equal("Renamed"))

		Expect(request(server.App(), http.MethodDelete, path, token, nil).StatusCode).To(Equal(http.StatusNoContent))
		Expect(request(server.App(), http.MethodGet, path, token, nil).StatusCode).To(Equal(http.StatusNotFound))
	})

	It("rejects articles without a title", func() {
		resp := request(server.App(), http.MethodPost, "/ai/knowledge", token, client.Knowledge{Content: "Body"})
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(decode[devserver.ErrorEnvelope](resp).ErrorCode).To(Equal("VALID_001"))
	})

	Describe("batch import", func() {
		It("rejects an empty list", func() {
			resp := request(server.App(), http.MethodPost, "/ai/knowledge/batch-import", token, []client.Knowledge{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("imports every article", func() {
			resp := request(server.App(), http.MethodPost, "/ai/knowledge/batch-import", token, []client.Knowledge{
				{Title: "a", Content: "a"},
				{Title: "b", Content: "b"},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(page("/ai/knowledge").TotalElements).To(Equal(int64(5)))
		})
	})

	Describe("export", func() {
		It("serves CSV with a suggested filename", func() {
			resp := request(server.App(), http.MethodGet, "/ai/knowledge/export/csv", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			_, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition"))
			Expect(err).NotTo(HaveOccurred())
			Expect(params["filename"]).To(HavePrefix("knowledge_CSV_"))
			Expect(params["filename"]).To(HaveSuffix(".csv"))

			lines := strings.Split(strings.TrimSpace(readBody(resp)), "\n")
			Expect(lines).To(HaveLen(4))
			Expect(lines[0]).To(Equal("ID,Title,Category,Content,CreatedAt,UpdatedAt"))
		})

		It("answers 404 for unknown formats", func() {
			resp := request(server.App(), http.MethodGet, "/ai/knowledge/export/pdf", token, nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("answers 204 when there is nothing to export", func() {
			empty := newServer(func(c *devserver.Config) { c.SeedAccounts = false })
			_, err := empty.AddAccount("manager", "manager", "", "ROLE_KNOWLEDGEMANAGER")
			Expect(err).NotTo(HaveOccurred())

			resp := request(empty.App(), http.MethodGet, "/ai/knowledge/export/nio", login(empty.App(), "manager", "manager"), nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})
})
