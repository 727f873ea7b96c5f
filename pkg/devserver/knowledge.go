package devserver

import (
	"bytes"
	"cmp"
	"encoding/csv"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/chatbot/pkg/client"
)

// exportPrefixes names the download per export endpoint.
var exportPrefixes = map[string]string{
	"bio":           "knowledge_BIO_",
	"nio":           "knowledge_NIO_",
	"streaming-nio": "knowledge_StreamingNIO_",
	"csv":           "knowledge_CSV_",
}

// AddArticle stores k with a fresh id and timestamps and returns the stored copy.
func (s *Server) AddArticle(k client.Knowledge) client.Knowledge {
	now := s.config.Now().Format(articleTimeLayout)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextArticleID++
	k.ID = s.nextArticleID
	k.CreatedAt = now
	k.UpdatedAt = now
	stored := k
	s.articles[k.ID] = &stored
	return stored
}

// articlesLocked returns copies of the articles matching keep, by id.
func (s *Server) articlesLocked(keep func(*client.Knowledge) bool) []client.Knowledge {
	out := make([]client.Knowledge, 0, len(s.articles))
	for _, k := range s.articles {
		if keep == nil || keep(k) {
			out = append(out, *k)
		}
	}
	slices.SortFunc(out, func(a, b client.Knowledge) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// paginate cuts one 1-based page out of items.
func paginate[T any](items []T, page, size int) client.Page[T] {
	total := len(items)
	pages := 0
	if size > 0 {
		pages = (total + size - 1) / size
	}

	start := min((page-1)*size, total)
	end := min(start+size, total)

	return client.Page[T]{
		Content:       slices.Clone(items[start:end]),
		CurrentPage:   page,
		PageSize:      size,
		TotalElements: int64(total),
		TotalPages:    pages,
	}
}

func pageParams(c *fiber.Ctx, defaultSize int) (int, int) {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size := c.QueryInt("size", defaultSize)
	if size < 1 {
		size = defaultSize
	}
	return page, size
}

func articleID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fail(ErrInvalidParameter, "id must be a number")
	}
	return id, nil
}

func (s *Server) handleKnowledgeList(c *fiber.Ctx) error {
	page, size := pageParams(c, defaultPageSize)

	s.mu.RLock()
	items := s.articlesLocked(nil)
	s.mu.RUnlock()

	return c.JSON(paginate(items, page, size))
}

// handleKnowledgeSearch matches the keyword against title and content,
// ignoring case.
func (s *Server) handleKnowledgeSearch(c *fiber.Ctx) error {
	keyword := strings.ToLower(strings.TrimSpace(c.Query("keyword")))
	if keyword == "" {
		return fail(ErrInvalidParameter, "keyword is required")
	}
	page, size := pageParams(c, defaultPageSize)

	s.mu.RLock()
	items := s.articlesLocked(func(k *client.Knowledge) bool {
		return strings.Contains(strings.ToLower(k.Title), keyword) ||
			strings.Contains(strings.ToLower(k.Content), keyword)
	})
	s.mu.RUnlock()

	return c.JSON(paginate(items, page, size))
}

func (s *Server) handleKnowledgeByCategory(c *fiber.Ctx) error {
	category := c.Params("category")
	page, size := pageParams(c, defaultPageSize)

	s.mu.RLock()
	items := s.articlesLocked(func(k *client.Knowledge) bool {
		return k.Category == category
	})
	s.mu.RUnlock()

	return c.JSON(paginate(items, page, size))
}

func (s *Server) handleKnowledgeGet(c *fiber.Ctx) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}

	s.mu.RLock()
	k, ok := s.articles[id]
	var found client.Knowledge
	if ok {
		found = *k
	}
	s.mu.RUnlock()

	if !ok {
		return notFound(fmt.Sprintf("knowledge %d not found", id))
	}
	return c.JSON(found)
}

func validArticle(k client.Knowledge) bool {
	return strings.TrimSpace(k.Title) != "" && strings.TrimSpace(k.Content) != ""
}

func (s *Server) handleKnowledgeCreate(c *fiber.Ctx) error {
	var k client.Knowledge
	if err := c.BodyParser(&k); err != nil || !validArticle(k) {
		return fail(ErrInvalidParameter, "title and content are required")
	}
	return c.JSON(s.AddArticle(k))
}

func (s *Server) handleKnowledgeUpdate(c *fiber.Ctx) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}

	var in client.Knowledge
	if err := c.BodyParser(&in); err != nil || !validArticle(in) {
		return fail(ErrInvalidParameter, "title and content are required")
	}

	s.mu.Lock()
	k, ok := s.articles[id]
	if ok {
		k.Title = in.Title
		k.Content = in.Content
		k.Category = in.Category
		k.UpdatedAt = s.config.Now().Format(articleTimeLayout)
	}
	var updated client.Knowledge
	if ok {
		updated = *k
	}
	s.mu.Unlock()

	if !ok {
		return notFound(fmt.Sprintf("knowledge %d not found", id))
	}
	return c.JSON(updated)
}

func (s *Server) handleKnowledgeDelete(c *fiber.Ctx) error {
	id, err := articleID(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.articles, id)
	s.mu.Unlock()

	return c.SendStatus(fiber.StatusNoContent)
}

// handleKnowledgeBatchImport accepts between 1 and maxBatchImport articles.
func (s *Server) handleKnowledgeBatchImport(c *fiber.Ctx) error {
	var items []client.Knowledge
	if err := c.BodyParser(&items); err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}

	if len(items) == 0 || len(items) > maxBatchImport {
		s.logger.Warn("rejected batch import", "items", len(items))
		return c.SendStatus(fiber.StatusBadRequest)
	}

	for _, k := range items {
		if !validArticle(k) {
			return c.SendStatus(fiber.StatusBadRequest)
		}
	}
	for _, k := range items {
		s.AddArticle(k)
	}

	s.logger.Info("batch import", "items", len(items))
	return c.SendStatus(fiber.StatusOK)
}

// handleKnowledgeExport serves every article as CSV. The spreadsheet
// endpoints answer with CSV as well and name the file accordingly.
func (s *Server) handleKnowledgeExport(c *fiber.Ctx) error {
	prefix, ok := exportPrefixes[c.Params("format")]
	if !ok {
		return notFound("unknown export format")
	}

	s.mu.RLock()
	items := s.articlesLocked(nil)
	s.mu.RUnlock()

	if len(items) == 0 {
		return c.SendStatus(fiber.StatusNoContent)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ID", "Title", "Category", "Content", "CreatedAt", "UpdatedAt"})
	for _, k := range items {
		_ = w.Write([]string{strconv.FormatInt(k.ID, 10), k.Title, k.Category, k.Content, k.CreatedAt, k.UpdatedAt})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(ErrInternal)
	}

	filename := prefix + s.config.Now().Format(exportTimeLayout) + ".csv"
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`form-data; name="attachment"; filename=%q`, filename))
	return c.Send(buf.Bytes())
}
