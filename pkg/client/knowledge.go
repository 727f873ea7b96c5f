package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
)

// ExportFormat selects one of the backend's knowledge export endpoints.
type ExportFormat string

const (
	ExportExcelBIO          ExportFormat = "bio"
	ExportExcelNIO          ExportFormat = "nio"
	ExportExcelStreamingNIO ExportFormat = "streaming-nio"
	ExportCSV               ExportFormat = "csv"
)

// ExportFormats lists every supported ExportFormat.
func ExportFormats() []ExportFormat {
	return []ExportFormat{ExportExcelBIO, ExportExcelNIO, ExportExcelStreamingNIO, ExportCSV}
}

// DefaultFilename is used when the backend does not name the download.
func (f ExportFormat) DefaultFilename() string {
	if f == ExportCSV {
		return "knowledge.csv"
	}
	return "knowledge.xlsx"
}

func (f ExportFormat) valid() bool {
	for _, known := range ExportFormats() {
		if f == known {
			return true
		}
	}
	return false
}

// ErrEmptyExport is returned by Export when the knowledge base is empty.
var ErrEmptyExport = errors.New("knowledge base is empty, nothing exported")

// KnowledgeClient covers /ai/knowledge. Pages are 1-based.
type KnowledgeClient struct {
	client *Client
}

func (k *KnowledgeClient) List(ctx context.Context, page, size int) (*Page[Knowledge], error) {
	var p Page[Knowledge]
	if err := k.client.do(ctx, http.MethodGet, "/ai/knowledge", pageQuery(page, size), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (k *KnowledgeClient) Search(ctx context.Context, keyword string, page, size int) (*Page[Knowledge], error) {
	q := pageQuery(page, size)
	q.Set("keyword", keyword)

	var p Page[Knowledge]
	if err := k.client.do(ctx, http.MethodGet, "/ai/knowledge/search", q, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (k *KnowledgeClient) ByCategory(ctx context.Context, category string, page, size int) (*Page[Knowledge], error) {
	var p Page[Knowledge]
	path := "/ai/knowledge/category/" + url.PathEscape(category)
	if err := k.client.do(ctx, http.MethodGet, path, pageQuery(page, size), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (k *KnowledgeClient) Get(ctx context.Context, id int64) (*Knowledge, error) {
	var item Knowledge
	if err := k.client.do(ctx, http.MethodGet, knowledgePath(id), nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (k *KnowledgeClient) Create(ctx context.Context, item Knowledge) (*Knowledge, error) {
	item.ID = 0
	var created Knowledge
	if err := k.client.do(ctx, http.MethodPost, "/ai/knowledge", nil, item, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Update replaces the article identified by item.ID.
func (k *KnowledgeClient) Update(ctx context.Context, item Knowledge) (*Knowledge, error) {
	if item.ID <= 0 {
		return nil, errors.New("update knowledge: missing id")
	}
	var updated Knowledge
	if err := k.client.do(ctx, http.MethodPut, knowledgePath(item.ID), nil, item, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (k *KnowledgeClient) Delete(ctx context.Context, id int64) error {
	return k.client.do(ctx, http.MethodDelete, knowledgePath(id), nil, nil, nil)
}

// BatchImport creates every item in one request.
func (k *KnowledgeClient) BatchImport(ctx context.Context, items []Knowledge) error {
	if len(items) == 0 {
		return errors.New("batch import: no items")
	}
	return k.client.do(ctx, http.MethodPost, "/ai/knowledge/batch-import", nil, items, nil)
}

// Export streams the knowledge base in the given format to w and returns
// the filename suggested by the backend, or the format's default.
func (k *KnowledgeClient) Export(ctx context.Context, format ExportFormat, w io.Writer) (string, error) {
	if !format.valid() {
		return "", fmt.Errorf("unknown export format %q", format)
	}

	req, err := k.client.newJSONRequest(ctx, http.MethodGet, "/ai/knowledge/export/"+string(format), nil, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := k.client.send(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return "", ErrEmptyExport
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("downloading export: %w", err)
	}

	filename := format.DefaultFilename()
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return filename, nil
}

func knowledgePath(id int64) string {
	return "/ai/knowledge/" + strconv.FormatInt(id, 10)
}
