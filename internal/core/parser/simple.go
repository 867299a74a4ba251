package parser

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"docstream/internal/models"
)

// Simple extracts plain text locally, page by page, without any external
// calls. A page that fails to extract yields an inline error note rather
// than failing the whole document.
type Simple struct{}

func (Simple) Parse(_ context.Context, doc []byte) ([]models.Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, fmt.Errorf("pdf parsing failed: %w", err)
	}

	n := reader.NumPage()
	texts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			texts = append(texts, fmt.Sprintf("Error extracting text from page %d: %v", i, err))
			continue
		}
		texts = append(texts, text)
	}

	return PagesToMarkdown(texts), nil
}
