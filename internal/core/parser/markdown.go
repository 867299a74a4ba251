package parser

import (
	"fmt"
	"strings"

	"docstream/internal/models"
)

var markdownEscaper = strings.NewReplacer("*", `\*`, "_", `\_`, "#", `\#`)

// TextToMarkdown wraps one page of plain text in a "# Page N" section,
// escaping characters that would otherwise read as markdown syntax. Blank
// lines are preserved so paragraph breaks survive.
func TextToMarkdown(text string, pageNum int) string {
	if strings.TrimSpace(text) == "" {
		return fmt.Sprintf("# Page %d\n\n*No content found on this page*\n", pageNum)
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	processed := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			line = markdownEscaper.Replace(line)
		}
		processed = append(processed, line)
	}

	return fmt.Sprintf("# Page %d\n\n%s\n", pageNum, strings.Join(processed, "\n"))
}

// PagesToMarkdown converts per-page plain texts into the page list, numbering
// from 1 in input order.
func PagesToMarkdown(pagesText []string) []models.Page {
	pages := make([]models.Page, 0, len(pagesText))
	for i, text := range pagesText {
		pages = append(pages, models.Page{
			Page:      i + 1,
			ContentMD: TextToMarkdown(text, i+1),
		})
	}
	return pages
}
