package parser

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/generative-ai-go/genai"

	"docstream/internal/core/llm"
	"docstream/internal/models"
)

const geminiParsePrompt = `You are a PDF-to-Markdown parser. Extract the content from this PDF and convert it to markdown format.

IMPORTANT INSTRUCTIONS:
1. Process each page separately and clearly mark page boundaries
2. Use the exact format: "# Page N" (where N is the page number) as a header for each page
3. Preserve the document structure using appropriate markdown formatting
4. Convert tables to markdown table format when possible
5. Preserve headings, lists, and other formatting elements
6. If a page has no readable content, indicate this clearly
7. Do not add any commentary or explanations - just return the formatted content

Please process this PDF and return the markdown content with clear page separations.`

// Gemini delegates extraction to the model, sending the raw PDF inline.
// There is no local fallback: if the model call fails, the job fails.
type Gemini struct {
	client *llm.Client
}

func NewGemini(client *llm.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Parse(ctx context.Context, doc []byte) ([]models.Page, error) {
	if g.client == nil {
		return nil, fmt.Errorf("gemini parser unavailable: GEMINI_API_KEY not configured")
	}

	out, err := g.client.Generate(ctx, "", geminiParsePrompt, genai.Blob{
		MIMEType: "application/pdf",
		Data:     doc,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini parsing failed: %w", err)
	}

	return SplitPages(out), nil
}

var pageMarker = regexp.MustCompile(`(?m)^# Page\s+(\d+)\s*$`)

// SplitPages cuts model output on "# Page N" headers. Pages are numbered by
// position in the output; the header from the model is kept in the content.
// Output without any marker becomes a single page.
func SplitPages(markdown string) []models.Page {
	locs := pageMarker.FindAllStringSubmatchIndex(markdown, -1)
	if len(locs) == 0 {
		return []models.Page{{Page: 1, ContentMD: strings.TrimSpace(markdown)}}
	}

	pages := make([]models.Page, 0, len(locs))
	for i, loc := range locs {
		marker := markdown[loc[2]:loc[3]]
		end := len(markdown)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(markdown[loc[1]:end])
		pages = append(pages, models.Page{
			Page:      i + 1,
			ContentMD: fmt.Sprintf("# Page %s\n\n%s", marker, content),
		})
	}
	return pages
}
