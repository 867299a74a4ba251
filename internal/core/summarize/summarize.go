package summarize

import (
	"context"
	"fmt"
	"strings"

	"docstream/internal/core/llm"
	"docstream/internal/models"
)

// Summarizer produces a document-level markdown summary from parsed pages.
type Summarizer interface {
	Summarize(ctx context.Context, pages []models.Page) (string, error)
}

const maxContentChars = 100000

const truncationNotice = "\n\n[NOTE: Document was truncated for summarization due to length]"

const summaryPrompt = `Please provide a comprehensive summary of the following document. Your summary should:

1. Start with a brief overview paragraph (2-3 sentences)
2. Include key sections, topics, and main points as bullet points
3. Highlight important entities, numbers, dates, and findings
4. Capture the document's purpose and conclusions
5. Use clear, professional markdown formatting
6. Keep the summary concise but informative (aim for 200-500 words)

Document content:

%s

Please provide only the summary in markdown format, without any additional commentary.`

// Gemini summarizes through the shared model client. Any model failure is
// returned as an error so the job lands in error state instead of shipping
// a result with a missing summary.
type Gemini struct {
	client *llm.Client
}

func NewGemini(client *llm.Client) *Gemini {
	return &Gemini{client: client}
}

func (g *Gemini) Summarize(ctx context.Context, pages []models.Page) (string, error) {
	if allEmpty(pages) {
		// Nothing to send; a contentless document still gets a summary line.
		return "**Summary unavailable**: No content found in document to summarize.", nil
	}
	if g.client == nil {
		return "", fmt.Errorf("summarizer unavailable: GEMINI_API_KEY not configured")
	}

	content := PrepareContent(pageTexts(pages), maxContentChars)

	out, err := g.client.Generate(ctx, "", fmt.Sprintf(summaryPrompt, content))
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// PrepareContent joins the per-page markdown and, when the document exceeds
// the model budget, truncates it, preferring a sentence or line boundary in
// the final tenth so the cut does not land mid-thought.
func PrepareContent(pagesMD []string, maxChars int) string {
	full := strings.Join(pagesMD, "\n\n")
	if len(full) <= maxChars {
		return full
	}

	truncated := full[:maxChars]
	boundary := int(float64(maxChars) * 0.9)

	if i := strings.LastIndex(truncated, "."); i > boundary {
		truncated = truncated[:i+1]
	} else if i := strings.LastIndex(truncated, "\n"); i > boundary {
		truncated = truncated[:i]
	}

	return truncated + truncationNotice
}

func pageTexts(pages []models.Page) []string {
	out := make([]string, 0, len(pages))
	for _, p := range pages {
		out = append(out, p.ContentMD)
	}
	return out
}

func allEmpty(pages []models.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.ContentMD) != "" {
			return false
		}
	}
	return true
}
