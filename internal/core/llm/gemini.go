package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxAttempts = 3

// Client wraps the Gemini API. Calls are bounded by a per-attempt timeout
// and retried with exponential backoff on transient failures; anything that
// still fails after the last attempt surfaces to the caller as a job error,
// never as an unbounded in-process loop.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key not set")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Client{client: cl, model: model, timeout: timeout}, nil
}

func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Generate runs one prompt against the model. Extra parts (an inline PDF
// blob, typically) are appended after the prompt text.
func (c *Client) Generate(ctx context.Context, systemPrompt, prompt string, parts ...genai.Part) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, err := c.generate(ctx, systemPrompt, prompt, parts...)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("gemini generate: %w", ctx.Err())
			case <-time.After(backoff(attempt)):
			}
		}
	}
	return "", fmt.Errorf("gemini generate failed after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) generate(ctx context.Context, systemPrompt, prompt string, parts ...genai.Part) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	m := c.client.GenerativeModel(c.model)
	if systemPrompt != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(systemPrompt)},
		}
	}

	all := append([]genai.Part{genai.Text(prompt)}, parts...)
	resp, err := m.GenerateContent(callCtx, all...)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("model returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("model returned empty content")
	}
	return b.String(), nil
}

// backoff waits 4s then 8s between attempts, capped at 10s.
func backoff(attempt int) time.Duration {
	const base = 4 * time.Second
	const max = 10 * time.Second

	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}
