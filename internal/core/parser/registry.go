package parser

import (
	"context"
	"fmt"
	"sort"

	"docstream/internal/core/llm"
	"docstream/internal/models"
)

// Strategy extracts ordered per-page markdown from a raw document.
// Implementations must not fall back to one another; a failing strategy
// fails the job.
type Strategy interface {
	Parse(ctx context.Context, doc []byte) ([]models.Page, error)
}

// Registry maps parser tags to strategies. The set is fixed at wiring time
// and resolution is a pure lookup: an unrecognized tag is an error, never a
// silent default.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// NewDefaultRegistry wires the built-in strategies. With a nil client the
// "gemini" tag stays registered but fails fast at parse time.
func NewDefaultRegistry(client *llm.Client) *Registry {
	r := NewRegistry()
	r.Register("simple", Simple{})
	r.Register("gemini", NewGemini(client))
	r.Register("placeholder", Placeholder{Tag: "placeholder"})
	return r
}

func (r *Registry) Register(tag string, s Strategy) {
	r.strategies[tag] = s
}

func (r *Registry) Resolve(tag string) (Strategy, error) {
	s, ok := r.strategies[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownParser, tag)
	}
	return s, nil
}

func (r *Registry) Known(tag string) bool {
	_, ok := r.strategies[tag]
	return ok
}

func (r *Registry) Tags() []string {
	tags := make([]string, 0, len(r.strategies))
	for tag := range r.strategies {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
