package worker

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Pool runs a fixed number of workers against the same stream, each under
// its own consumer name so the pending list attributes entries correctly.
type Pool struct {
	deps Deps
	size int
}

func NewPool(d Deps, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{deps: d, size: size}
}

// Run bootstraps the consumer group and blocks until all workers exit.
func (p *Pool) Run(ctx context.Context) error {
	if err := p.deps.Queue.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("bootstrap consumer group: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.size; i++ {
		w := New(p.deps)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}
