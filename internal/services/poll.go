package services

import (
	"context"
	"time"

	"docstream/internal/models"
)

// statusReader is the read side polling needs.
type statusReader interface {
	Status(ctx context.Context, jobID string) (*models.Job, error)
}

// PollUntilTerminal repeatedly reads a job's status until it reaches a
// terminal state or the attempt budget runs out. On timeout it returns the
// last snapshot it saw together with ErrPollTimeout.
func PollUntilTerminal(ctx context.Context, r statusReader, jobID string, interval time.Duration, attempts int) (*models.Job, error) {
	if attempts < 1 {
		attempts = 1
	}
	var last *models.Job
	for attempt := 1; ; attempt++ {
		job, err := r.Status(ctx, jobID)
		if err != nil {
			return last, err
		}
		last = job
		if job.Status.Terminal() {
			return job, nil
		}
		if attempt >= attempts {
			return last, models.ErrPollTimeout
		}
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-time.After(interval):
		}
	}
}
