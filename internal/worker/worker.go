package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docstream/internal/config"
	"docstream/internal/core/blobstore"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/parser"
	"docstream/internal/core/queue"
	"docstream/internal/core/summarize"
	"docstream/internal/metrics"
	"docstream/internal/models"
)

const (
	reclaimBatch    = 16
	finalizeTimeout = 10 * time.Second
)

// Deps are the shared collaborators every worker uses.
type Deps struct {
	Queue      *queue.StreamQueue
	Store      *jobstore.Store
	Blobs      blobstore.Store
	Registry   *parser.Registry
	Summarizer summarize.Summarizer
	Config     *config.Config
	Log        *zap.Logger
}

// Worker consumes the queue under its own consumer name. All coordination
// with other workers happens through the stream's pending list and the job
// store's compare-and-set writes; there is no shared in-process state.
type Worker struct {
	Deps

	consumer string
	lastReap time.Time
}

func New(d Deps) *Worker {
	return &Worker{
		Deps:     d,
		consumer: "worker-" + uuid.NewString()[:8],
	}
}

// Run loops until the context is cancelled: sweep stale deliveries, then
// block for a fresh one.
func (w *Worker) Run(ctx context.Context) error {
	log := w.Log.With(zap.String("consumer", w.consumer))
	log.Info("worker started",
		zap.Duration("visibility_timeout", w.Config.VisibilityTimeout),
		zap.Int("max_delivery_attempts", w.Config.MaxDeliveryAttempts),
	)

	for {
		if ctx.Err() != nil {
			log.Info("worker stopping")
			return nil
		}

		w.reapStale(ctx, log)

		d, err := w.Queue.Claim(ctx, w.consumer, w.Config.ClaimBlock)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping")
				return nil
			}
			log.Error("claim failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if d == nil {
			continue
		}
		w.handle(ctx, *d, log)
	}
}

// reapStale is the explicit recovery sweep: entries another consumer
// claimed but never acked become eligible again once idle past the
// visibility timeout, and this worker takes them over.
func (w *Worker) reapStale(ctx context.Context, log *zap.Logger) {
	if w.Config.ReapInterval > 0 && time.Since(w.lastReap) < w.Config.ReapInterval {
		return
	}
	w.lastReap = time.Now()

	claimed, err := w.Queue.ReclaimStale(ctx, w.consumer, w.Config.VisibilityTimeout, reclaimBatch)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("reclaim sweep failed", zap.Error(err))
		}
		return
	}

	for _, d := range claimed {
		metrics.EntriesReclaimedTotal.Inc()
		log.Warn("reclaimed stale delivery",
			zap.String("job_id", d.Entry.JobID),
			zap.Int64("attempts", d.Attempts),
		)
		w.handle(ctx, d, log)
	}
}

func (w *Worker) handle(ctx context.Context, d queue.Delivery, log *zap.Logger) {
	log = log.With(
		zap.String("job_id", d.Entry.JobID),
		zap.String("parser", d.Entry.Parser),
		zap.Int64("attempts", d.Attempts),
	)

	jobCtx, cancel := context.WithTimeout(ctx, w.Config.WorkerTimeout)
	ack := w.process(jobCtx, d, log)
	cancel()

	if !ack {
		// Leave the entry on the pending list; it comes back through the
		// reaper once the visibility timeout passes.
		return
	}
	if err := w.Queue.Ack(ctx, d.ID); err != nil && ctx.Err() == nil {
		// The terminal state is already written; a redelivery will hit the
		// fencing check and ack without side effects.
		log.Error("ack failed", zap.Error(err))
	}
}

// process runs the pipeline for one delivery and reports whether the entry
// should be acknowledged. Every failure is caught here; nothing escapes to
// kill the worker loop.
func (w *Worker) process(ctx context.Context, d queue.Delivery, log *zap.Logger) (ack bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing job", zap.Any("panic", r))
			ack = w.finalizeError(d, fmt.Sprintf("internal error: %v", r), log)
		}
	}()

	e := d.Entry

	// Entries redelivered too many times are poisoned; stop retrying and
	// surface a terminal error instead of looping forever.
	if w.Config.MaxDeliveryAttempts > 0 && int(d.Attempts) > w.Config.MaxDeliveryAttempts {
		metrics.JobsAbandonedTotal.Inc()
		return w.finalizeError(d,
			fmt.Sprintf("processing abandoned after %d delivery attempts", d.Attempts-1), log)
	}

	// Fencing check. A redelivery for a job that already reached a terminal
	// state is acked and dropped; its side effects must not run again.
	status, err := w.Store.Status(ctx, e.JobID)
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		log.Warn("job record missing, dropping entry")
		return true
	case err != nil:
		log.Error("status check failed", zap.Error(err))
		return false
	case status.Terminal():
		metrics.StaleDeliveriesSkippedTotal.Inc()
		log.Info("job already terminal, skipping redelivery", zap.String("status", string(status)))
		return true
	}

	ok, err := w.Store.MarkProcessing(ctx, e.JobID)
	if errors.Is(err, models.ErrJobNotFound) {
		log.Warn("job record missing, dropping entry")
		return true
	}
	if err != nil {
		log.Error("mark processing failed", zap.Error(err))
		return false
	}
	if !ok {
		metrics.StaleDeliveriesSkippedTotal.Inc()
		log.Info("job already terminal, skipping redelivery")
		return true
	}

	// Processing time is measured from ownership; deliveries dropped by the
	// checks above never ran the pipeline.
	start := time.Now()
	defer func() {
		metrics.ProcessingDurationSeconds.WithLabelValues(e.Parser).Observe(time.Since(start).Seconds())
	}()

	// Strategy resolution is a pure tag lookup. Unknown and placeholder
	// tags fail the job here, before anything is fetched or dispatched.
	strategy, err := w.Registry.Resolve(e.Parser)
	if err != nil {
		return w.finalizeError(d, err.Error(), log)
	}

	doc, err := w.Blobs.Get(ctx, e.SourceLocation)
	if err != nil {
		if ctx.Err() != nil {
			return w.failJob(ctx, d, err, log)
		}
		// Infrastructure trouble: keep the entry unacked so redelivery
		// retries it, bounded by the delivery-attempt ceiling.
		log.Error("source fetch failed", zap.Error(err))
		return false
	}

	pages, err := strategy.Parse(ctx, doc)
	if err != nil {
		return w.failJob(ctx, d, err, log)
	}

	summary, err := w.Summarizer.Summarize(ctx, pages)
	if err != nil {
		return w.failJob(ctx, d, err, log)
	}

	won, err := w.Store.FinalizeResult(ctx, e.JobID, models.JobResult{
		Parser:    e.Parser,
		Pages:     pages,
		SummaryMD: summary,
		PageCount: len(pages),
	})
	if errors.Is(err, models.ErrJobNotFound) {
		log.Warn("job record vanished before result write")
		return true
	}
	if err != nil {
		log.Error("result write failed", zap.Error(err))
		return false
	}
	if !won {
		metrics.StaleDeliveriesSkippedTotal.Inc()
		log.Info("lost terminal write race, discarding result")
		return true
	}

	metrics.JobsProcessedTotal.WithLabelValues(e.Parser, "done").Inc()
	log.Info("job done", zap.Int("page_count", len(pages)))
	w.cleanupBlob(e, log)
	return true
}

// failJob converts a pipeline failure into a terminal error write, unless
// the worker itself is shutting down, in which case the entry stays on the
// pending list for another worker.
func (w *Worker) failJob(ctx context.Context, d queue.Delivery, cause error, log *zap.Logger) bool {
	if errors.Is(ctx.Err(), context.Canceled) {
		log.Warn("processing interrupted by shutdown, leaving entry for redelivery")
		return false
	}
	msg := cause.Error()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(cause, context.DeadlineExceeded) {
		msg = fmt.Sprintf("processing timed out after %s", w.Config.WorkerTimeout)
	}
	return w.finalizeError(d, msg, log)
}

// finalizeError writes the terminal error state. It runs on its own short
// context so a job deadline or shutdown cannot abort the write that makes
// the failure visible.
func (w *Worker) finalizeError(d queue.Delivery, msg string, log *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	won, err := w.Store.FinalizeError(ctx, d.Entry.JobID, msg)
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		log.Warn("job record vanished before error write")
		return true
	case err != nil:
		log.Error("error write failed", zap.Error(err))
		return false
	case won:
		metrics.JobsProcessedTotal.WithLabelValues(d.Entry.Parser, "error").Inc()
		log.Warn("job failed", zap.String("error_message", msg))
		w.cleanupBlob(d.Entry, log)
	default:
		metrics.StaleDeliveriesSkippedTotal.Inc()
	}
	return true
}

func (w *Worker) cleanupBlob(e queue.Entry, log *zap.Logger) {
	if w.Config.KeepTmpFiles {
		log.Debug("keeping source blob", zap.String("location", e.SourceLocation))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()
	if err := w.Blobs.Delete(ctx, e.SourceLocation); err != nil {
		log.Warn("blob cleanup failed", zap.Error(err))
	}
}
