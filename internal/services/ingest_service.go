package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docstream/internal/core/blobstore"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/parser"
	"docstream/internal/core/queue"
	"docstream/internal/metrics"
	"docstream/internal/models"
)

// IngestService accepts a validated document, stores it, creates the pending
// job record and appends the queue entry. It returns a job id immediately;
// processing happens in the workers.
type IngestService struct {
	queue    *queue.StreamQueue
	store    *jobstore.Store
	blobs    blobstore.Store
	registry *parser.Registry
	maxBytes int64
	log      *zap.Logger
}

func NewIngestService(q *queue.StreamQueue, store *jobstore.Store, blobs blobstore.Store, registry *parser.Registry, maxBytes int64, log *zap.Logger) *IngestService {
	return &IngestService{
		queue:    q,
		store:    store,
		blobs:    blobs,
		registry: registry,
		maxBytes: maxBytes,
		log:      log,
	}
}

// MaxUploadBytes reports the configured size ceiling, for transport-level
// prechecks.
func (s *IngestService) MaxUploadBytes() int64 { return s.maxBytes }

// ParserTags lists the registered parser tags.
func (s *IngestService) ParserTags() []string { return s.registry.Tags() }

// Submit validates, stores and enqueues one document. A ValidationError
// means nothing was created. If the queue append fails after the record was
// written, the record and the blob are rolled back so no job exists without
// a queue entry.
func (s *IngestService) Submit(ctx context.Context, filename string, data []byte, parserTag string) (*models.Job, error) {
	if err := parser.ValidatePDF(data, filename, s.maxBytes); err != nil {
		return nil, err
	}
	if !s.registry.Known(parserTag) {
		return nil, models.Validationf("unknown parser %q, valid options: %s",
			parserTag, strings.Join(s.registry.Tags(), ", "))
	}

	jobID := uuid.NewString()

	location, err := s.blobs.Put(ctx, jobID, filename, data)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:             jobID,
		Status:         models.StatusPending,
		Parser:         parserTag,
		Filename:       filename,
		SourceLocation: location,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, job); err != nil {
		s.discard(jobID, location, false)
		return nil, err
	}

	if _, err := s.queue.Enqueue(ctx, queue.Entry{
		JobID:          jobID,
		Parser:         parserTag,
		Filename:       filename,
		SourceLocation: location,
	}); err != nil {
		// A job record must never outlive a failed queue append.
		s.discard(jobID, location, true)
		return nil, err
	}

	metrics.JobsSubmittedTotal.WithLabelValues(parserTag).Inc()
	s.log.Info("job submitted",
		zap.String("job_id", jobID),
		zap.String("parser", parserTag),
		zap.String("filename", filename),
		zap.Int("size_bytes", len(data)),
	)
	return job, nil
}

// Status is a pure read of the job record.
func (s *IngestService) Status(ctx context.Context, jobID string) (*models.Job, error) {
	return s.store.Get(ctx, jobID)
}

// Result returns the full record once the job is terminal. For a live job it
// returns the current snapshot together with ErrResultNotReady so callers
// can report progress.
func (s *IngestService) Result(ctx context.Context, jobID string) (*models.Job, error) {
	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return job, models.ErrResultNotReady
	}
	return job, nil
}

// discard rolls back a half-created job. Best effort on fresh contexts; the
// record TTL and temp-file cleanup cover anything missed here.
func (s *IngestService) discard(jobID, location string, dropRecord bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if dropRecord {
		if err := s.store.Delete(ctx, jobID); err != nil {
			s.log.Warn("rollback: job record delete failed", zap.String("job_id", jobID), zap.Error(err))
		}
	}
	if err := s.blobs.Delete(ctx, location); err != nil {
		s.log.Warn("rollback: blob delete failed", zap.String("location", location), zap.Error(err))
	}
}
