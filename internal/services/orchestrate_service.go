package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"docstream/internal/core/parser"
	"docstream/internal/models"
)

// File is an in-memory upload handed over by the transport layer.
type File struct {
	Name string
	Data []byte
}

// OrchestrateService composes ingestion calls for batch uploads and
// multi-parser comparisons. Constituent jobs stay fully independent; there
// is no atomicity across files or parsers.
type OrchestrateService struct {
	ingest       *IngestService
	pollInterval time.Duration
	pollAttempts int
	log          *zap.Logger
}

func NewOrchestrateService(ingest *IngestService, pollInterval time.Duration, pollAttempts int, log *zap.Logger) *OrchestrateService {
	return &OrchestrateService{
		ingest:       ingest,
		pollInterval: pollInterval,
		pollAttempts: pollAttempts,
		log:          log,
	}
}

// MaxUploadBytes reports the ingest size ceiling, for transport-level
// prechecks.
func (s *OrchestrateService) MaxUploadBytes() int64 { return s.ingest.maxBytes }

// UploadBatch submits every file with the same parser tag. Failures stay
// inline per file; successes are never rolled back.
func (s *OrchestrateService) UploadBatch(ctx context.Context, files []File, parserTag string) (*models.BatchUploadResponse, error) {
	if len(files) == 0 {
		return nil, models.Validationf("no files provided")
	}

	results := make([]models.BatchItem, 0, len(files))
	for _, f := range files {
		item := models.BatchItem{Filename: f.Name}
		job, err := s.ingest.Submit(ctx, f.Name, f.Data, parserTag)
		if err != nil {
			item.Error = err.Error()
		} else {
			item.JobID = job.ID
		}
		results = append(results, item)
	}
	return &models.BatchUploadResponse{TotalFiles: len(files), Results: results}, nil
}

// Compare submits the same document once per parser tag and waits for every
// job to finish. Tags are validated up front so a bad request creates no
// jobs at all; after submission one parser failing never affects another's
// snapshot.
func (s *OrchestrateService) Compare(ctx context.Context, file File, parserTags []string) (*models.CompareResponse, error) {
	if len(parserTags) < 2 {
		return nil, models.Validationf("comparison requires at least 2 parsers, got %d", len(parserTags))
	}
	seen := make(map[string]bool, len(parserTags))
	for _, tag := range parserTags {
		if seen[tag] {
			return nil, models.Validationf("duplicate parser %q in comparison", tag)
		}
		seen[tag] = true
		if !s.ingest.registry.Known(tag) {
			return nil, models.Validationf("unknown parser %q, valid options: %s",
				tag, strings.Join(s.ingest.registry.Tags(), ", "))
		}
	}
	if err := parser.ValidatePDF(file.Data, file.Name, s.ingest.maxBytes); err != nil {
		return nil, err
	}

	results := make(map[string]models.StatusResponse, len(parserTags))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, tag := range parserTags {
		job, err := s.ingest.Submit(ctx, file.Name, file.Data, tag)
		if err != nil {
			// Poll goroutines for earlier tags may already be writing
			// their snapshots, so this write takes the lock too.
			mu.Lock()
			results[tag] = models.StatusResponse{
				Status:       models.StatusError,
				ErrorMessage: "submission failed: " + err.Error(),
			}
			mu.Unlock()
			continue
		}
		wg.Add(1)
		go func(tag, jobID string) {
			defer wg.Done()
			snap := s.awaitTerminal(ctx, jobID)
			mu.Lock()
			results[tag] = snap
			mu.Unlock()
		}(tag, job.ID)
	}
	wg.Wait()

	return &models.CompareResponse{Filename: file.Name, Results: results}, nil
}

// awaitTerminal polls one job to completion and reports the last snapshot
// it saw, even when the poll budget runs out first.
func (s *OrchestrateService) awaitTerminal(ctx context.Context, jobID string) models.StatusResponse {
	job, err := PollUntilTerminal(ctx, s.ingest, jobID, s.pollInterval, s.pollAttempts)
	switch {
	case err == nil:
		return models.NewStatusResponse(job)
	case job != nil:
		s.log.Warn("comparison job did not finish in time",
			zap.String("job_id", jobID), zap.Error(err))
		return models.NewStatusResponse(job)
	default:
		return models.StatusResponse{
			JobID:        jobID,
			Status:       models.StatusError,
			ErrorMessage: err.Error(),
		}
	}
}
