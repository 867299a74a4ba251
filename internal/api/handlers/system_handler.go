package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docstream/internal/config"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/queue"
	"docstream/internal/models"
)

type SystemHandler struct {
	rdb             *redis.Client
	store           *jobstore.Store
	queue           *queue.StreamQueue
	geminiAvailable bool
	cfg             *config.Config
	log             *zap.Logger
}

func NewSystemHandler(rdb *redis.Client, store *jobstore.Store, q *queue.StreamQueue, geminiAvailable bool, cfg *config.Config, log *zap.Logger) *SystemHandler {
	return &SystemHandler{
		rdb:             rdb,
		store:           store,
		queue:           q,
		geminiAvailable: geminiAvailable,
		cfg:             cfg,
		log:             log,
	}
}

// Health reports subsystem flags independently; a summarizer outage does
// not mask queue health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	redisConnected := h.rdb.Ping(ctx).Err() == nil
	status := "healthy"
	if !redisConnected {
		status = "unhealthy"
	}

	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:          status,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
		RedisConnected:  redisConnected,
		GeminiAvailable: h.geminiAvailable,
	})
}

// Stats returns job counts, queue metrics and a config echo for debugging.
func (h *SystemHandler) Stats(w http.ResponseWriter, r *http.Request) {
	total, byStatus, err := h.store.CountByStatus(r.Context())
	if err != nil {
		h.log.Error("stats collection failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error", "Failed to get system stats")
		return
	}

	writeJSON(w, http.StatusOK, models.StatsResponse{
		TotalJobs:    total,
		JobsByStatus: byStatus,
		QueueMetrics: h.queue.Metrics(r.Context()),
		Config: map[string]any{
			"max_upload_mb":    h.cfg.MaxUploadMB,
			"gemini_available": h.geminiAvailable,
			"stream_name":      h.cfg.StreamName,
			"stream_group":     h.cfg.StreamGroup,
			"job_ttl_seconds":  int(h.cfg.JobTTL.Seconds()),
		},
	})
}
