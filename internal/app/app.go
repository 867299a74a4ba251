package app

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docstream/internal/config"
	"docstream/internal/core/blobstore"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/parser"
	"docstream/internal/core/queue"
	"docstream/internal/core/redisdb"
	"docstream/internal/services"
)

// App wires the API process: redis-backed queue and job store, blob
// storage, the services and the HTTP server. Parsing and summarization run
// in the worker binary; the API only needs the registry for tag validation.
type App struct {
	Redis  *redis.Client
	Queue  *queue.StreamQueue
	Store  *jobstore.Store
	Blobs  blobstore.Store
	Server *Server
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	rdb, err := redisdb.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	log.Info("redis connection established")

	q := queue.New(rdb, cfg.StreamName, cfg.StreamGroup)
	// The group is created at "$", so it must exist before the first
	// enqueue or earlier entries would never be delivered.
	if err := q.EnsureGroup(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	blobs, err := blobstore.FromConfig(ctx, cfg)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}

	store := jobstore.New(rdb, cfg.JobTTL)
	registry := parser.NewDefaultRegistry(nil)

	ingest := services.NewIngestService(q, store, blobs, registry, cfg.MaxUploadBytes(), log)
	orch := services.NewOrchestrateService(ingest, cfg.ComparePollInterval, cfg.ComparePollAttempts, log)

	server := NewServer(cfg, rdb, q, store, ingest, orch, log)

	log.Info("api wired",
		zap.String("stream", cfg.StreamName),
		zap.String("group", cfg.StreamGroup),
		zap.String("blob_store", cfg.BlobStore),
		zap.Int("max_upload_mb", cfg.MaxUploadMB),
		zap.Bool("gemini_available", cfg.GeminiAPIKey != ""),
	)

	return &App{Redis: rdb, Queue: q, Store: store, Blobs: blobs, Server: server}, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
