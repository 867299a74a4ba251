package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"docstream/internal/config"
	"docstream/internal/core/blobstore"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/llm"
	"docstream/internal/core/parser"
	"docstream/internal/core/queue"
	"docstream/internal/core/redisdb"
	"docstream/internal/core/summarize"
	"docstream/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadConfig()
	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	rdb, err := redisdb.Connect(ctx, cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	defer rdb.Close()
	logger.Info("redis connection established")

	blobs, err := blobstore.FromConfig(ctx, cfg)
	if err != nil {
		logger.Fatal("blob store init failed", zap.Error(err))
	}

	var llmClient *llm.Client
	if cfg.GeminiAPIKey != "" {
		llmClient, err = llm.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiTimeout)
		if err != nil {
			logger.Fatal("gemini client init failed", zap.Error(err))
		}
		defer llmClient.Close()
	} else {
		logger.Warn("GEMINI_API_KEY not set, jobs needing gemini will fail")
	}

	deps := worker.Deps{
		Queue:      queue.New(rdb, cfg.StreamName, cfg.StreamGroup),
		Store:      jobstore.New(rdb, cfg.JobTTL),
		Blobs:      blobs,
		Registry:   parser.NewDefaultRegistry(llmClient),
		Summarizer: summarize.NewGemini(llmClient),
		Config:     cfg,
		Log:        logger,
	}

	if metricsSrv := newMetricsServer(cfg.MetricsAddr); metricsSrv != nil {
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer metricsSrv.Close()
		logger.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
	}

	pool := worker.NewPool(deps, cfg.WorkerConcurrency)
	if err := pool.Run(ctx); err != nil {
		logger.Fatal("worker pool failed", zap.Error(err))
	}
	logger.Info("workers stopped")
}

// newMetricsServer builds the Prometheus scrape listener, or nil when no
// address is configured (METRICS_ADDR empty disables the endpoint).
func newMetricsServer(addr string) *http.Server {
	if addr == "" {
		return nil
	}
	return &http.Server{Addr: addr, Handler: promhttp.Handler()}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	return logger
}
