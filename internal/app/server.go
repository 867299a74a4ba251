package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"docstream/internal/api/handlers"
	"docstream/internal/config"
	"docstream/internal/core/jobstore"
	"docstream/internal/core/queue"
	"docstream/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, rdb *redis.Client, q *queue.StreamQueue, store *jobstore.Store, ingest *services.IngestService, orch *services.OrchestrateService, log *zap.Logger) *Server {
	r := NewRouter(cfg, rdb, q, store, ingest, orch, log)

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
	return &Server{httpServer: httpSrv, log: log}
}

// NewRouter assembles the route tree.
func NewRouter(cfg *config.Config, rdb *redis.Client, q *queue.StreamQueue, store *jobstore.Store, ingest *services.IngestService, orch *services.OrchestrateService, log *zap.Logger) chi.Router {
	docHandler := handlers.NewDocumentHandler(ingest, log)
	orchHandler := handlers.NewOrchestrateHandler(orch, log)
	sysHandler := handlers.NewSystemHandler(rdb, store, q, cfg.GeminiAPIKey != "", cfg, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", sysHandler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(60 * time.Second))
			g.Post("/upload", docHandler.Upload)
			g.Post("/upload/batch", orchHandler.UploadBatch)
			g.Get("/status/{job_id}", docHandler.Status)
			g.Get("/result/{job_id}", docHandler.Result)
			g.Get("/debug/stats", sysHandler.Stats)
		})

		// Comparison waits for its jobs to finish, so it gets the full
		// polling budget instead of the standard request timeout.
		api.Group(func(g chi.Router) {
			g.Use(middleware.Timeout(compareBudget(cfg)))
			g.Post("/compare", orchHandler.Compare)
		})
	})

	return r
}

func compareBudget(cfg *config.Config) time.Duration {
	return cfg.ComparePollInterval*time.Duration(cfg.ComparePollAttempts) + 30*time.Second
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
