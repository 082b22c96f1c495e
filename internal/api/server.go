package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Ayesha-Arshad7/eBay-Analytics/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the dashboard-facing HTTP server. The dashboard itself is
// an external consumer; this surface only exposes records, jobs and
// exports read-only plus job submission.
type Server struct {
	cfg        config.ServerConfig
	handlers   *Handlers
	logger     *zap.Logger
	httpServer *http.Server
}

func NewServer(cfg config.ServerConfig, handlers *Handlers, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, handlers: handlers, logger: logger}
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:      s.router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info("api server listening", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handlers.Health)
		r.Post("/scrape", s.handlers.SubmitScrape)
		r.Get("/jobs", s.handlers.ListJobs)
		r.Get("/jobs/{jobID}", s.handlers.GetJob)
		r.Get("/products", s.handlers.GetProducts)
		r.Get("/products/{productID}/details", s.handlers.GetProductDetail)
		r.Get("/export", s.handlers.ExportProducts)
		r.Get("/stats", s.handlers.GetStats)
	})

	return r
}
