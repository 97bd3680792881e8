// Package server provides the HTTP API for kura.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kura/internal/assistant"
	"github.com/hyperjump/kura/internal/config"
	"github.com/hyperjump/kura/internal/indexer"
	"github.com/hyperjump/kura/internal/keyword"
	"github.com/hyperjump/kura/internal/metrics"
	"github.com/hyperjump/kura/internal/search"
	"github.com/hyperjump/kura/internal/storage"
	"github.com/hyperjump/kura/internal/vector"
	"go.uber.org/zap"
)

// WatchService reports the directories being watched, when watching is on.
type WatchService interface {
	Directories() []string
}

// Dependencies are the components the API serves. Keywords, Metrics and
// Watch may be nil.
type Dependencies struct {
	Indexer   *indexer.Indexer
	Engine    *search.Engine
	Assistant *assistant.Assistant
	Storage   storage.Storage
	Vectors   vector.Store
	Keywords  keyword.Index
	Metrics   *metrics.Metrics
	Watch     WatchService
}

// Server is the HTTP server for the kura API.
type Server struct {
	deps   Dependencies
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Dependencies, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.deps.Metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if t := s.config.Server.RequestTimeout; t > 0 {
			r.Use(middleware.Timeout(t))
		}
		r.Get("/status", s.handleStatus)
		r.Post("/search", s.handleSearch)

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.handleCreateSource)
			r.Post("/upload", s.handleUploadSource)
			r.Get("/", s.handleListSources)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Delete("/", s.handleDeleteSource)
				r.Post("/search", s.handleSearchSource)
				r.Post("/ask", s.handleAsk)
				r.Post("/summary", s.handleSummarize)
				r.Get("/summary", s.handleGetSummary)
			})
		})
	})
	return r
}

// requestLogger logs one line per request with zap.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		}()
		next.ServeHTTP(ww, r)
	})
}

// Start starts the HTTP server and blocks until it stops. It returns nil
// after a graceful Stop.
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve on %s: %w", addr, err)
	}
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
