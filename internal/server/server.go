// Package server provides the HTTP API of the question-answering service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hyperjump/kotae/internal/analytics"
	"github.com/hyperjump/kotae/internal/chatbot"
	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/feedback"
	"github.com/hyperjump/kotae/internal/indexer"
	"github.com/hyperjump/kotae/internal/retrieval"
	"github.com/hyperjump/kotae/internal/search"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Deps are the components the API exposes. Consumer and Cache are optional.
type Deps struct {
	Orchestrator *chatbot.Orchestrator
	Retriever    *retrieval.Retriever
	Feedback     *feedback.Service
	Search       *search.Engine
	Indexer      *indexer.Indexer
	Store        storage.Store
	Consumer     *analytics.Consumer
	Cache        *embedding.Cache
}

// Server is the HTTP server.
type Server struct {
	deps   Deps
	config config.ServerConfig
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{deps: deps, config: cfg, logger: utils.OrNop(logger)}
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(userContext)

		r.Post("/chat", s.handleChat)
		r.Post("/feedback", s.handleSubmitFeedback)
		r.Get("/messages/{id}/feedback", s.handleListFeedback)
		r.Get("/stats", s.handleStats)

		r.Route("/documents", func(r chi.Router) {
			r.Get("/search", s.handleSearch)
			r.Get("/{id}", s.handleGetDocument)
			r.Get("/{id}/similar", s.handleSimilar)
			r.With(requireAdmin).Post("/", s.handleIndexDocument)
			r.With(requireAdmin).Delete("/{id}", s.handleDeleteDocument)
		})

		r.With(requireAdmin).Put("/admin/maintenance", s.handleMaintenance)
	})
	return r
}

// Start serves until Stop is called. It returns nil after a graceful stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("starting server", zap.String("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
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
