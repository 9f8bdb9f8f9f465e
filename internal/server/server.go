// Package server provides the HTTP API for docverify.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/docverify/internal/config"
	"github.com/hyperjump/docverify/internal/storage"
	"github.com/hyperjump/docverify/internal/verify"
)

// requestTimeout bounds every route except streaming medical extraction, which is
// bounded by the extraction client's own deadline.
const requestTimeout = 60 * time.Second

// WatchService manages the inbox directories at runtime.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the docverify API.
type Server struct {
	service    *verify.Service
	store      storage.Store
	config     *config.ServerConfig
	logger     *zap.Logger
	server     *http.Server
	watch      WatchService
	configPath string
	appConfig  *config.Config
	configMu   sync.Mutex
}

// NewServer creates a server with the given dependencies. watch may be nil when no inbox
// is configured; when configPath and appConfig are set, watch directory changes are saved.
func NewServer(
	service *verify.Service,
	store storage.Store,
	cfg *config.ServerConfig,
	logger *zap.Logger,
	watch WatchService,
	configPath string,
	appConfig *config.Config,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		service:    service,
		store:      store,
		config:     cfg,
		logger:     logger,
		watch:      watch,
		configPath: configPath,
		appConfig:  appConfig,
	}
}

// Router builds the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/medical/documents/{id}/extract", s.handleMedicalExtract)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))

			r.Get("/status", s.handleStatus)

			r.Post("/finance/compare", s.handleFinanceCompare)
			r.Post("/finance/pan", s.handleComparePAN)
			r.Post("/finance/documents/{id}/process", s.handleFinanceProcess)

			r.Post("/medical/analyze", s.handleMedicalAnalyze)

			r.Get("/proposers/{id}", s.handleGetProposer)
			r.Get("/proposers/{id}/documents", s.handleListDocuments)

			r.Get("/watch/directories", s.handleWatchDirectoriesList)
			r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
			r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
