package api

import (
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/clipdex/clipdex/pkg/ingest"
)

// ErrorResponse is the JSON error envelope for all failing requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Server is the API server answering similarity queries for one worker.
type Server struct {
	config Config
	logger *zap.Logger
	app    *fiber.App

	// ready holds the committed index state once this worker's
	// coordinator observed a completed ingestion. Until it is set, query
	// requests are answered with 503 so callers can retry after backoff.
	ready atomic.Pointer[ingest.IndexState]
}

// NewServer creates a new API server.
func NewServer(config Config, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/api/health", s.handleHealth)
	app.Post("/api/query", s.handleQuery)

	return s
}

// MarkReady opens the readiness gate with the committed index state.
func (s *Server) MarkReady(state *ingest.IndexState) {
	s.ready.Store(state)
	s.logger.Info("worker ready to serve queries",
		zap.String("version", state.Version),
		zap.Int("records", state.Records),
	)
}

// ReadyState returns the committed index state, or nil before readiness.
func (s *Server) ReadyState() *ingest.IndexState {
	return s.ready.Load()
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
