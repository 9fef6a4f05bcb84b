package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apisearch "github.com/clipdex/clipdex/api/search"
	"github.com/clipdex/clipdex/pkg/vector"
)

// queryResponse wraps search output in the envelope the original API used.
type queryResponse struct {
	Status  string             `json:"status"`
	Results []apisearch.Result `json:"results"`
	Count   int                `json:"count"`
}

// healthResponse reports worker readiness and the served snapshot.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Records int    `json:"records,omitempty"`
}

// handlePing returns a simple liveness response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleHealth reports readiness. A worker is healthy once its
// coordinator observed a committed ingestion for the configured snapshot.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	state := s.ReadyState()
	if state == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(healthResponse{
			Status: "initializing",
		})
	}

	return c.JSON(healthResponse{
		Status:  "healthy",
		Version: state.Version,
		Records: state.Records,
	})
}

// handleQuery handles POST /api/query requests.
// Body: {"query": "...", "top_k": 3, "filter": {...}} or
// {"vector": [...], "top_k": 3}.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	if s.ReadyState() == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: apisearch.ErrNotReady.Error(),
		})
	}

	var input apisearch.QueryInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "request body must be JSON",
		})
	}

	if input.TopK < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: "top_k must be a positive integer",
		})
	}

	output, err := apisearch.Query(
		c.Context(),
		input,
		s.config.Embedder,
		s.config.Driver,
		s.logger,
	)
	if err != nil {
		return s.queryError(c, err)
	}

	return c.JSON(queryResponse{
		Status:  "success",
		Results: output.Results,
		Count:   output.Count,
	})
}

// queryError maps query failures to HTTP statuses. Internal failures are
// logged but never surfaced verbatim to callers.
func (s *Server) queryError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, apisearch.ErrInvalidQuery),
		errors.Is(err, vector.ErrDimensionMismatch):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error: err.Error(),
		})
	case errors.Is(err, apisearch.ErrNotReady),
		errors.Is(err, apisearch.ErrNoEmbedder):
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error: err.Error(),
		})
	default:
		s.logger.Error("query failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error: "internal error",
		})
	}
}
