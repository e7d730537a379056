package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles run history requests.
type RunsHandler struct {
	*Base
	repo storage.Repository
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository, logger *slog.Logger) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(logger),
		repo: repo,
	}
}

// List handles GET /api/runs
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	runs, err := h.repo.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	if runs == nil {
		runs = []storage.Run{}
	}
	c.JSON(http.StatusOK, dto.RunListResponse{Runs: runs, Count: len(runs)})
}

// Get handles GET /api/runs/:id
func (h *RunsHandler) Get(c *gin.Context) {
	run, err := h.repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}
