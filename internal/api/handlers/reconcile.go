package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// ReconcileHandler exposes candidate review and commits.
type ReconcileHandler struct {
	*Base
	repo    storage.Repository
	service *reconcile.Service
}

// NewReconcileHandler creates a new reconcile handler.
func NewReconcileHandler(repo storage.Repository, svc *reconcile.Service, logger *slog.Logger) *ReconcileHandler {
	return &ReconcileHandler{
		Base:    NewBase(logger),
		repo:    repo,
		service: svc,
	}
}

// Candidates handles GET /api/candidates
// Query: min_score, auto_threshold
func (h *ReconcileHandler) Candidates(c *gin.Context) {
	opts, ok := h.runOptions(c)
	if !ok {
		return
	}

	suggestions, err := h.service.Suggest(c.Request.Context(), opts)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCandidateListResponse(suggestions))
}

// AutoReconcile handles POST /api/reconcile/auto and runs to completion
// before responding. Thresholds come from the query or the JSON body.
func (h *ReconcileHandler) AutoReconcile(c *gin.Context) {
	opts, ok := h.runOptions(c)
	if !ok {
		return
	}
	if c.Request.ContentLength > 0 {
		var req dto.AutoReconcileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
		if req.MinScore != nil {
			opts.MinScore = req.MinScore
		}
		if req.AutoThreshold != nil {
			opts.AutoThreshold = req.AutoThreshold
		}
	}

	result, err := h.service.AutoReconcile(c.Request.Context(), opts)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewCommitReportResponse(result))
}

// Commit handles POST /api/reconcile
func (h *ReconcileHandler) Commit(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("transaction_id and expense_id are required"))
		return
	}

	link, err := h.service.ManualReconcile(c.Request.Context(), req.TransactionID, req.ExpenseID, req.Note)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

// Revert handles DELETE /api/reconcile/:transactionId
func (h *ReconcileHandler) Revert(c *gin.Context) {
	link, err := h.service.Unreconcile(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

// ListReconciliations handles GET /api/reconciliations
func (h *ReconcileHandler) ListReconciliations(c *gin.Context) {
	links, err := h.repo.ListReconciliations(c.Request.Context(), ParseIntParam(c, "limit", 50))
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	if links == nil {
		links = []model.Link{}
	}
	c.JSON(http.StatusOK, dto.ReconciliationListResponse{Reconciliations: links, Count: len(links)})
}

// GetReconciliation handles GET /api/reconciliations/:transactionId
func (h *ReconcileHandler) GetReconciliation(c *gin.Context) {
	link, err := h.repo.GetReconciliation(c.Request.Context(), c.Param("transactionId"))
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func (h *ReconcileHandler) runOptions(c *gin.Context) (reconcile.RunOptions, bool) {
	minScore, err := ParseOptionalIntParam(c, "min_score")
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return reconcile.RunOptions{}, false
	}
	autoThreshold, err := ParseOptionalIntParam(c, "auto_threshold")
	if err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return reconcile.RunOptions{}, false
	}
	return reconcile.RunOptions{MinScore: minScore, AutoThreshold: autoThreshold}, true
}
