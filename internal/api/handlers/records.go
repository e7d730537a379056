package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// RecordsHandler lists and imports transactions and expenses.
type RecordsHandler struct {
	*Base
	repo    storage.Repository
	service *reconcile.Service
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo storage.Repository, svc *reconcile.Service, logger *slog.Logger) *RecordsHandler {
	return &RecordsHandler{
		Base:    NewBase(logger),
		repo:    repo,
		service: svc,
	}
}

// ListTransactions handles GET /api/transactions
// Query: reconciled=true|false, project_id, limit
func (h *RecordsHandler) ListTransactions(c *gin.Context) {
	txs, err := h.repo.ListTransactions(c.Request.Context(), storage.TransactionFilters{
		Reconciled: ParseBoolParam(c, "reconciled"),
		ProjectID:  c.Query("project_id"),
		Limit:      ParseIntParam(c, "limit", 0),
	})
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	c.JSON(http.StatusOK, dto.TransactionListResponse{Transactions: txs, Count: len(txs)})
}

// ImportTransactions handles POST /api/transactions
func (h *RecordsHandler) ImportTransactions(c *gin.Context) {
	var req dto.ImportTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body: "+err.Error()))
		return
	}

	txs := make([]model.Transaction, 0, len(req.Transactions))
	var unreadable []*model.ValidationError
	for _, in := range req.Transactions {
		tx, err := in.ToModel()
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			unreadable = append(unreadable, verr)
			continue
		}
		if err != nil {
			h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
		txs = append(txs, tx)
	}

	result, err := h.service.ImportTransactions(c.Request.Context(), txs)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	result.Rejected = append(unreadable, result.Rejected...)
	c.JSON(http.StatusOK, dto.NewImportResponse(result))
}

// ListExpenses handles GET /api/expenses
// Query: linked=true|false, limit
func (h *RecordsHandler) ListExpenses(c *gin.Context) {
	exps, err := h.repo.ListExpenses(c.Request.Context(), storage.ExpenseFilters{
		Linked: ParseBoolParam(c, "linked"),
		Limit:  ParseIntParam(c, "limit", 0),
	})
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	if exps == nil {
		exps = []model.Expense{}
	}
	c.JSON(http.StatusOK, dto.ExpenseListResponse{Expenses: exps, Count: len(exps)})
}

// ImportExpenses handles POST /api/expenses
func (h *RecordsHandler) ImportExpenses(c *gin.Context) {
	var req dto.ImportExpensesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body: "+err.Error()))
		return
	}

	exps := make([]model.Expense, 0, len(req.Expenses))
	var unreadable []*model.ValidationError
	for _, in := range req.Expenses {
		exp, err := in.ToModel()
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			unreadable = append(unreadable, verr)
			continue
		}
		if err != nil {
			h.WriteError(c, http.StatusBadRequest, dto.BadRequestError(err.Error()))
			return
		}
		exps = append(exps, exp)
	}

	result, err := h.service.ImportExpenses(c.Request.Context(), exps)
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	result.Rejected = append(unreadable, result.Rejected...)
	c.JSON(http.StatusOK, dto.NewImportResponse(result))
}
