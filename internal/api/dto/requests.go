package dto

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// DateLayout is the date format accepted and returned by the API.
const DateLayout = "2006-01-02"

// TransactionInput is one bank transaction in an import request.
type TransactionInput struct {
	ID              string              `json:"id"`
	Date            string              `json:"date"`
	Amount          decimal.NullDecimal `json:"amount"`
	Currency        string              `json:"currency"`
	Description     string              `json:"description"`
	CounterpartName string              `json:"counterpart_name"`
	ReferenceNumber string              `json:"reference_number"`
	Category        string              `json:"category"`
	ProjectID       string              `json:"project_id"`
}

// ImportTransactionsRequest is the request body for POST /api/transactions.
type ImportTransactionsRequest struct {
	Transactions []TransactionInput `json:"transactions" binding:"required"`
}

// ToModel converts the input to a transaction. Only the date and the
// presence of an amount are checked here; the rest is validated on import.
// An absent amount is returned as a *model.ValidationError.
func (in TransactionInput) ToModel() (model.Transaction, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", in.ID, err)
	}
	if !in.Amount.Valid {
		return model.Transaction{}, missingAmount(model.KindTransaction, in.ID)
	}
	return model.Transaction{
		ID:              in.ID,
		Date:            date,
		Amount:          in.Amount.Decimal,
		Currency:        in.Currency,
		Description:     in.Description,
		CounterpartName: in.CounterpartName,
		ReferenceNumber: in.ReferenceNumber,
		Category:        in.Category,
		ProjectID:       in.ProjectID,
	}, nil
}

// ExpenseInput is one expense in an import request.
type ExpenseInput struct {
	ID            string              `json:"id"`
	Date          string              `json:"date"`
	Amount        decimal.NullDecimal `json:"amount"`
	Description   string              `json:"description"`
	SupplierName  string              `json:"supplier_name"`
	ReceiptNumber string              `json:"receipt_number"`
	Category      string              `json:"category"`
	ApprovalState string              `json:"approval_state"`
}

// ImportExpensesRequest is the request body for POST /api/expenses.
type ImportExpensesRequest struct {
	Expenses []ExpenseInput `json:"expenses" binding:"required"`
}

// ToModel converts the input to an expense.
func (in ExpenseInput) ToModel() (model.Expense, error) {
	date, err := parseDate(in.Date)
	if err != nil {
		return model.Expense{}, fmt.Errorf("expense %s: %w", in.ID, err)
	}
	if !in.Amount.Valid {
		return model.Expense{}, missingAmount(model.KindExpense, in.ID)
	}
	return model.Expense{
		ID:            in.ID,
		Date:          date,
		Amount:        in.Amount.Decimal,
		Description:   in.Description,
		SupplierName:  in.SupplierName,
		ReceiptNumber: in.ReceiptNumber,
		Category:      in.Category,
		ApprovalState: model.ApprovalState(in.ApprovalState),
	}, nil
}

func missingAmount(kind model.RecordKind, id string) *model.ValidationError {
	return &model.ValidationError{Kind: kind, RecordID: id, Field: "amount", Reason: "is missing"}
}

// parseDate accepts a plain date or a full RFC 3339 timestamp.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ReconcileRequest is the request body for POST /api/reconcile.
type ReconcileRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	ExpenseID     string `json:"expense_id" binding:"required"`
	Note          string `json:"note"`
}

// AutoReconcileRequest is the optional request body for starting an
// auto-reconcile run. Omitted thresholds use the configured values.
type AutoReconcileRequest struct {
	MinScore      *int `json:"min_score"`
	AutoThreshold *int `json:"auto_threshold"`
}
