package storage

import (
	"context"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, in-memory)
// and makes testing with mocks straightforward.
type Repository interface {
	TransactionRepository
	ExpenseRepository
	ReconciliationRepository
	RunRepository
	Close() error
}

// TransactionRepository stores bank transactions.
type TransactionRepository interface {
	// SaveTransaction inserts or updates a transaction. Reconciliation
	// fields are never written here.
	SaveTransaction(ctx context.Context, tx *model.Transaction) error

	// GetTransaction returns model.ErrNotFound for an unknown id
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// ListTransactions returns transactions ordered by date, then id
	ListTransactions(ctx context.Context, filters TransactionFilters) ([]model.Transaction, error)
}

// ExpenseRepository stores expenses.
type ExpenseRepository interface {
	// SaveExpense inserts or updates an expense. The reconciliation
	// back-reference is never written here.
	SaveExpense(ctx context.Context, exp *model.Expense) error

	// GetExpense returns model.ErrNotFound for an unknown id
	GetExpense(ctx context.Context, id string) (*model.Expense, error)

	// ListExpenses returns expenses ordered by date, then id
	ListExpenses(ctx context.Context, filters ExpenseFilters) ([]model.Expense, error)
}

// ReconciliationRepository persists links between transactions and expenses.
type ReconciliationRepository interface {
	// CommitReconciliation marks both records reconciled and stores the link,
	// atomically. If either side is already reconciled nothing changes and a
	// *model.ConflictError is returned.
	CommitReconciliation(ctx context.Context, link model.Link) error

	// RevertReconciliation clears the link of a reconciled transaction on
	// both sides and returns it. Returns model.ErrNotReconciled when there
	// is nothing to undo.
	RevertReconciliation(ctx context.Context, transactionID string) (*model.Link, error)

	// GetReconciliation returns the active link of a transaction
	GetReconciliation(ctx context.Context, transactionID string) (*model.Link, error)

	// ListReconciliations returns links newest first, reverted ones included
	ListReconciliations(ctx context.Context, limit int) ([]model.Link, error)
}

// RunRepository tracks reconciliation runs
type RunRepository interface {
	// StartRun records the start of a run and returns its ID
	StartRun(ctx context.Context, params RunParams) (string, error)

	// CompleteRun records the outcome of a run
	CompleteRun(ctx context.Context, runID string, counts RunCounts) error

	// ListRuns returns recent runs, newest first
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// GetRun retrieves a run by ID
	GetRun(ctx context.Context, runID string) (*Run, error)
}
