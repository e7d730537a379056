package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It keeps the commit semantics of Storage: a commit is a compare-and-set
// on both records under one lock, so concurrent commits behave the same.
type MockRepository struct {
	mu sync.Mutex

	transactions map[string]*model.Transaction
	expenses     map[string]*model.Expense
	links        []*model.Link
	runs         map[string]*Run
	runOrder     []string

	// Hooks for test assertions
	CommitCalls    int
	RevertCalls    int
	LastCommitted  *model.Link
	StartRunCalled bool
	CompletedRunID string
	LastRunCounts  RunCounts

	// Error injection for testing error paths
	SaveErr        error
	ListErr        error
	CommitErr      error
	StartRunErr    error
	CompleteRunErr error
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		transactions: make(map[string]*model.Transaction),
		expenses:     make(map[string]*model.Expense),
		runs:         make(map[string]*Run),
	}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveTransaction stores a copy, keeping existing reconciliation fields
func (m *MockRepository) SaveTransaction(_ context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}

	copied := *tx
	if existing, ok := m.transactions[tx.ID]; ok {
		copied.Reconciled = existing.Reconciled
		copied.ExpenseID = existing.ExpenseID
		copied.Confidence = existing.Confidence
		copied.Note = existing.Note
		copied.ReconciledAt = existing.ReconciledAt
	} else {
		copied.Reconciled = false
		copied.ExpenseID = ""
		copied.Confidence = 0
		copied.Note = ""
		copied.ReconciledAt = nil
	}
	m.transactions[tx.ID] = &copied
	return nil
}

// GetTransaction returns a copy of the stored transaction
func (m *MockRepository) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx, ok := m.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	copied := *tx
	return &copied, nil
}

// ListTransactions filters and orders like Storage
func (m *MockRepository) ListTransactions(_ context.Context, filters TransactionFilters) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var result []model.Transaction
	for _, tx := range m.transactions {
		if filters.Reconciled != nil && tx.Reconciled != *filters.Reconciled {
			continue
		}
		if filters.ProjectID != "" && tx.ProjectID != filters.ProjectID {
			continue
		}
		result = append(result, *tx)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// SaveExpense stores a copy, keeping the existing back-reference
func (m *MockRepository) SaveExpense(_ context.Context, exp *model.Expense) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}

	copied := *exp
	if copied.ApprovalState == "" {
		copied.ApprovalState = model.ApprovalDraft
	}
	copied.ReconciledTransactionID = ""
	if existing, ok := m.expenses[exp.ID]; ok {
		copied.ReconciledTransactionID = existing.ReconciledTransactionID
	}
	m.expenses[exp.ID] = &copied
	return nil
}

// GetExpense returns a copy of the stored expense
func (m *MockRepository) GetExpense(_ context.Context, id string) (*model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp, ok := m.expenses[id]
	if !ok {
		return nil, fmt.Errorf("expense %s: %w", id, model.ErrNotFound)
	}
	copied := *exp
	return &copied, nil
}

// ListExpenses filters and orders like Storage
func (m *MockRepository) ListExpenses(_ context.Context, filters ExpenseFilters) ([]model.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var result []model.Expense
	for _, exp := range m.expenses {
		if filters.Linked != nil && exp.IsLinked() != *filters.Linked {
			continue
		}
		result = append(result, *exp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// CommitReconciliation checks and sets both sides under the lock
func (m *MockRepository) CommitReconciliation(_ context.Context, link model.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CommitCalls++
	if m.CommitErr != nil {
		return m.CommitErr
	}

	tx, ok := m.transactions[link.TransactionID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", link.TransactionID, model.ErrNotFound)
	}
	if tx.Reconciled {
		return &model.ConflictError{TransactionID: link.TransactionID, ExpenseID: link.ExpenseID, Reason: "transaction already reconciled"}
	}
	exp, ok := m.expenses[link.ExpenseID]
	if !ok {
		return fmt.Errorf("expense %s: %w", link.ExpenseID, model.ErrNotFound)
	}
	if exp.IsLinked() {
		return &model.ConflictError{TransactionID: link.TransactionID, ExpenseID: link.ExpenseID, Reason: "expense already reconciled"}
	}

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	at := link.CreatedAt
	tx.Reconciled = true
	tx.ExpenseID = link.ExpenseID
	tx.Confidence = link.Confidence()
	tx.Note = link.Note
	tx.ReconciledAt = &at
	exp.ReconciledTransactionID = link.TransactionID

	stored := link
	m.links = append(m.links, &stored)
	m.LastCommitted = &stored
	return nil
}

// RevertReconciliation clears both sides and marks the link reverted
func (m *MockRepository) RevertReconciliation(_ context.Context, transactionID string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RevertCalls++

	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, model.ErrNotFound)
	}
	if !tx.Reconciled {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, model.ErrNotReconciled)
	}

	link := m.activeLink(transactionID)
	if link == nil {
		return nil, fmt.Errorf("reconciliation of %s: %w", transactionID, model.ErrNotFound)
	}

	if exp, ok := m.expenses[tx.ExpenseID]; ok {
		exp.ReconciledTransactionID = ""
	}
	tx.Reconciled = false
	tx.ExpenseID = ""
	tx.Confidence = 0
	tx.Note = ""
	tx.ReconciledAt = nil

	now := time.Now()
	link.RevertedAt = &now
	copied := *link
	return &copied, nil
}

// GetReconciliation returns the active link of a transaction
func (m *MockRepository) GetReconciliation(_ context.Context, transactionID string) (*model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	link := m.activeLink(transactionID)
	if link == nil {
		return nil, fmt.Errorf("reconciliation of %s: %w", transactionID, model.ErrNotFound)
	}
	copied := *link
	return &copied, nil
}

// ListReconciliations returns links newest first
func (m *MockRepository) ListReconciliations(_ context.Context, limit int) ([]model.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var result []model.Link
	for i := len(m.links) - 1; i >= 0; i-- {
		result = append(result, *m.links[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (m *MockRepository) activeLink(transactionID string) *model.Link {
	for i := len(m.links) - 1; i >= 0; i-- {
		if m.links[i].TransactionID == transactionID && m.links[i].RevertedAt == nil {
			return m.links[i]
		}
	}
	return nil
}

// StartRun creates a new run and returns its ID
func (m *MockRepository) StartRun(_ context.Context, params RunParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartRunCalled = true
	if m.StartRunErr != nil {
		return "", m.StartRunErr
	}

	id := uuid.NewString()
	m.runs[id] = &Run{
		ID:        id,
		RunParams: params,
		StartedAt: time.Now(),
		Status:    RunStatusRunning,
	}
	m.runOrder = append(m.runOrder, id)
	return id, nil
}

// CompleteRun marks a run as complete
func (m *MockRepository) CompleteRun(_ context.Context, runID string, counts RunCounts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CompleteRunErr != nil {
		return m.CompleteRunErr
	}

	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	now := time.Now()
	run.RunCounts = counts
	run.CompletedAt = &now
	run.Status = runStatus(counts)

	m.CompletedRunID = runID
	m.LastRunCounts = counts
	return nil
}

// ListRuns returns runs newest first
func (m *MockRepository) ListRuns(_ context.Context, limit int) ([]Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []Run
	for i := len(m.runOrder) - 1; i >= 0; i-- {
		result = append(result, *m.runs[m.runOrder[i]])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// GetRun retrieves a run by ID
func (m *MockRepository) GetRun(_ context.Context, runID string) (*Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	copied := *run
	return &copied, nil
}
