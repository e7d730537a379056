package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Storage provides SQLite database access for transactions, expenses,
// reconciliations and runs. It implements the Repository interface.
type Storage struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage opens (or creates) the SQLite database at dbPath and runs all
// pending migrations.
//
// Writers are serialized: one connection, immediate transactions and a
// busy timeout, so concurrent commits never interleave.
func NewStorage(dbPath string, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(context.Background(), db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Storage{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveTransaction upserts the ingestion-owned fields of a transaction
func (s *Storage) SaveTransaction(ctx context.Context, tx *model.Transaction) error {
	query := `
	INSERT INTO transactions
	(id, date, amount, currency, description, counterpart_name,
	 reference_number, category, project_id)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		amount = excluded.amount,
		currency = excluded.currency,
		description = excluded.description,
		counterpart_name = excluded.counterpart_name,
		reference_number = excluded.reference_number,
		category = excluded.category,
		project_id = excluded.project_id,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		formatTime(tx.Date),
		tx.Amount.String(),
		tx.Currency,
		tx.Description,
		tx.CounterpartName,
		tx.ReferenceNumber,
		tx.Category,
		tx.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction %s: %w", tx.ID, err)
	}
	return nil
}

const transactionColumns = `id, date, amount, currency, description, counterpart_name,
	reference_number, category, project_id, reconciled, expense_id,
	confidence, note, reconciled_at`

// GetTransaction retrieves a transaction by ID
func (s *Storage) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactions returns transactions matching the given filters
func (s *Storage) ListTransactions(ctx context.Context, filters TransactionFilters) ([]model.Transaction, error) {
	var where []string
	var args []any
	if filters.Reconciled != nil {
		where = append(where, "reconciled = ?")
		args = append(args, *filters.Reconciled)
	}
	if filters.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filters.ProjectID)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var txs []model.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, *tx)
	}
	return txs, rows.Err()
}

// SaveExpense upserts the ingestion-owned fields of an expense
func (s *Storage) SaveExpense(ctx context.Context, exp *model.Expense) error {
	state := exp.ApprovalState
	if state == "" {
		state = model.ApprovalDraft
	}

	query := `
	INSERT INTO expenses
	(id, date, amount, description, supplier_name, receipt_number,
	 category, approval_state)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		date = excluded.date,
		amount = excluded.amount,
		description = excluded.description,
		supplier_name = excluded.supplier_name,
		receipt_number = excluded.receipt_number,
		category = excluded.category,
		approval_state = excluded.approval_state,
		updated_at = CURRENT_TIMESTAMP
	`

	_, err := s.db.ExecContext(ctx, query,
		exp.ID,
		formatTime(exp.Date),
		exp.Amount.String(),
		exp.Description,
		exp.SupplierName,
		exp.ReceiptNumber,
		exp.Category,
		string(state),
	)
	if err != nil {
		return fmt.Errorf("failed to save expense %s: %w", exp.ID, err)
	}
	return nil
}

const expenseColumns = `id, date, amount, description, supplier_name, receipt_number,
	category, approval_state, reconciled_transaction_id`

// GetExpense retrieves an expense by ID
func (s *Storage) GetExpense(ctx context.Context, id string) (*model.Expense, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	exp, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("expense %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// ListExpenses returns expenses matching the given filters
func (s *Storage) ListExpenses(ctx context.Context, filters ExpenseFilters) ([]model.Expense, error) {
	var args []any
	query := `SELECT ` + expenseColumns + ` FROM expenses`
	if filters.Linked != nil {
		if *filters.Linked {
			query += " WHERE reconciled_transaction_id IS NOT NULL"
		} else {
			query += " WHERE reconciled_transaction_id IS NULL"
		}
	}
	query += " ORDER BY date ASC, id ASC"
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var exps []model.Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		exps = append(exps, *exp)
	}
	return exps, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (*model.Transaction, error) {
	var (
		tx           model.Transaction
		date         string
		amount       string
		expenseID    sql.NullString
		reconciledAt sql.NullString
	)
	err := row.Scan(
		&tx.ID,
		&date,
		&amount,
		&tx.Currency,
		&tx.Description,
		&tx.CounterpartName,
		&tx.ReferenceNumber,
		&tx.Category,
		&tx.ProjectID,
		&tx.Reconciled,
		&expenseID,
		&tx.Confidence,
		&tx.Note,
		&reconciledAt,
	)
	if err != nil {
		return nil, err
	}

	if tx.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid date %q: %w", tx.ID, date, err)
	}
	if tx.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("transaction %s has invalid amount %q: %w", tx.ID, amount, err)
	}
	tx.ExpenseID = expenseID.String
	if reconciledAt.Valid {
		t, err := parseTime(reconciledAt.String)
		if err != nil {
			return nil, fmt.Errorf("transaction %s has invalid reconciled_at: %w", tx.ID, err)
		}
		tx.ReconciledAt = &t
	}
	return &tx, nil
}

func scanExpense(row scanner) (*model.Expense, error) {
	var (
		exp    model.Expense
		date   string
		amount string
		state  string
		linked sql.NullString
	)
	err := row.Scan(
		&exp.ID,
		&date,
		&amount,
		&exp.Description,
		&exp.SupplierName,
		&exp.ReceiptNumber,
		&exp.Category,
		&state,
		&linked,
	)
	if err != nil {
		return nil, err
	}

	if exp.Date, err = parseTime(date); err != nil {
		return nil, fmt.Errorf("expense %s has invalid date %q: %w", exp.ID, date, err)
	}
	if exp.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("expense %s has invalid amount %q: %w", exp.ID, amount, err)
	}
	exp.ApprovalState = model.ApprovalState(state)
	exp.ReconciledTransactionID = linked.String
	return &exp, nil
}
