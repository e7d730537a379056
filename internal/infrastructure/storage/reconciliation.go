package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// CommitReconciliation links a transaction and an expense.
//
// Both records are checked before anything is written, and the updates stay
// conditional on the record still being open. Everything runs in a single
// immediate transaction: either both sides and the link row are written, or
// nothing is.
func (s *Storage) CommitReconciliation(ctx context.Context, link model.Link) error {
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin reconciliation: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	if err := s.checkOpen(ctx, dbTx, link); err != nil {
		return err
	}

	res, err := dbTx.ExecContext(ctx, `
		UPDATE expenses
		SET reconciled_transaction_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND reconciled_transaction_id IS NULL
	`, link.TransactionID, link.ExpenseID)
	if err != nil {
		return commitError(err, "expense", link)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return conflict(link, "expense")
	}

	res, err = dbTx.ExecContext(ctx, `
		UPDATE transactions
		SET reconciled = 1, expense_id = ?, confidence = ?, note = ?, reconciled_at = ?
		WHERE id = ? AND reconciled = 0
	`, link.ExpenseID, link.Confidence(), link.Note, formatTime(link.CreatedAt), link.TransactionID)
	if err != nil {
		return commitError(err, "transaction", link)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return conflict(link, "transaction")
	}

	_, err = dbTx.ExecContext(ctx, `
		INSERT INTO reconciliations (id, transaction_id, expense_id, score, note, mode, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, link.ID, link.TransactionID, link.ExpenseID, link.Score, link.Note, string(link.Mode), formatTime(link.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to record reconciliation: %w", err)
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reconciliation: %w", err)
	}
	return nil
}

// checkOpen tells a missing record from one that is already reconciled.
// The transaction side is checked first.
func (s *Storage) checkOpen(ctx context.Context, dbTx *sql.Tx, link model.Link) error {
	var reconciled bool
	err := dbTx.QueryRowContext(ctx, `SELECT reconciled FROM transactions WHERE id = ?`, link.TransactionID).Scan(&reconciled)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("transaction %s: %w", link.TransactionID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check transaction %s: %w", link.TransactionID, err)
	}
	if reconciled {
		return conflict(link, "transaction")
	}

	var linkedTo sql.NullString
	err = dbTx.QueryRowContext(ctx, `SELECT reconciled_transaction_id FROM expenses WHERE id = ?`, link.ExpenseID).Scan(&linkedTo)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", link.ExpenseID, model.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense %s: %w", link.ExpenseID, err)
	}
	if linkedTo.Valid {
		return conflict(link, "expense")
	}
	return nil
}

// commitError turns a unique index violation into a conflict.
func commitError(err error, kind string, link model.Link) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return conflict(link, kind)
	}
	id := link.TransactionID
	if kind == "expense" {
		id = link.ExpenseID
	}
	return fmt.Errorf("failed to update %s %s: %w", kind, id, err)
}

func conflict(link model.Link, kind string) error {
	return &model.ConflictError{
		TransactionID: link.TransactionID,
		ExpenseID:     link.ExpenseID,
		Reason:        kind + " already reconciled",
	}
}

// RevertReconciliation undoes the active link of a transaction
func (s *Storage) RevertReconciliation(ctx context.Context, transactionID string) (*model.Link, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin revert: %w", err)
	}
	defer func() { _ = dbTx.Rollback() }()

	var reconciled bool
	err = dbTx.QueryRowContext(ctx, `SELECT reconciled FROM transactions WHERE id = ?`, transactionID).Scan(&reconciled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, model.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if !reconciled {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, model.ErrNotReconciled)
	}

	link, err := scanLink(dbTx.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM reconciliations
		WHERE transaction_id = ? AND reverted_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, transactionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load link of transaction %s: %w", transactionID, err)
	}

	now := time.Now()
	statements := []struct {
		query string
		args  []any
	}{
		{`UPDATE transactions
		  SET reconciled = 0, expense_id = NULL, confidence = 0, note = '', reconciled_at = NULL
		  WHERE id = ?`, []any{transactionID}},
		{`UPDATE expenses SET reconciled_transaction_id = NULL, updated_at = CURRENT_TIMESTAMP
		  WHERE reconciled_transaction_id = ?`, []any{transactionID}},
		{`UPDATE reconciliations SET reverted_at = ? WHERE id = ?`, []any{formatTime(now), link.ID}},
	}
	for _, stmt := range statements {
		if _, err := dbTx.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			return nil, fmt.Errorf("failed to revert transaction %s: %w", transactionID, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit revert: %w", err)
	}

	link.RevertedAt = &now
	return link, nil
}

const linkColumns = `id, transaction_id, expense_id, score, note, mode, created_at, reverted_at`

// GetReconciliation returns the active link of a transaction
func (s *Storage) GetReconciliation(ctx context.Context, transactionID string) (*model.Link, error) {
	link, err := scanLink(s.db.QueryRowContext(ctx, `
		SELECT `+linkColumns+` FROM reconciliations
		WHERE transaction_id = ? AND reverted_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("reconciliation of %s: %w", transactionID, model.ErrNotFound)
	}
	return link, err
}

// ListReconciliations returns recent links
func (s *Storage) ListReconciliations(ctx context.Context, limit int) ([]model.Link, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+linkColumns+` FROM reconciliations
		ORDER BY created_at DESC, id ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var links []model.Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, *link)
	}
	return links, rows.Err()
}

func scanLink(row scanner) (*model.Link, error) {
	var (
		link       model.Link
		mode       string
		createdAt  string
		revertedAt sql.NullString
	)
	err := row.Scan(
		&link.ID,
		&link.TransactionID,
		&link.ExpenseID,
		&link.Score,
		&link.Note,
		&mode,
		&createdAt,
		&revertedAt,
	)
	if err != nil {
		return nil, err
	}

	link.Mode = model.LinkMode(mode)
	if link.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("reconciliation %s has invalid created_at: %w", link.ID, err)
	}
	if revertedAt.Valid {
		t, err := parseTime(revertedAt.String)
		if err != nil {
			return nil, fmt.Errorf("reconciliation %s has invalid reverted_at: %w", link.ID, err)
		}
		link.RevertedAt = &t
	}
	return &link, nil
}
