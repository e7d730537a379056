package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// StartRun records the start of a reconciliation run
func (s *Storage) StartRun(ctx context.Context, params RunParams) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reconciliation_runs (id, mode, min_score, auto_threshold, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, params.Mode, params.MinScore, params.AutoThreshold, formatTime(time.Now()), RunStatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// CompleteRun records the completion of a run
func (s *Storage) CompleteRun(ctx context.Context, runID string, counts RunCounts) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reconciliation_runs
		SET completed_at = ?,
		    candidates = ?,
		    auto_matched = ?,
		    succeeded = ?,
		    failed = ?,
		    skipped = ?,
		    rejected = ?,
		    status = ?
		WHERE id = ?
	`,
		formatTime(time.Now()),
		counts.Candidates,
		counts.AutoMatched,
		counts.Succeeded,
		counts.Failed,
		counts.Skipped,
		counts.Rejected,
		runStatus(counts),
		runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	return nil
}

const runColumns = `id, mode, min_score, auto_threshold, started_at, completed_at,
	candidates, auto_matched, succeeded, failed, skipped, rejected, status`

// ListRuns returns recent runs
func (s *Storage) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM reconciliation_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID
func (s *Storage) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM reconciliation_runs WHERE id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}
	return run, err
}

func scanRun(row scanner) (*Run, error) {
	var (
		run         Run
		startedAt   string
		completedAt sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Mode,
		&run.MinScore,
		&run.AutoThreshold,
		&startedAt,
		&completedAt,
		&run.Candidates,
		&run.AutoMatched,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&run.Rejected,
		&run.Status,
	)
	if err != nil {
		return nil, err
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("run %s has invalid started_at: %w", run.ID, err)
	}
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("run %s has invalid completed_at: %w", run.ID, err)
		}
		run.CompletedAt = &t
	}
	return &run, nil
}
