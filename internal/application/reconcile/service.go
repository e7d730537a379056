package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eshaffer321/expense-reconciler/internal/domain/categorizer"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/validator"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// Service runs the engine against the records held in storage.
type Service struct {
	repo   storage.Repository
	engine *Engine
	logger *slog.Logger

	categorize    categorizer.Strategy
	minConfidence float64
}

// Option configures a Service
type Option func(*Service)

// WithCategorizer fills in missing categories on import when the strategy
// is at least minConfidence sure.
func WithCategorizer(strategy categorizer.Strategy, minConfidence float64) Option {
	return func(s *Service) {
		s.categorize = strategy
		s.minConfidence = minConfidence
	}
}

// NewService creates a new service
func NewService(repo storage.Repository, engine *Engine, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:   repo,
		engine: engine,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the underlying engine
func (s *Service) Engine() *Engine {
	return s.engine
}

// RunOptions overrides the configured thresholds for one run.
// Nil fields use the engine configuration.
type RunOptions struct {
	MinScore      *int
	AutoThreshold *int
	Progress      Progress
}

func (o RunOptions) thresholds(cfg Config) (minScore, autoThreshold int) {
	minScore, autoThreshold = cfg.MinScore, cfg.AutoThreshold
	if o.MinScore != nil {
		minScore = *o.MinScore
	}
	if o.AutoThreshold != nil {
		autoThreshold = *o.AutoThreshold
	}
	return minScore, autoThreshold
}

// ImportResult reports a batch import
type ImportResult struct {
	Saved       int                      `json:"saved"`
	Categorized int                      `json:"categorized"`
	Rejected    []*model.ValidationError `json:"rejected,omitempty"`
}

// ImportTransactions validates and stores transactions. Invalid records are
// reported, not saved.
func (s *Service) ImportTransactions(ctx context.Context, txs []model.Transaction) (*ImportResult, error) {
	valid, rejected := validator.Transactions(txs)
	result := &ImportResult{Rejected: rejected}

	for i := range valid {
		tx := &valid[i]
		if tx.Category == "" && s.fillCategory(&tx.Category, tx.Description, tx.CounterpartName) {
			result.Categorized++
		}
		if err := s.repo.SaveTransaction(ctx, tx); err != nil {
			return result, err
		}
		result.Saved++
	}

	s.logger.Info("Imported transactions",
		"saved", result.Saved,
		"categorized", result.Categorized,
		"rejected", len(result.Rejected),
	)
	return result, nil
}

// ImportExpenses validates and stores expenses. Invalid records are
// reported, not saved.
func (s *Service) ImportExpenses(ctx context.Context, exps []model.Expense) (*ImportResult, error) {
	valid, rejected := validator.Expenses(exps)
	result := &ImportResult{Rejected: rejected}

	for i := range valid {
		exp := &valid[i]
		if exp.Category == "" && s.fillCategory(&exp.Category, exp.Description, exp.SupplierName) {
			result.Categorized++
		}
		if err := s.repo.SaveExpense(ctx, exp); err != nil {
			return result, err
		}
		result.Saved++
	}

	s.logger.Info("Imported expenses",
		"saved", result.Saved,
		"categorized", result.Categorized,
		"rejected", len(result.Rejected),
	)
	return result, nil
}

func (s *Service) fillCategory(dst *string, texts ...string) bool {
	if s.categorize == nil {
		return false
	}
	category, confidence := s.categorize(strings.Join(texts, " "))
	if category == "" || confidence < s.minConfidence {
		return false
	}
	*dst = category
	return true
}

// Suggestions is the policy-tagged candidate list for review
type Suggestions struct {
	Candidates    []model.MatchCandidate   `json:"candidates"`
	Rejected      []*model.ValidationError `json:"rejected,omitempty"`
	MinScore      int                      `json:"min_score"`
	AutoThreshold int                      `json:"auto_threshold"`
}

// Suggest returns the candidates for the open records, tagged by the policy.
// Nothing is committed.
func (s *Service) Suggest(ctx context.Context, opts RunOptions) (*Suggestions, error) {
	minScore, autoThreshold := opts.thresholds(s.engine.Config())
	if err := model.ValidateThresholds(minScore, autoThreshold); err != nil {
		return nil, err
	}

	txs, exps, err := s.loadOpen(ctx)
	if err != nil {
		return nil, err
	}

	generated, err := s.engine.GenerateCandidates(ctx, txs, exps, minScore)
	if err != nil {
		return nil, err
	}
	tagged, err := s.engine.ApplyPolicy(generated.Candidates, autoThreshold)
	if err != nil {
		return nil, err
	}

	return &Suggestions{
		Candidates:    tagged,
		Rejected:      generated.Rejected,
		MinScore:      minScore,
		AutoThreshold: autoThreshold,
	}, nil
}

// AutoResult pairs a run record with its report
type AutoResult struct {
	RunID  string        `json:"run_id"`
	Report *CommitReport `json:"report"`
}

// AutoReconcile commits every automatic match over the open records and
// records the run. A cancelled run is still recorded with what it did.
func (s *Service) AutoReconcile(ctx context.Context, opts RunOptions) (*AutoResult, error) {
	minScore, autoThreshold := opts.thresholds(s.engine.Config())
	if err := model.ValidateThresholds(minScore, autoThreshold); err != nil {
		return nil, err
	}

	txs, exps, err := s.loadOpen(ctx)
	if err != nil {
		return nil, err
	}

	runID, err := s.repo.StartRun(ctx, storage.RunParams{
		Mode:          string(model.LinkModeAuto),
		MinScore:      minScore,
		AutoThreshold: autoThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record run: %w", err)
	}

	report, runErr := s.engine.AutoReconcile(ctx, txs, exps, autoThreshold, minScore, opts.Progress)

	counts := storage.RunCounts{}
	if report != nil {
		counts = storage.RunCounts{
			Candidates:  report.Candidates,
			AutoMatched: report.AutoMatched(),
			Succeeded:   len(report.Succeeded),
			Failed:      len(report.Failed),
			Skipped:     len(report.Skipped),
			Rejected:    len(report.Rejected),
		}
	}
	// The run must be closed even when the caller has gone away
	if err := s.repo.CompleteRun(context.WithoutCancel(ctx), runID, counts); err != nil {
		s.logger.Error("Failed to complete run", "run_id", runID, "error", err)
	}

	if runErr != nil {
		return nil, runErr
	}
	return &AutoResult{RunID: runID, Report: report}, nil
}

// ManualReconcile commits a pair chosen by a person, which need not be a
// suggested candidate. The pair is scored so the link carries a score.
func (s *Service) ManualReconcile(ctx context.Context, transactionID, expenseID, note string) (*model.Link, error) {
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	exp, err := s.repo.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	scored := s.engine.Score(*tx, *exp)
	if note == "" {
		note = "manual"
		if len(scored.Reasons) > 0 {
			note += ": " + strings.Join(scored.Reasons, "; ")
		}
	}
	return s.engine.Commit(ctx, transactionID, expenseID, scored.Score, note)
}

// Unreconcile removes the link of a transaction on both sides
func (s *Service) Unreconcile(ctx context.Context, transactionID string) (*model.Link, error) {
	link, err := s.repo.RevertReconciliation(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Reconciliation reverted",
		"transaction_id", link.TransactionID,
		"expense_id", link.ExpenseID,
	)
	return link, nil
}

// loadOpen returns the records that can still be reconciled
func (s *Service) loadOpen(ctx context.Context) ([]model.Transaction, []model.Expense, error) {
	open := false
	txs, err := s.repo.ListTransactions(ctx, storage.TransactionFilters{Reconciled: &open})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	exps, err := s.repo.ListExpenses(ctx, storage.ExpenseFilters{Linked: &open})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load expenses: %w", err)
	}
	return txs, exps, nil
}
