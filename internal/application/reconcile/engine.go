// Package reconcile wires the scorer, candidate generator, policy and
// committer into the reconciliation engine, and runs it against storage.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eshaffer321/expense-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/expense-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/policy"
)

// Config holds engine configuration
type Config struct {
	MinScore            int // floor for suggesting a pair (default 30)
	AutoThreshold       int // floor for automatic acceptance (default 70)
	FuzzyTokenMinLength int // minimum word length in text comparisons (default 3)
	Workers             int // parallel scoring rows, 0 = GOMAXPROCS
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MinScore:            model.DefaultMinScore,
		AutoThreshold:       model.DefaultAutoThreshold,
		FuzzyTokenMinLength: model.DefaultFuzzyTokenMinLength,
	}
}

// Validate returns a *model.ConfigurationError for unusable settings
func (c Config) Validate() error {
	if err := model.ValidateThresholds(c.MinScore, c.AutoThreshold); err != nil {
		return err
	}
	if err := (matcher.Config{FuzzyTokenMinLength: c.FuzzyTokenMinLength}).Validate(); err != nil {
		return err
	}
	if c.Workers < 0 {
		return &model.ConfigurationError{Field: "workers", Reason: "must not be negative"}
	}
	return nil
}

// FailedCommit is a pair the committer could not reconcile
type FailedCommit struct {
	model.Pair
	Score    int    `json:"score"`
	Error    string `json:"error"`
	Conflict bool   `json:"conflict"`
	Err      error  `json:"-"`
}

// CommitReport is the outcome of an auto-reconcile run
type CommitReport struct {
	Succeeded []model.Link   `json:"succeeded"`
	Failed    []FailedCommit `json:"failed"`

	// Auto matches not attempted because the run was cancelled
	Skipped []model.Pair `json:"skipped,omitempty"`

	Candidates int                      `json:"candidates"`
	Manual     []model.MatchCandidate   `json:"manual"`
	Rejected   []*model.ValidationError `json:"rejected,omitempty"`
}

// AutoMatched is the number of candidates the policy accepted
func (r *CommitReport) AutoMatched() int {
	return len(r.Succeeded) + len(r.Failed) + len(r.Skipped)
}

// Progress is called after every commit attempt of an auto-reconcile run
type Progress func(done, total int)

// Engine exposes the reconciliation operations
type Engine struct {
	config    Config
	scorer    *matcher.Scorer
	generator *candidate.Generator
	committer *Committer
	logger    *slog.Logger
}

// NewEngine creates an engine committing through store.
// It fails with a *model.ConfigurationError for invalid settings.
func NewEngine(store LinkStore, config Config, logger *slog.Logger) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	scorer := matcher.NewScorer(matcher.Config{FuzzyTokenMinLength: config.FuzzyTokenMinLength})
	return &Engine{
		config:    config,
		scorer:    scorer,
		generator: candidate.NewGenerator(scorer, candidate.Config{MinScore: config.MinScore, Workers: config.Workers}, logger),
		committer: NewCommitter(store, logger),
		logger:    logger,
	}, nil
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// Score scores a single pair
func (e *Engine) Score(tx model.Transaction, exp model.Expense) matcher.Result {
	return e.scorer.Score(tx, exp)
}

// GenerateCandidates scores every open pair and keeps those reaching minScore.
// Invalid records are skipped and listed in the result.
func (e *Engine) GenerateCandidates(ctx context.Context, txs []model.Transaction, exps []model.Expense, minScore int) (*candidate.Result, error) {
	if minScore < 0 || minScore > 100 {
		return nil, &model.ConfigurationError{Field: "min_score_threshold", Reason: "must be between 0 and 100"}
	}
	return e.generator.WithMinScore(minScore).Generate(ctx, txs, exps)
}

// ApplyPolicy orders candidates and tags the automatic ones, keeping each
// transaction and expense in at most one automatic match.
func (e *Engine) ApplyPolicy(candidates []model.MatchCandidate, autoThreshold int) ([]model.MatchCandidate, error) {
	p, err := policy.New(autoThreshold)
	if err != nil {
		return nil, err
	}
	return p.Apply(candidates), nil
}

// Commit reconciles one pair chosen by a person
func (e *Engine) Commit(ctx context.Context, transactionID, expenseID string, score int, note string) (*model.Link, error) {
	pair := model.Pair{TransactionID: transactionID, ExpenseID: expenseID}
	return e.committer.Commit(ctx, pair, score, note, model.LinkModeManual)
}

// AutoReconcile generates candidates, applies the policy and commits every
// automatic match, one at a time.
//
// A failed commit is recorded and the run moves on. When ctx is cancelled
// the remaining matches are reported as skipped; commits already made are
// kept. The returned error is only for invalid thresholds or a cancellation
// before any candidate was produced.
func (e *Engine) AutoReconcile(ctx context.Context, txs []model.Transaction, exps []model.Expense, autoThreshold, minScore int, progress Progress) (*CommitReport, error) {
	if err := model.ValidateThresholds(minScore, autoThreshold); err != nil {
		return nil, err
	}

	generated, err := e.GenerateCandidates(ctx, txs, exps, minScore)
	if err != nil {
		return nil, err
	}
	tagged, err := e.ApplyPolicy(generated.Candidates, autoThreshold)
	if err != nil {
		return nil, err
	}
	auto, manual := policy.Partition(tagged)

	report := &CommitReport{
		Candidates: len(generated.Candidates),
		Manual:     manual,
		Rejected:   generated.Rejected,
	}

	for i, c := range auto {
		if ctx.Err() != nil {
			e.skipRemaining(report, auto[i:])
			break
		}

		link, err := e.committer.Commit(ctx, c.Pair(), c.Score, autoNote(c), model.LinkModeAuto)
		if err != nil && cancelled(ctx, err) {
			e.skipRemaining(report, auto[i:])
			break
		}
		if err != nil {
			report.Failed = append(report.Failed, FailedCommit{
				Pair:     c.Pair(),
				Score:    c.Score,
				Error:    err.Error(),
				Conflict: errors.Is(err, model.ErrConflict),
				Err:      err,
			})
		} else {
			report.Succeeded = append(report.Succeeded, *link)
		}

		if progress != nil {
			progress(i+1, len(auto))
		}
	}

	e.logger.Info("Auto-reconcile finished",
		"candidates", report.Candidates,
		"auto_matched", len(auto),
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"skipped", len(report.Skipped),
		"manual", len(report.Manual),
		"rejected", len(report.Rejected),
	)
	return report, nil
}

func (e *Engine) skipRemaining(report *CommitReport, rest []model.MatchCandidate) {
	for _, c := range rest {
		report.Skipped = append(report.Skipped, c.Pair())
	}
	e.logger.Warn("Auto-reconcile cancelled",
		"committed", len(report.Succeeded),
		"skipped", len(report.Skipped),
	)
}

// cancelled reports whether a commit failed because the run was stopped.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// autoNote is the rationale stored with an automatic match
func autoNote(c model.MatchCandidate) string {
	return fmt.Sprintf("auto-reconciled (score %d): %s", c.Score, strings.Join(c.Reasons, "; "))
}
