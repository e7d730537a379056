// Package candidate enumerates the transaction/expense pairs worth showing
// to the reconciliation policy.
package candidate

import (
	"context"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/eshaffer321/expense-reconciler/internal/domain/matcher"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/validator"
)

// Config holds generator configuration
type Config struct {
	MinScore int // pairs scoring below this are never suggested (default 30)
	Workers  int // concurrent scoring rows, 0 = GOMAXPROCS
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		MinScore: model.DefaultMinScore,
	}
}

// Result is the output of one generation pass.
type Result struct {
	Candidates []model.MatchCandidate
	Rejected   []*model.ValidationError

	TransactionsConsidered int
	ExpensesConsidered     int
	PairsScored            int
}

// Generator scores every open transaction against every open expense.
type Generator struct {
	scorer *matcher.Scorer
	config Config
	logger *slog.Logger
}

// NewGenerator creates a new generator
func NewGenerator(scorer *matcher.Scorer, config Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	return &Generator{
		scorer: scorer,
		config: config,
		logger: logger,
	}
}

// WithMinScore returns a copy of the generator using a different floor.
func (g *Generator) WithMinScore(minScore int) *Generator {
	cp := *g
	cp.config.MinScore = minScore
	return &cp
}

// Generate returns the candidates scoring at least MinScore.
//
// Reconciled transactions, expenses already linked to a transaction and
// rejected expenses are skipped. Malformed records are skipped and listed
// in Result.Rejected. Candidates are ordered by transaction input order,
// then expense input order, whatever the scheduling of the workers.
// The only error returned is the context's.
func (g *Generator) Generate(ctx context.Context, txs []model.Transaction, exps []model.Expense) (*Result, error) {
	openTxs := make([]model.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Reconciled {
			continue
		}
		openTxs = append(openTxs, tx)
	}

	openExps := make([]model.Expense, 0, len(exps))
	for _, exp := range exps {
		if exp.IsLinked() {
			continue
		}
		if exp.ApprovalState == model.ApprovalRejected {
			g.logger.Debug("Skipping rejected expense", "expense_id", exp.ID)
			continue
		}
		openExps = append(openExps, exp)
	}

	validTxs, rejectedTxs := validator.Transactions(openTxs)
	validExps, rejectedExps := validator.Expenses(openExps)

	result := &Result{
		Rejected:               append(rejectedTxs, rejectedExps...),
		TransactionsConsidered: len(validTxs),
		ExpensesConsidered:     len(validExps),
		PairsScored:            len(validTxs) * len(validExps),
	}
	for _, verr := range result.Rejected {
		g.logger.Warn("Skipping invalid record",
			"kind", verr.Kind,
			"record_id", verr.RecordID,
			"field", verr.Field,
			"reason", verr.Reason,
		)
	}

	rows := make([][]model.MatchCandidate, len(validTxs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.config.Workers)
	for i := range validTxs {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			rows[i] = g.scoreRow(validTxs[i], validExps)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for _, row := range rows {
		result.Candidates = append(result.Candidates, row...)
	}

	g.logger.Debug("Generated candidates",
		"transactions", result.TransactionsConsidered,
		"expenses", result.ExpensesConsidered,
		"pairs_scored", result.PairsScored,
		"candidates", len(result.Candidates),
		"rejected", len(result.Rejected),
	)

	return result, nil
}

// scoreRow scores one transaction against every expense.
func (g *Generator) scoreRow(tx model.Transaction, exps []model.Expense) []model.MatchCandidate {
	var row []model.MatchCandidate
	for _, exp := range exps {
		scored := g.scorer.Score(tx, exp)
		if scored.Score < g.config.MinScore {
			continue
		}
		row = append(row, model.MatchCandidate{
			TransactionID:   tx.ID,
			ExpenseID:       exp.ID,
			Score:           scored.Score,
			Reasons:         scored.Reasons,
			TransactionDate: tx.Date,
		})
	}
	return row
}
