package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// LinkStore is the persistence port of the committer. Implementations must
// check both records are still open and write both sides atomically,
// returning *model.ConflictError when either is already reconciled.
type LinkStore interface {
	CommitReconciliation(ctx context.Context, link model.Link) error
}

// Committer is the only component that mutates reconciliation state.
type Committer struct {
	store  LinkStore
	logger *slog.Logger
	now    func() time.Time
}

// NewCommitter creates a committer writing through store
func NewCommitter(store LinkStore, logger *slog.Logger) *Committer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Committer{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Commit links a transaction and an expense. Score is the 0-100 match
// score; the transaction stores score/100 as its confidence.
func (c *Committer) Commit(ctx context.Context, pair model.Pair, score int, note string, mode model.LinkMode) (*model.Link, error) {
	if pair.TransactionID == "" {
		return nil, &model.ValidationError{Kind: model.KindTransaction, Field: "id", Reason: "is missing"}
	}
	if pair.ExpenseID == "" {
		return nil, &model.ValidationError{Kind: model.KindExpense, Field: "id", Reason: "is missing"}
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("score %d for %s/%s is outside 0-100", score, pair.TransactionID, pair.ExpenseID)
	}

	link := model.Link{
		ID:            uuid.NewString(),
		TransactionID: pair.TransactionID,
		ExpenseID:     pair.ExpenseID,
		Score:         score,
		Note:          note,
		Mode:          mode,
		CreatedAt:     c.now(),
	}

	if err := c.store.CommitReconciliation(ctx, link); err != nil {
		var conflict *model.ConflictError
		if errors.As(err, &conflict) {
			c.logger.Warn("Reconciliation conflict",
				"transaction_id", pair.TransactionID,
				"expense_id", pair.ExpenseID,
				"reason", conflict.Reason,
			)
		} else {
			c.logger.Error("Reconciliation failed",
				"transaction_id", pair.TransactionID,
				"expense_id", pair.ExpenseID,
				"error", err,
			)
		}
		return nil, err
	}

	c.logger.Info("Reconciled",
		"transaction_id", pair.TransactionID,
		"expense_id", pair.ExpenseID,
		"score", score,
		"mode", mode,
	)
	return &link, nil
}
