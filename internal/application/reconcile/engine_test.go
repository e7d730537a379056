package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// mockLinkStore records commit calls
type mockLinkStore struct {
	mock.Mock
}

func (m *mockLinkStore) CommitReconciliation(ctx context.Context, link model.Link) error {
	args := m.Called(ctx, link)
	return args.Error(0)
}

func forPair(txID, expID string) interface{} {
	return mock.MatchedBy(func(l model.Link) bool {
		return l.TransactionID == txID && l.ExpenseID == expID
	})
}

var march10 = time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func transaction(id, amount, description string) model.Transaction {
	return model.Transaction{
		ID:          id,
		Date:        march10,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "EUR",
		Description: description,
	}
}

func expense(id, amount, supplier, description string) model.Expense {
	return model.Expense{
		ID:            id,
		Date:          march10,
		Amount:        decimal.RequireFromString(amount),
		SupplierName:  supplier,
		Description:   description,
		ApprovalState: model.ApprovalApproved,
	}
}

// twoClearMatches returns t1/e1 and t2/e2, each scoring 100, with the
// cross pairs well below the default minimum score.
func twoClearMatches() ([]model.Transaction, []model.Expense) {
	return []model.Transaction{
			transaction("t1", "-120.00", "Fattura 4521 ACME Srl"),
			transaction("t2", "-89.90", "Fattura 7788 Beta Spa"),
		}, []model.Expense{
			expense("e1", "120.00", "ACME Srl", "Fornitura materiali, fattura 4521"),
			expense("e2", "89.90", "Beta Spa", "Servizi fattura 7788"),
		}
}

func newTestEngine(t *testing.T, store LinkStore) *Engine {
	t.Helper()
	engine, err := NewEngine(store, DefaultConfig(), testLogger())
	require.NoError(t, err)
	return engine
}

func TestNewEngine_RejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"min score above 100", func(c *Config) { c.MinScore = 101 }, "min_score_threshold"},
		{"negative auto threshold", func(c *Config) { c.AutoThreshold = -1 }, "auto_reconcile_threshold"},
		{"min above auto", func(c *Config) { c.MinScore = 80; c.AutoThreshold = 70 }, "min_score_threshold"},
		{"fuzzy length zero", func(c *Config) { c.FuzzyTokenMinLength = 0 }, "fuzzy_token_min_length"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			_, err := NewEngine(&mockLinkStore{}, cfg, nil)
			var cfgErr *model.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestEngine_InvoiceWithSupplierAutoMatched(t *testing.T) {
	engine := newTestEngine(t, &mockLinkStore{})
	txs := []model.Transaction{transaction("t1", "-120.00", "Fattura 4521 ACME Srl")}
	exps := []model.Expense{expense("e1", "120.00", "ACME Srl", "Fornitura materiali, fattura 4521")}

	generated, err := engine.GenerateCandidates(context.Background(), txs, exps, 30)
	require.NoError(t, err)
	tagged, err := engine.ApplyPolicy(generated.Candidates, 70)
	require.NoError(t, err)

	require.Len(t, tagged, 1)
	assert.GreaterOrEqual(t, tagged[0].Score, 95)
	assert.True(t, tagged[0].AutoMatch)
	assert.Equal(t, "exact amount", tagged[0].Reasons[0])
}

func TestEngine_SharedExpenseAutoMatchedOnce(t *testing.T) {
	engine := newTestEngine(t, &mockLinkStore{})
	txs := []model.Transaction{
		transaction("t2", "-120.00", "Fattura 4521 ACME Srl"),
		transaction("t1", "-120.00", "Fattura 4521 ACME Srl"),
	}
	exps := []model.Expense{expense("e1", "120.00", "ACME Srl", "Fornitura materiali, fattura 4521")}

	generated, err := engine.GenerateCandidates(context.Background(), txs, exps, 30)
	require.NoError(t, err)
	require.Len(t, generated.Candidates, 2)
	assert.Equal(t, generated.Candidates[0].Score, generated.Candidates[1].Score)

	tagged, err := engine.ApplyPolicy(generated.Candidates, 70)
	require.NoError(t, err)

	autoCount := 0
	for _, c := range tagged {
		if c.AutoMatch {
			autoCount++
			assert.Equal(t, "t1", c.TransactionID)
		}
	}
	assert.Equal(t, 1, autoCount)
}

func TestEngine_Determinism(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Workers = 4
	engine, err := NewEngine(&mockLinkStore{}, cfg, testLogger())
	require.NoError(t, err)

	var txs []model.Transaction
	var exps []model.Expense
	for i := 0; i < 25; i++ {
		txs = append(txs, transaction(fmt.Sprintf("t%02d", i), fmt.Sprintf("-%d.00", 100+i%4), fmt.Sprintf("Fattura %d", 5000+i%6)))
		exps = append(exps, expense(fmt.Sprintf("e%02d", i), fmt.Sprintf("%d.00", 100+i%3), "Fornitore", fmt.Sprintf("fattura %d", 5000+i%6)))
	}

	run := func() []model.MatchCandidate {
		generated, err := engine.GenerateCandidates(context.Background(), txs, exps, 30)
		require.NoError(t, err)
		tagged, err := engine.ApplyPolicy(generated.Candidates, 70)
		require.NoError(t, err)
		return tagged
	}

	first := run()
	require.NotEmpty(t, first)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, run())
	}
}

func TestEngine_ThresholdsOutOfRange(t *testing.T) {
	store := &mockLinkStore{}
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	_, err := engine.GenerateCandidates(context.Background(), txs, exps, 120)
	assert.IsType(t, &model.ConfigurationError{}, err)

	_, err = engine.ApplyPolicy(nil, -5)
	assert.IsType(t, &model.ConfigurationError{}, err)

	_, err = engine.AutoReconcile(context.Background(), txs, exps, 50, 60, nil)
	assert.IsType(t, &model.ConfigurationError{}, err)

	store.AssertNotCalled(t, "CommitReconciliation", mock.Anything, mock.Anything)
}

func TestEngine_AutoReconcile_CommitsEveryAutoMatch(t *testing.T) {
	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, forPair("t1", "e1")).Return(nil).Once()
	store.On("CommitReconciliation", mock.Anything, forPair("t2", "e2")).Return(nil).Once()
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	var progress []int
	report, err := engine.AutoReconcile(context.Background(), txs, exps, 70, 30, func(done, total int) {
		assert.Equal(t, 2, total)
		progress = append(progress, done)
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
	require.Len(t, report.Succeeded, 2)
	assert.Empty(t, report.Failed)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 2, report.AutoMatched())
	assert.Equal(t, []int{1, 2}, progress)

	link := report.Succeeded[0]
	assert.Equal(t, "t1", link.TransactionID)
	assert.Equal(t, model.LinkModeAuto, link.Mode)
	assert.Equal(t, 100, link.Score)
	assert.Equal(t, 1.0, link.Confidence())
	assert.Contains(t, link.Note, "exact amount")
	assert.NotEmpty(t, link.ID)
}

func TestEngine_AutoReconcile_FailuresDoNotAbortRun(t *testing.T) {
	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, forPair("t1", "e1")).
		Return(&model.ConflictError{TransactionID: "t1", ExpenseID: "e1", Reason: "expense already reconciled"}).Once()
	store.On("CommitReconciliation", mock.Anything, forPair("t2", "e2")).Return(nil).Once()
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	report, err := engine.AutoReconcile(context.Background(), txs, exps, 70, 30, nil)

	require.NoError(t, err)
	store.AssertExpectations(t)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, model.Pair{TransactionID: "t1", ExpenseID: "e1"}, report.Failed[0].Pair)
	assert.True(t, report.Failed[0].Conflict)
	assert.ErrorIs(t, report.Failed[0].Err, model.ErrConflict)
	assert.Contains(t, report.Failed[0].Error, "already reconciled")
	require.Len(t, report.Succeeded, 1)
	assert.Equal(t, "t2", report.Succeeded[0].TransactionID)
}

func TestEngine_AutoReconcile_StorageErrorIsPerPair(t *testing.T) {
	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	report, err := engine.AutoReconcile(context.Background(), txs, exps, 70, 30, nil)

	require.NoError(t, err)
	assert.Len(t, report.Failed, 2)
	assert.False(t, report.Failed[0].Conflict)
	assert.Empty(t, report.Succeeded)
}

func TestEngine_AutoReconcile_CancelKeepsCompletedCommits(t *testing.T) {
	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, forPair("t1", "e1")).Return(nil).Once()
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	report, err := engine.AutoReconcile(ctx, txs, exps, 70, 30, func(done, total int) {
		if done == 1 {
			cancel()
		}
	})

	require.NoError(t, err)
	store.AssertExpectations(t)
	require.Len(t, report.Succeeded, 1)
	assert.Equal(t, "t1", report.Succeeded[0].TransactionID)
	assert.Equal(t, []model.Pair{{TransactionID: "t2", ExpenseID: "e2"}}, report.Skipped)
}

func TestEngine_AutoReconcile_CancelDuringCommitSkipsPair(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, forPair("t1", "e1")).
		Run(func(mock.Arguments) { cancel() }).
		Return(fmt.Errorf("failed to begin reconciliation: %w", context.Canceled)).Once()
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	report, err := engine.AutoReconcile(ctx, txs, exps, 70, 30, nil)

	require.NoError(t, err)
	store.AssertExpectations(t)
	assert.Empty(t, report.Succeeded)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []model.Pair{
		{TransactionID: "t1", ExpenseID: "e1"},
		{TransactionID: "t2", ExpenseID: "e2"},
	}, report.Skipped)
}

func TestEngine_AutoReconcile_StoreDeadlineSkipsRest(t *testing.T) {
	store := &mockLinkStore{}
	store.On("CommitReconciliation", mock.Anything, forPair("t1", "e1")).Return(nil).Once()
	store.On("CommitReconciliation", mock.Anything, forPair("t2", "e2")).
		Return(fmt.Errorf("failed to commit reconciliation: %w", context.DeadlineExceeded)).Once()
	engine := newTestEngine(t, store)
	txs, exps := twoClearMatches()

	report, err := engine.AutoReconcile(context.Background(), txs, exps, 70, 30, nil)

	require.NoError(t, err)
	require.Len(t, report.Succeeded, 1)
	assert.Empty(t, report.Failed)
	assert.Equal(t, []model.Pair{{TransactionID: "t2", ExpenseID: "e2"}}, report.Skipped)
}

func TestEngine_AutoReconcile_ManualCandidatesReported(t *testing.T) {
	engine := newTestEngine(t, &mockLinkStore{})
	txs := []model.Transaction{transaction("t1", "-118.00", "Pagamento")}
	exps := []model.Expense{expense("e1", "120.00", "Gamma", "Acquisto")}

	report, err := engine.AutoReconcile(context.Background(), txs, exps, 70, 30, nil)

	require.NoError(t, err)
	assert.Empty(t, report.Succeeded)
	require.Len(t, report.Manual, 1)
	assert.False(t, report.Manual[0].AutoMatch)
	assert.Equal(t, 1, report.Candidates)
}

func TestEngine_Commit_Validation(t *testing.T) {
	store := &mockLinkStore{}
	engine := newTestEngine(t, store)

	_, err := engine.Commit(context.Background(), "", "e1", 50, "")
	var verr *model.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.KindTransaction, verr.Kind)

	_, err = engine.Commit(context.Background(), "t1", "", 50, "")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, model.KindExpense, verr.Kind)

	_, err = engine.Commit(context.Background(), "t1", "e1", 150, "")
	assert.Error(t, err)

	store.AssertNotCalled(t, "CommitReconciliation", mock.Anything, mock.Anything)
}

func TestEngine_ConcurrentCommitsSameExpense(t *testing.T) {
	repo := storage.NewMockRepository()
	ctx := context.Background()
	const racers = 10
	for i := 0; i < racers; i++ {
		tx := transaction(fmt.Sprintf("t%d", i), "-120.00", "Fattura 4521")
		require.NoError(t, repo.SaveTransaction(ctx, &tx))
	}
	exp := expense("e1", "120.00", "ACME Srl", "fattura 4521")
	require.NoError(t, repo.SaveExpense(ctx, &exp))

	engine := newTestEngine(t, repo)

	var wg sync.WaitGroup
	results := make([]error, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, results[i] = engine.Commit(ctx, fmt.Sprintf("t%d", i), "e1", 85, "")
		}(i)
	}
	close(start)
	wg.Wait()

	winner := ""
	for i, err := range results {
		if err == nil {
			require.Empty(t, winner, "more than one commit succeeded")
			winner = fmt.Sprintf("t%d", i)
			continue
		}
		var conflict *model.ConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	require.NotEmpty(t, winner)

	stored, err := repo.GetExpense(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, winner, stored.ReconciledTransactionID)

	reconciled := true
	txs, err := repo.ListTransactions(ctx, storage.TransactionFilters{Reconciled: &reconciled})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, winner, txs[0].ID)
	assert.InDelta(t, 0.85, txs[0].Confidence, 1e-9)
}
