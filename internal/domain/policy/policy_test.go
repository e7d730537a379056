package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

var day1 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func cand(txID, expID string, score int, date time.Time) model.MatchCandidate {
	return model.MatchCandidate{
		TransactionID:   txID,
		ExpenseID:       expID,
		Score:           score,
		Reasons:         []string{"exact amount"},
		TransactionDate: date,
	}
}

func pairs(cs []model.MatchCandidate) []model.Pair {
	out := make([]model.Pair, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.Pair())
	}
	return out
}

func TestNew_RejectsOutOfRange(t *testing.T) {
	for _, threshold := range []int{-1, 101} {
		_, err := New(threshold)
		var cfgErr *model.ConfigurationError
		require.ErrorAs(t, err, &cfgErr, "threshold %d", threshold)
		assert.Equal(t, "auto_reconcile_threshold", cfgErr.Field)
	}

	p, err := New(70)
	require.NoError(t, err)
	assert.Equal(t, 70, p.AutoThreshold())
}

func TestApply_SharedExpense(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	// Same score: the earlier transaction wins.
	out := p.Apply([]model.MatchCandidate{
		cand("t2", "e1", 85, day1.AddDate(0, 0, 2)),
		cand("t1", "e1", 85, day1),
	})

	auto, manual := Partition(out)
	require.Len(t, auto, 1)
	assert.Equal(t, "t1", auto[0].TransactionID)
	assert.Empty(t, manual, "candidates sharing an auto-matched expense are dropped")
}

func TestApply_HigherScoreWins(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	out := p.Apply([]model.MatchCandidate{
		cand("t1", "e1", 80, day1),
		cand("t2", "e1", 90, day1.AddDate(0, 0, 5)),
	})

	require.Len(t, out, 1)
	assert.Equal(t, "t2", out[0].TransactionID)
	assert.True(t, out[0].AutoMatch)
}

func TestApply_OrderingAndTieBreaks(t *testing.T) {
	p, err := New(100)
	require.NoError(t, err)

	input := []model.MatchCandidate{
		cand("t3", "e1", 50, day1),
		cand("t1", "e2", 60, day1.AddDate(0, 0, 1)),
		cand("t2", "e3", 60, day1),
		cand("t1", "e1", 60, day1.AddDate(0, 0, 1)),
	}
	out := p.Apply(input)

	assert.Equal(t, []model.Pair{
		{TransactionID: "t2", ExpenseID: "e3"},
		{TransactionID: "t1", ExpenseID: "e1"},
		{TransactionID: "t1", ExpenseID: "e2"},
		{TransactionID: "t3", ExpenseID: "e1"},
	}, pairs(out))
	for _, c := range out {
		assert.False(t, c.AutoMatch)
	}
}

func TestApply_ManualCandidatesMayShareIDs(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	out := p.Apply([]model.MatchCandidate{
		cand("t1", "e1", 60, day1),
		cand("t2", "e1", 55, day1),
		cand("t1", "e2", 40, day1),
	})

	require.Len(t, out, 3)
	for _, c := range out {
		assert.False(t, c.AutoMatch)
	}
}

func TestApply_AtMostOneAutoPerID(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	out := p.Apply([]model.MatchCandidate{
		cand("t1", "e1", 95, day1),
		cand("t1", "e2", 90, day1),
		cand("t2", "e1", 88, day1),
		cand("t2", "e2", 75, day1),
		cand("t3", "e3", 72, day1),
		cand("t3", "e1", 50, day1),
		cand("t4", "e4", 40, day1),
	})

	auto, manual := Partition(out)
	assert.Equal(t, []model.Pair{
		{TransactionID: "t1", ExpenseID: "e1"},
		{TransactionID: "t2", ExpenseID: "e2"},
		{TransactionID: "t3", ExpenseID: "e3"},
	}, pairs(auto))
	assert.Equal(t, []model.Pair{
		{TransactionID: "t4", ExpenseID: "e4"},
	}, pairs(manual))

	usedTx := map[string]int{}
	usedExp := map[string]int{}
	for _, c := range auto {
		usedTx[c.TransactionID]++
		usedExp[c.ExpenseID]++
	}
	for id, n := range usedTx {
		assert.Equal(t, 1, n, "transaction %s", id)
	}
	for id, n := range usedExp {
		assert.Equal(t, 1, n, "expense %s", id)
	}
}

func TestApply_ThresholdIsInclusive(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	out := p.Apply([]model.MatchCandidate{
		cand("t1", "e1", 70, day1),
		cand("t2", "e2", 69, day1),
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].AutoMatch)
	assert.False(t, out[1].AutoMatch)
}

func TestApply_DoesNotModifyInputAndResetsTags(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)

	stale := cand("t1", "e1", 40, day1)
	stale.AutoMatch = true
	input := []model.MatchCandidate{stale, cand("t2", "e2", 90, day1)}

	out := p.Apply(input)

	assert.Equal(t, "t1", input[0].TransactionID)
	assert.True(t, input[0].AutoMatch)
	require.Len(t, out, 2)
	assert.Equal(t, "t2", out[0].TransactionID)
	assert.True(t, out[0].AutoMatch)
	assert.False(t, out[1].AutoMatch)
}

func TestApply_Empty(t *testing.T) {
	p, err := New(70)
	require.NoError(t, err)
	assert.Empty(t, p.Apply(nil))
}
