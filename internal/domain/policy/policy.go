// Package policy decides which match candidates are accepted automatically
// and which are left for human review.
package policy

import (
	"sort"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Policy tags candidates as automatic or manual.
type Policy struct {
	autoThreshold int
}

// New creates a policy. autoThreshold must lie in 0-100.
func New(autoThreshold int) (*Policy, error) {
	if autoThreshold < 0 || autoThreshold > 100 {
		return nil, &model.ConfigurationError{Field: "auto_reconcile_threshold", Reason: "must be between 0 and 100"}
	}
	return &Policy{autoThreshold: autoThreshold}, nil
}

// AutoThreshold returns the score at or above which a candidate may be auto-applied.
func (p *Policy) AutoThreshold() int {
	return p.autoThreshold
}

// Apply returns the candidates in decision order with AutoMatch set.
//
// Candidates are visited by descending score, then earliest transaction
// date, then transaction id, then expense id. A candidate becomes automatic
// when it reaches the threshold and neither of its ids was taken by an
// earlier automatic candidate. Every other candidate that references an id
// consumed by an automatic one is dropped; the rest are returned as manual
// suggestions and may share ids among themselves.
//
// The input slice is not modified.
func (p *Policy) Apply(candidates []model.MatchCandidate) []model.MatchCandidate {
	ordered := make([]model.MatchCandidate, len(candidates))
	copy(ordered, candidates)
	Sort(ordered)

	usedTx := make(map[string]bool)
	usedExp := make(map[string]bool)
	for i := range ordered {
		c := &ordered[i]
		c.AutoMatch = false
		if c.Score < p.autoThreshold || usedTx[c.TransactionID] || usedExp[c.ExpenseID] {
			continue
		}
		c.AutoMatch = true
		usedTx[c.TransactionID] = true
		usedExp[c.ExpenseID] = true
	}

	out := ordered[:0]
	for _, c := range ordered {
		if !c.AutoMatch && (usedTx[c.TransactionID] || usedExp[c.ExpenseID]) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Sort orders candidates for decision making, in place.
func Sort(candidates []model.MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.TransactionDate.Equal(b.TransactionDate) {
			return a.TransactionDate.Before(b.TransactionDate)
		}
		if a.TransactionID != b.TransactionID {
			return a.TransactionID < b.TransactionID
		}
		return a.ExpenseID < b.ExpenseID
	})
}

// Partition splits tagged candidates into automatic and manual ones,
// keeping their order.
func Partition(candidates []model.MatchCandidate) (auto, manual []model.MatchCandidate) {
	for _, c := range candidates {
		if c.AutoMatch {
			auto = append(auto, c)
		} else {
			manual = append(manual, c)
		}
	}
	return auto, manual
}
