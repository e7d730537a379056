// Package matcher scores how likely a bank transaction and a recorded
// expense describe the same payment.
//
// Six independent scorers contribute points:
//   - Amount closeness (max 50)
//   - Supplier name match (max 30)
//   - Reference number overlap (max 20)
//   - Description similarity (max 15)
//   - Date proximity (max 10)
//   - Category equality (max 5)
//
// The Scorer sums them, clamps the total to 0-100 and lists a reason for
// every component that awarded points, always in the order above.
//
// Example usage:
//
//	s := matcher.NewScorer(matcher.DefaultConfig())
//	result := s.Score(transaction, expense)
//	if result.Score >= 70 {
//		// strong candidate
//	}
package matcher

import (
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// Scorer combines the individual scorers into one confidence score.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	config Config
}

// NewScorer creates a new scorer with the given config
func NewScorer(config Config) *Scorer {
	if config.FuzzyTokenMinLength < 1 {
		config.FuzzyTokenMinLength = model.DefaultFuzzyTokenMinLength
	}
	return &Scorer{
		config: config,
	}
}

// Breakdown runs every scorer without combining them.
func (s *Scorer) Breakdown(tx model.Transaction, exp model.Expense) Breakdown {
	return Breakdown{
		Amount:    ScoreAmount(tx, exp),
		Supplier:  ScoreSupplier(tx, exp, s.config.FuzzyTokenMinLength),
		Reference: ScoreReference(tx, exp),
		Semantic:  ScoreSemantic(tx, exp, s.config.FuzzyTokenMinLength),
		Date:      ScoreDate(tx, exp),
		Category:  ScoreCategory(tx, exp),
	}
}

// Score returns the clamped score and ordered reasons for a pair.
func (s *Scorer) Score(tx model.Transaction, exp model.Expense) Result {
	b := s.Breakdown(tx, exp)
	return Result{
		Score:     clamp(b.Sum()),
		Reasons:   b.Reasons(),
		Breakdown: b,
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
