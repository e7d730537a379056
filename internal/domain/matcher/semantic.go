package matcher

import (
	"fmt"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/textnorm"
)

// ScoreSemantic compares the words of both descriptions that are longer
// than minWordLen runes: shared / max(len) as a percentage, mapped to
// 15 (>50%), 10 (>25%) or 5 (>10%) points.
func ScoreSemantic(tx model.Transaction, exp model.Expense, minWordLen int) Partial {
	txWords := textnorm.Words(tx.Description, minWordLen+1)
	expWords := textnorm.Words(exp.Description, minWordLen+1)
	if len(txWords) == 0 || len(expWords) == 0 {
		return none()
	}

	similarity := float64(textnorm.Overlap(txWords, expWords)) / float64(max(len(txWords), len(expWords))) * 100

	var points int
	switch {
	case similarity > 50:
		points = MaxSemanticPoints
	case similarity > 25:
		points = 10
	case similarity > 10:
		points = 5
	default:
		return none()
	}
	return award(points, fmt.Sprintf("descriptions %.0f%% similar", similarity))
}
