package matcher

import (
	"strings"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// ScoreCategory awards 5 points when both records carry the same category.
func ScoreCategory(tx model.Transaction, exp model.Expense) Partial {
	txCat := strings.TrimSpace(tx.Category)
	expCat := strings.TrimSpace(exp.Category)
	if txCat == "" || expCat == "" {
		return none()
	}
	if strings.EqualFold(txCat, expCat) {
		return award(MaxCategoryPoints, "same category: "+expCat)
	}
	return none()
}
