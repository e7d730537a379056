package matcher

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

var (
	oneCent = decimal.New(1, -2)
	hundred = decimal.NewFromInt(100)
)

// amountTiers maps the percentage difference upper bound to points.
var amountTiers = []struct {
	maxPct decimal.Decimal
	points int
}{
	{decimal.NewFromInt(2), 45},
	{decimal.NewFromInt(5), 35},
	{decimal.NewFromInt(10), 20},
	{decimal.NewFromInt(20), 10},
}

// ScoreAmount compares the absolute transaction amount with the expense amount.
// A difference under one cent is an exact match (50 points); otherwise points
// fall with the difference as a percentage of the expense amount.
// An expense without an amount never matches.
func ScoreAmount(tx model.Transaction, exp model.Expense) Partial {
	expAmount := exp.Amount.Abs()
	if expAmount.IsZero() {
		return none()
	}

	diff := tx.Amount.Abs().Sub(expAmount).Abs()
	if diff.LessThan(oneCent) {
		return award(MaxAmountPoints, "exact amount")
	}

	pct := diff.Div(expAmount).Mul(hundred)
	for _, tier := range amountTiers {
		if pct.LessThan(tier.maxPct) {
			return award(tier.points, fmt.Sprintf("amount within %s%% (diff %s)", tier.maxPct, diff.StringFixed(2)))
		}
	}
	return none()
}
