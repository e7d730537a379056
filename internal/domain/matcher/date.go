package matcher

import (
	"fmt"
	"time"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// ScoreDate rewards close dates: same day 10, within 3 days 8,
// within a week 5, within 30 days 3.
func ScoreDate(tx model.Transaction, exp model.Expense) Partial {
	if tx.Date.IsZero() || exp.Date.IsZero() {
		return none()
	}

	days := DaysBetween(tx.Date, exp.Date)
	switch {
	case days == 0:
		return award(MaxDatePoints, "same date")
	case days <= 3:
		return award(8, fmt.Sprintf("dates %d days apart", days))
	case days <= 7:
		return award(5, fmt.Sprintf("dates %d days apart", days))
	case days <= 30:
		return award(3, fmt.Sprintf("dates %d days apart", days))
	}
	return none()
}

// DaysBetween returns the absolute number of calendar days between a and b,
// ignoring time of day.
func DaysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)

	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}
