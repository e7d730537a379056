package matcher

import (
	"fmt"
	"strings"

	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/textnorm"
)

// ScoreSupplier looks for the expense supplier in the transaction, trying in
// order: containment in the counterpart name (30), containment in the
// description (25), then word overlap against either field (20 above 0.6,
// 10 above 0.3). Words shorter than minWordLen are ignored by the overlap.
func ScoreSupplier(tx model.Transaction, exp model.Expense, minWordLen int) Partial {
	supplier := textnorm.Normalize(exp.SupplierName)
	if supplier == "" {
		return none()
	}

	counterpart := textnorm.Normalize(tx.CounterpartName)
	if counterpart != "" && strings.Contains(counterpart, supplier) {
		return award(MaxSupplierPoints, "supplier matches counterpart")
	}

	description := textnorm.Normalize(tx.Description)
	if description != "" && strings.Contains(description, supplier) {
		return award(25, "supplier named in description")
	}

	supplierWords := textnorm.Words(supplier, minWordLen)
	ratio := max(
		wordRatio(supplierWords, textnorm.Words(counterpart, minWordLen)),
		wordRatio(supplierWords, textnorm.Words(description, minWordLen)),
	)
	switch {
	case ratio > 0.6:
		return award(20, fmt.Sprintf("supplier similar (%.0f%% words shared)", ratio*100))
	case ratio > 0.3:
		return award(10, fmt.Sprintf("supplier partially similar (%.0f%% words shared)", ratio*100))
	}
	return none()
}

// wordRatio is the number of shared words over the larger word count.
func wordRatio(a, b []string) float64 {
	larger := max(len(a), len(b))
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(textnorm.Overlap(a, b)) / float64(larger)
}
