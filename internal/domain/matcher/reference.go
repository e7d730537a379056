package matcher

import (
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/domain/reference"
)

// ScoreReference awards 20 points when a reference number found in the
// transaction (description or extracted reference) overlaps one found in
// the expense (description or receipt number).
func ScoreReference(tx model.Transaction, exp model.Expense) Partial {
	txRefs := reference.ExtractAll(tx.Description, tx.ReferenceNumber)
	if len(txRefs) == 0 {
		return none()
	}
	expRefs := reference.ExtractAll(exp.Description, exp.ReceiptNumber)

	if txRef, _, ok := reference.Overlap(txRefs, expRefs); ok {
		return award(MaxReferencePoints, "reference match: "+txRef)
	}
	return none()
}
