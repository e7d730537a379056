// Package validator checks transaction and expense records before they
// reach the matcher.
//
// Malformed records are never fatal: they are split from the valid ones
// and returned as *model.ValidationError values so the caller can report
// them while the rest of the batch proceeds.
package validator

import (
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// ValidateTransaction returns the first problem found in tx, or nil. A zero
// amount is valid; an absent one is reported where the record is decoded.
func ValidateTransaction(tx model.Transaction) *model.ValidationError {
	invalid := func(field, reason string) *model.ValidationError {
		return &model.ValidationError{Kind: model.KindTransaction, RecordID: tx.ID, Field: field, Reason: reason}
	}

	switch {
	case tx.ID == "":
		return invalid("id", "is missing")
	case tx.Date.IsZero():
		return invalid("date", "is missing or unparseable")
	}
	return nil
}

// ValidateExpense returns the first problem found in exp, or nil. A zero
// expense stays valid and earns no amount score.
func ValidateExpense(exp model.Expense) *model.ValidationError {
	invalid := func(field, reason string) *model.ValidationError {
		return &model.ValidationError{Kind: model.KindExpense, RecordID: exp.ID, Field: field, Reason: reason}
	}

	switch {
	case exp.ID == "":
		return invalid("id", "is missing")
	case exp.Date.IsZero():
		return invalid("date", "is missing or unparseable")
	case exp.Amount.IsNegative():
		return invalid("amount", "must be positive")
	}
	return nil
}

// Transactions splits txs into valid records and rejections, preserving
// input order. A repeated id is rejected after its first occurrence.
func Transactions(txs []model.Transaction) ([]model.Transaction, []*model.ValidationError) {
	valid := make([]model.Transaction, 0, len(txs))
	var rejected []*model.ValidationError
	seen := make(map[string]bool, len(txs))

	for _, tx := range txs {
		if verr := ValidateTransaction(tx); verr != nil {
			rejected = append(rejected, verr)
			continue
		}
		if seen[tx.ID] {
			rejected = append(rejected, &model.ValidationError{Kind: model.KindTransaction, RecordID: tx.ID, Field: "id", Reason: "is duplicated"})
			continue
		}
		seen[tx.ID] = true
		valid = append(valid, tx)
	}
	return valid, rejected
}

// Expenses splits exps into valid records and rejections, preserving
// input order. A repeated id is rejected after its first occurrence.
func Expenses(exps []model.Expense) ([]model.Expense, []*model.ValidationError) {
	valid := make([]model.Expense, 0, len(exps))
	var rejected []*model.ValidationError
	seen := make(map[string]bool, len(exps))

	for _, exp := range exps {
		if verr := ValidateExpense(exp); verr != nil {
			rejected = append(rejected, verr)
			continue
		}
		if seen[exp.ID] {
			rejected = append(rejected, &model.ValidationError{Kind: model.KindExpense, RecordID: exp.ID, Field: "id", Reason: "is duplicated"})
			continue
		}
		seen[exp.ID] = true
		valid = append(valid, exp)
	}
	return valid, rejected
}
