package model

import (
	"errors"
	"fmt"
)

var (
	// ErrConflict matches any *ConflictError via errors.Is.
	ErrConflict = errors.New("already reconciled")

	// ErrNotFound is returned when a transaction or expense does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotReconciled is returned when reverting a transaction that has no link.
	ErrNotReconciled = errors.New("not reconciled")
)

// ConflictError is returned when a commit targets a transaction or expense
// that is already reconciled. Callers should refresh state and retry or discard.
type ConflictError struct {
	TransactionID string
	ExpenseID     string
	Reason        string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("reconcile %s/%s: %s", e.TransactionID, e.ExpenseID, e.Reason)
}

// Is makes errors.Is(err, ErrConflict) true for every ConflictError.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// RecordKind names the kind of record a ValidationError refers to.
type RecordKind string

const (
	KindTransaction RecordKind = "transaction"
	KindExpense     RecordKind = "expense"
)

// ValidationError describes a malformed input record. The record is skipped
// and reported; it never aborts a run.
type ValidationError struct {
	Kind     RecordKind `json:"kind"`
	RecordID string     `json:"record_id"`
	Field    string     `json:"field"`
	Reason   string     `json:"reason"`
}

func (e *ValidationError) Error() string {
	id := e.RecordID
	if id == "" {
		id = "<no id>"
	}
	return fmt.Sprintf("invalid %s %s: %s %s", e.Kind, id, e.Field, e.Reason)
}

// ConfigurationError is returned for invalid thresholds. It is fatal at
// startup and rejected before any run executes.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s %s", e.Field, e.Reason)
}
