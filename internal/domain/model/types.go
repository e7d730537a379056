// Package model defines the records exchanged between the reconciliation
// engine and its collaborators: bank transactions supplied by statement
// ingestion, expenses supplied by expense management, and the match
// candidates and reconciliation links the engine produces.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is a single bank ledger entry.
type Transaction struct {
	ID              string          `json:"id"`
	Date            time.Time       `json:"date"`
	Amount          decimal.Decimal `json:"amount"` // signed: negative = outflow
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	CounterpartName string          `json:"counterpart_name,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Category        string          `json:"category,omitempty"`
	ProjectID       string          `json:"project_id,omitempty"`

	// Reconciliation state, written only by the committer
	Reconciled   bool       `json:"reconciled"`
	ExpenseID    string     `json:"expense_id,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"` // score / 100
	Note         string     `json:"note,omitempty"`
	ReconciledAt *time.Time `json:"reconciled_at,omitempty"`
}

// ApprovalState is the workflow state of an expense.
type ApprovalState string

const (
	ApprovalDraft     ApprovalState = "draft"
	ApprovalSubmitted ApprovalState = "submitted"
	ApprovalApproved  ApprovalState = "approved"
	ApprovalRejected  ApprovalState = "rejected"
)

// Expense is a recorded project cost.
type Expense struct {
	ID            string          `json:"id"`
	Date          time.Time       `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	ReceiptNumber string          `json:"receipt_number,omitempty"`
	Category      string          `json:"category,omitempty"`
	ApprovalState ApprovalState   `json:"approval_state"`

	// Back-reference set when the expense is reconciled
	ReconciledTransactionID string `json:"reconciled_transaction_id,omitempty"`
}

// IsLinked reports whether the expense is already reconciled against a transaction.
func (e Expense) IsLinked() bool {
	return e.ReconciledTransactionID != ""
}

// Pair identifies a transaction/expense pairing.
type Pair struct {
	TransactionID string `json:"transaction_id"`
	ExpenseID     string `json:"expense_id"`
}

// MatchCandidate is a scored, not yet committed pairing.
// Candidates are recomputed on every run and never persisted.
type MatchCandidate struct {
	TransactionID string   `json:"transaction_id"`
	ExpenseID     string   `json:"expense_id"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	AutoMatch     bool     `json:"auto_match"`

	// Used for tie-breaking when ordering candidates
	TransactionDate time.Time `json:"-"`
}

// Pair returns the ids of the candidate.
func (c MatchCandidate) Pair() Pair {
	return Pair{TransactionID: c.TransactionID, ExpenseID: c.ExpenseID}
}

// LinkMode records how a reconciliation was accepted.
type LinkMode string

const (
	LinkModeAuto   LinkMode = "auto"
	LinkModeManual LinkMode = "manual"
)

// Link is a committed reconciliation between one transaction and one expense.
type Link struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	ExpenseID     string    `json:"expense_id"`
	Score         int       `json:"score"`
	Note          string    `json:"note,omitempty"`
	Mode          LinkMode  `json:"mode"`
	CreatedAt     time.Time `json:"created_at"`

	// Set when the link was undone; reverted links are kept for history
	RevertedAt *time.Time `json:"reverted_at,omitempty"`
}

// Confidence returns the score as the stored 0-1 fraction.
func (l Link) Confidence() float64 {
	return float64(l.Score) / 100
}
