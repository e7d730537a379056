package storage

import "time"

// TransactionFilters defines filters for listing transactions
type TransactionFilters struct {
	Reconciled *bool  // nil = both
	ProjectID  string // empty = all
	Limit      int    // 0 = no limit
}

// ExpenseFilters defines filters for listing expenses
type ExpenseFilters struct {
	Linked *bool // nil = both
	Limit  int   // 0 = no limit
}

// Run status values
const (
	RunStatusRunning             = "running"
	RunStatusCompleted           = "completed"
	RunStatusCompletedWithErrors = "completed_with_errors"
)

// RunParams describes a run being started
type RunParams struct {
	Mode          string `json:"mode"` // "auto" for now
	MinScore      int    `json:"min_score"`
	AutoThreshold int    `json:"auto_threshold"`
}

// RunCounts is the outcome of a run
type RunCounts struct {
	Candidates  int `json:"candidates"`
	AutoMatched int `json:"auto_matched"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	Rejected    int `json:"rejected"`
}

// Run represents a reconciliation run record
type Run struct {
	ID string `json:"id"`
	RunParams
	RunCounts
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
}

// runStatus derives the final status from the counts
func runStatus(counts RunCounts) string {
	if counts.Failed > 0 {
		return RunStatusCompletedWithErrors
	}
	return RunStatusCompleted
}

// timeFormat is fixed width so that text columns sort chronologically
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}
