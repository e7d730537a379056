package dto

import (
	"time"

	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// TransactionListResponse is returned when listing transactions.
type TransactionListResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Count        int                 `json:"count"`
}

// ExpenseListResponse is returned when listing expenses.
type ExpenseListResponse struct {
	Expenses []model.Expense `json:"expenses"`
	Count    int             `json:"count"`
}

// ImportResponse is returned by the import endpoints.
type ImportResponse struct {
	Saved       int                      `json:"saved"`
	Categorized int                      `json:"categorized"`
	Rejected    []*model.ValidationError `json:"rejected"`
}

// NewImportResponse converts a service import result.
func NewImportResponse(r *reconcile.ImportResult) ImportResponse {
	resp := ImportResponse{Rejected: []*model.ValidationError{}}
	if r == nil {
		return resp
	}
	resp.Saved = r.Saved
	resp.Categorized = r.Categorized
	if r.Rejected != nil {
		resp.Rejected = r.Rejected
	}
	return resp
}

// CandidateResponse is a policy-tagged candidate.
type CandidateResponse struct {
	TransactionID string   `json:"transaction_id"`
	ExpenseID     string   `json:"expense_id"`
	Score         int      `json:"score"`
	Reasons       []string `json:"reasons"`
	AutoMatch     bool     `json:"auto_match"`
}

// CandidateListResponse is returned by GET /api/candidates.
type CandidateListResponse struct {
	Candidates    []CandidateResponse      `json:"candidates"`
	Count         int                      `json:"count"`
	AutoCount     int                      `json:"auto_count"`
	MinScore      int                      `json:"min_score"`
	AutoThreshold int                      `json:"auto_threshold"`
	Rejected      []*model.ValidationError `json:"rejected,omitempty"`
}

// NewCandidateListResponse converts service suggestions.
func NewCandidateListResponse(s *reconcile.Suggestions) CandidateListResponse {
	resp := CandidateListResponse{
		Candidates:    make([]CandidateResponse, 0, len(s.Candidates)),
		MinScore:      s.MinScore,
		AutoThreshold: s.AutoThreshold,
		Rejected:      s.Rejected,
	}
	for _, c := range s.Candidates {
		reasons := c.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		resp.Candidates = append(resp.Candidates, CandidateResponse{
			TransactionID: c.TransactionID,
			ExpenseID:     c.ExpenseID,
			Score:         c.Score,
			Reasons:       reasons,
			AutoMatch:     c.AutoMatch,
		})
		if c.AutoMatch {
			resp.AutoCount++
		}
	}
	resp.Count = len(resp.Candidates)
	return resp
}

// CommitReportResponse is the outcome of a synchronous auto-reconcile run.
type CommitReportResponse struct {
	RunID     string                   `json:"run_id"`
	Succeeded []model.Link             `json:"succeeded"`
	Failed    []reconcile.FailedCommit `json:"failed"`
	Skipped   []model.Pair             `json:"skipped,omitempty"`
	Manual    int                      `json:"manual_candidates"`
}

// NewCommitReportResponse converts an auto-reconcile result.
func NewCommitReportResponse(r *reconcile.AutoResult) CommitReportResponse {
	resp := CommitReportResponse{
		RunID:     r.RunID,
		Succeeded: []model.Link{},
		Failed:    []reconcile.FailedCommit{},
	}
	if r.Report == nil {
		return resp
	}
	if r.Report.Succeeded != nil {
		resp.Succeeded = r.Report.Succeeded
	}
	if r.Report.Failed != nil {
		resp.Failed = r.Report.Failed
	}
	resp.Skipped = r.Report.Skipped
	resp.Manual = len(r.Report.Manual)
	return resp
}

// ReconciliationListResponse lists committed links.
type ReconciliationListResponse struct {
	Reconciliations []model.Link `json:"reconciliations"`
	Count           int          `json:"count"`
}

// RunListResponse lists reconciliation runs.
type RunListResponse struct {
	Runs  []storage.Run `json:"runs"`
	Count int           `json:"count"`
}

// StartJobResponse is returned when a job is started.
type StartJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobListResponse lists auto-reconcile jobs.
type JobListResponse struct {
	Jobs  []service.Job `json:"jobs"`
	Count int           `json:"count"`
}
