package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/expense-reconciler/internal/api"
	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
	"github.com/eshaffer321/expense-reconciler/internal/infrastructure/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) (*api.Server, *storage.MockRepository) {
	t.Helper()
	repo := storage.NewMockRepository()
	return newServerWithRepo(t, repo), repo
}

func newSQLiteTestServer(t *testing.T) (*api.Server, *storage.Storage) {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "reconcile.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return newServerWithRepo(t, store), store
}

func newServerWithRepo(t *testing.T, repo storage.Repository) *api.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	engine, err := reconcile.NewEngine(repo, reconcile.DefaultConfig(), logger)
	require.NoError(t, err)
	svc := reconcile.NewService(repo, engine, logger)
	jobs := service.NewJobService(svc, logger)

	return api.NewServer(api.DefaultConfig(), repo, svc, jobs, logger)
}

func do(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// seedClearMatches imports t1/e1 and t2/e2 through the API. Each pair
// agrees on amount, supplier and invoice number.
func seedClearMatches(t *testing.T, server *api.Server) {
	t.Helper()
	rec := do(t, server, http.MethodPost, "/api/transactions", map[string]any{
		"transactions": []map[string]any{
			{"id": "t1", "date": "2024-03-10", "amount": "-120.00", "currency": "EUR", "description": "Fattura 4521 ACME Srl"},
			{"id": "t2", "date": "2024-03-10", "amount": "-89.90", "currency": "EUR", "description": "Fattura 7788 Beta Spa"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, server, http.MethodPost, "/api/expenses", map[string]any{
		"expenses": []map[string]any{
			{"id": "e1", "date": "2024-03-10", "amount": "120.00", "supplier_name": "ACME Srl", "description": "Fornitura materiali, fattura 4521", "approval_state": "approved"},
			{"id": "e2", "date": "2024-03-10", "amount": "89.90", "supplier_name": "Beta Spa", "description": "Servizi fattura 7788", "approval_state": "approved"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestServer_HealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := do(t, server, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	response := decode[dto.HealthResponse](t, rec)
	assert.Equal(t, "ok", response.Status)
}

func TestServer_ImportAndList(t *testing.T) {
	t.Run("import reports rejected records", func(t *testing.T) {
		server, repo := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/expenses", map[string]any{
			"expenses": []map[string]any{
				{"id": "e1", "date": "2024-03-10", "amount": "10.00", "approval_state": "approved"},
				{"id": "e2", "date": "2024-03-10", "amount": "-3.00"},
			},
		})

		require.Equal(t, http.StatusOK, rec.Code)
		response := decode[dto.ImportResponse](t, rec)
		assert.Equal(t, 1, response.Saved)
		require.Len(t, response.Rejected, 1)
		assert.Equal(t, "e2", response.Rejected[0].RecordID)

		_, err := repo.GetExpense(context.Background(), "e1")
		assert.NoError(t, err)
	})

	t.Run("zero amount is kept and absent amount is rejected", func(t *testing.T) {
		server, repo := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/expenses", map[string]any{
			"expenses": []map[string]any{
				{"id": "e1", "date": "2024-03-10", "amount": "0", "approval_state": "approved"},
				{"id": "e2", "date": "2024-03-10"},
			},
		})

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		response := decode[dto.ImportResponse](t, rec)
		assert.Equal(t, 1, response.Saved)
		require.Len(t, response.Rejected, 1)
		assert.Equal(t, "e2", response.Rejected[0].RecordID)
		assert.Equal(t, "amount", response.Rejected[0].Field)

		got, err := repo.GetExpense(context.Background(), "e1")
		require.NoError(t, err)
		assert.True(t, got.Amount.IsZero())
	})

	t.Run("malformed date is a bad request", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/transactions", map[string]any{
			"transactions": []map[string]any{{"id": "t1", "date": "10/03/2024", "amount": "-1"}},
		})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		response := decode[dto.APIError](t, rec)
		assert.Equal(t, dto.ErrCodeBadRequest, response.Code)
	})

	t.Run("list filters by reconciled state", func(t *testing.T) {
		server, _ := newTestServer(t)
		seedClearMatches(t, server)

		rec := do(t, server, http.MethodGet, "/api/transactions?reconciled=false", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode[dto.TransactionListResponse](t, rec).Count)

		rec = do(t, server, http.MethodGet, "/api/transactions?reconciled=true", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, decode[dto.TransactionListResponse](t, rec).Count)

		rec = do(t, server, http.MethodGet, "/api/expenses", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2, decode[dto.ExpenseListResponse](t, rec).Count)
	})
}

func TestServer_Candidates(t *testing.T) {
	t.Run("returns tagged candidates", func(t *testing.T) {
		server, repo := newTestServer(t)
		seedClearMatches(t, server)

		rec := do(t, server, http.MethodGet, "/api/candidates", nil)

		require.Equal(t, http.StatusOK, rec.Code)
		response := decode[dto.CandidateListResponse](t, rec)
		assert.Equal(t, 30, response.MinScore)
		assert.Equal(t, 70, response.AutoThreshold)
		assert.Equal(t, 2, response.AutoCount)
		require.Len(t, response.Candidates, 2)
		assert.Equal(t, "t1", response.Candidates[0].TransactionID)
		assert.Equal(t, "e1", response.Candidates[0].ExpenseID)
		assert.Equal(t, 100, response.Candidates[0].Score)
		assert.Zero(t, repo.CommitCalls, "suggesting never commits")
	})

	t.Run("invalid thresholds are rejected", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodGet, "/api/candidates?auto_threshold=150", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		response := decode[dto.APIError](t, rec)
		assert.Equal(t, dto.ErrCodeConfiguration, response.Code)
		assert.Equal(t, "auto_reconcile_threshold", response.Field)

		rec = do(t, server, http.MethodGet, "/api/candidates?min_score=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestServer_AutoReconcile(t *testing.T) {
	server, repo := newTestServer(t)
	seedClearMatches(t, server)

	rec := do(t, server, http.MethodPost, "/api/reconcile/auto", nil)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	response := decode[dto.CommitReportResponse](t, rec)
	assert.NotEmpty(t, response.RunID)
	assert.Len(t, response.Succeeded, 2)
	assert.Empty(t, response.Failed)

	tx, err := repo.GetTransaction(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, tx.Reconciled)
	assert.Equal(t, "e1", tx.ExpenseID)

	rec = do(t, server, http.MethodGet, "/api/runs/"+response.RunID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	run := decode[storage.Run](t, rec)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, storage.RunStatusCompleted, run.Status)

	rec = do(t, server, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[dto.RunListResponse](t, rec).Count)
}

func TestServer_ManualCommit(t *testing.T) {
	t.Run("commits and rejects a second claim", func(t *testing.T) {
		server, _ := newTestServer(t)
		seedClearMatches(t, server)

		rec := do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{
			TransactionID: "t1", ExpenseID: "e1", Note: "checked by hand",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		link := decode[model.Link](t, rec)
		assert.Equal(t, model.LinkModeManual, link.Mode)
		assert.Equal(t, "checked by hand", link.Note)

		rec = do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{
			TransactionID: "t2", ExpenseID: "e1",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, dto.ErrCodeConflict, decode[dto.APIError](t, rec).Code)

		rec = do(t, server, http.MethodGet, "/api/reconciliations/t1", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "e1", decode[model.Link](t, rec).ExpenseID)
	})

	t.Run("second claim on a stored expense is a conflict", func(t *testing.T) {
		server, store := newSQLiteTestServer(t)
		seedClearMatches(t, server)

		rec := do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{TransactionID: "t1", ExpenseID: "e1"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{TransactionID: "t2", ExpenseID: "e1"})
		assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
		response := decode[dto.APIError](t, rec)
		assert.Equal(t, dto.ErrCodeConflict, response.Code)
		assert.NotContains(t, response.Message, "UNIQUE")

		tx, err := store.GetTransaction(context.Background(), "t2")
		require.NoError(t, err)
		assert.False(t, tx.Reconciled)
	})

	t.Run("missing ids are a bad request", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/reconcile", map[string]string{"transaction_id": "t1"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown records are not found", func(t *testing.T) {
		server, _ := newTestServer(t)

		rec := do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{
			TransactionID: "nope", ExpenseID: "e1",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestServer_Revert(t *testing.T) {
	server, _ := newTestServer(t)
	seedClearMatches(t, server)

	rec := do(t, server, http.MethodPost, "/api/reconcile", dto.ReconcileRequest{TransactionID: "t1", ExpenseID: "e1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, server, http.MethodDelete, "/api/reconcile/t1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e1", decode[model.Link](t, rec).ExpenseID)

	rec = do(t, server, http.MethodDelete, "/api/reconcile/t1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "nothing left to undo")

	rec = do(t, server, http.MethodGet, "/api/reconciliations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	response := decode[dto.ReconciliationListResponse](t, rec)
	require.Equal(t, 1, response.Count)
	assert.NotNil(t, response.Reconciliations[0].RevertedAt)
}

func TestServer_Jobs(t *testing.T) {
	server, repo := newTestServer(t)
	seedClearMatches(t, server)

	rec := do(t, server, http.MethodPost, "/api/jobs/auto", dto.AutoReconcileRequest{})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	started := decode[dto.StartJobResponse](t, rec)
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		rec := do(t, server, http.MethodGet, "/api/jobs/"+started.JobID, nil)
		if rec.Code != http.StatusOK {
			return false
		}
		job := decode[service.Job](t, rec)
		return job.Status == service.StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	open := false
	txs, err := repo.ListTransactions(context.Background(), storage.TransactionFilters{Reconciled: &open})
	require.NoError(t, err)
	assert.Empty(t, txs)

	rec = do(t, server, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[dto.JobListResponse](t, rec).Count)

	rec = do(t, server, http.MethodDelete, "/api/jobs/"+started.JobID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "finished jobs cannot be cancelled")

	rec = do(t, server, http.MethodGet, "/api/jobs/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_JobRejectsBadThresholds(t *testing.T) {
	server, _ := newTestServer(t)
	minScore := 90

	rec := do(t, server, http.MethodPost, "/api/jobs/auto", dto.AutoReconcileRequest{MinScore: &minScore})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "min_score_threshold", decode[dto.APIError](t, rec).Field)
}
