package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/expense-reconciler/internal/api/dto"
	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/expense-reconciler/internal/application/service"
	"github.com/eshaffer321/expense-reconciler/internal/domain/model"
)

// JobsHandler runs auto-reconcile passes in the background.
type JobsHandler struct {
	*Base
	jobs     *service.JobService
	defaults reconcile.Config
}

// NewJobsHandler creates a new jobs handler.
// defaults supplies the thresholds used when a request omits them.
func NewJobsHandler(jobs *service.JobService, defaults reconcile.Config, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		Base:     NewBase(logger),
		jobs:     jobs,
		defaults: defaults,
	}
}

// Start handles POST /api/jobs/auto
func (h *JobsHandler) Start(c *gin.Context) {
	var req dto.AutoReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid request body"))
			return
		}
	}

	// Reject bad thresholds now rather than in a failed job
	minScore, autoThreshold := h.defaults.MinScore, h.defaults.AutoThreshold
	if req.MinScore != nil {
		minScore = *req.MinScore
	}
	if req.AutoThreshold != nil {
		autoThreshold = *req.AutoThreshold
	}
	if err := model.ValidateThresholds(minScore, autoThreshold); err != nil {
		h.WriteDomainError(c, err)
		return
	}

	jobID, err := h.jobs.StartAutoReconcile(c.Request.Context(), service.JobRequest{
		MinScore:      req.MinScore,
		AutoThreshold: req.AutoThreshold,
	})
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.StartJobResponse{JobID: jobID, Status: string(service.StatusPending)})
}

// List handles GET /api/jobs
// Query: active=true to list only running jobs
func (h *JobsHandler) List(c *gin.Context) {
	activeOnly := false
	if active := ParseBoolParam(c, "active"); active != nil {
		activeOnly = *active
	}
	jobs := h.jobs.ListJobs(activeOnly)
	c.JSON(http.StatusOK, dto.JobListResponse{Jobs: jobs, Count: len(jobs)})
}

// Get handles GET /api/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	job, err := h.jobs.GetJob(c.Param("id"))
	if err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// Cancel handles DELETE /api/jobs/:id
func (h *JobsHandler) Cancel(c *gin.Context) {
	if err := h.jobs.CancelJob(c.Param("id")); err != nil {
		h.WriteDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": c.Param("id"), "status": string(service.StatusCancelled)})
}
