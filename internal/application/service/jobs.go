// Package service runs auto-reconcile runs as background jobs that can be
// polled and cancelled.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eshaffer321/expense-reconciler/internal/application/reconcile"
)

// JobStatus represents the current state of a job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Job staleness thresholds
const (
	// DefaultJobStaleThreshold is how long a job can go without progress
	// updates before being considered stale.
	DefaultJobStaleThreshold = 30 * time.Minute

	// DefaultJobMaxDuration is the maximum time a job can run before being
	// marked as failed.
	DefaultJobMaxDuration = 2 * time.Hour
)

// ErrJobRunning is returned when an auto-reconcile job is already active.
var ErrJobRunning = errors.New("auto-reconcile already running")

// ErrJobNotFound is returned for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// ErrJobFinished is returned when cancelling a job that is no longer active.
var ErrJobFinished = errors.New("job already finished")

// AutoRunner runs one auto-reconcile pass. *reconcile.Service implements it.
type AutoRunner interface {
	AutoReconcile(ctx context.Context, opts reconcile.RunOptions) (*reconcile.AutoResult, error)
}

// JobRequest holds the thresholds for a job. Nil uses the configured value.
type JobRequest struct {
	MinScore      *int `json:"min_score,omitempty"`
	AutoThreshold *int `json:"auto_threshold,omitempty"`
}

// JobProgress holds real-time progress information.
type JobProgress struct {
	Phase      string    `json:"phase"` // "pending", "committing", "completed", "failed", "cancelled"
	Total      int       `json:"total"`
	Done       int       `json:"done"`
	LastUpdate time.Time `json:"last_update"`
}

// Job is a running or finished auto-reconcile job.
type Job struct {
	ID          string                `json:"id"`
	Status      JobStatus             `json:"status"`
	Request     JobRequest            `json:"request"`
	StartedAt   time.Time             `json:"started_at"`
	CompletedAt *time.Time            `json:"completed_at,omitempty"`
	Progress    JobProgress           `json:"progress"`
	Result      *reconcile.AutoResult `json:"result,omitempty"`
	Error       string                `json:"error,omitempty"`

	cancelFunc context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == StatusPending || j.Status == StatusRunning
}

// JobService manages auto-reconcile jobs. At most one job is active at a
// time, since concurrent runs would only fight over the same records.
type JobService struct {
	runner AutoRunner
	logger *slog.Logger

	jobs      map[string]*Job
	jobsMutex sync.RWMutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewJobService creates a new job service.
func NewJobService(runner AutoRunner, logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		runner: runner,
		logger: logger,
		jobs:   make(map[string]*Job),
	}
}

// StartAutoReconcile starts a job and returns its ID.
// The passed context is NOT the parent of the job: the job outlives the
// request that started it. Use CancelJob to stop it.
func (s *JobService) StartAutoReconcile(_ context.Context, req JobRequest) (string, error) {
	s.jobsMutex.Lock()
	for _, job := range s.jobs {
		if job.active() {
			s.jobsMutex.Unlock()
			return "", fmt.Errorf("%w: job %s", ErrJobRunning, job.ID)
		}
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Status:     StatusPending,
		Request:    req,
		StartedAt:  now,
		Progress:   JobProgress{Phase: "pending", LastUpdate: now},
		cancelFunc: cancel,
	}
	s.jobs[job.ID] = job
	s.jobsMutex.Unlock()

	go s.runJob(jobCtx, job.ID, req)

	s.logger.Info("auto-reconcile job started", "job_id", job.ID)
	return job.ID, nil
}

// GetJob returns a snapshot of a job.
func (s *JobService) GetJob(jobID string) (Job, error) {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	return *job, nil
}

// ListJobs returns snapshots of all jobs, newest first.
func (s *JobService) ListJobs(activeOnly bool) []Job {
	s.jobsMutex.RLock()
	defer s.jobsMutex.RUnlock()

	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if activeOnly && !job.active() {
			continue
		}
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
	return jobs
}

// CancelJob stops an active job. Commits made before the cancellation are
// kept; the job result lists the matches that were skipped.
func (s *JobService) CancelJob(jobID string) error {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
	}
	if !job.active() {
		return fmt.Errorf("%w: status=%s", ErrJobFinished, job.Status)
	}

	job.cancelFunc()
	now := time.Now()
	job.Status = StatusCancelled
	job.CompletedAt = &now
	job.Progress.Phase = "cancelled"
	job.Progress.LastUpdate = now

	s.logger.Info("auto-reconcile job cancelled", "job_id", jobID)
	return nil
}

// runJob executes the job in a background goroutine.
func (s *JobService) runJob(ctx context.Context, jobID string, req JobRequest) {
	s.update(jobID, func(job *Job) {
		if job.Status == StatusPending {
			job.Status = StatusRunning
		}
		job.Progress.Phase = "committing"
	})

	result, err := s.runner.AutoReconcile(ctx, reconcile.RunOptions{
		MinScore:      req.MinScore,
		AutoThreshold: req.AutoThreshold,
		Progress: func(done, total int) {
			s.update(jobID, func(job *Job) {
				job.Progress.Done = done
				job.Progress.Total = total
			})
		},
	})

	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	job, exists := s.jobs[jobID]
	if !exists {
		return
	}
	job.Result = result
	now := time.Now()
	job.Progress.LastUpdate = now

	// Cancelled and stale jobs keep their status, but record what was done
	if !job.active() {
		return
	}

	job.CompletedAt = &now
	if err != nil {
		job.Status = StatusFailed
		job.Error = err.Error()
		job.Progress.Phase = "failed"
		s.logger.Error("auto-reconcile job failed", "job_id", jobID, "error", err)
		return
	}

	job.Status = StatusCompleted
	job.Progress.Phase = "completed"
	s.logger.Info("auto-reconcile job completed",
		"job_id", jobID,
		"succeeded", len(result.Report.Succeeded),
		"failed", len(result.Report.Failed),
	)
}

// update applies fn to a job under the lock and bumps its progress time.
func (s *JobService) update(jobID string, fn func(job *Job)) {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	if job, exists := s.jobs[jobID]; exists {
		fn(job)
		job.Progress.LastUpdate = time.Now()
	}
}

// CleanupOldJobs removes finished jobs older than maxAge.
func (s *JobService) CleanupOldJobs(maxAge time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.active() {
			continue
		}
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old jobs", "removed", removed)
	}
	return removed
}

// MarkStaleJobsAsFailed fails active jobs that ran longer than maxDuration
// or reported no progress for staleThreshold, cancelling their context.
func (s *JobService) MarkStaleJobsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.jobsMutex.Lock()
	defer s.jobsMutex.Unlock()

	now := time.Now()
	marked := 0
	for id, job := range s.jobs {
		if !job.active() {
			continue
		}

		reason := ""
		switch {
		case now.Sub(job.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		case now.Sub(job.Progress.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress update for %v", now.Sub(job.Progress.LastUpdate).Round(time.Second))
		default:
			continue
		}

		if job.cancelFunc != nil {
			job.cancelFunc()
		}
		job.Status = StatusFailed
		job.CompletedAt = &now
		job.Error = "job marked as stale: " + reason
		job.Progress.Phase = "failed"
		job.Progress.LastUpdate = now

		s.logger.Warn("marked stale job as failed", "job_id", id, "reason", reason)
		marked++
	}
	return marked
}

// StartBackgroundCleanup periodically fails stale jobs and drops jobs
// finished more than a day ago. Call StopBackgroundCleanup to stop it.
func (s *JobService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if n := s.MarkStaleJobsAsFailed(DefaultJobStaleThreshold, DefaultJobMaxDuration); n > 0 {
					s.logger.Info("marked stale jobs as failed", "count", n)
				}
				s.CleanupOldJobs(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it.
func (s *JobService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}
