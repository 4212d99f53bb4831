package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/models"
)

type estimator interface {
	Estimate(ctx context.Context, userID, assignmentID uuid.UUID) (*models.AssignmentEstimate, error)
}

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// jobQueue hands a created job to the worker pool.
type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type EstimateHandler struct {
	estimates estimator
	jobs      jobStore
	queue     jobQueue
}

func NewEstimateHandler(estimates estimator, jobs jobStore, queue jobQueue) *EstimateHandler {
	return &EstimateHandler{estimates: estimates, jobs: jobs, queue: queue}
}

func (h *EstimateHandler) Get(w http.ResponseWriter, r *http.Request) {
	assignmentID, ok := urlID(w, r, "id", "assignment ID")
	if !ok {
		return
	}

	estimate, err := h.estimates.Estimate(r.Context(), middleware.GetUserID(r.Context()), assignmentID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"estimate": estimate})
}

// Backfill queues an estimate-backfill job and answers 202 with its id.
// Progress arrives over the websocket as estimates_updated or job_failed.
func (h *EstimateHandler) Backfill(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeEstimateBackfill,
		ReferenceID: userID,
	}
	if err := h.jobs.Create(r.Context(), job); err != nil {
		log.Printf("failed to create estimate-backfill job for user %s: %v", userID, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to create job", r))
		return
	}

	if h.queue == nil {
		_ = h.jobs.UpdateStatus(r.Context(), job.ID, models.JobStatusFailed)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Estimate queue is unavailable", r))
		return
	}

	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		log.Printf("failed to enqueue estimate-backfill job %s: %v", job.ID, err)
		_ = h.jobs.UpdateStatus(r.Context(), job.ID, models.JobStatusFailed)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to enqueue estimate job", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}
