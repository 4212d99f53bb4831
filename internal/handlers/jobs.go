package handlers

import (
	"errors"
	"net/http"

	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/repository"
)

type JobHandler struct {
	jobs jobStore
}

func NewJobHandler(jobs jobStore) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := urlID(w, r, "id", "job ID")
	if !ok {
		return
	}

	job, err := h.jobs.GetForUser(r.Context(), middleware.GetUserID(r.Context()), jobID)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Job not found", r))
		return
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, job)
}
