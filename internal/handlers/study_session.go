package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/models"
)

// sessionLifecycle is the part of services.SessionService the handler
// drives.
type sessionLifecycle interface {
	Start(ctx context.Context, userID uuid.UUID, req models.StartSessionRequest) (*models.StudySession, error)
	Activate(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error)
	End(ctx context.Context, userID, sessionID uuid.UUID, endAt *time.Time) (*models.StudySession, error)
	Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error)
	Reschedule(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) (*models.StudySession, error)
	GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error)
	GetDueScheduled(ctx context.Context, userID uuid.UUID) (*models.StudySession, error)
	DetectCollision(ctx context.Context, userID uuid.UUID) (*models.SessionCollision, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

type StudySessionHandler struct {
	sessions sessionLifecycle
}

func NewStudySessionHandler(sessions sessionLifecycle) *StudySessionHandler {
	return &StudySessionHandler{sessions: sessions}
}

func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StartSessionRequest
	if err := decodeStrict(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	session, err := h.sessions.Start(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
	})
}

func (h *StudySessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit, err := queryInt(r, "limit")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid limit", r))
		return
	}

	sessions, err := h.sessions.List(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

func (h *StudySessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetActive(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Due(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetDueScheduled(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Collision(w http.ResponseWriter, r *http.Request) {
	collision, err := h.sessions.DetectCollision(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"collision": collision})
}

func (h *StudySessionHandler) Activate(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlID(w, r, "id", "session ID")
	if !ok {
		return
	}

	session, err := h.sessions.Activate(r.Context(), middleware.GetUserID(r.Context()), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

// End accepts an optional body with end_at.
func (h *StudySessionHandler) End(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlID(w, r, "id", "session ID")
	if !ok {
		return
	}

	var req models.EndSessionRequest
	if err := decodeStrict(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	session, err := h.sessions.End(r.Context(), middleware.GetUserID(r.Context()), sessionID, req.EndAt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlID(w, r, "id", "session ID")
	if !ok {
		return
	}

	session, err := h.sessions.Cancel(r.Context(), middleware.GetUserID(r.Context()), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

func (h *StudySessionHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := urlID(w, r, "id", "session ID")
	if !ok {
		return
	}

	var req models.RescheduleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ScheduledAt.IsZero() {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"scheduled_at": "A scheduled_at time is required"}, r))
		return
	}

	session, err := h.sessions.Reschedule(r.Context(), middleware.GetUserID(r.Context()), sessionID, req.ScheduledAt)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}
