package handlers

import (
	"context"
	"log"
	"net/http"

	"github.com/google/uuid"

	"studyplan-backend/internal/middleware"
	"studyplan-backend/internal/models"
)

type preferencesStore interface {
	Get(ctx context.Context, userID uuid.UUID, page string, dst interface{}) (bool, error)
	Save(ctx context.Context, userID uuid.UUID, page string, prefs interface{}) error
}

type PreferencesHandler struct {
	prefs preferencesStore
}

func NewPreferencesHandler(prefs preferencesStore) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs}
}

type validatable interface {
	Validate() map[string]string
}

func (h *PreferencesHandler) GetClasses(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultClassViewPreferences()
	h.get(w, r, models.PreferencePageClasses, &prefs)
}

func (h *PreferencesHandler) UpdateClasses(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultClassViewPreferences()
	h.update(w, r, models.PreferencePageClasses, &prefs, func() validatable { return prefs })
}

func (h *PreferencesHandler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultAssignmentViewPreferences()
	h.get(w, r, models.PreferencePageAssignments, &prefs)
}

func (h *PreferencesHandler) UpdateAssignments(w http.ResponseWriter, r *http.Request) {
	prefs := models.DefaultAssignmentViewPreferences()
	h.update(w, r, models.PreferencePageAssignments, &prefs, func() validatable { return prefs })
}

// get answers with the stored document, or the defaults already in dst.
func (h *PreferencesHandler) get(w http.ResponseWriter, r *http.Request, page string, dst interface{}) {
	if _, err := h.prefs.Get(r.Context(), middleware.GetUserID(r.Context()), page, dst); err != nil {
		log.Printf("failed to load %s preferences: %v", page, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load preferences", r))
		return
	}
	writeJSON(w, http.StatusOK, dst)
}

// update overlays the request body on the current document so omitted
// fields keep their value. current reads dst after decoding.
func (h *PreferencesHandler) update(w http.ResponseWriter, r *http.Request, page string, dst interface{}, current func() validatable) {
	userID := middleware.GetUserID(r.Context())

	if _, err := h.prefs.Get(r.Context(), userID, page, dst); err != nil {
		log.Printf("failed to load %s preferences: %v", page, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to load preferences", r))
		return
	}

	if err := decodeStrict(r, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	if fields := current().Validate(); fields != nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed", fields, r))
		return
	}

	if err := h.prefs.Save(r.Context(), userID, page, dst); err != nil {
		log.Printf("failed to save %s preferences: %v", page, err)
		writeJSON(w, http.StatusInternalServerError, errorResp("INTERNAL_ERROR", "Failed to save preferences", r))
		return
	}

	writeJSON(w, http.StatusOK, dst)
}
