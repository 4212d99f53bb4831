package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"studyplan-backend/internal/models"
)

// stubPreferences keeps documents as JSON so Get behaves like the
// database-backed store.
type stubPreferences struct {
	docs  map[string][]byte
	saved int
}

func newStubPreferences() *stubPreferences {
	return &stubPreferences{docs: make(map[string][]byte)}
}

func (s *stubPreferences) Get(ctx context.Context, userID uuid.UUID, page string, dst interface{}) (bool, error) {
	raw, ok := s.docs[userID.String()+"/"+page]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (s *stubPreferences) Save(ctx context.Context, userID uuid.UUID, page string, prefs interface{}) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	s.saved++
	s.docs[userID.String()+"/"+page] = raw
	return nil
}

func TestPreferencesHandler_DefaultsWhenUnset(t *testing.T) {
	h := NewPreferencesHandler(newStubPreferences())

	rr := httptest.NewRecorder()
	h.GetAssignments(rr, newRequest(http.MethodGet, "/", "", uuid.New()))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var got models.AssignmentViewPreferences
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SortBy != "due_date_soonest" || got.TableLayout != "single" {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestPreferencesHandler_UpdateMergesOntoStored(t *testing.T) {
	store := newStubPreferences()
	h := NewPreferencesHandler(store)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	h.UpdateClasses(rr, newRequest(http.MethodPut, "/", `{"sort_by":"grade_high_low"}`, userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("first update: expected status %d, got %d", http.StatusOK, rr.Code)
	}

	rr = httptest.NewRecorder()
	h.UpdateClasses(rr, newRequest(http.MethodPut, "/", `{"status_filter":"finished"}`, userID))
	if rr.Code != http.StatusOK {
		t.Fatalf("second update: expected status %d, got %d", http.StatusOK, rr.Code)
	}

	var got models.ClassViewPreferences
	if _, err := store.Get(context.Background(), userID, models.PreferencePageClasses, &got); err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SortBy != "grade_high_low" || got.StatusFilter != "finished" {
		t.Fatalf("expected merged preferences, got %+v", got)
	}
	if !got.FilterImportance.High {
		t.Fatalf("untouched fields should keep their defaults, got %+v", got.FilterImportance)
	}
}

func TestPreferencesHandler_UpdateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"bad sort", `{"sort_by":"random"}`, "sort_by"},
		{"bad layout", `{"table_layout":"kanban"}`, "table_layout"},
		{"bad type", `{"filter_assignment_types":["poem"]}`, "filter_assignment_types"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := newStubPreferences()
			h := NewPreferencesHandler(store)

			rr := httptest.NewRecorder()
			h.UpdateAssignments(rr, newRequest(http.MethodPut, "/", tc.body, uuid.New()))

			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
			}
			if _, ok := decodeError(t, rr).Fields[tc.field]; !ok {
				t.Fatalf("expected a %s field error", tc.field)
			}
			if store.saved != 0 {
				t.Fatalf("invalid preferences must not be saved")
			}
		})
	}
}

func TestPreferencesHandler_UpdateRejectsUnknownField(t *testing.T) {
	store := newStubPreferences()
	h := NewPreferencesHandler(store)

	rr := httptest.NewRecorder()
	h.UpdateClasses(rr, newRequest(http.MethodPut, "/", `{"theme":"dark"}`, uuid.New()))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if store.saved != 0 {
		t.Fatalf("nothing should be saved for an unknown field")
	}
}
