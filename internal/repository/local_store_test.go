package repository

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/database"
	"studyplan-backend/internal/models"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "studyplan.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewLocalStore(db)
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedClass(t *testing.T, store *LocalStore, userID uuid.UUID) *models.Class {
	t.Helper()

	class := &models.Class{UserID: userID, Name: "Calculus", ClassType: "math"}
	if err := store.CreateClass(context.Background(), class); err != nil {
		t.Fatalf("create class: %v", err)
	}
	return class
}

func TestLocalStoreConcurrentStartsYieldOneActive(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	userID := uuid.New()
	class := seedClass(t, store, userID)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.CreateSession(ctx, &models.StudySession{
				UserID:    userID,
				ClassID:   class.ID,
				Title:     "Practice set",
				StartedAt: time.Now().UTC(),
				IsActive:  true,
			})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrActiveSessionExists):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, succeeded, conflicts)
	}

	active, err := store.ListActiveSessions(ctx, userID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active session, got %d", len(active))
	}
}

func TestLocalStoreActiveSessionsAreScopedPerUser(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	for _, userID := range []uuid.UUID{uuid.New(), uuid.New()} {
		class := seedClass(t, store, userID)
		err := store.CreateSession(ctx, &models.StudySession{
			UserID: userID, ClassID: class.ID, Title: "Reading", StartedAt: time.Now().UTC(), IsActive: true,
		})
		if err != nil {
			t.Fatalf("user %s: %v", userID, err)
		}
	}
}

func TestLocalStoreSessionLifecycle(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	userID := uuid.New()
	class := seedClass(t, store, userID)
	now := time.Now().UTC().Truncate(time.Second)

	scheduled := &models.StudySession{
		UserID: userID, ClassID: class.ID, Title: "Review", StartedAt: now.Add(-time.Minute),
	}
	if err := store.CreateSession(ctx, scheduled); err != nil {
		t.Fatalf("create scheduled: %v", err)
	}

	due, err := store.GetDueScheduledSession(ctx, userID, now)
	if err != nil {
		t.Fatalf("due: %v", err)
	}
	if due == nil || due.ID != scheduled.ID {
		t.Fatalf("expected scheduled session to be due, got %+v", due)
	}

	if err := store.ActivateSession(ctx, userID, scheduled.ID, now); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if err := store.ActivateSession(ctx, userID, scheduled.ID, now); !errors.Is(err, ErrActiveSessionExists) {
		t.Fatalf("second activate: expected ErrActiveSessionExists, got %v", err)
	}

	end := now.Add(45 * time.Minute)
	if err := store.CompleteSession(ctx, userID, scheduled.ID, end, 45); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CompleteSession(ctx, userID, scheduled.ID, end, 45); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("second complete: expected ErrStaleSession, got %v", err)
	}
	if err := store.CancelSession(ctx, userID, scheduled.ID, end); !errors.Is(err, ErrStaleSession) {
		t.Fatalf("cancel completed: expected ErrStaleSession, got %v", err)
	}

	got, err := store.GetSession(ctx, userID, scheduled.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State() != models.SessionCompleted {
		t.Errorf("state = %v, want completed", got.State())
	}
	if got.DurationMinutes == nil || *got.DurationMinutes != 45 {
		t.Errorf("duration = %v, want 45", got.DurationMinutes)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(end) {
		t.Errorf("ended_at = %v, want %v", got.EndedAt, end)
	}

	completed, err := store.ListCompletedSessions(ctx, userID)
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(completed) != 1 {
		t.Errorf("expected 1 completed session, got %d", len(completed))
	}
}

func TestLocalStoreScheduledWhileActiveIsRejected(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	userID := uuid.New()
	class := seedClass(t, store, userID)
	now := time.Now().UTC()

	active := &models.StudySession{UserID: userID, ClassID: class.ID, Title: "Now", StartedAt: now, IsActive: true}
	if err := store.CreateSession(ctx, active); err != nil {
		t.Fatalf("create active: %v", err)
	}

	later := &models.StudySession{UserID: userID, ClassID: class.ID, Title: "Later", StartedAt: now.Add(time.Hour)}
	if err := store.CreateSession(ctx, later); !errors.Is(err, ErrActiveSessionExists) {
		t.Fatalf("expected ErrActiveSessionExists, got %v", err)
	}

	if err := store.CompleteSession(ctx, userID, active.ID, now.Add(30*time.Minute), 30); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := store.CreateSession(ctx, later); err != nil {
		t.Fatalf("schedule after completing: %v", err)
	}
}

func TestLocalStoreCancelledActiveFreesSlot(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	userID := uuid.New()
	class := seedClass(t, store, userID)
	now := time.Now().UTC()

	first := &models.StudySession{UserID: userID, ClassID: class.ID, Title: "A", StartedAt: now, IsActive: true}
	if err := store.CreateSession(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.CancelSession(ctx, userID, first.ID, now); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	second := &models.StudySession{UserID: userID, ClassID: class.ID, Title: "B", StartedAt: now, IsActive: true}
	if err := store.CreateSession(ctx, second); err != nil {
		t.Fatalf("create after cancel: %v", err)
	}
}

func TestLocalStoreGetMissing(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()

	if _, err := store.GetSession(ctx, uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetSession: expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetClass(ctx, uuid.New(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetClass: expected ErrNotFound, got %v", err)
	}

	due, err := store.GetDueScheduledSession(ctx, uuid.New(), time.Now())
	if err != nil || due != nil {
		t.Errorf("GetDueScheduledSession: expected nil, nil; got %v, %v", due, err)
	}
}

func TestLocalStoreUpdateAssignmentEstimateOnlyFillsGaps(t *testing.T) {
	store := newTestLocalStore(t)
	ctx := context.Background()
	userID := uuid.New()
	class := seedClass(t, store, userID)

	minutes := 90
	a := &models.Assignment{UserID: userID, ClassID: class.ID, Title: "Problem set", AssignmentType: "homework", EstimatedMinutes: &minutes}
	if err := store.CreateAssignment(ctx, a); err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	updated, err := store.UpdateAssignmentEstimate(ctx, userID, a.ID, 120, 4)
	if err != nil || !updated {
		t.Fatalf("first update: updated=%v err=%v", updated, err)
	}
	got, _ := store.GetAssignment(ctx, userID, a.ID)
	if *got.EstimatedMinutes != 90 {
		t.Errorf("estimated minutes overwritten: %d", *got.EstimatedMinutes)
	}
	if got.Difficulty == nil || *got.Difficulty != 4 {
		t.Errorf("difficulty = %v, want 4", got.Difficulty)
	}

	updated, err = store.UpdateAssignmentEstimate(ctx, userID, a.ID, 120, 4)
	if err != nil || updated {
		t.Fatalf("second update: updated=%v err=%v", updated, err)
	}
}
