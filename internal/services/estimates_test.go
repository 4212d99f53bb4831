package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/models"
)

// seedHomeworkHistory adds n completed homework assignments, each with one
// linked study session of the given length.
func seedHomeworkHistory(store *memoryStore, userID uuid.UUID, class *models.Class, n, minutes, difficulty int) {
	for i := 0; i < n; i++ {
		finished := testNow.AddDate(0, 0, -7*(i+1))
		a := store.addAssignment(&models.Assignment{
			UserID: userID, ClassID: class.ID, Title: "Homework", AssignmentType: analytics.AssignmentHomework,
			IsCompleted: true, FinishedAt: &finished, Difficulty: intPtr(difficulty), CreatedAt: finished,
		})
		store.addSession(&models.StudySession{
			UserID: userID, ClassID: class.ID, AssignmentID: &a.ID, Title: "Homework", IsCompleted: true,
			StartedAt: finished.Add(-3 * time.Hour), DurationMinutes: intPtr(minutes),
		})
	}
}

func newTestEstimates(store *memoryStore, cache CacheInvalidator) *EstimateService {
	svc := NewEstimateService(store, cache)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestEstimateBlendsHistory(t *testing.T) {
	store := newMemoryStore()
	userID := uuid.New()
	class := store.addClass(userID, "Calculus", "math")
	seedHomeworkHistory(store, userID, class, analytics.MinHistoryForEstimate, 120, 5)

	target := store.addAssignment(&models.Assignment{
		UserID: userID, ClassID: class.ID, Title: "Next set", AssignmentType: analytics.AssignmentHomework,
	})

	estimate, err := newTestEstimates(store, nil).Estimate(context.Background(), userID, target.ID)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if !estimate.FromHistory || estimate.HistorySize != analytics.MinHistoryForEstimate {
		t.Errorf("history: from=%v size=%d", estimate.FromHistory, estimate.HistorySize)
	}
	// 0.35*75 + 0.65*120 and 0.4*3 + 0.6*5.
	if estimate.EstimatedMinutes != 104 {
		t.Errorf("minutes = %d, want 104", estimate.EstimatedMinutes)
	}
	if estimate.Difficulty != 4 {
		t.Errorf("difficulty = %d, want 4", estimate.Difficulty)
	}
}

func TestEstimateFallsBackToBaseValues(t *testing.T) {
	store := newMemoryStore()
	userID := uuid.New()
	class := store.addClass(userID, "Calculus", "math")
	seedHomeworkHistory(store, userID, class, analytics.MinHistoryForEstimate-1, 120, 5)

	target := store.addAssignment(&models.Assignment{
		UserID: userID, ClassID: class.ID, Title: "Midterm", AssignmentType: analytics.AssignmentExam,
	})

	estimate, err := newTestEstimates(store, nil).Estimate(context.Background(), userID, target.ID)
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if estimate.FromHistory {
		t.Errorf("expected base values with short history")
	}
	if estimate.EstimatedMinutes != analytics.BaseMinutes(analytics.AssignmentExam) ||
		estimate.Difficulty != analytics.BaseDifficulty(analytics.AssignmentExam) {
		t.Errorf("got %d minutes, difficulty %d", estimate.EstimatedMinutes, estimate.Difficulty)
	}
}

func TestEstimateUnknownAssignment(t *testing.T) {
	_, err := newTestEstimates(newMemoryStore(), nil).Estimate(context.Background(), uuid.New(), uuid.New())
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestBackfillFillsOnlyMissingValues(t *testing.T) {
	store := newMemoryStore()
	userID := uuid.New()
	class := store.addClass(userID, "Calculus", "math")
	seedHomeworkHistory(store, userID, class, analytics.MinHistoryForEstimate, 120, 5)

	blank := store.addAssignment(&models.Assignment{
		UserID: userID, ClassID: class.ID, Title: "Blank", AssignmentType: analytics.AssignmentHomework,
	})
	partial := store.addAssignment(&models.Assignment{
		UserID: userID, ClassID: class.ID, Title: "Partial", AssignmentType: analytics.AssignmentHomework,
		EstimatedMinutes: intPtr(30),
	})
	store.addAssignment(&models.Assignment{
		UserID: userID, ClassID: class.ID, Title: "Full", AssignmentType: analytics.AssignmentHomework,
		EstimatedMinutes: intPtr(30), Difficulty: intPtr(2),
	})

	cache := &countingInvalidator{}
	result, err := newTestEstimates(store, cache).Backfill(context.Background(), userID)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if result.Updated != 2 || result.Skipped != 0 {
		t.Fatalf("result = %+v, want 2 updated", result)
	}
	if cache.calls != 1 {
		t.Errorf("expected one cache invalidation, got %d", cache.calls)
	}

	got, _ := store.GetAssignment(context.Background(), userID, blank.ID)
	if got.EstimatedMinutes == nil || *got.EstimatedMinutes != 104 || got.Difficulty == nil || *got.Difficulty != 4 {
		t.Errorf("blank: minutes %v difficulty %v", got.EstimatedMinutes, got.Difficulty)
	}
	got, _ = store.GetAssignment(context.Background(), userID, partial.ID)
	if *got.EstimatedMinutes != 30 || got.Difficulty == nil {
		t.Errorf("partial: minutes %v difficulty %v", *got.EstimatedMinutes, got.Difficulty)
	}

	// A second run has nothing left to fill.
	result, err = newTestEstimates(store, cache).Backfill(context.Background(), userID)
	if err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if result.Updated != 0 || cache.calls != 1 {
		t.Errorf("second run: %+v, cache calls %d", result, cache.calls)
	}
}
