package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/analytics"
	"studyplan-backend/internal/models"
	"studyplan-backend/internal/repository"
)

// EstimateStore adds the single-assignment read and the estimate
// write-back to the analytics reads.
type EstimateStore interface {
	AnalyticsStore
	GetAssignment(ctx context.Context, userID, assignmentID uuid.UUID) (*models.Assignment, error)
	UpdateAssignmentEstimate(ctx context.Context, userID, assignmentID uuid.UUID, minutes, difficulty int) (bool, error)
}

type EstimateService struct {
	store EstimateStore
	cache CacheInvalidator
	now   func() time.Time
}

// NewEstimateService builds the estimator service. cache may be nil.
func NewEstimateService(store EstimateStore, cache CacheInvalidator) *EstimateService {
	return &EstimateService{
		store: store,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func estimateFor(d *studyData, a *models.Assignment) (*models.AssignmentEstimate, bool) {
	class, ok := d.classByID[a.ClassID]
	if !ok {
		return nil, false
	}

	history := buildHistory(d, a.ID)
	target := analytics.Descriptor{ClassType: class.ClassType, AssignmentType: a.AssignmentType, ClassID: class.ID}

	return &models.AssignmentEstimate{
		AssignmentID:     a.ID,
		EstimatedMinutes: analytics.EstimateMinutes(target, history),
		Difficulty:       analytics.EstimateDifficulty(target, history),
		HistorySize:      len(history),
		FromHistory:      len(history) >= analytics.MinHistoryForEstimate,
	}, true
}

// Estimate predicts minutes and difficulty for one assignment from the
// user's completed work. Nothing is written.
func (s *EstimateService) Estimate(ctx context.Context, userID, assignmentID uuid.UUID) (*models.AssignmentEstimate, error) {
	assignment, err := s.store.GetAssignment(ctx, userID, assignmentID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Assignment not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}

	d, err := loadStudyData(ctx, s.store, userID, s.now())
	if err != nil {
		return nil, err
	}

	estimate, ok := estimateFor(d, assignment)
	if !ok {
		return nil, &NotFoundError{Message: "Class not found"}
	}
	return estimate, nil
}

// Backfill fills in missing estimated minutes and difficulty on the
// user's incomplete assignments. Values already set are kept.
func (s *EstimateService) Backfill(ctx context.Context, userID uuid.UUID) (*models.BackfillResult, error) {
	d, err := loadStudyData(ctx, s.store, userID, s.now())
	if err != nil {
		return nil, err
	}

	result := &models.BackfillResult{}
	for _, a := range d.incomplete() {
		if a.EstimatedMinutes != nil && a.Difficulty != nil {
			continue
		}
		estimate, ok := estimateFor(d, a)
		if !ok {
			result.Skipped++
			continue
		}

		updated, err := s.store.UpdateAssignmentEstimate(ctx, userID, a.ID, estimate.EstimatedMinutes, estimate.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("failed to store estimate for %s: %w", a.ID, err)
		}
		if updated {
			result.Updated++
		} else {
			result.Skipped++
		}
	}

	if result.Updated > 0 && s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.Printf("Failed to invalidate chart cache for user %s: %v", userID, err)
		}
	}
	return result, nil
}
