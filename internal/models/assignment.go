package models

import (
	"time"

	"github.com/google/uuid"
)

type Assignment struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	ClassID          uuid.UUID  `json:"class_id"`
	Title            string     `json:"title"`
	AssignmentType   string     `json:"assignment_type"`
	DueAt            *time.Time `json:"due_at"`
	EstimatedMinutes *int       `json:"estimated_minutes"`
	Difficulty       *int       `json:"difficulty"` // 1-10
	IsGraded         bool       `json:"is_graded"`
	Grade            *float64   `json:"grade"` // 0-100
	IsCompleted      bool       `json:"is_completed"`
	FinishedAt       *time.Time `json:"finished_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AssignmentEstimate is the estimator's answer for one assignment.
// Persisted is true when the values were written back.
type AssignmentEstimate struct {
	AssignmentID     uuid.UUID `json:"assignment_id"`
	EstimatedMinutes int       `json:"estimated_minutes"`
	Difficulty       int       `json:"difficulty"`
	HistorySize      int       `json:"history_size"`
	FromHistory      bool      `json:"from_history"`
	Persisted        bool      `json:"persisted"`
}

// BackfillResult summarises an estimate-backfill run.
type BackfillResult struct {
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}
