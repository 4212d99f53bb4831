package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplan-backend/internal/models"
)

type AssignmentRepo struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) *AssignmentRepo {
	return &AssignmentRepo{pool: pool}
}

const assignmentColumns = `id, user_id, class_id, title, assignment_type, due_at, estimated_minutes,
	difficulty, is_graded, grade, is_completed, finished_at, created_at`

func scanAssignment(row scanner) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.ClassID, &a.Title, &a.AssignmentType, &a.DueAt, &a.EstimatedMinutes,
		&a.Difficulty, &a.IsGraded, &a.Grade, &a.IsCompleted, &a.FinishedAt, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.DueAt = utcPtr(a.DueAt)
	a.FinishedAt = utcPtr(a.FinishedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, nil
}

func (r *AssignmentRepo) GetAssignment(ctx context.Context, userID, assignmentID uuid.UUID) (*models.Assignment, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE id = $1 AND user_id = $2",
		assignmentID, userID,
	)
	a, err := scanAssignment(row)
	if err != nil {
		return nil, translate(err)
	}
	return a, nil
}

func (r *AssignmentRepo) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.Assignment, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+assignmentColumns+" FROM assignments WHERE user_id = $1 ORDER BY created_at",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assignments := make([]*models.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// UpdateAssignmentEstimate fills in whichever of estimated_minutes and
// difficulty is still NULL. It reports false when both were already set.
func (r *AssignmentRepo) UpdateAssignmentEstimate(ctx context.Context, userID, assignmentID uuid.UUID, minutes, difficulty int) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET estimated_minutes = COALESCE(estimated_minutes, $3),
			difficulty = COALESCE(difficulty, $4)
		WHERE id = $1
		  AND user_id = $2
		  AND (estimated_minutes IS NULL OR difficulty IS NULL)`,
		assignmentID, userID, minutes, difficulty)
	if err != nil {
		return false, fmt.Errorf("update assignment estimate: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
