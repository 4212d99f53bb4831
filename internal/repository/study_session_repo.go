package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplan-backend/internal/models"
)

type StudySessionRepo struct {
	pool *pgxpool.Pool
}

func NewStudySessionRepo(pool *pgxpool.Pool) *StudySessionRepo {
	return &StudySessionRepo{pool: pool}
}

const sessionColumns = `id, user_id, class_id, assignment_id, title, session_type, planned_minutes,
	duration_minutes, started_at, ended_at, cancelled_at, is_active, is_completed, created_at`

func scanSession(row scanner) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.ClassID, &s.AssignmentID, &s.Title, &s.SessionType, &s.PlannedMinutes,
		&s.DurationMinutes, &s.StartedAt, &s.EndedAt, &s.CancelledAt, &s.IsActive, &s.IsCompleted, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.StartedAt = s.StartedAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.EndedAt = utcPtr(s.EndedAt)
	s.CancelledAt = utcPtr(s.CancelledAt)
	return s, nil
}

func collectSessions(rows pgx.Rows) ([]*models.StudySession, error) {
	defer rows.Close()

	sessions := make([]*models.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// lockUser serialises session writes for one user until tx ends.
func lockUser(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0))", userID)
	return err
}

func hasActiveSession(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM study_sessions
			WHERE user_id = $1 AND is_active = TRUE AND cancelled_at IS NULL
		)`, userID).Scan(&exists)
	return exists, err
}

// CreateSession inserts s unless the user already has an active session.
// The check and the insert run under a per-user advisory lock; the partial
// unique index backs it up.
func (r *StudySessionRepo) CreateSession(ctx context.Context, s *models.StudySession) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create session: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockUser(ctx, tx, s.UserID); err != nil {
		return fmt.Errorf("lock user sessions: %w", err)
	}

	active, err := hasActiveSession(ctx, tx, s.UserID)
	if err != nil {
		return fmt.Errorf("check active session: %w", err)
	}
	if active {
		return ErrActiveSessionExists
	}

	s.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO study_sessions (id, user_id, class_id, assignment_id, title, session_type,
			planned_minutes, started_at, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		s.ID, s.UserID, s.ClassID, s.AssignmentID, s.Title, s.SessionType,
		s.PlannedMinutes, s.StartedAt, s.IsActive,
	).Scan(&s.CreatedAt)
	if err != nil {
		if isActiveSessionViolation(err) {
			return ErrActiveSessionExists
		}
		return fmt.Errorf("insert session: %w", err)
	}
	s.CreatedAt = s.CreatedAt.UTC()

	return tx.Commit(ctx)
}

func (r *StudySessionRepo) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+sessionColumns+" FROM study_sessions WHERE id = $1 AND user_id = $2",
		sessionID, userID,
	)
	s, err := scanSession(row)
	if err != nil {
		return nil, translate(err)
	}
	return s, nil
}

// ListActiveSessions returns at most two rows so callers can detect a
// broken single-active invariant without loading everything.
func (r *StudySessionRepo) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1 AND is_active = TRUE AND cancelled_at IS NULL
		ORDER BY started_at
		LIMIT 2`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

// GetDueScheduledSession returns the earliest scheduled session whose start
// has passed, or nil.
func (r *StudySessionRepo) GetDueScheduledSession(ctx context.Context, userID uuid.UUID, now time.Time) (*models.StudySession, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		  AND is_active = FALSE
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL
		  AND started_at <= $2
		ORDER BY started_at ASC
		LIMIT 1`, userID, now)
	s, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSessionsComingDue returns scheduled sessions, for every user, whose
// planned start falls in (after, upTo].
func (r *StudySessionRepo) ListSessionsComingDue(ctx context.Context, after, upTo time.Time) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE is_active = FALSE
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL
		  AND started_at > $1
		  AND started_at <= $2
		ORDER BY started_at ASC`, after, upTo)
	if err != nil {
		return nil, fmt.Errorf("list sessions coming due: %w", err)
	}
	return collectSessions(rows)
}

func (r *StudySessionRepo) ActivateSession(ctx context.Context, userID, sessionID uuid.UUID, startedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin activate session: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockUser(ctx, tx, userID); err != nil {
		return fmt.Errorf("lock user sessions: %w", err)
	}

	active, err := hasActiveSession(ctx, tx, userID)
	if err != nil {
		return fmt.Errorf("check active session: %w", err)
	}
	if active {
		return ErrActiveSessionExists
	}

	tag, err := tx.Exec(ctx, `
		UPDATE study_sessions
		SET is_active = TRUE, started_at = $3
		WHERE id = $1
		  AND user_id = $2
		  AND is_active = FALSE
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL`,
		sessionID, userID, startedAt)
	if err != nil {
		if isActiveSessionViolation(err) {
			return ErrActiveSessionExists
		}
		return fmt.Errorf("activate session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}

	return tx.Commit(ctx)
}

func (r *StudySessionRepo) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, endedAt time.Time, durationMinutes int) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET is_active = FALSE,
			is_completed = TRUE,
			ended_at = $3,
			duration_minutes = $4
		WHERE id = $1
		  AND user_id = $2
		  AND is_active = TRUE
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL`,
		sessionID, userID, endedAt, durationMinutes)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *StudySessionRepo) CancelSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET cancelled_at = $3, is_active = FALSE
		WHERE id = $1
		  AND user_id = $2
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL`,
		sessionID, userID, at)
	if err != nil {
		return fmt.Errorf("cancel session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *StudySessionRepo) RescheduleSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sessions
		SET started_at = $3
		WHERE id = $1
		  AND user_id = $2
		  AND is_active = FALSE
		  AND is_completed = FALSE
		  AND cancelled_at IS NULL`,
		sessionID, userID, at)
	if err != nil {
		return fmt.Errorf("reschedule session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleSession
	}
	return nil
}

func (r *StudySessionRepo) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}

func (r *StudySessionRepo) ListCompletedSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		  AND is_completed = TRUE
		  AND cancelled_at IS NULL
		ORDER BY started_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	return collectSessions(rows)
}
