package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"studyplan-backend/internal/models"
)

// LocalStore is the SQLite-backed store used by the offline CLI. It
// exposes the same methods as Store.
type LocalStore struct {
	db *gorm.DB
}

type classRow struct {
	ID         string `gorm:"primaryKey"`
	UserID     string `gorm:"index;not null"`
	Name       string `gorm:"not null"`
	ClassType  string `gorm:"not null;default:other"`
	Code       string
	Color      *string
	Importance *string
	CreatedAt  time.Time
}

func (classRow) TableName() string { return "classes" }

type assignmentRow struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"index;not null"`
	ClassID          string `gorm:"index;not null"`
	Title            string `gorm:"not null"`
	AssignmentType   string `gorm:"not null;default:other"`
	DueAt            *time.Time
	EstimatedMinutes *int
	Difficulty       *int
	IsGraded         bool
	Grade            *float64
	IsCompleted      bool
	FinishedAt       *time.Time
	CreatedAt        time.Time
}

func (assignmentRow) TableName() string { return "assignments" }

type sessionRow struct {
	ID              string `gorm:"primaryKey"`
	UserID          string `gorm:"index;not null"`
	ClassID         string `gorm:"not null"`
	AssignmentID    *string
	Title           string `gorm:"not null"`
	SessionType     string `gorm:"not null;default:study"`
	PlannedMinutes  *int
	DurationMinutes *int
	StartedAt       time.Time `gorm:"not null"`
	EndedAt         *time.Time
	CancelledAt     *time.Time
	IsActive        bool
	IsCompleted     bool
	CreatedAt       time.Time
}

func (sessionRow) TableName() string { return "study_sessions" }

// NewLocalStore migrates the schema on db and returns the store.
func NewLocalStore(db *gorm.DB) (*LocalStore, error) {
	if err := db.AutoMigrate(&classRow{}, &assignmentRow{}, &sessionRow{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS ` + activeSessionIndex + `
		ON study_sessions(user_id) WHERE is_active AND cancelled_at IS NULL`).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create active session index: %w", err)
	}
	return &LocalStore{db: db}, nil
}

func (s *LocalStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func translateGorm(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func parseID(s string) uuid.UUID {
	id, _ := uuid.Parse(s)
	return id
}

func parseIDPtr(s *string) *uuid.UUID {
	if s == nil {
		return nil
	}
	id := parseID(*s)
	return &id
}

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func (r *classRow) toModel() *models.Class {
	return &models.Class{
		ID:         parseID(r.ID),
		UserID:     parseID(r.UserID),
		Name:       r.Name,
		ClassType:  r.ClassType,
		Code:       r.Code,
		Color:      r.Color,
		Importance: r.Importance,
		CreatedAt:  r.CreatedAt.UTC(),
	}
}

func (r *assignmentRow) toModel() *models.Assignment {
	return &models.Assignment{
		ID:               parseID(r.ID),
		UserID:           parseID(r.UserID),
		ClassID:          parseID(r.ClassID),
		Title:            r.Title,
		AssignmentType:   r.AssignmentType,
		DueAt:            utcPtr(r.DueAt),
		EstimatedMinutes: r.EstimatedMinutes,
		Difficulty:       r.Difficulty,
		IsGraded:         r.IsGraded,
		Grade:            r.Grade,
		IsCompleted:      r.IsCompleted,
		FinishedAt:       utcPtr(r.FinishedAt),
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

func (r *sessionRow) toModel() *models.StudySession {
	return &models.StudySession{
		ID:              parseID(r.ID),
		UserID:          parseID(r.UserID),
		ClassID:         parseID(r.ClassID),
		AssignmentID:    parseIDPtr(r.AssignmentID),
		Title:           r.Title,
		SessionType:     r.SessionType,
		PlannedMinutes:  r.PlannedMinutes,
		DurationMinutes: r.DurationMinutes,
		StartedAt:       r.StartedAt.UTC(),
		EndedAt:         utcPtr(r.EndedAt),
		CancelledAt:     utcPtr(r.CancelledAt),
		IsActive:        r.IsActive,
		IsCompleted:     r.IsCompleted,
		CreatedAt:       r.CreatedAt.UTC(),
	}
}

func sessionModels(rows []sessionRow) []*models.StudySession {
	out := make([]*models.StudySession, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out
}

// Classes

func (s *LocalStore) CreateClass(ctx context.Context, c *models.Class) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now().UTC()
	row := classRow{
		ID:         c.ID.String(),
		UserID:     c.UserID.String(),
		Name:       c.Name,
		ClassType:  c.ClassType,
		Code:       c.Code,
		Color:      c.Color,
		Importance: c.Importance,
		CreatedAt:  c.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

func (s *LocalStore) GetClass(ctx context.Context, userID, classID uuid.UUID) (*models.Class, error) {
	var row classRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", classID.String(), userID.String()).
		First(&row).Error
	if err != nil {
		return nil, translateGorm(err)
	}
	return row.toModel(), nil
}

func (s *LocalStore) ListClasses(ctx context.Context, userID uuid.UUID) ([]*models.Class, error) {
	var rows []classRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Class, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

// Assignments

func (s *LocalStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()
	row := assignmentRow{
		ID:               a.ID.String(),
		UserID:           a.UserID.String(),
		ClassID:          a.ClassID.String(),
		Title:            a.Title,
		AssignmentType:   a.AssignmentType,
		DueAt:            utcPtr(a.DueAt),
		EstimatedMinutes: a.EstimatedMinutes,
		Difficulty:       a.Difficulty,
		IsGraded:         a.IsGraded,
		Grade:            a.Grade,
		IsCompleted:      a.IsCompleted,
		FinishedAt:       utcPtr(a.FinishedAt),
		CreatedAt:        a.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (s *LocalStore) GetAssignment(ctx context.Context, userID, assignmentID uuid.UUID) (*models.Assignment, error) {
	var row assignmentRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", assignmentID.String(), userID.String()).
		First(&row).Error
	if err != nil {
		return nil, translateGorm(err)
	}
	return row.toModel(), nil
}

func (s *LocalStore) ListAssignments(ctx context.Context, userID uuid.UUID) ([]*models.Assignment, error) {
	var rows []assignmentRow
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID.String()).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*models.Assignment, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (s *LocalStore) UpdateAssignmentEstimate(ctx context.Context, userID, assignmentID uuid.UUID, minutes, difficulty int) (bool, error) {
	res := s.db.WithContext(ctx).Exec(`
		UPDATE assignments
		SET estimated_minutes = COALESCE(estimated_minutes, ?),
			difficulty = COALESCE(difficulty, ?)
		WHERE id = ? AND user_id = ?
		  AND (estimated_minutes IS NULL OR difficulty IS NULL)`,
		minutes, difficulty, assignmentID.String(), userID.String())
	if res.Error != nil {
		return false, fmt.Errorf("update assignment estimate: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Study sessions

func activeSessionExists(tx *gorm.DB, userID uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&sessionRow{}).
		Where("user_id = ? AND is_active = ? AND cancelled_at IS NULL", userID.String(), true).
		Count(&n).Error
	return n > 0, err
}

func (s *LocalStore) CreateSession(ctx context.Context, sess *models.StudySession) error {
	sess.ID = uuid.New()
	sess.CreatedAt = time.Now().UTC()
	row := sessionRow{
		ID:             sess.ID.String(),
		UserID:         sess.UserID.String(),
		ClassID:        sess.ClassID.String(),
		AssignmentID:   idPtr(sess.AssignmentID),
		Title:          sess.Title,
		SessionType:    sess.SessionType,
		PlannedMinutes: sess.PlannedMinutes,
		StartedAt:      sess.StartedAt.UTC(),
		IsActive:       sess.IsActive,
		CreatedAt:      sess.CreatedAt,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := activeSessionExists(tx, sess.UserID)
		if err != nil {
			return fmt.Errorf("check active session: %w", err)
		}
		if active {
			return ErrActiveSessionExists
		}
		if err := tx.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrActiveSessionExists
			}
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

func (s *LocalStore) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", sessionID.String(), userID.String()).
		First(&row).Error
	if err != nil {
		return nil, translateGorm(err)
	}
	return row.toModel(), nil
}

func (s *LocalStore) ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND cancelled_at IS NULL", userID.String(), true).
		Order("started_at").
		Limit(2).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return sessionModels(rows), nil
}

func (s *LocalStore) GetDueScheduledSession(ctx context.Context, userID uuid.UUID, now time.Time) (*models.StudySession, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND is_completed = ? AND cancelled_at IS NULL AND started_at <= ?",
			userID.String(), false, false, now.UTC()).
		Order("started_at ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toModel(), nil
}

// scheduledScope matches a session that has not started, finished or been
// cancelled.
func scheduledScope(tx *gorm.DB, userID, sessionID uuid.UUID) *gorm.DB {
	return tx.Model(&sessionRow{}).
		Where("id = ? AND user_id = ? AND is_active = ? AND is_completed = ? AND cancelled_at IS NULL",
			sessionID.String(), userID.String(), false, false)
}

func (s *LocalStore) ActivateSession(ctx context.Context, userID, sessionID uuid.UUID, startedAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		active, err := activeSessionExists(tx, userID)
		if err != nil {
			return fmt.Errorf("check active session: %w", err)
		}
		if active {
			return ErrActiveSessionExists
		}
		res := scheduledScope(tx, userID, sessionID).Updates(map[string]interface{}{
			"is_active":  true,
			"started_at": startedAt.UTC(),
		})
		if res.Error != nil {
			if isUniqueViolation(res.Error) {
				return ErrActiveSessionExists
			}
			return fmt.Errorf("activate session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStaleSession
		}
		return nil
	})
}

func (s *LocalStore) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, endedAt time.Time, durationMinutes int) error {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND user_id = ? AND is_active = ? AND is_completed = ? AND cancelled_at IS NULL",
			sessionID.String(), userID.String(), true, false).
		Updates(map[string]interface{}{
			"is_active":        false,
			"is_completed":     true,
			"ended_at":         endedAt.UTC(),
			"duration_minutes": durationMinutes,
		})
	if res.Error != nil {
		return fmt.Errorf("complete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

func (s *LocalStore) CancelSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND user_id = ? AND is_completed = ? AND cancelled_at IS NULL",
			sessionID.String(), userID.String(), false).
		Updates(map[string]interface{}{
			"is_active":    false,
			"cancelled_at": at.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("cancel session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

func (s *LocalStore) RescheduleSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	res := scheduledScope(s.db.WithContext(ctx), userID, sessionID).Update("started_at", at.UTC())
	if res.Error != nil {
		return fmt.Errorf("reschedule session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

func (s *LocalStore) ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID.String()).
		Order("started_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return sessionModels(rows), nil
}

func (s *LocalStore) ListCompletedSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_completed = ? AND cancelled_at IS NULL", userID.String(), true).
		Order("started_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return sessionModels(rows), nil
}
