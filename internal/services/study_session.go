package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/models"
	"studyplan-backend/internal/repository"
)

const (
	maxSessionTitleLength = 200
	maxSessionTypeLength  = 50
	maxPlannedMinutes     = 1440
	defaultSessionType    = "study"
	defaultSessionLimit   = 20
	maxSessionLimit       = 100
)

// SessionStore is the persistence the session lifecycle needs. Conditional
// writes report repository.ErrActiveSessionExists or
// repository.ErrStaleSession when their precondition no longer holds.
type SessionStore interface {
	GetClass(ctx context.Context, userID, classID uuid.UUID) (*models.Class, error)
	GetAssignment(ctx context.Context, userID, assignmentID uuid.UUID) (*models.Assignment, error)

	CreateSession(ctx context.Context, s *models.StudySession) error
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error)
	ListActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
	GetDueScheduledSession(ctx context.Context, userID uuid.UUID, now time.Time) (*models.StudySession, error)
	ActivateSession(ctx context.Context, userID, sessionID uuid.UUID, startedAt time.Time) error
	CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, endedAt time.Time, durationMinutes int) error
	CancelSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error
	RescheduleSession(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) error
	ListSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

// EventPublisher pushes a message to a user's live connections.
type EventPublisher interface {
	Publish(ctx context.Context, userID uuid.UUID, msg models.WSMessage) error
}

// CacheInvalidator drops a user's cached analytics.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

type SessionService struct {
	store     SessionStore
	publisher EventPublisher
	cache     CacheInvalidator
	now       func() time.Time
}

// NewSessionService wires the lifecycle to store. publisher and cache may
// be nil, as in the offline CLI.
func NewSessionService(store SessionStore, publisher EventPublisher, cache CacheInvalidator) *SessionService {
	return &SessionService{
		store:     store,
		publisher: publisher,
		cache:     cache,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func validateStartRequest(req *models.StartSessionRequest, now time.Time) map[string]string {
	fieldErrors := make(map[string]string)

	if req.ClassID == uuid.Nil {
		fieldErrors["class_id"] = "Class is required"
	}

	title := strings.TrimSpace(req.Title)
	switch {
	case title == "":
		fieldErrors["title"] = "Title is required"
	case len(title) > maxSessionTitleLength:
		fieldErrors["title"] = fmt.Sprintf("Title must be at most %d characters", maxSessionTitleLength)
	}

	if len(req.SessionType) > maxSessionTypeLength {
		fieldErrors["session_type"] = fmt.Sprintf("Session type must be at most %d characters", maxSessionTypeLength)
	}

	if req.PlannedMinutes != nil && (*req.PlannedMinutes < 1 || *req.PlannedMinutes > maxPlannedMinutes) {
		fieldErrors["planned_minutes"] = fmt.Sprintf("Planned minutes must be between 1 and %d", maxPlannedMinutes)
	}

	switch {
	case req.StartNow && req.ScheduledAt != nil:
		fieldErrors["scheduled_at"] = "Provide either start_now or scheduled_at, not both"
	case !req.StartNow && req.ScheduledAt == nil:
		fieldErrors["scheduled_at"] = "Provide start_now or a scheduled_at time"
	case req.ScheduledAt != nil && !req.ScheduledAt.After(now):
		fieldErrors["scheduled_at"] = "Scheduled time must be in the future"
	}

	return fieldErrors
}

// Start creates a session for the user, either active now or scheduled for
// later. A user may hold at most one active session; the check and the
// insert happen atomically in the store.
func (s *SessionService) Start(ctx context.Context, userID uuid.UUID, req models.StartSessionRequest) (*models.StudySession, error) {
	now := s.now()

	if fieldErrors := validateStartRequest(&req, now); len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	class, err := s.store.GetClass(ctx, userID, req.ClassID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Class not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load class: %w", err)
	}

	if req.AssignmentID != nil {
		assignment, err := s.store.GetAssignment(ctx, userID, *req.AssignmentID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Assignment not found"}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load assignment: %w", err)
		}
		if assignment.ClassID != class.ID {
			return nil, &NotFoundError{Message: "Assignment not found for this class"}
		}
	}

	sessionType := strings.TrimSpace(req.SessionType)
	if sessionType == "" {
		sessionType = defaultSessionType
	}

	session := &models.StudySession{
		UserID:         userID,
		ClassID:        class.ID,
		AssignmentID:   req.AssignmentID,
		Title:          strings.TrimSpace(req.Title),
		SessionType:    sessionType,
		PlannedMinutes: req.PlannedMinutes,
	}
	if req.StartNow {
		session.StartedAt = now
		session.IsActive = true
	} else {
		session.StartedAt = req.ScheduledAt.UTC()
	}

	if err := s.store.CreateSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrActiveSessionExists) {
			return nil, &ConflictError{Message: "An active study session already exists"}
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if session.IsActive {
		s.publish(ctx, userID, models.EventSessionStarted, models.SessionEvent{Session: session})
		s.publishCollision(ctx, userID)
	} else {
		s.publish(ctx, userID, models.EventSessionScheduled, models.SessionEvent{Session: session})
	}

	return session, nil
}

// Activate starts a scheduled session now.
func (s *SessionService) Activate(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(session.State(), models.SessionActive); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.ActivateSession(ctx, userID, sessionID, now); err != nil {
		switch {
		case errors.Is(err, repository.ErrActiveSessionExists):
			return nil, &ConflictError{Message: "An active study session already exists"}
		case errors.Is(err, repository.ErrStaleSession):
			return nil, s.staleError(ctx, userID, sessionID, models.SessionActive)
		}
		return nil, fmt.Errorf("failed to activate session: %w", err)
	}

	session.StartedAt = now
	session.IsActive = true

	s.publish(ctx, userID, models.EventSessionStarted, models.SessionEvent{Session: session})
	s.publishCollision(ctx, userID)
	return session, nil
}

// End completes an active session. endAt defaults to now and must fall
// between the session start and now.
func (s *SessionService) End(ctx context.Context, userID, sessionID uuid.UUID, endAt *time.Time) (*models.StudySession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(session.State(), models.SessionCompleted); err != nil {
		return nil, err
	}

	now := s.now()
	if session.StartedAt.After(now) {
		return nil, &InvalidStateError{Message: "Session has not started yet"}
	}

	end := now
	if endAt != nil {
		end = endAt.UTC()
		if end.Before(session.StartedAt) {
			return nil, &ValidationError{Fields: map[string]string{"end_at": "End time cannot be before the session started"}}
		}
		if end.After(now) {
			return nil, &ValidationError{Fields: map[string]string{"end_at": "End time cannot be in the future"}}
		}
	}

	duration := sessionDurationMinutes(session.StartedAt, end)

	if err := s.store.CompleteSession(ctx, userID, sessionID, end, duration); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return nil, s.staleError(ctx, userID, sessionID, models.SessionCompleted)
		}
		return nil, fmt.Errorf("failed to end session: %w", err)
	}

	session.EndedAt = &end
	session.DurationMinutes = &duration
	session.IsActive = false
	session.IsCompleted = true

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, userID); err != nil {
			log.Printf("Failed to invalidate chart cache for user %s: %v", userID, err)
		}
	}
	s.publish(ctx, userID, models.EventSessionEnded, models.SessionEvent{Session: session})
	return session, nil
}

// Cancel abandons a scheduled or active session.
func (s *SessionService) Cancel(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(session.State(), models.SessionCancelled); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.CancelSession(ctx, userID, sessionID, now); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return nil, s.staleError(ctx, userID, sessionID, models.SessionCancelled)
		}
		return nil, fmt.Errorf("failed to cancel session: %w", err)
	}

	session.CancelledAt = &now
	session.IsActive = false

	s.publish(ctx, userID, models.EventSessionCancelled, models.SessionEvent{Session: session})
	return session, nil
}

// Reschedule moves a scheduled session to a new future start time.
func (s *SessionService) Reschedule(ctx context.Context, userID, sessionID uuid.UUID, at time.Time) (*models.StudySession, error) {
	now := s.now()
	if !at.After(now) {
		return nil, &ValidationError{Fields: map[string]string{"scheduled_at": "Scheduled time must be in the future"}}
	}

	session, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if state := session.State(); state != models.SessionScheduled {
		return nil, &InvalidStateError{Message: fmt.Sprintf("Only scheduled sessions can be rescheduled (session is %s)", state)}
	}

	at = at.UTC()
	if err := s.store.RescheduleSession(ctx, userID, sessionID, at); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return nil, &InvalidStateError{Message: "Session is no longer scheduled"}
		}
		return nil, fmt.Errorf("failed to reschedule session: %w", err)
	}
	session.StartedAt = at

	s.publish(ctx, userID, models.EventSessionRescheduled, models.SessionEvent{Session: session})
	return session, nil
}

// GetActive returns the user's active session or nil. Two or more active
// rows is reported as an IntegrityError.
func (s *SessionService) GetActive(ctx context.Context, userID uuid.UUID) (*models.StudySession, error) {
	sessions, err := s.store.ListActiveSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active session: %w", err)
	}
	switch len(sessions) {
	case 0:
		return nil, nil
	case 1:
		return sessions[0], nil
	default:
		log.Printf("Integrity violation: user %s has %d+ active sessions", userID, len(sessions))
		return nil, &IntegrityError{Message: "Multiple active study sessions found"}
	}
}

// GetDueScheduled returns the earliest scheduled session whose start time
// has passed, or nil.
func (s *SessionService) GetDueScheduled(ctx context.Context, userID uuid.UUID) (*models.StudySession, error) {
	session, err := s.store.GetDueScheduledSession(ctx, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to load due session: %w", err)
	}
	return session, nil
}

// DetectCollision reports an active session overlapping a scheduled one
// that is already due. It returns nil when either is missing.
func (s *SessionService) DetectCollision(ctx context.Context, userID uuid.UUID) (*models.SessionCollision, error) {
	active, err := s.GetActive(ctx, userID)
	if err != nil || active == nil {
		return nil, err
	}
	due, err := s.GetDueScheduled(ctx, userID)
	if err != nil || due == nil {
		return nil, err
	}
	return &models.SessionCollision{
		ActiveSessionID:       active.ID,
		DueScheduledSessionID: due.ID,
	}, nil
}

func (s *SessionService) List(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}
	sessions, err := s.store.ListSessions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *SessionService) load(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	session, err := s.store.GetSession(ctx, userID, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &NotFoundError{Message: "Study session not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// staleError re-reads a session whose conditional write lost a race and
// describes the state it moved to.
func (s *SessionService) staleError(ctx context.Context, userID, sessionID uuid.UUID, target models.SessionState) error {
	current, err := s.load(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if err := checkTransition(current.State(), target); err != nil {
		return err
	}
	return &InvalidStateError{Message: "Session changed while updating, try again"}
}

func (s *SessionService) publishCollision(ctx context.Context, userID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	collision, err := s.DetectCollision(ctx, userID)
	if err != nil {
		log.Printf("Collision check failed for user %s: %v", userID, err)
		return
	}
	if collision != nil {
		s.publish(ctx, userID, models.EventSessionCollision, collision)
	}
}

func (s *SessionService) publish(ctx context.Context, userID uuid.UUID, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	msg := models.WSMessage{Type: eventType, Payload: payload}
	if err := s.publisher.Publish(ctx, userID, msg); err != nil {
		log.Printf("Failed to publish %s for user %s: %v", eventType, userID, err)
	}
}

// sessionDurationMinutes rounds the elapsed time half away from zero.
func sessionDurationMinutes(start, end time.Time) int {
	return int(math.Round(end.Sub(start).Minutes()))
}
