package models

import (
	"encoding"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle stage of a study session.
type SessionState int

const (
	SessionScheduled SessionState = iota + 1 // Planned, not started yet.
	SessionActive                            // In progress.
	SessionCompleted                         // Ended with a recorded duration.
	SessionCancelled                         // Abandoned before completion.
)

var (
	sessionStateNames = [...]string{
		SessionScheduled: "scheduled",
		SessionActive:    "active",
		SessionCompleted: "completed",
		SessionCancelled: "cancelled",
	}
	sessionStateByName = map[string]SessionState{
		"scheduled": SessionScheduled,
		"active":    SessionActive,
		"completed": SessionCompleted,
		"cancelled": SessionCancelled,
	}
)

var (
	_ fmt.Stringer             = SessionState(0)
	_ encoding.TextMarshaler   = SessionState(0)
	_ encoding.TextUnmarshaler = (*SessionState)(nil)
)

func (s SessionState) isValid() bool {
	return s >= SessionScheduled && s <= SessionCancelled
}

func (s SessionState) String() string {
	if s.isValid() {
		return sessionStateNames[s]
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

// Terminal reports whether no transition may leave s.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

func (s SessionState) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("models: invalid session state: %d", int(s))
	}
	return []byte(sessionStateNames[s]), nil
}

func (s *SessionState) UnmarshalText(text []byte) error {
	v, ok := sessionStateByName[string(text)]
	if !ok {
		return fmt.Errorf("models: invalid session state: %q", text)
	}
	*s = v
	return nil
}

// StudySession is a timed block of study for one class. StartedAt holds the
// planned start while the session is scheduled and the actual start once it
// has been activated.
type StudySession struct {
	ID              uuid.UUID  `json:"id"`
	UserID          uuid.UUID  `json:"user_id"`
	ClassID         uuid.UUID  `json:"class_id"`
	AssignmentID    *uuid.UUID `json:"assignment_id"`
	Title           string     `json:"title"`
	SessionType     string     `json:"session_type"`
	PlannedMinutes  *int       `json:"planned_minutes"`
	DurationMinutes *int       `json:"duration_minutes"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	CancelledAt     *time.Time `json:"cancelled_at"`
	IsActive        bool       `json:"is_active"`
	IsCompleted     bool       `json:"is_completed"`
	CreatedAt       time.Time  `json:"created_at"`
}

// State derives the lifecycle stage from the flags and timestamps.
// Cancellation wins over everything else.
func (s *StudySession) State() SessionState {
	switch {
	case s.CancelledAt != nil:
		return SessionCancelled
	case s.IsCompleted:
		return SessionCompleted
	case s.IsActive:
		return SessionActive
	default:
		return SessionScheduled
	}
}

// MarshalJSON adds the derived state to the wire form.
func (s StudySession) MarshalJSON() ([]byte, error) {
	type plain StudySession
	return json.Marshal(struct {
		plain
		State SessionState `json:"state"`
	}{plain(s), s.State()})
}

// SessionCollision flags an active session that was started while a
// scheduled one was already due.
type SessionCollision struct {
	ActiveSessionID       uuid.UUID `json:"active_session_id"`
	DueScheduledSessionID uuid.UUID `json:"due_scheduled_session_id"`
}

type StartSessionRequest struct {
	ClassID        uuid.UUID  `json:"class_id"`
	AssignmentID   *uuid.UUID `json:"assignment_id"`
	SessionType    string     `json:"session_type"`
	Title          string     `json:"title"`
	PlannedMinutes *int       `json:"planned_minutes"`
	StartNow       bool       `json:"start_now"`
	ScheduledAt    *time.Time `json:"scheduled_at"`
}

type EndSessionRequest struct {
	EndAt *time.Time `json:"end_at"`
}

type RescheduleSessionRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
}
