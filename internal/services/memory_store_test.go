package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/models"
	"studyplan-backend/internal/repository"
)

// memoryStore is an in-memory SessionStore and EstimateStore with the same
// conditional-write semantics as the SQL stores.
type memoryStore struct {
	mu          sync.Mutex
	classes     map[uuid.UUID]*models.Class
	assignments map[uuid.UUID]*models.Assignment
	sessions    map[uuid.UUID]*models.StudySession
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		classes:     make(map[uuid.UUID]*models.Class),
		assignments: make(map[uuid.UUID]*models.Assignment),
		sessions:    make(map[uuid.UUID]*models.StudySession),
	}
}

func (m *memoryStore) addClass(userID uuid.UUID, name, classType string) *models.Class {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := &models.Class{ID: uuid.New(), UserID: userID, Name: name, ClassType: classType}
	m.classes[c.ID] = c
	return c
}

func (m *memoryStore) addAssignment(a *models.Assignment) *models.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	m.assignments[a.ID] = a
	return a
}

// addSession inserts s without any invariant checks.
func (m *memoryStore) addSession(s *models.StudySession) *models.StudySession {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	m.sessions[s.ID] = s
	return s
}

func (m *memoryStore) GetClass(_ context.Context, userID, classID uuid.UUID) (*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.classes[classID]
	if !ok || c.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memoryStore) ListClasses(_ context.Context, userID uuid.UUID) ([]*models.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Class, 0)
	for _, c := range m.classes {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryStore) GetAssignment(_ context.Context, userID, assignmentID uuid.UUID) (*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok || a.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryStore) ListAssignments(_ context.Context, userID uuid.UUID) ([]*models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*models.Assignment, 0)
	for _, a := range m.assignments {
		if a.UserID == userID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) UpdateAssignmentEstimate(_ context.Context, userID, assignmentID uuid.UUID, minutes, difficulty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.assignments[assignmentID]
	if !ok || a.UserID != userID || (a.EstimatedMinutes != nil && a.Difficulty != nil) {
		return false, nil
	}
	if a.EstimatedMinutes == nil {
		a.EstimatedMinutes = &minutes
	}
	if a.Difficulty == nil {
		a.Difficulty = &difficulty
	}
	return true, nil
}

func (m *memoryStore) hasActive(userID uuid.UUID) bool {
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive && s.CancelledAt == nil {
			return true
		}
	}
	return false
}

func (m *memoryStore) CreateSession(_ context.Context, s *models.StudySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasActive(s.UserID) {
		return repository.ErrActiveSessionExists
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *memoryStore) GetSession(_ context.Context, userID, sessionID uuid.UUID) (*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memoryStore) sessionsWhere(pred func(*models.StudySession) bool) []*models.StudySession {
	out := make([]*models.StudySession, 0)
	for _, s := range m.sessions {
		if pred(s) {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

func (m *memoryStore) ListActiveSessions(_ context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sessionsWhere(func(s *models.StudySession) bool {
		return s.UserID == userID && s.IsActive && s.CancelledAt == nil
	})
	if len(out) > 2 {
		out = out[:2]
	}
	return out, nil
}

func (m *memoryStore) GetDueScheduledSession(_ context.Context, userID uuid.UUID, now time.Time) (*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sessionsWhere(func(s *models.StudySession) bool {
		return s.UserID == userID && s.State() == models.SessionScheduled && !s.StartedAt.After(now)
	})
	if len(out) == 0 {
		return nil, nil
	}
	return out[0], nil
}

func (m *memoryStore) scheduled(userID, sessionID uuid.UUID) (*models.StudySession, bool) {
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID || s.State() != models.SessionScheduled {
		return nil, false
	}
	return s, true
}

func (m *memoryStore) ActivateSession(_ context.Context, userID, sessionID uuid.UUID, startedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasActive(userID) {
		return repository.ErrActiveSessionExists
	}
	s, ok := m.scheduled(userID, sessionID)
	if !ok {
		return repository.ErrStaleSession
	}
	s.IsActive = true
	s.StartedAt = startedAt
	return nil
}

func (m *memoryStore) CompleteSession(_ context.Context, userID, sessionID uuid.UUID, endedAt time.Time, durationMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID || s.State() != models.SessionActive {
		return repository.ErrStaleSession
	}
	s.IsActive = false
	s.IsCompleted = true
	s.EndedAt = &endedAt
	s.DurationMinutes = &durationMinutes
	return nil
}

func (m *memoryStore) CancelSession(_ context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID || s.State().Terminal() {
		return repository.ErrStaleSession
	}
	s.IsActive = false
	s.CancelledAt = &at
	return nil
}

func (m *memoryStore) RescheduleSession(_ context.Context, userID, sessionID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.scheduled(userID, sessionID)
	if !ok {
		return repository.ErrStaleSession
	}
	s.StartedAt = at
	return nil
}

func (m *memoryStore) ListSessions(_ context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.sessionsWhere(func(s *models.StudySession) bool { return s.UserID == userID })
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) ListCompletedSessions(_ context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionsWhere(func(s *models.StudySession) bool {
		return s.UserID == userID && s.IsCompleted && s.CancelledAt == nil
	}), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg.Type)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context, uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

// fixedClock is a settable clock for services under test.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
