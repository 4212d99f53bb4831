package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"studyplan-backend/internal/models"
)

var testNow = time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

type sessionFixture struct {
	store     *memoryStore
	publisher *recordingPublisher
	cache     *countingInvalidator
	clock     *fixedClock
	svc       *SessionService
	userID    uuid.UUID
	class     *models.Class
}

func newSessionFixture() *sessionFixture {
	f := &sessionFixture{
		store:     newMemoryStore(),
		publisher: &recordingPublisher{},
		cache:     &countingInvalidator{},
		clock:     &fixedClock{t: testNow},
		userID:    uuid.New(),
	}
	f.class = f.store.addClass(f.userID, "Calculus", "math")
	f.svc = NewSessionService(f.store, f.publisher, f.cache)
	f.svc.now = f.clock.now
	return f
}

func (f *sessionFixture) startNow(t *testing.T, title string) *models.StudySession {
	t.Helper()
	session, err := f.svc.Start(context.Background(), f.userID, models.StartSessionRequest{
		ClassID:  f.class.ID,
		Title:    title,
		StartNow: true,
	})
	if err != nil {
		t.Fatalf("start %q: %v", title, err)
	}
	return session
}

func TestStartAndEndSession(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	session := f.startNow(t, "  Problem set 4 ")
	if session.State() != models.SessionActive {
		t.Fatalf("state = %v, want active", session.State())
	}
	if session.Title != "Problem set 4" {
		t.Errorf("title = %q, want trimmed", session.Title)
	}
	if session.SessionType != "study" {
		t.Errorf("session type = %q, want default study", session.SessionType)
	}
	if !session.StartedAt.Equal(testNow) {
		t.Errorf("started_at = %v, want %v", session.StartedAt, testNow)
	}

	f.clock.advance(45 * time.Minute)
	ended, err := f.svc.End(ctx, f.userID, session.ID, nil)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if ended.State() != models.SessionCompleted {
		t.Fatalf("state = %v, want completed", ended.State())
	}
	if ended.DurationMinutes == nil || *ended.DurationMinutes != 45 {
		t.Fatalf("duration = %v, want 45", ended.DurationMinutes)
	}
	if f.cache.calls != 1 {
		t.Errorf("expected chart cache to be invalidated once, got %d", f.cache.calls)
	}

	got := f.publisher.types()
	want := []string{models.EventSessionStarted, models.EventSessionEnded}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}

	active, err := f.svc.GetActive(ctx, f.userID)
	if err != nil || active != nil {
		t.Fatalf("expected no active session after end, got %+v, %v", active, err)
	}
}

func TestEndRoundsDurationToNearestMinute(t *testing.T) {
	cases := []struct {
		elapsed time.Duration
		want    int
	}{
		{44*time.Minute + 29*time.Second, 44},
		{44*time.Minute + 30*time.Second, 45},
		{20 * time.Second, 0},
	}

	for _, tc := range cases {
		f := newSessionFixture()
		session := f.startNow(t, "Reading")
		f.clock.advance(tc.elapsed)

		ended, err := f.svc.End(context.Background(), f.userID, session.ID, nil)
		if err != nil {
			t.Fatalf("%v: end: %v", tc.elapsed, err)
		}
		if *ended.DurationMinutes != tc.want {
			t.Errorf("%v: duration = %d, want %d", tc.elapsed, *ended.DurationMinutes, tc.want)
		}
	}
}

func TestEndWithExplicitEndTime(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.startNow(t, "Lab write-up")
	f.clock.advance(2 * time.Hour)

	before := testNow.Add(-time.Minute)
	var verr *ValidationError
	if _, err := f.svc.End(ctx, f.userID, session.ID, &before); !errors.As(err, &verr) {
		t.Fatalf("end before start: expected ValidationError, got %v", err)
	}

	future := f.clock.now().Add(time.Minute)
	if _, err := f.svc.End(ctx, f.userID, session.ID, &future); !errors.As(err, &verr) {
		t.Fatalf("end in future: expected ValidationError, got %v", err)
	}

	endAt := testNow.Add(90 * time.Minute)
	ended, err := f.svc.End(ctx, f.userID, session.ID, &endAt)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if *ended.DurationMinutes != 90 {
		t.Errorf("duration = %d, want 90", *ended.DurationMinutes)
	}
}

func TestStartRejectsSecondActiveSession(t *testing.T) {
	f := newSessionFixture()
	f.startNow(t, "First")

	_, err := f.svc.Start(context.Background(), f.userID, models.StartSessionRequest{
		ClassID: f.class.ID, Title: "Second", StartNow: true,
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestStartScheduledWhileActiveConflicts(t *testing.T) {
	f := newSessionFixture()
	f.startNow(t, "First")
	published := len(f.publisher.types())

	at := testNow.Add(time.Hour)
	_, err := f.svc.Start(context.Background(), f.userID, models.StartSessionRequest{
		ClassID: f.class.ID, Title: "Later", ScheduledAt: &at,
	})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if got := len(f.publisher.types()); got != published {
		t.Errorf("no event should be published for a rejected start, got %d new", got-published)
	}
}

func TestStartOtherUsersAreIndependent(t *testing.T) {
	f := newSessionFixture()
	f.startNow(t, "Mine")

	other := uuid.New()
	otherClass := f.store.addClass(other, "History", "humanities")
	_, err := f.svc.Start(context.Background(), other, models.StartSessionRequest{
		ClassID: otherClass.ID, Title: "Theirs", StartNow: true,
	})
	if err != nil {
		t.Fatalf("expected second user to start a session, got %v", err)
	}
}

func TestConcurrentStartsAllowOneActive(t *testing.T) {
	f := newSessionFixture()

	const attempts = 8
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
			_, err := f.svc.Start(context.Background(), f.userID, models.StartSessionRequest{
				ClassID: f.class.ID, Title: "Cram", StartNow: true,
			})
			var conflict *ConflictError

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.As(err, &conflict):
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
}

func TestStartValidation(t *testing.T) {
	f := newSessionFixture()
	past := testNow.Add(-time.Hour)
	future := testNow.Add(time.Hour)
	zero := 0

	cases := []struct {
		name  string
		req   models.StartSessionRequest
		field string
	}{
		{"missing title", models.StartSessionRequest{ClassID: f.class.ID, StartNow: true}, "title"},
		{"missing class", models.StartSessionRequest{Title: "x", StartNow: true}, "class_id"},
		{"no start mode", models.StartSessionRequest{ClassID: f.class.ID, Title: "x"}, "scheduled_at"},
		{"both start modes", models.StartSessionRequest{ClassID: f.class.ID, Title: "x", StartNow: true, ScheduledAt: &future}, "scheduled_at"},
		{"scheduled in past", models.StartSessionRequest{ClassID: f.class.ID, Title: "x", ScheduledAt: &past}, "scheduled_at"},
		{"planned minutes", models.StartSessionRequest{ClassID: f.class.ID, Title: "x", StartNow: true, PlannedMinutes: &zero}, "planned_minutes"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Start(context.Background(), f.userID, tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected field error on %s, got %v", tc.field, verr.Fields)
			}
		})
	}
}

func TestStartUnknownClassOrAssignment(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	var notFound *NotFoundError

	_, err := f.svc.Start(ctx, f.userID, models.StartSessionRequest{ClassID: uuid.New(), Title: "x", StartNow: true})
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown class: expected NotFoundError, got %v", err)
	}

	missing := uuid.New()
	_, err = f.svc.Start(ctx, f.userID, models.StartSessionRequest{ClassID: f.class.ID, AssignmentID: &missing, Title: "x", StartNow: true})
	if !errors.As(err, &notFound) {
		t.Fatalf("unknown assignment: expected NotFoundError, got %v", err)
	}

	otherClass := f.store.addClass(f.userID, "Chemistry", "science")
	a := f.store.addAssignment(&models.Assignment{UserID: f.userID, ClassID: otherClass.ID, Title: "Titration"})
	_, err = f.svc.Start(ctx, f.userID, models.StartSessionRequest{ClassID: f.class.ID, AssignmentID: &a.ID, Title: "x", StartNow: true})
	if !errors.As(err, &notFound) {
		t.Fatalf("assignment from another class: expected NotFoundError, got %v", err)
	}
}

func TestScheduledSessionLifecycle(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	at := testNow.Add(30 * time.Minute)

	scheduled, err := f.svc.Start(ctx, f.userID, models.StartSessionRequest{
		ClassID: f.class.ID, Title: "Exam review", ScheduledAt: &at,
	})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if scheduled.State() != models.SessionScheduled {
		t.Fatalf("state = %v, want scheduled", scheduled.State())
	}

	due, err := f.svc.GetDueScheduled(ctx, f.userID)
	if err != nil || due != nil {
		t.Fatalf("expected nothing due yet, got %+v, %v", due, err)
	}

	var invalid *InvalidStateError
	if _, err := f.svc.End(ctx, f.userID, scheduled.ID, nil); !errors.As(err, &invalid) {
		t.Fatalf("end scheduled: expected InvalidStateError, got %v", err)
	}

	later := testNow.Add(time.Hour)
	if _, err := f.svc.Reschedule(ctx, f.userID, scheduled.ID, later); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	f.clock.advance(61 * time.Minute)
	due, err = f.svc.GetDueScheduled(ctx, f.userID)
	if err != nil || due == nil || due.ID != scheduled.ID {
		t.Fatalf("expected scheduled session to be due, got %+v, %v", due, err)
	}

	active, err := f.svc.Activate(ctx, f.userID, scheduled.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if active.State() != models.SessionActive || !active.StartedAt.Equal(f.clock.now()) {
		t.Fatalf("activate: state %v started %v", active.State(), active.StartedAt)
	}

	if _, err := f.svc.Reschedule(ctx, f.userID, scheduled.ID, f.clock.now().Add(time.Hour)); !errors.As(err, &invalid) {
		t.Fatalf("reschedule active: expected InvalidStateError, got %v", err)
	}
}

func TestActivateWhileAnotherIsActive(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	at := testNow.Add(10 * time.Minute)

	scheduled, err := f.svc.Start(ctx, f.userID, models.StartSessionRequest{ClassID: f.class.ID, Title: "Later", ScheduledAt: &at})
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	f.startNow(t, "Now")

	var conflict *ConflictError
	if _, err := f.svc.Activate(ctx, f.userID, scheduled.ID); !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCancelTransitions(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.startNow(t, "Essay")

	cancelled, err := f.svc.Cancel(ctx, f.userID, session.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.State() != models.SessionCancelled {
		t.Fatalf("state = %v, want cancelled", cancelled.State())
	}

	var invalid *InvalidStateError
	if _, err := f.svc.Cancel(ctx, f.userID, session.ID); !errors.As(err, &invalid) {
		t.Fatalf("second cancel: expected InvalidStateError, got %v", err)
	}
	if _, err := f.svc.End(ctx, f.userID, session.ID, nil); !errors.As(err, &invalid) {
		t.Fatalf("end cancelled: expected InvalidStateError, got %v", err)
	}

	// The slot is free again.
	f.startNow(t, "Essay, take two")
}

func TestSessionNotFound(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()
	session := f.startNow(t, "Mine")

	var notFound *NotFoundError
	if _, err := f.svc.End(ctx, uuid.New(), session.ID, nil); !errors.As(err, &notFound) {
		t.Fatalf("other user's session: expected NotFoundError, got %v", err)
	}
	if _, err := f.svc.Cancel(ctx, f.userID, uuid.New()); !errors.As(err, &notFound) {
		t.Fatalf("missing session: expected NotFoundError, got %v", err)
	}
}

func TestDetectCollision(t *testing.T) {
	f := newSessionFixture()
	ctx := context.Background()

	collision, err := f.svc.DetectCollision(ctx, f.userID)
	if err != nil || collision != nil {
		t.Fatalf("empty: expected nil, got %+v, %v", collision, err)
	}

	due := f.store.addSession(&models.StudySession{
		UserID: f.userID, ClassID: f.class.ID, Title: "Overdue", StartedAt: testNow.Add(-5 * time.Minute),
	})
	active := f.startNow(t, "Something else")

	collision, err = f.svc.DetectCollision(ctx, f.userID)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if collision == nil || collision.ActiveSessionID != active.ID || collision.DueScheduledSessionID != due.ID {
		t.Fatalf("unexpected collision %+v", collision)
	}

	found := false
	for _, typ := range f.publisher.types() {
		if typ == models.EventSessionCollision {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a collision event, got %v", f.publisher.types())
	}
}

func TestGetActiveReportsIntegrityViolation(t *testing.T) {
	f := newSessionFixture()
	for _, title := range []string{"A", "B"} {
		f.store.addSession(&models.StudySession{
			UserID: f.userID, ClassID: f.class.ID, Title: title, StartedAt: testNow, IsActive: true,
		})
	}

	_, err := f.svc.GetActive(context.Background(), f.userID)
	var integrity *IntegrityError
	if !errors.As(err, &integrity) {
		t.Fatalf("expected IntegrityError, got %v", err)
	}
}

// cancellingStore cancels the session underneath a completion, as a
// concurrent request would.
type cancellingStore struct {
	*memoryStore
}

func (s cancellingStore) CompleteSession(ctx context.Context, userID, sessionID uuid.UUID, endedAt time.Time, durationMinutes int) error {
	if err := s.memoryStore.CancelSession(ctx, userID, sessionID, endedAt); err != nil {
		return err
	}
	return s.memoryStore.CompleteSession(ctx, userID, sessionID, endedAt, durationMinutes)
}

func TestEndLosingRaceReportsCurrentState(t *testing.T) {
	f := newSessionFixture()
	session := f.startNow(t, "Contested")

	svc := NewSessionService(cancellingStore{f.store}, nil, nil)
	svc.now = f.clock.now
	f.clock.advance(10 * time.Minute)

	_, err := svc.End(context.Background(), f.userID, session.ID, nil)
	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if invalid.Message != "Cannot move a cancelled session to completed" {
		t.Errorf("message = %q", invalid.Message)
	}
}

func TestListClampsLimit(t *testing.T) {
	f := newSessionFixture()
	for i := 0; i < 3; i++ {
		f.store.addSession(&models.StudySession{
			UserID: f.userID, ClassID: f.class.ID, Title: "Old", StartedAt: testNow.Add(-time.Duration(i+1) * time.Hour),
			IsCompleted: true,
		})
	}

	sessions, err := f.svc.List(context.Background(), f.userID, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if !sessions[0].StartedAt.After(sessions[1].StartedAt) {
		t.Errorf("expected newest first")
	}

	sessions, err = f.svc.List(context.Background(), f.userID, 0)
	if err != nil || len(sessions) != 3 {
		t.Fatalf("default limit: got %d sessions, err %v", len(sessions), err)
	}
}
