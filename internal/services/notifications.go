package services

import (
	"context"
	"log"
	"sync"
	"time"

	"studyplan-backend/internal/models"
)

const dueSessionPollInterval = time.Minute

// DueSessionLister finds scheduled sessions across all users whose planned
// start lies in (after, upTo].
type DueSessionLister interface {
	ListSessionsComingDue(ctx context.Context, after, upTo time.Time) ([]*models.StudySession, error)
}

// DueSessionNotifier pushes a session_due event when a scheduled session's
// start time arrives. Each poll covers the window since the previous one, so
// a session is announced once per instance.
type DueSessionNotifier struct {
	sessions  DueSessionLister
	publisher EventPublisher
	interval  time.Duration
	now       func() time.Time
	lastRun   time.Time
	stopChan  chan struct{}
	stopOnce  sync.Once
}

func NewDueSessionNotifier(sessions DueSessionLister, publisher EventPublisher) *DueSessionNotifier {
	return &DueSessionNotifier{
		sessions:  sessions,
		publisher: publisher,
		interval:  dueSessionPollInterval,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
	}
}

func (n *DueSessionNotifier) Start() {
	if n.sessions == nil || n.publisher == nil {
		return
	}

	n.lastRun = n.now().Add(-n.interval)
	go n.loop()

	log.Printf("Due-session notifier started")
}

func (n *DueSessionNotifier) Stop() {
	n.stopOnce.Do(func() { close(n.stopChan) })
}

func (n *DueSessionNotifier) loop() {
	// Run on startup as well as by interval.
	n.runOnce(context.Background())

	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-n.stopChan:
			return
		case <-ticker.C:
			n.runOnce(context.Background())
		}
	}
}

// runOnce announces sessions that came due since the last run and returns
// how many were published. The window only advances on a successful read.
func (n *DueSessionNotifier) runOnce(ctx context.Context) int {
	now := n.now()
	due, err := n.sessions.ListSessionsComingDue(ctx, n.lastRun, now)
	if err != nil {
		log.Printf("due sessions: failed to list: %v", err)
		return 0
	}
	n.lastRun = now

	sent := 0
	for _, s := range due {
		err := n.publisher.Publish(ctx, s.UserID, models.WSMessage{
			Type:    models.EventSessionDue,
			Payload: models.SessionEvent{Session: s},
		})
		if err != nil {
			log.Printf("due sessions: failed to notify user %s about %s: %v", s.UserID, s.ID, err)
			continue
		}
		sent++
	}
	return sent
}
