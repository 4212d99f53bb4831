package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("repository: not found")

	// ErrActiveSessionExists is returned when a write would give a user a
	// second non-cancelled active session.
	ErrActiveSessionExists = errors.New("repository: user already has an active session")

	// ErrStaleSession is returned when a conditional session update matched
	// no row because the session left the expected state.
	ErrStaleSession = errors.New("repository: session is no longer in the expected state")
)

const activeSessionIndex = "study_sessions_one_active_per_user"

type scanner interface {
	Scan(dest ...any) error
}

func translate(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func isActiveSessionViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == activeSessionIndex
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
