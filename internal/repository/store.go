package repository

import "github.com/jackc/pgx/v5/pgxpool"

// Store bundles the PostgreSQL repositories the services read through.
type Store struct {
	*ClassRepo
	*AssignmentRepo
	*StudySessionRepo
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		ClassRepo:        NewClassRepo(pool),
		AssignmentRepo:   NewAssignmentRepo(pool),
		StudySessionRepo: NewStudySessionRepo(pool),
	}
}
