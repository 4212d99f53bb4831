package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferencesRepo stores one JSONB document per (user, page) in
// user_settings.
type PreferencesRepo struct {
	pool *pgxpool.Pool
}

func NewPreferencesRepo(pool *pgxpool.Pool) *PreferencesRepo {
	return &PreferencesRepo{pool: pool}
}

// Get decodes the stored document for page into dst. It reports false and
// leaves dst untouched when nothing has been saved yet.
func (r *PreferencesRepo) Get(ctx context.Context, userID uuid.UUID, page string, dst interface{}) (bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx,
		"SELECT preferences_json FROM user_settings WHERE user_id = $1 AND page = $2",
		userID, page,
	).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get preferences: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode preferences: %w", err)
	}
	return true, nil
}

func (r *PreferencesRepo) Save(ctx context.Context, userID uuid.UUID, page string, prefs interface{}) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO user_settings (user_id, page, preferences_json, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, page) DO UPDATE
		SET preferences_json = EXCLUDED.preferences_json,
			updated_at = NOW()
	`, userID, page, data)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
