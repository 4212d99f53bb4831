package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"studyplan-backend/internal/models"
)

type ClassRepo struct {
	pool *pgxpool.Pool
}

func NewClassRepo(pool *pgxpool.Pool) *ClassRepo {
	return &ClassRepo{pool: pool}
}

const classColumns = `id, user_id, name, class_type, code, color, importance, created_at`

func scanClass(row scanner) (*models.Class, error) {
	c := &models.Class{}
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.ClassType, &c.Code, &c.Color, &c.Importance, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}

func (r *ClassRepo) CreateClass(ctx context.Context, c *models.Class) error {
	c.ID = uuid.New()
	err := r.pool.QueryRow(ctx, `
		INSERT INTO classes (id, user_id, name, class_type, code, color, importance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		c.ID, c.UserID, c.Name, c.ClassType, c.Code, c.Color, c.Importance,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return nil
}

func (r *ClassRepo) GetClass(ctx context.Context, userID, classID uuid.UUID) (*models.Class, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+classColumns+" FROM classes WHERE id = $1 AND user_id = $2",
		classID, userID,
	)
	c, err := scanClass(row)
	if err != nil {
		return nil, translate(err)
	}
	return c, nil
}

func (r *ClassRepo) ListClasses(ctx context.Context, userID uuid.UUID) ([]*models.Class, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+classColumns+" FROM classes WHERE user_id = $1 ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	classes := make([]*models.Class, 0)
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}
