package models

import (
	"time"

	"github.com/google/uuid"
)

// Class is a course the user is enrolled in. ClassType places it on the
// technical-to-artistic scale used for similarity.
type Class struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	ClassType  string    `json:"class_type"`
	Code       string    `json:"code"`
	Color      *string   `json:"color"`
	Importance *string   `json:"importance"` // "high" | "medium" | "low"
	CreatedAt  time.Time `json:"created_at"`
}

type CreateClassRequest struct {
	Name       string  `json:"name"`
	ClassType  string  `json:"class_type"`
	Code       string  `json:"code"`
	Color      *string `json:"color"`
	Importance *string `json:"importance"`
}
