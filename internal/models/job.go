package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const JobTypeEstimateBackfill = "estimate-backfill"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

type Job struct {
	ID           uuid.UUID       `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	Type         string          `json:"type"` // "estimate-backfill"
	ReferenceID  uuid.UUID       `json:"reference_id"`
	ConfigJSON   json.RawMessage `json:"config"`
	Status       string          `json:"status"` // "pending" | "processing" | "completed" | "failed"
	RetryCount   int             `json:"retry_count"`
	MaxRetries   int             `json:"max_retries"`
	ErrorMessage *string         `json:"error_message"`
	ResultJSON   json.RawMessage `json:"result,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at"`
}

// WebSocket message types
const (
	EventSessionScheduled   = "session_scheduled"
	EventSessionStarted     = "session_started"
	EventSessionEnded       = "session_ended"
	EventSessionCancelled   = "session_cancelled"
	EventSessionRescheduled = "session_rescheduled"
	EventSessionCollision   = "session_collision"
	EventSessionDue         = "session_due"
	EventEstimatesUpdated   = "estimates_updated"
	EventJobFailed          = "job_failed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type SessionEvent struct {
	Session *StudySession `json:"session"`
}

type EstimatesUpdatedEvent struct {
	JobID   uuid.UUID `json:"job_id"`
	Updated int       `json:"updated"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
