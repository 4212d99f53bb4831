package services

// Service errors. Handlers map each type to an HTTP status and error code.

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

// InvalidStateError reports a lifecycle transition the session's current
// state does not allow.
type InvalidStateError struct{ Message string }

func (e *InvalidStateError) Error() string { return e.Message }

// IntegrityError means stored data violates an invariant the service relies
// on, such as a user holding two active sessions.
type IntegrityError struct{ Message string }

func (e *IntegrityError) Error() string { return e.Message }
