package domain

import "time"

// ErrorEvent is an append-only audit record of a single failure. Events live
// in a bounded in-memory ring inside the breaker and are mirrored to the
// audit store; recording one must never block the execution hot path.
type ErrorEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Kind      ErrorKind         `json:"kind"`
	Severity  Severity          `json:"severity"`
	Message   string            `json:"message"`
	Context   map[string]string `json:"context,omitempty"`
}
