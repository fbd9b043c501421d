package session

import (
	"errors"
	"time"
)

// Session is the locally persisted record of an authenticated session.
// Owned exclusively by the authentication controller; read-only elsewhere.
type Session struct {
	ID           string    `json:"session_id"`
	Reference    string    `json:"-"` // opaque session reference, never serialised
	StartTime    time.Time `json:"start_time"`
	LastActivity time.Time `json:"last_activity"`
	AttemptCount int       `json:"attempt_count"`
}

// Event is one entry in a session's ordered auth event log.
type Event struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrNoSession indicates no session reference is persisted. Callers treat
// this as the ordinary cold-start case, not a failure.
var ErrNoSession = errors.New("no stored session")
