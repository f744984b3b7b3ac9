package models

import (
	"time"

	"github.com/google/uuid"
)

// Audit event kinds
const (
	EventAuthenticationSuccess = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure = "AUTHENTICATION_FAILURE"
	EventAuthorizationSuccess  = "AUTHORIZATION_SUCCESS"
	EventAuthorizationFailure  = "AUTHORIZATION_FAILURE"
	EventRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	EventSensitiveOperation    = "SENSITIVE_OPERATION"
	EventTimeout               = "TIMEOUT"
)

// Audit outcomes
const (
	OutcomeAllowed = "ALLOWED"
	OutcomeDenied  = "DENIED"
)

// AuditEvent is a write-once security record. Actor is empty when the
// caller is anonymous.
type AuditEvent struct {
	EventID   uuid.UUID         `db:"event_id" json:"event_id"`
	Timestamp time.Time         `db:"event_time" json:"timestamp"`
	Kind      string            `db:"kind" json:"kind"`
	Actor     string            `db:"actor" json:"actor,omitempty"`
	ClientIP  string            `db:"client_ip" json:"client_ip"`
	UserAgent string            `db:"user_agent" json:"user_agent,omitempty"`
	Path      string            `db:"path" json:"path"`
	Method    string            `db:"method" json:"method"`
	Outcome   string            `db:"outcome" json:"outcome"`
	Operation string            `db:"operation" json:"operation,omitempty"`
	Details   map[string]string `db:"details" json:"details,omitempty"`
}
