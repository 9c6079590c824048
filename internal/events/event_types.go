package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventUserRegistered         EventType = "user_registered"
	EventLoginSucceeded         EventType = "login_succeeded"
	EventLoginFailed            EventType = "login_failed"
	EventTokenRevoked           EventType = "token_revoked"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordResetCompleted EventType = "password_reset_completed"
	EventRoleAssigned           EventType = "role_assigned"
)

// AllEventTypes lists every auth event type.
var AllEventTypes = []EventType{
	EventUserRegistered,
	EventLoginSucceeded,
	EventLoginFailed,
	EventTokenRevoked,
	EventPasswordResetRequested,
	EventPasswordResetCompleted,
	EventRoleAssigned,
}

// Event represents an auth event emitted by services. Subject is the
// username or email the event is about; secrets never appear in events.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Subject   string      `json:"subject"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// New stamps an event with a fresh id.
func New(eventType EventType, subject string, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Subject:   subject,
		Timestamp: at,
		Payload:   payload,
	}
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// TokenRevokedPayload payload.
type TokenRevokedPayload struct {
	TokenID   string    `json:"token_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UserRegisteredPayload payload.
type UserRegisteredPayload struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// RoleAssignedPayload payload.
type RoleAssignedPayload struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
