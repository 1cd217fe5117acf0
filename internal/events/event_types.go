package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/karma-nest/job-nest/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventAccountRegistered      EventType = "account_registered"
	EventActivationRequested    EventType = "activation_requested"
	EventAccountActivated       EventType = "account_activated"
	EventPasswordResetRequested EventType = "password_reset_requested"
	EventPasswordChanged        EventType = "password_changed"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	UserID    int64       `json:"user_id"`
	Role      domain.Role `json:"role"`
	Email     string      `json:"email"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// NewEvent stamps an event for user.
func NewEvent(eventType EventType, user *domain.User, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		UserID:    user.ID,
		Role:      user.Role,
		Email:     user.Email,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// LinkTokenPayload carries the token embedded in an emailed link.
type LinkTokenPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
