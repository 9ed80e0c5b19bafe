package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and ip capture are best-effort; do not block call flows on audit failures.
//
// Storage (Postgres):
// - Table audit_events with an INSERT-only policy.
// - Optional: trigger to prevent UPDATE/DELETE.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event, when the event
	// originates from the HTTP API. Scheduler and webhook events have none.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	// IPAddress should capture the original client IP when available.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// CallID is the scheduled call the event concerns.
	CallID string `json:"call_id,omitempty" db:"call_id"`
	// ProviderCallID is the telephony provider's identifier, once known.
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeCallScheduled   EventType = "call_scheduled"
	EventTypeCallDispatched  EventType = "call_dispatched"
	EventTypeCallFailed      EventType = "call_failed"
	EventTypeSurveyCompleted EventType = "survey_completed"
)
