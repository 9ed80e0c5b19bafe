package schedule

import "time"

// CallRecord is one scheduled outbound survey call.
//
// Lifecycle invariant: Status moves pending -> in_progress -> {completed|failed}
// and never backwards. Records are created by the schedule API, claimed by the
// dispatch loop, and finished by the conversation handler. Never deleted.
//
// ProviderCallID is the telephony provider's call identifier (Twilio CallSid),
// set once the outbound call has been requested; webhook requests are matched
// back to the record through it.

type CallRecord struct {
	ID          string `json:"id" db:"id"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	SurveyType  string `json:"survey_type" db:"survey_type"`

	Status Status `json:"status" db:"status"`

	ScheduledAt    time.Time `json:"scheduled_at" db:"scheduled_at"`
	ProviderCallID string    `json:"provider_call_id,omitempty" db:"provider_call_id"`
	FailReason     string    `json:"fail_reason,omitempty" db:"fail_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal status move.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusInProgress || to == StatusFailed
	case StatusInProgress:
		return to == StatusCompleted || to == StatusFailed
	default:
		return false
	}
}

// Turn is one question/answer exchange within a call.
//
// A turn row is written when the question is asked (empty answer) and updated
// in place when the caller's transcribed answer arrives, so conversation
// progress survives a process restart between webhook requests.
type Turn struct {
	CallID   string `json:"call_id" db:"call_id"`
	Index    int    `json:"turn_index" db:"turn_index"`
	Question string `json:"question" db:"question"`
	Answer   string `json:"answer" db:"answer"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Answered reports whether the caller has responded to this turn's question.
func (t Turn) Answered() bool { return t.Answer != "" }
