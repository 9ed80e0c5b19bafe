package telephony

import (
	"context"
	"fmt"
)

// Dialer is the provider-agnostic outbound-call contract used by the
// dispatch loop.
//
// Rules:
// - No provider HTTP calls outside telephony adapters.
// - Requests carry the full callback URL; the adapter does not know routes.
// - All provider calls must be bounded by a timeout.
type Dialer interface {
	Name() string

	// PlaceCall asks the provider to dial To and invoke CallbackURL once the
	// call connects. Returns the provider's call identifier.
	PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error)
}

// OutboundCallRequest describes one outbound call to place.
type OutboundCallRequest struct {
	// To is the destination number, E.164.
	To string `json:"to"`

	// CallbackURL is the absolute voice webhook URL the provider invokes on
	// connect.
	CallbackURL string `json:"callback_url"`
}

// OutboundCallResult is the provider's acknowledgment of a placed call.
type OutboundCallResult struct {
	// ProviderCallID is the provider's unique identifier for this call
	// (Twilio CallSid). Webhook requests are matched through it.
	ProviderCallID string `json:"provider_call_id"`
}

// ProviderError is a telephony provider rejection: invalid number, quota,
// auth failure, or transport error. Dispatch treats it as terminal for the
// record (no automatic retry).
type ProviderError struct {
	Provider   string
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %s", e.Provider, e.Op, e.StatusCode, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Provider, e.Op, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }
