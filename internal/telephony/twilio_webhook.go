package telephony

import (
	"net/http"
	"strings"
)

// VoiceWebhookForm captures the subset of Twilio voice webhook fields the
// conversation handler cares about. Twilio sends
// application/x-www-form-urlencoded by default.
//
// Keep it minimal and provider-adapter-only; conversation decisions are not
// made here.
type VoiceWebhookForm struct {
	CallSid    string
	AccountSid string
	From       string
	To         string
	Direction  string
	CallStatus string

	// SpeechResult is the transcribed utterance; empty on the initial connect
	// webhook and when the caller stayed silent.
	SpeechResult string

	// Confidence is Twilio's transcription confidence, passed through as-is.
	Confidence string
}

func ParseVoiceWebhook(r *http.Request) (VoiceWebhookForm, error) {
	if err := r.ParseForm(); err != nil {
		return VoiceWebhookForm{}, err
	}
	f := VoiceWebhookForm{
		CallSid:      r.PostFormValue("CallSid"),
		AccountSid:   r.PostFormValue("AccountSid"),
		From:         normalizePhone(r.PostFormValue("From")),
		To:           normalizePhone(r.PostFormValue("To")),
		Direction:    r.PostFormValue("Direction"),
		CallStatus:   r.PostFormValue("CallStatus"),
		SpeechResult: strings.TrimSpace(r.PostFormValue("SpeechResult")),
		Confidence:   r.PostFormValue("Confidence"),
	}
	return f, nil
}

func normalizePhone(s string) string {
	s = strings.TrimSpace(s)
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return s
}
