package telephony

import (
	"bytes"
	"encoding/xml"
	"errors"
)

// VoiceResponse is a minimal Twilio Markup Language response builder.
// It intentionally avoids any provider SDK dependency.
//
// Only the verbs the survey conversation needs are included.

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

type twimlGather struct {
	XMLName       xml.Name  `xml:"Gather"`
	Input         string    `xml:"input,attr,omitempty"`
	Action        string    `xml:"action,attr,omitempty"`
	Method        string    `xml:"method,attr,omitempty"`
	Timeout       int       `xml:"timeout,attr,omitempty"`
	SpeechTimeout string    `xml:"speechTimeout,attr,omitempty"`
	Say           *twimlSay `xml:"Say,omitempty"`
}

// VoiceResponse accumulates TwiML verbs in order.
type VoiceResponse struct {
	verbs []any
}

func NewVoiceResponse() *VoiceResponse { return &VoiceResponse{} }

// Say speaks text to the caller.
func (v *VoiceResponse) Say(text string) *VoiceResponse {
	v.verbs = append(v.verbs, twimlSay{Text: text})
	return v
}

// Pause waits the given number of seconds before the next verb.
func (v *VoiceResponse) Pause(seconds int) *VoiceResponse {
	v.verbs = append(v.verbs, twimlPause{Length: seconds})
	return v
}

// GatherSpeech speaks prompt and captures the caller's spoken reply, which the
// provider transcribes and POSTs to action.
func (v *VoiceResponse) GatherSpeech(action, prompt string, timeoutSeconds int) *VoiceResponse {
	v.verbs = append(v.verbs, twimlGather{
		Input:         "speech",
		Action:        action,
		Method:        "POST",
		Timeout:       timeoutSeconds,
		SpeechTimeout: "auto",
		Say:           &twimlSay{Text: prompt},
	})
	return v
}

// Redirect re-enters the flow at the given webhook URL.
func (v *VoiceResponse) Redirect(url string) *VoiceResponse {
	v.verbs = append(v.verbs, twimlRedirect{Method: "POST", URL: url})
	return v
}

// Hangup ends the call.
func (v *VoiceResponse) Hangup() *VoiceResponse {
	v.verbs = append(v.verbs, twimlHangup{})
	return v
}

// Render encodes the response as TwiML.
func (v *VoiceResponse) Render() (string, error) {
	if len(v.verbs) == 0 {
		return "", errors.New("telephony: empty voice response")
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(twimlResponse{Verbs: v.verbs}); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
