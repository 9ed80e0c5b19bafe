package telephony

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const twilioAPIBase = "https://api.twilio.com"

// TwilioDialer places outbound calls through the Twilio REST API.
// It deliberately avoids the provider SDK; the surface we need is one
// form-encoded POST.
type TwilioDialer struct {
	accountSID string
	authToken  string
	fromNumber string

	baseURL string
	client  *http.Client
}

type TwilioDialerOption func(*TwilioDialer)

// WithTwilioBaseURL overrides the API host (tests).
func WithTwilioBaseURL(u string) TwilioDialerOption {
	return func(d *TwilioDialer) { d.baseURL = strings.TrimRight(u, "/") }
}

// WithTwilioTimeout bounds the whole call-creation request.
func WithTwilioTimeout(t time.Duration) TwilioDialerOption {
	return func(d *TwilioDialer) { d.client.Timeout = t }
}

func NewTwilioDialer(accountSID, authToken, fromNumber string, opts ...TwilioDialerOption) *TwilioDialer {
	d := &TwilioDialer{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    twilioAPIBase,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *TwilioDialer) Name() string { return "twilio" }

func (d *TwilioDialer) PlaceCall(ctx context.Context, req OutboundCallRequest) (OutboundCallResult, error) {
	if req.To == "" || req.CallbackURL == "" {
		return OutboundCallResult{}, &ProviderError{Provider: d.Name(), Op: "place_call", Message: "to and callback_url required"}
	}

	form := url.Values{}
	form.Set("To", req.To)
	form.Set("From", d.fromNumber)
	form.Set("Url", req.CallbackURL)
	// Ring timeout before the provider gives up on the callee.
	form.Set("Timeout", "30")

	endpoint := d.baseURL + "/2010-04-01/Accounts/" + d.accountSID + "/Calls.json"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return OutboundCallResult{}, &ProviderError{Provider: d.Name(), Op: "place_call", Err: err}
	}
	httpReq.SetBasicAuth(d.accountSID, d.authToken)
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return OutboundCallResult{}, &ProviderError{Provider: d.Name(), Op: "place_call", Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(body))
		}
		return OutboundCallResult{}, &ProviderError{
			Provider:   d.Name(),
			Op:         "place_call",
			StatusCode: resp.StatusCode,
			Message:    msg,
		}
	}

	sid := gjson.GetBytes(body, "sid").String()
	if sid == "" {
		return OutboundCallResult{}, &ProviderError{
			Provider:   d.Name(),
			Op:         "place_call",
			StatusCode: resp.StatusCode,
			Message:    "response missing call sid",
		}
	}
	return OutboundCallResult{ProviderCallID: sid}, nil
}
