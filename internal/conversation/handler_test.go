package conversation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"callsurvey/internal/audit"
	"callsurvey/internal/schedule"
	"callsurvey/internal/survey"

	"github.com/gin-gonic/gin"
)

type fakeStore struct {
	rec           schedule.CallRecord
	turns         []schedule.Turn
	completeCalls int
}

func (f *fakeStore) GetByProviderCallID(ctx context.Context, sid string) (schedule.CallRecord, error) {
	if sid != f.rec.ProviderCallID {
		return schedule.CallRecord{}, schedule.ErrNotFound
	}
	return f.rec, nil
}

func (f *fakeStore) Turns(ctx context.Context, callID string) ([]schedule.Turn, error) {
	out := make([]schedule.Turn, len(f.turns))
	copy(out, f.turns)
	return out, nil
}

func (f *fakeStore) AppendQuestion(ctx context.Context, callID, question string) (schedule.Turn, error) {
	t := schedule.Turn{CallID: callID, Index: len(f.turns), Question: question}
	f.turns = append(f.turns, t)
	return t, nil
}

func (f *fakeStore) RecordAnswer(ctx context.Context, callID, answer string) (bool, error) {
	for i := len(f.turns) - 1; i >= 0; i-- {
		if !f.turns[i].Answered() {
			f.turns[i].Answer = answer
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Complete(ctx context.Context, callID string) (bool, error) {
	f.completeCalls++
	if f.rec.Status.Terminal() {
		return false, nil
	}
	f.rec.Status = schedule.StatusCompleted
	return true, nil
}

type stubGenerator struct {
	question string
	done     bool
}

func (s *stubGenerator) GenerateQuestion(ctx context.Context, surveyType string, history []schedule.Turn) (string, bool, error) {
	return s.question, s.done, nil
}

func newTestHandler(t *testing.T, store Store, gen survey.QuestionGenerator, released *int) (*Handler, *audit.MemoryRepo) {
	t.Helper()
	policy := survey.NewPolicy(survey.Config{
		Prefixes: map[string][]string{
			"satisfaction": {"How was your experience?", "Would you recommend us?"},
		},
		MaxTurns: 6,
	}, gen)
	repo := audit.NewMemoryRepo()
	release := func(ctx context.Context) {
		if released != nil {
			*released++
		}
	}
	return NewHandler(store, policy, audit.NewService(repo), nil, "", "", release), repo
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/voice", h.HandleVoice)
	r.POST("/webhooks/twilio/gather", h.HandleGather)
	return r
}

func postWebhook(t *testing.T, r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func inProgressRecord() schedule.CallRecord {
	return schedule.CallRecord{
		ID:             "call-1",
		PhoneNumber:    "+15551234567",
		SurveyType:     "satisfaction",
		Status:         schedule.StatusInProgress,
		ProviderCallID: "CA1",
	}
}

func TestHandleVoice_AsksFirstQuestion(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA1"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, greetingMessage) {
		t.Fatalf("expected greeting in response: %s", body)
	}
	if !strings.Contains(body, "How was your experience?") {
		t.Fatalf("expected first question in response: %s", body)
	}
	if !strings.Contains(body, `action="/webhooks/twilio/gather"`) {
		t.Fatalf("expected gather action: %s", body)
	}
	if len(store.turns) != 1 || store.turns[0].Answered() {
		t.Fatalf("expected one open turn persisted, got %+v", store.turns)
	}
}

func TestHandleVoice_RetryReAsksOpenQuestion(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	store.turns = []schedule.Turn{{CallID: "call-1", Index: 0, Question: "How was your experience?"}}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA1"}})
	if !strings.Contains(w.Body.String(), "How was your experience?") {
		t.Fatalf("expected open question re-asked: %s", w.Body.String())
	}
	if len(store.turns) != 1 {
		t.Fatalf("retry must not mint a new turn, got %d", len(store.turns))
	}
}

func TestGather_FullSurveyFlow(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	released := 0
	h, repo := newTestHandler(t, store, &stubGenerator{done: true}, &released)
	r := newTestRouter(h)

	// Connect: greeting plus opening question.
	postWebhook(t, r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA1"}})

	// First answer leads to the second scripted question.
	w := postWebhook(t, r, "/webhooks/twilio/gather", url.Values{
		"CallSid": {"CA1"}, "SpeechResult": {"It was good"},
	})
	if !strings.Contains(w.Body.String(), "Would you recommend us?") {
		t.Fatalf("expected second question: %s", w.Body.String())
	}

	// Second answer exhausts the script; the generator signals completion.
	w = postWebhook(t, r, "/webhooks/twilio/gather", url.Values{
		"CallSid": {"CA1"}, "SpeechResult": {"Yes, definitely"},
	})
	body := w.Body.String()
	if !strings.Contains(body, closingMessage) || !strings.Contains(body, "<Hangup") {
		t.Fatalf("expected closing and hangup: %s", body)
	}

	if store.rec.Status != schedule.StatusCompleted {
		t.Fatalf("expected completed record, got %s", store.rec.Status)
	}
	if len(store.turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(store.turns))
	}
	for _, tr := range store.turns {
		if !tr.Answered() {
			t.Fatalf("expected every turn answered: %+v", tr)
		}
	}
	if released != 1 {
		t.Fatalf("expected call slot released once, got %d", released)
	}
	evs := repo.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventTypeSurveyCompleted {
		t.Fatalf("expected a completion audit event, got %+v", evs)
	}
}

type scriptedGenerator struct {
	replies []string // empty string means the completion signal
	calls   int
}

func (s *scriptedGenerator) GenerateQuestion(ctx context.Context, surveyType string, history []schedule.Turn) (string, bool, error) {
	i := s.calls
	s.calls++
	if i >= len(s.replies) || s.replies[i] == "" {
		return "", true, nil
	}
	return s.replies[i], false, nil
}

func TestGather_GeneratedFollowUpAfterScript(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	gen := &scriptedGenerator{replies: []string{"What did you like most?", ""}}
	policy := survey.NewPolicy(survey.Config{
		Prefixes: map[string][]string{"satisfaction": {"How was your experience?"}},
		MaxTurns: 3,
	}, gen)
	repo := audit.NewMemoryRepo()
	h := NewHandler(store, policy, audit.NewService(repo), nil, "", "", nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA1"}})
	if !strings.Contains(w.Body.String(), "How was your experience?") {
		t.Fatalf("expected scripted opener: %s", w.Body.String())
	}

	// The answer to the scripted question triggers a generated follow-up.
	w = postWebhook(t, r, "/webhooks/twilio/gather", url.Values{
		"CallSid": {"CA1"}, "SpeechResult": {"Good"},
	})
	if !strings.Contains(w.Body.String(), "What did you like most?") {
		t.Fatalf("expected generated follow-up: %s", w.Body.String())
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator call, got %d", gen.calls)
	}

	// The second answer makes the generator signal completion.
	w = postWebhook(t, r, "/webhooks/twilio/gather", url.Values{
		"CallSid": {"CA1"}, "SpeechResult": {"Nothing else"},
	})
	if !strings.Contains(w.Body.String(), closingMessage) {
		t.Fatalf("expected closing: %s", w.Body.String())
	}

	if store.rec.Status != schedule.StatusCompleted {
		t.Fatalf("expected completed record, got %s", store.rec.Status)
	}
	if len(store.turns) != 2 || store.turns[0].Answer != "Good" || store.turns[1].Answer != "Nothing else" {
		t.Fatalf("expected both answers persisted, got %+v", store.turns)
	}
}

func TestGather_EmptySpeechReprompts(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	store.turns = []schedule.Turn{{CallID: "call-1", Index: 0, Question: "How was your experience?"}}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/gather", url.Values{"CallSid": {"CA1"}})
	body := w.Body.String()
	if !strings.Contains(body, repromptMessage) {
		t.Fatalf("expected reprompt: %s", body)
	}
	if !strings.Contains(body, "/webhooks/twilio/voice") {
		t.Fatalf("expected redirect back to the voice flow: %s", body)
	}
	if store.turns[0].Answered() {
		t.Fatalf("silence must not record an answer")
	}
}

func TestWebhook_UnknownCallHangsUp(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA-unknown"}})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown calls should still get valid markup, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("expected hangup: %s", w.Body.String())
	}
	if len(store.turns) != 0 {
		t.Fatalf("unknown call must not write turns")
	}
}

func TestWebhook_TerminalCallIsNoOp(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	store.rec.Status = schedule.StatusCompleted
	store.turns = []schedule.Turn{{CallID: "call-1", Index: 0, Question: "q", Answer: "a"}}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/gather", url.Values{
		"CallSid": {"CA1"}, "SpeechResult": {"late answer"},
	})
	if !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("expected hangup: %s", w.Body.String())
	}
	if store.completeCalls != 0 {
		t.Fatalf("terminal call must not be completed again")
	}
	if store.turns[0].Answer != "a" {
		t.Fatalf("terminal call must not accept answers")
	}
}

func TestWebhook_MissingCallSidRejected(t *testing.T) {
	store := &fakeStore{rec: inProgressRecord()}
	h, _ := newTestHandler(t, store, &stubGenerator{done: true}, nil)
	r := newTestRouter(h)

	w := postWebhook(t, r, "/webhooks/twilio/voice", url.Values{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
