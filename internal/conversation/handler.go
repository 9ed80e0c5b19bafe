package conversation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"callsurvey/internal/audit"
	"callsurvey/internal/metrics"
	"callsurvey/internal/schedule"
	"callsurvey/internal/survey"
	"callsurvey/internal/telephony"
	"callsurvey/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Store is the slice of the schedule store the conversation needs. The call
// state is whatever the store says it is; the handler keeps nothing in memory,
// so any instance can serve any webhook.
type Store interface {
	GetByProviderCallID(ctx context.Context, providerCallID string) (schedule.CallRecord, error)
	Turns(ctx context.Context, callID string) ([]schedule.Turn, error)
	AppendQuestion(ctx context.Context, callID, question string) (schedule.Turn, error)
	RecordAnswer(ctx context.Context, callID, answer string) (bool, error)
	Complete(ctx context.Context, callID string) (bool, error)
}

const (
	greetingMessage = "Hello! This is a quick automated survey call from customer care. It only takes a minute."
	closingMessage  = "Thank you so much for your time and feedback. Have a great day. Goodbye!"
	repromptMessage = "Sorry, I did not catch that."
	silenceGoodbye  = "It seems this is not a good time. Thank you, goodbye!"
	unknownGoodbye  = "Sorry, we could not match this call. Goodbye!"

	gatherTimeoutSeconds = 5
)

// Handler serves the telephony provider's voice webhooks and drives the
// question/answer loop for a call.
type Handler struct {
	store  Store
	policy *survey.Policy
	audit  *audit.Service
	log    *slog.Logger

	voicePath  string
	gatherPath string

	// releaseSlot frees the global concurrency slot once the call reaches a
	// terminal status. Optional.
	releaseSlot func(ctx context.Context)
}

func NewHandler(store Store, policy *survey.Policy, auditSvc *audit.Service, log *slog.Logger, voicePath, gatherPath string, releaseSlot func(ctx context.Context)) *Handler {
	if voicePath == "" {
		voicePath = "/webhooks/twilio/voice"
	}
	if gatherPath == "" {
		gatherPath = "/webhooks/twilio/gather"
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		store:       store,
		policy:      policy,
		audit:       auditSvc,
		log:         log,
		voicePath:   voicePath,
		gatherPath:  gatherPath,
		releaseSlot: releaseSlot,
	}
}

// HandleVoice answers the initial connect webhook. It also absorbs provider
// retries and silence redirects: the next action is always derived from the
// persisted turn history, never from in-process state.
func (h *Handler) HandleVoice(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues("voice").Observe(time.Since(start).Seconds())
	}()

	form, ok := h.parseForm(c)
	if !ok {
		return
	}
	log := logger.WithCall(h.log, form.CallSid)

	rec, ok := h.lookup(c, log, form.CallSid)
	if !ok {
		return
	}
	if rec.Status.Terminal() {
		// Duplicate delivery after the survey ended. Answer politely, change nothing.
		h.respond(c, telephony.NewVoiceResponse().Say(closingMessage).Hangup())
		return
	}

	turns, err := h.store.Turns(c.Request.Context(), rec.ID)
	if err != nil {
		h.storeError(c, log, "load turns", err)
		return
	}

	// A question asked but unanswered means this is a retry or a silence
	// redirect; re-ask it rather than minting a new turn.
	if n := len(turns); n > 0 && !turns[n-1].Answered() {
		vr := telephony.NewVoiceResponse()
		h.askQuestion(vr, turns[n-1].Question, true)
		h.respond(c, vr)
		return
	}

	if len(turns) == 0 {
		q := h.policy.FirstQuestion(rec.SurveyType)
		if _, err := h.store.AppendQuestion(c.Request.Context(), rec.ID, q); err != nil {
			h.storeError(c, log, "append question", err)
			return
		}
		log.Info("survey started", "call_id", rec.ID, "survey_type", rec.SurveyType)
		vr := telephony.NewVoiceResponse().Say(greetingMessage)
		h.askQuestion(vr, q, false)
		h.respond(c, vr)
		return
	}

	// All turns answered but the call re-entered the voice flow; pick up where
	// the history says we are.
	h.advance(c, log, rec, turns)
}

// HandleGather receives the transcribed answer and either asks the next
// question or wraps up the survey.
func (h *Handler) HandleGather(c *gin.Context) {
	start := time.Now()
	defer func() {
		metrics.WebhookDuration.WithLabelValues("gather").Observe(time.Since(start).Seconds())
	}()

	form, ok := h.parseForm(c)
	if !ok {
		return
	}
	log := logger.WithCall(h.log, form.CallSid)

	rec, ok := h.lookup(c, log, form.CallSid)
	if !ok {
		return
	}
	if rec.Status.Terminal() {
		h.respond(c, telephony.NewVoiceResponse().Say(closingMessage).Hangup())
		return
	}

	if form.SpeechResult == "" {
		// Silence or an unintelligible utterance; loop back through the voice
		// flow, which re-asks the open question.
		h.respond(c, telephony.NewVoiceResponse().Say(repromptMessage).Redirect(h.voicePath))
		return
	}

	recorded, err := h.store.RecordAnswer(c.Request.Context(), rec.ID, form.SpeechResult)
	if err != nil {
		h.storeError(c, log, "record answer", err)
		return
	}
	if recorded {
		metrics.TurnsRecorded.Inc()
		log.Info("answer recorded", "call_id", rec.ID, "confidence", form.Confidence)
	} else {
		// No open turn: a duplicate delivery of an answer we already hold.
		// Fall through and re-derive the next action from the history.
		log.Warn("duplicate answer delivery ignored", "call_id", rec.ID)
	}

	turns, err := h.store.Turns(c.Request.Context(), rec.ID)
	if err != nil {
		h.storeError(c, log, "load turns", err)
		return
	}
	h.advance(c, log, rec, turns)
}

// advance asks the next question or finishes the survey, based purely on the
// answered history.
func (h *Handler) advance(c *gin.Context, log *slog.Logger, rec schedule.CallRecord, turns []schedule.Turn) {
	ctx := c.Request.Context()

	q, done := h.policy.Next(ctx, rec.SurveyType, turns)
	if done {
		h.finish(c, log, rec, turns)
		return
	}

	t, err := h.store.AppendQuestion(ctx, rec.ID, q)
	if err != nil {
		h.storeError(c, log, "append question", err)
		return
	}
	vr := telephony.NewVoiceResponse()
	h.askQuestion(vr, t.Question, false)
	h.respond(c, vr)
}

func (h *Handler) finish(c *gin.Context, log *slog.Logger, rec schedule.CallRecord, turns []schedule.Turn) {
	ctx := c.Request.Context()

	completed, err := h.store.Complete(ctx, rec.ID)
	if err != nil {
		h.storeError(c, log, "complete call", err)
		return
	}
	if completed {
		answered := 0
		for _, t := range turns {
			if t.Answered() {
				answered++
			}
		}
		log.Info("survey completed", "call_id", rec.ID, "turns", answered)
		metrics.CallsCompleted.Inc()
		metrics.CallsActive.Dec()
		if h.audit != nil {
			if err := h.audit.LogSurveyCompleted(ctx, rec.ID, rec.ProviderCallID, answered); err != nil {
				log.Warn("audit append failed", "error", err)
			}
		}
		if h.releaseSlot != nil {
			h.releaseSlot(ctx)
		}
	}

	h.respond(c, telephony.NewVoiceResponse().Say(closingMessage).Hangup())
}

// askQuestion appends a speech gather for q. On silence the first ask loops
// back through the voice flow for one retry; a retry says goodbye instead, so
// a silent line cannot loop forever.
func (h *Handler) askQuestion(vr *telephony.VoiceResponse, q string, retry bool) {
	vr.GatherSpeech(h.gatherPath, q, gatherTimeoutSeconds)
	if retry {
		vr.Say(silenceGoodbye).Hangup()
	} else {
		vr.Redirect(h.voicePath)
	}
}

func (h *Handler) parseForm(c *gin.Context) (telephony.VoiceWebhookForm, bool) {
	form, err := telephony.ParseVoiceWebhook(c.Request)
	if err != nil || form.CallSid == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid webhook payload"})
		return telephony.VoiceWebhookForm{}, false
	}
	return form, true
}

// lookup resolves the provider call id. Unknown calls get a polite hangup, not
// an error, so the provider does not retry them.
func (h *Handler) lookup(c *gin.Context, log *slog.Logger, callSid string) (schedule.CallRecord, bool) {
	rec, err := h.store.GetByProviderCallID(c.Request.Context(), callSid)
	if errors.Is(err, schedule.ErrNotFound) {
		log.Warn("webhook for unknown call")
		h.respond(c, telephony.NewVoiceResponse().Say(unknownGoodbye).Hangup())
		return schedule.CallRecord{}, false
	}
	if err != nil {
		h.storeError(c, log, "lookup call", err)
		return schedule.CallRecord{}, false
	}
	return rec, true
}

func (h *Handler) storeError(c *gin.Context, log *slog.Logger, op string, err error) {
	log.Error("store failure", "op", op, "error", err)
	metrics.Errors.WithLabelValues("webhook", "store").Inc()
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func (h *Handler) respond(c *gin.Context, vr *telephony.VoiceResponse) {
	body, err := vr.Render()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, "text/xml; charset=utf-8", []byte(body))
}
