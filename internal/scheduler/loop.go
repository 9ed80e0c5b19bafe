package scheduler

import (
	"context"
	"log/slog"

	"callsurvey/internal/audit"
	"callsurvey/internal/metrics"
	"callsurvey/internal/schedule"
	"callsurvey/internal/telephony"
)

// Store is the slice of the schedule store the dispatcher needs.
type Store interface {
	ClaimDue(ctx context.Context, limit int) ([]schedule.CallRecord, error)
	MarkDispatched(ctx context.Context, id, providerCallID string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Config tunes a dispatch loop.
type Config struct {
	// VoiceWebhookURL is the absolute URL the provider calls when the callee
	// answers.
	VoiceWebhookURL string

	// BatchSize caps how many due records one tick claims.
	BatchSize int
}

// Loop claims due call records and places outbound calls for them.
//
// Claiming is atomic in the store, so any number of loops can run against the
// same database and a record is dispatched at most once.
type Loop struct {
	store  Store
	dialer telephony.Dialer
	audit  *audit.Service
	log    *slog.Logger
	cfg    Config

	// acquireSlot and releaseSlot enforce a global active-call cap. Optional;
	// nil means unlimited.
	acquireSlot func(ctx context.Context) (bool, error)
	releaseSlot func(ctx context.Context)
}

func NewLoop(store Store, dialer telephony.Dialer, auditSvc *audit.Service, log *slog.Logger, cfg Config, acquireSlot func(ctx context.Context) (bool, error), releaseSlot func(ctx context.Context)) *Loop {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		store:       store,
		dialer:      dialer,
		audit:       auditSvc,
		log:         log,
		cfg:         cfg,
		acquireSlot: acquireSlot,
		releaseSlot: releaseSlot,
	}
}

// Tick runs one dispatch cycle. A store failure skips the cycle; records stay
// pending and are retried next tick.
func (l *Loop) Tick(ctx context.Context) {
	limit := l.cfg.BatchSize

	// Reserve concurrency slots before claiming, so a claimed record always
	// has a slot to run in.
	reserved := 0
	if l.acquireSlot != nil {
		for reserved < limit {
			ok, err := l.acquireSlot(ctx)
			if err != nil {
				l.log.Error("call slot acquire failed", "error", err)
				metrics.Errors.WithLabelValues("scheduler", "slots").Inc()
				break
			}
			if !ok {
				break
			}
			reserved++
		}
		if reserved == 0 {
			return
		}
		limit = reserved
	}

	records, err := l.store.ClaimDue(ctx, limit)
	if err != nil {
		l.log.Error("claim due records failed", "error", err)
		metrics.Errors.WithLabelValues("scheduler", "store").Inc()
		l.release(ctx, reserved)
		return
	}

	// Give back slots reserved beyond what was actually due.
	l.release(ctx, reserved-len(records))

	for _, rec := range records {
		l.dispatch(ctx, rec)
	}
}

func (l *Loop) dispatch(ctx context.Context, rec schedule.CallRecord) {
	log := l.log.With("call_id", rec.ID, "survey_type", rec.SurveyType)

	res, err := l.dialer.PlaceCall(ctx, telephony.OutboundCallRequest{
		To:          rec.PhoneNumber,
		CallbackURL: l.cfg.VoiceWebhookURL,
	})
	if err != nil {
		log.Error("outbound call failed", "error", err)
		metrics.CallsFailed.Inc()
		metrics.Errors.WithLabelValues("scheduler", "provider").Inc()
		if mErr := l.store.MarkFailed(ctx, rec.ID, err.Error()); mErr != nil {
			log.Error("mark failed failed", "error", mErr)
		}
		if l.audit != nil {
			if aErr := l.audit.LogCallFailed(ctx, rec.ID, err.Error()); aErr != nil {
				log.Warn("audit append failed", "error", aErr)
			}
		}
		l.release(ctx, 1)
		return
	}

	log.Info("outbound call placed", "provider_call_id", res.ProviderCallID)
	metrics.CallsDispatched.Inc()
	metrics.CallsActive.Inc()

	// The call is already ringing; a bookkeeping failure here is logged, and
	// the record stays in_progress for operators to inspect.
	if err := l.store.MarkDispatched(ctx, rec.ID, res.ProviderCallID); err != nil {
		log.Error("mark dispatched failed", "error", err)
		metrics.Errors.WithLabelValues("scheduler", "store").Inc()
	}
	if l.audit != nil {
		if err := l.audit.LogCallDispatched(ctx, rec.ID, res.ProviderCallID); err != nil {
			log.Warn("audit append failed", "error", err)
		}
	}
}

func (l *Loop) release(ctx context.Context, n int) {
	if l.releaseSlot == nil {
		return
	}
	for i := 0; i < n; i++ {
		l.releaseSlot(ctx)
	}
}
