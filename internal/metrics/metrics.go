package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callsurvey_calls_dispatched_total",
		Help: "Outbound calls successfully requested from the telephony provider",
	})

	CallsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callsurvey_calls_failed_total",
		Help: "Scheduled calls marked failed at dispatch",
	})

	CallsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callsurvey_calls_completed_total",
		Help: "Surveys that reached completion",
	})

	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callsurvey_calls_active",
		Help: "Calls currently between dispatch and a terminal status",
	})

	TurnsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callsurvey_turns_recorded_total",
		Help: "Answered question/answer turns persisted",
	})

	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "callsurvey_webhook_duration_seconds",
		Help:    "Voice webhook handling latency",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"endpoint"})

	LLMDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callsurvey_llm_duration_seconds",
		Help:    "Follow-up question generation latency",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callsurvey_errors_total",
		Help: "Error counts by stage",
	}, []string{"stage", "error_type"})
)
