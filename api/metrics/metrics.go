package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WebhookRequestsTotal counts Stripe webhook requests by event type and status.
	WebhookRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stripe_registration",
		Subsystem: "webhook",
		Name:      "requests_total",
		Help:      "Total Stripe webhook requests by event type and HTTP status.",
	}, []string{"event_type", "status"})

	// WebhookDuration tracks Stripe webhook processing latency.
	WebhookDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "stripe_registration",
		Subsystem: "webhook",
		Name:      "duration_seconds",
		Help:      "Stripe webhook processing duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"event_type"})

	// MirrorWritesTotal counts writes to the local subscription mirror by operation and outcome.
	MirrorWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stripe_registration",
		Subsystem: "mirror",
		Name:      "writes_total",
		Help:      "Local subscription mirror writes by operation (create/update/delete) and outcome.",
	}, []string{"op", "outcome"})

	// SubscriptionActionsTotal counts user-facing cancel/reactivate actions by outcome.
	SubscriptionActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stripe_registration",
		Subsystem: "subscription",
		Name:      "actions_total",
		Help:      "Cancel and reactivate requests by outcome.",
	}, []string{"action", "outcome"})
)
