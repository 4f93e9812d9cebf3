// Package metrics declares the Prometheus collectors shared by the bot runtime.
// Collectors register on the default registry and are served by core/httpserver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quizbot"

var (
	// Updates counts inbound Telegram updates by kind (message, callback, other).
	Updates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tg",
		Name:      "updates_total",
		Help:      "Inbound Telegram updates.",
	}, []string{"kind"})

	// Handled observes handler latency by handler name and status.
	Handled = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "tg",
		Name:      "handler_duration_seconds",
		Help:      "Handler latency.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"handler", "status"})

	// RateLimited counts updates dropped by the per-user rate limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tg",
		Name:      "rate_limited_total",
		Help:      "Updates dropped by the rate limiter.",
	})

	// Sends counts outbound jobs by action and outcome (ok, fail, dropped).
	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sender",
		Name:      "jobs_total",
		Help:      "Outbound Telegram jobs.",
	}, []string{"action", "outcome"})

	// SendRetries counts retries by reason (flood, network).
	SendRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sender",
		Name:      "retries_total",
		Help:      "Outbound retries.",
	}, []string{"reason"})

	// QueueDepth reports the number of queued outbound jobs.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sender",
		Name:      "queue_depth",
		Help:      "Queued outbound jobs.",
	})

	// ActiveSessions reports the size of the active quiz set.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "active_sessions",
		Help:      "Quiz sessions awaiting an answer.",
	})

	// SessionEvents counts session lifecycle transitions.
	SessionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "session_events_total",
		Help:      "Session transitions (start, answered, timeout, finished, pause, resume, stop).",
	}, []string{"event"})

	// Rejections counts guard rejections by reason code.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "quiz",
		Name:      "rejections_total",
		Help:      "Rejected quiz operations.",
	}, []string{"reason"})

	// StoreOps counts document store operations by backend, op and status.
	StoreOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "ops_total",
		Help:      "Document store operations.",
	}, []string{"backend", "op", "status"})
)

// Status maps err onto the status label value.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}
