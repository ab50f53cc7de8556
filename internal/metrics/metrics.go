// Package metrics exposes Prometheus instruments for the chat engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "engagement"

// Reply outcomes.
const (
	OutcomeMatched  = "matched"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
)

var (
	// repliesTotal counts composed replies.
	// Labels: outcome (matched, fallback, error), confidence (high, medium, low)
	repliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "replies_total",
		Help:      "Total replies by outcome and confidence",
	}, []string{"outcome", "confidence"})

	intentHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "intent_hits_total",
		Help:      "Total confident matches by intent id",
	}, []string{"intent"})

	matchScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "match_score",
		Help:      "Adjusted score of the winning intent, 0 when nothing matched",
		Buckets:   []float64{0, 30, 40, 50, 60, 70, 80, 100, 120, 140},
	})

	replyDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "reply_delay_seconds",
		Help:      "Simulated typing delay applied before a reply",
		Buckets:   []float64{0.5, 0.75, 1, 1.5, 2, 2.5},
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "active",
		Help:      "Sessions currently held by the service",
	})

	// Labels: event (created, restored, deleted, expired, cleared)
	sessionEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sessions",
		Name:      "events_total",
		Help:      "Session lifecycle events",
	}, []string{"event"})
)

// RecordReply records one composed reply.
func RecordReply(intentID, confidence string, fallback bool, score, delaySec float64) {
	outcome := OutcomeMatched
	if fallback {
		outcome = OutcomeFallback
	} else {
		intentHitsTotal.WithLabelValues(intentID).Inc()
	}
	repliesTotal.WithLabelValues(outcome, confidence).Inc()
	matchScore.Observe(score)
	replyDelaySeconds.Observe(delaySec)
}

// RecordReplyError records a reply that failed and was replaced by the apology.
func RecordReplyError() {
	repliesTotal.WithLabelValues(OutcomeError, "").Inc()
}

func RecordSessionEvent(event string) {
	sessionEventsTotal.WithLabelValues(event).Inc()
	switch event {
	case "created", "restored":
		sessionsActive.Inc()
	case "deleted", "expired":
		sessionsActive.Dec()
	}
}

// SetActiveSessions resets the gauge, used after loading persisted sessions.
func SetActiveSessions(n int) {
	sessionsActive.Set(float64(n))
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
