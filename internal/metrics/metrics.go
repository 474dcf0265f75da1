// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "devflow"

var (
	webhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Webhook deliveries by GitHub event type and outcome.",
	}, []string{"event", "outcome"})

	reviewOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reviews_total",
		Help:      "Finished review runs by the last stage reached.",
	}, []string{"stage"})

	reviewDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "review_duration_seconds",
		Help:      "Wall time of one review run.",
		Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 180},
	})

	llmRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "llm_retries_total",
		Help:      "Rate-limit retries against the LLM backend by operation.",
	}, []string{"operation"})

	degraded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "degraded_total",
		Help:      "Degraded pipeline steps by component and reason.",
	}, []string{"component", "reason"})
)

// webhookEvents is the closed set of event labels; anything else counts as "other".
var webhookEvents = map[string]bool{
	"ping":         true,
	"pull_request": true,
	"unverified":   true,
}

// ObserveWebhook counts one webhook delivery. Event names outside the known
// set share the "other" label so callers cannot grow the series count.
func ObserveWebhook(event, outcome string) {
	if !webhookEvents[event] {
		event = "other"
	}
	webhookDeliveries.WithLabelValues(event, outcome).Inc()
}

// ObserveReview records the final stage and duration of a review run.
func ObserveReview(stage string, seconds float64) {
	reviewOutcomes.WithLabelValues(stage).Inc()
	reviewDuration.Observe(seconds)
}

// ObserveRetry counts one backoff wait for the named operation.
func ObserveRetry(operation string) {
	llmRetries.WithLabelValues(operation).Inc()
}

// ObserveDegraded counts a step that fell back to a degraded value.
func ObserveDegraded(component, reason string) {
	degraded.WithLabelValues(component, reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
