package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Subscription fetch outcomes recorded by the synchronizer.
const (
	FetchOutcomeFound     = "found"
	FetchOutcomeNone      = "none"
	FetchOutcomeError     = "error"
	FetchOutcomeDiscarded = "discarded"
)

var (
	subscriptionFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credtrack_subscription_fetch_total",
		Help: "Subscription fetch completions by outcome.",
	}, []string{"outcome"})

	gateDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credtrack_entitlement_gate_denials_total",
		Help: "Entitlement gate denials by check kind and key.",
	}, []string{"kind", "key"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credtrack_http_requests_total",
		Help: "HTTP requests by route, method and status class.",
	}, []string{"route", "method", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credtrack_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)

// RecordSubscriptionFetch counts one synchronizer fetch completion.
func RecordSubscriptionFetch(outcome string) {
	subscriptionFetches.WithLabelValues(outcome).Inc()
}

// RecordGateDenial counts one denied entitlement check. kind is
// "feature", "tier", "doctor_limit" or "state_limit"; key names the
// feature or tier involved.
func RecordGateDenial(kind, key string) {
	gateDenials.WithLabelValues(kind, key).Inc()
}

// ObserveRequest records one completed HTTP request.
func ObserveRequest(route, method, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(route, method, status).Inc()
	httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
