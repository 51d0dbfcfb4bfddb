package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Upstream, app-token and refresh-cascade metrics. Defined in a standalone
// package so upstream, apptoken and tokenrefresh can record without
// importing the HTTP layer.

var (
	UpstreamAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tunetrail_upstream_attempts_total",
		Help: "Upstream HTTP attempts by provider and outcome",
	}, []string{"provider", "outcome"})

	UpstreamCooldowns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tunetrail_upstream_cooldowns_total",
		Help: "Rate-limit cooldowns started per provider",
	}, []string{"provider"})

	UpstreamAttemptLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunetrail_upstream_attempt_seconds",
		Help:    "Latency of a single upstream attempt",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	AppTokenFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tunetrail_app_token_fetch_total",
		Help: "Application token fetches by provider and result",
	}, []string{"provider", "result"})

	RefreshCascades = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tunetrail_refresh_cascade_total",
		Help: "Side effects applied after a failed provider token refresh",
	}, []string{"action"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, route pattern and status",
	}, []string{"method", "route", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	HTTPInflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_inflight_requests",
		Help: "Requests currently being served",
	})
)

// Outcome labels for UpstreamAttempts.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeTransient   = "transient"
	OutcomeStatus      = "status"
	OutcomeInvalid     = "invalid"
	OutcomeExhausted   = "exhausted"
	OutcomeCanceled    = "canceled"
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		UpstreamAttempts, UpstreamCooldowns, UpstreamAttemptLatency, AppTokenFetches, RefreshCascades,
		HTTPRequests, HTTPDuration, HTTPInflight,
	}
}

// Register registers the metrics on the given registry (or default if nil).
// Safe to call more than once.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range collectors() {
		if err := registerCollector(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// registerCollector ignores duplicates.
func registerCollector(reg prometheus.Registerer, c prometheus.Collector) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return err
		}
	}
	return nil
}
