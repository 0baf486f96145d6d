// Package metrics provides Prometheus metrics for the token lifecycle:
// refresh episodes, request retries, scheduler wakes and session
// invalidations.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/tokenkeeper/internal/common"
)

// Metrics holds all collectors. A nil or disabled Metrics records nothing.
type Metrics struct {
	enabled  bool
	registry *prometheus.Registry

	refreshEpisodesTotal prometheus.Counter
	refreshJoinsTotal    prometheus.Counter
	refreshResultsTotal  *prometheus.CounterVec
	refreshDuration      prometheus.Histogram

	requestRetriesTotal *prometheus.CounterVec
	localRefusalsTotal  prometheus.Counter

	schedulerWakesTotal prometheus.Counter
	schedulerArmed      prometheus.Gauge

	invalidationsTotal *prometheus.CounterVec
}

// New creates metrics on a private registry. If enabled is false, returns a
// no-op Metrics instance.
func New(enabled bool) *Metrics {
	m := &Metrics{enabled: enabled}
	if !enabled {
		return m
	}

	m.registry = prometheus.NewRegistry()
	f := promauto.With(m.registry)

	m.refreshEpisodesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tokenkeeper_refresh_episodes_total",
		Help: "Renewal round trips started",
	})
	m.refreshJoinsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tokenkeeper_refresh_joins_total",
		Help: "Refresh requests that joined an episode already in flight",
	})
	m.refreshResultsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenkeeper_refresh_results_total",
		Help: "Finished refresh episodes by outcome",
	}, []string{"outcome"})
	m.refreshDuration = f.NewHistogram(prometheus.HistogramOpts{
		Name:    "tokenkeeper_refresh_duration_seconds",
		Help:    "Refresh episode duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	m.requestRetriesTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenkeeper_request_retries_total",
		Help: "Requests re-issued after a 401 and a refresh",
	}, []string{"transport"})
	m.localRefusalsTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tokenkeeper_request_local_refusals_total",
		Help: "Protected requests refused without a network call",
	})

	m.schedulerWakesTotal = f.NewCounter(prometheus.CounterOpts{
		Name: "tokenkeeper_scheduler_wakes_total",
		Help: "Proactive refresh wakes fired",
	})
	m.schedulerArmed = f.NewGauge(prometheus.GaugeOpts{
		Name: "tokenkeeper_scheduler_armed",
		Help: "1 while a proactive refresh wake is pending",
	})

	m.invalidationsTotal = f.NewCounterVec(prometheus.CounterOpts{
		Name: "tokenkeeper_session_invalidations_total",
		Help: "Sessions cleared after a terminal failure",
	}, []string{"reason"})

	return m
}

func (m *Metrics) on() bool { return m != nil && m.enabled }

// Handler serves the registry in the Prometheus text format at /metrics.
func (m *Metrics) Handler() http.Handler {
	r := chi.NewRouter()
	if !m.on() {
		r.Get("/metrics", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics disabled", http.StatusNotFound)
		})
		return r
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return r
}

// Registry exposes the underlying registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if !m.on() {
		return nil
	}
	return m.registry
}

// RecordRefreshStarted counts a new renewal round trip.
func (m *Metrics) RecordRefreshStarted() {
	if !m.on() {
		return
	}
	m.refreshEpisodesTotal.Inc()
}

// RecordRefreshJoined counts a caller that piggybacked on an in-flight episode.
func (m *Metrics) RecordRefreshJoined() {
	if !m.on() {
		return
	}
	m.refreshJoinsTotal.Inc()
}

// RecordRefreshResult records the outcome of a finished episode.
func (m *Metrics) RecordRefreshResult(err error, took time.Duration) {
	if !m.on() {
		return
	}
	m.refreshResultsTotal.WithLabelValues(Outcome(err)).Inc()
	m.refreshDuration.Observe(took.Seconds())
}

// RecordRetry counts a request re-issued after a refresh.
func (m *Metrics) RecordRetry(transport string) {
	if !m.on() {
		return
	}
	m.requestRetriesTotal.WithLabelValues(transport).Inc()
}

func (m *Metrics) RecordLocalRefusal() {
	if !m.on() {
		return
	}
	m.localRefusalsTotal.Inc()
}

func (m *Metrics) RecordSchedulerWake() {
	if !m.on() {
		return
	}
	m.schedulerWakesTotal.Inc()
}

// SetSchedulerArmed sets the armed gauge (0=unarmed, 1=armed).
func (m *Metrics) SetSchedulerArmed(armed bool) {
	if !m.on() {
		return
	}
	v := 0.0
	if armed {
		v = 1.0
	}
	m.schedulerArmed.Set(v)
}

// RecordInvalidation counts a session cleared for reason.
func (m *Metrics) RecordInvalidation(reason error) {
	if !m.on() {
		return
	}
	m.invalidationsTotal.WithLabelValues(Outcome(reason)).Inc()
}

// Outcome maps an error to a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrRenewalRejected):
		return "rejected"
	case errors.Is(err, common.ErrRenewalTimeout):
		return "timeout"
	case errors.Is(err, common.ErrRenewalNetwork):
		return "network"
	case errors.Is(err, common.ErrRenewalMalformed):
		return "malformed"
	case errors.Is(err, common.ErrTokenAbsent):
		return "absent"
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrTokenMalformed):
		return "token"
	case errors.Is(err, common.ErrRequestUnauthorized), errors.Is(err, common.ErrNotAuthenticated):
		return "unauthorized"
	default:
		return "other"
	}
}
