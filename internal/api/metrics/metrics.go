// Package metrics defines and registers the custom Prometheus metrics of the
// hospital auth API. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered on the default registry at package init through
// promauto; HTTP request metrics come from echoprometheus in the router.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hms/hospital-auth/internal/core/service"
)

const namespace = "hms_auth"

// ── Login metrics ─────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_input", "invalid_credentials", "locked",
//     "store_unavailable" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// LoginDuration measures end-to-end login latency, dominated by the hash check.
var LoginDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_duration_seconds",
		Help:      "Duration of login requests.",
		Buckets:   prometheus.DefBuckets,
	},
)

// ── Session metrics ───────────────────────────────────────────────────────────

// SessionsActive is the number of live sessions seen by the last sweep.
var SessionsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_active",
		Help:      "Live sessions observed by the most recent expiry sweep.",
	},
)

// SessionEventsTotal counts lifecycle events raised by the expiry monitor.
// Label:
//   - type: "warning" or "expired"
var SessionEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_events_total",
		Help:      "Session warnings and expiries raised by the monitor.",
	},
	[]string{"type"},
)

// SessionSweepDuration measures one expiry monitor tick.
var SessionSweepDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "session_sweep_duration_seconds",
		Help:      "Duration of a session expiry sweep.",
		Buckets:   prometheus.DefBuckets,
	},
)

// SessionSweepErrorsTotal counts sweeps that could not read the session store.
var SessionSweepErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "session_sweep_errors_total",
		Help:      "Total number of failed session expiry sweeps.",
	},
)

// ── Background writes ─────────────────────────────────────────────────────────

// LastLoginWritesTotal counts background last_login updates.
// Label:
//   - result: "ok", "error" or "dropped"
var LastLoginWritesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "last_login_writes_total",
		Help:      "Background last_login updates, by result.",
	},
	[]string{"result"},
)

// ── Administration ────────────────────────────────────────────────────────────

// UserAdminOpsTotal counts successful user administration operations.
// Label:
//   - op: "create", "rename", "role", "status", "delete", "password_reset"
var UserAdminOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "user_admin_ops_total",
		Help:      "User administration operations, by kind.",
	},
	[]string{"op"},
)

// ── Adapters ──────────────────────────────────────────────────────────────────

// SweepObserver feeds expiry monitor results into the session metrics.
type SweepObserver struct{}

func (SweepObserver) ObserveSweep(res service.SweepResult, err error, took time.Duration) {
	SessionSweepDuration.Observe(took.Seconds())
	if err != nil {
		SessionSweepErrorsTotal.Inc()
		return
	}
	SessionsActive.Set(float64(res.Active))
	SessionEventsTotal.WithLabelValues("warning").Add(float64(res.Warned))
	SessionEventsTotal.WithLabelValues("expired").Add(float64(res.Expired))
}

// LastLoginObserver feeds dispatcher outcomes into LastLoginWritesTotal.
type LastLoginObserver struct{}

func (LastLoginObserver) LastLoginWritten(err error) {
	if err != nil {
		LastLoginWritesTotal.WithLabelValues("error").Inc()
		return
	}
	LastLoginWritesTotal.WithLabelValues("ok").Inc()
}

func (LastLoginObserver) LastLoginDropped() {
	LastLoginWritesTotal.WithLabelValues("dropped").Inc()
}
