package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects Prometheus series for a Registry. It is optional:
// a nil *Metrics disables collection without branching at call sites,
// since every method is a no-op on a nil receiver.
type Metrics struct {
	sessionsActive     prometheus.Gauge
	preflightGauge     prometheus.Gauge
	operationsTotal    *prometheus.CounterVec
	recipientsRejected prometheus.Counter
	operationLatency   *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metrics     *Metrics
)

// NewMetrics registers the engine's series on reg and returns the
// collector handle. Registration happens at most once per process,
// mirroring the teacher's defensive one-time-init idiom: a second call
// (e.g. from both cmd/smimed and a test) returns the same instance
// instead of panicking on a duplicate prometheus registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(reg)
	})
	return metrics
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smime",
			Name:      "sessions_active",
			Help:      "Sessions currently registered with the host loop.",
		}),
		preflightGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smime",
			Name:      "preflight_sessions",
			Help:      "Sessions currently spawning/staging.",
		}),
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smime",
			Name:      "operations_total",
			Help:      "Total operations completed, by command and result.",
		}, []string{"op", "result"}),
		recipientsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smime",
			Name:      "recipients_rejected_total",
			Help:      "Total recipients rejected with INV_RECP during Encrypt.",
		}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "smime",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of a session from Open to Done.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(m.sessionsActive, m.preflightGauge, m.operationsTotal, m.recipientsRejected, m.operationLatency)
	return m
}

// SetOccupancy publishes current preflight/onflight occupancy.
func (m *Metrics) SetOccupancy(preflight, onflight int64) {
	if m == nil {
		return
	}
	m.preflightGauge.Set(float64(preflight))
	m.sessionsActive.Set(float64(onflight))
}

// Operation records a completed session: op is the wire command staged
// ("DECRYPT", "ENCRYPT", ... or "" if none was staged), result is "ok"
// or "error".
func (m *Metrics) Operation(op, result string) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operationsTotal.WithLabelValues(op, result).Inc()
}

// ObserveOperation records how long a session ran from Open to Done.
func (m *Metrics) ObserveOperation(op string, seconds float64) {
	if m == nil {
		return
	}
	if op == "" {
		op = "unknown"
	}
	m.operationLatency.WithLabelValues(op).Observe(seconds)
}

// RecipientRejected increments the INV_RECP counter.
func (m *Metrics) RecipientRejected() {
	if m != nil {
		m.recipientsRejected.Inc()
	}
}
