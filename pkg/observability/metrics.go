package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics collection for ARES: labelled
// CounterVecs, plain Counters, one Histogram, and Gauges.
type Metrics struct {
	registry *prometheus.Registry

	verdictsTotal     *prometheus.CounterVec
	verifyDuration    prometheus.Histogram
	validateRejects   *prometheus.CounterVec
	anomaliesTotal    *prometheus.CounterVec
	suspensionsTotal  *prometheus.CounterVec
	rollbacksTotal    *prometheus.CounterVec
	escalationsTotal  prometheus.Counter
	outboxDepth       prometheus.Gauge
	busOverloaded     prometheus.Gauge
	collectErrorTotal prometheus.Counter
}

// NewMetrics builds a Metrics instance from cfg. A disabled config
// returns nil so callers can treat metrics as optional.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{registry: prometheus.NewRegistry()}
	opts := prometheus.Opts{Namespace: cfg.Namespace, ConstLabels: cfg.ConstLabels}

	m.verdictsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "verify", Name: "verdicts_total",
		Help: "Total verification results by verdict.", ConstLabels: opts.ConstLabels,
	}, []string{"verdict"})

	m.verifyDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: opts.Namespace, Subsystem: "verify", Name: "duration_seconds",
		Help: "Time spent running the verification pipeline.", Buckets: prometheus.DefBuckets,
		ConstLabels: opts.ConstLabels,
	})

	m.validateRejects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "validate", Name: "rejected_total",
		Help: "Tool calls rejected by verdict.", ConstLabels: opts.ConstLabels,
	}, []string{"verdict"})

	m.anomaliesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "monitor", Name: "anomalies_total",
		Help: "Behavior anomalies detected, by reason.", ConstLabels: opts.ConstLabels,
	}, []string{"reason"})

	m.suspensionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "monitor", Name: "suspensions_total",
		Help: "Agent suspensions triggered by the Behavior Monitor.", ConstLabels: opts.ConstLabels,
	}, []string{"reason"})

	m.rollbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "rollback", Name: "runs_total",
		Help: "Rollback replays, by resulting checkpoint state.", ConstLabels: opts.ConstLabels,
	}, []string{"state"})

	m.escalationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "rollback", Name: "escalations_total",
		Help: "Rollback escalations after retry budget exhaustion.", ConstLabels: opts.ConstLabels,
	})

	m.outboxDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: opts.Namespace, Subsystem: "bus", Name: "outbox_depth",
		Help: "Current depth of the coordination bus outbox.", ConstLabels: opts.ConstLabels,
	})

	m.busOverloaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: opts.Namespace, Subsystem: "bus", Name: "overloaded",
		Help: "1 if the coordination bus is latched overloaded, else 0.", ConstLabels: opts.ConstLabels,
	})

	m.collectErrorTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: opts.Namespace, Subsystem: "collect", Name: "errors_total",
		Help: "Evidence collection failures (malformed completion evidence).", ConstLabels: opts.ConstLabels,
	})

	m.registry.MustRegister(
		m.verdictsTotal, m.verifyDuration, m.validateRejects, m.anomaliesTotal,
		m.suspensionsTotal, m.rollbacksTotal, m.escalationsTotal, m.outboxDepth,
		m.busOverloaded, m.collectErrorTotal,
	)
	return m, nil
}

func (m *Metrics) RecordVerdict(verdict string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.verdictsTotal.WithLabelValues(verdict).Inc()
	m.verifyDuration.Observe(durationSeconds)
}

func (m *Metrics) RecordValidateReject(verdict string) {
	if m == nil {
		return
	}
	m.validateRejects.WithLabelValues(verdict).Inc()
}

func (m *Metrics) RecordAnomaly(reason string) {
	if m == nil {
		return
	}
	m.anomaliesTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordSuspension(reason string) {
	if m == nil {
		return
	}
	m.suspensionsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordRollback(state string, escalated bool) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(state).Inc()
	if escalated {
		m.escalationsTotal.Inc()
	}
}

func (m *Metrics) SetOutboxDepth(depth int) {
	if m == nil {
		return
	}
	m.outboxDepth.Set(float64(depth))
}

func (m *Metrics) SetBusOverloaded(overloaded bool) {
	if m == nil {
		return
	}
	if overloaded {
		m.busOverloaded.Set(1)
		return
	}
	m.busOverloaded.Set(0)
}

func (m *Metrics) RecordCollectError() {
	if m == nil {
		return
	}
	m.collectErrorTotal.Inc()
}

// Handler returns the HTTP handler serving this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
