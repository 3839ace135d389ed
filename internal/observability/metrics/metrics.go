package metrics

import "github.com/prometheus/client_golang/prometheus"

// RoutingMetrics exposes counters/histograms for lead routing flows.
type RoutingMetrics struct {
	decisionsTotal  *prometheus.CounterVec
	reroutesTotal   *prometheus.CounterVec
	classifyLatency *prometheus.HistogramVec
	versionConflict prometheus.Counter
}

func NewRoutingMetrics(reg prometheus.Registerer) *RoutingMetrics {
	m := &RoutingMetrics{
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgate",
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Total routing decisions by outcome and classification",
		}, []string{"outcome", "classification"}),
		reroutesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leadgate",
			Subsystem: "routing",
			Name:      "reroutes_total",
			Help:      "Total reroute disputes by source",
		}, []string{"source"}),
		classifyLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "leadgate",
			Subsystem: "routing",
			Name:      "classify_latency_seconds",
			Help:      "Latency of automatic lead classification",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		versionConflict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "leadgate",
			Subsystem: "routing",
			Name:      "version_conflicts_total",
			Help:      "Optimistic writes rejected because the lead changed underneath",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.decisionsTotal, m.reroutesTotal, m.classifyLatency, m.versionConflict)
	return m
}

func (m *RoutingMetrics) ObserveDecision(outcome, classification string) {
	if m == nil {
		return
	}
	m.decisionsTotal.WithLabelValues(outcome, classification).Inc()
}

func (m *RoutingMetrics) ObserveReroute(source string) {
	if m == nil {
		return
	}
	m.reroutesTotal.WithLabelValues(source).Inc()
}

func (m *RoutingMetrics) ObserveClassifyLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.classifyLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *RoutingMetrics) ObserveVersionConflict() {
	if m == nil {
		return
	}
	m.versionConflict.Inc()
}
