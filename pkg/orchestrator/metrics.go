package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the per-process instrumentation surface. It is separate
// from the registry/pipeline so a gateway can opt out entirely
// (EnableMetrics=false) by never attaching one: an Orchestrator's metrics
// field stays nil and each call site checks for nil before recording.
type Metrics struct {
	BargeIns       prometheus.Counter
	ReplyLatency   prometheus.Histogram
	ActiveSessions prometheus.Gauge
	ProviderErrors *prometheus.CounterVec
}

// NewMetrics registers the gateway's counters/gauges/histograms against reg.
// Pass prometheus.NewRegistry() for an isolated registry in tests, or
// prometheus.DefaultRegisterer for process-wide metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BargeIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicegateway_bargein_total",
			Help: "Total number of user barge-ins across all sessions.",
		}),
		ReplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "voicegateway_reply_latency_seconds",
			Help:    "End-to-end latency from user speech end to first assistant audio byte.",
			Buckets: prometheus.DefBuckets,
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voicegateway_active_sessions",
			Help: "Number of sessions currently registered.",
		}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicegateway_provider_errors_total",
			Help: "Provider errors by stage (stt, llm, tts).",
		}, []string{"stage"}),
	}

	reg.MustRegister(m.BargeIns, m.ReplyLatency, m.ActiveSessions, m.ProviderErrors)
	return m
}
