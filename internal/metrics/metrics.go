package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"eventScope/internal/network"
)

const namespace = "eventscope"

// Metrics holds the collectors exported by the server.
type Metrics struct {
	resolveRequests *prometheus.CounterVec
	resolveLatency  *prometheus.HistogramVec
	pipelineRuns    *prometheus.CounterVec
	logsDecoded     *prometheus.CounterVec
	logsSkipped     *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolveRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_requests_total",
			Help:      "Explorer ABI requests by network and upstream status.",
		}, []string{"network", "status"}),
		resolveLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Explorer ABI request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"network"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Event pipeline runs by network and outcome.",
		}, []string{"network", "outcome"}),
		logsDecoded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_decoded_total",
			Help:      "Logs decoded into events.",
		}, []string{"network"}),
		logsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logs_skipped_total",
			Help:      "Logs the contract interface could not decode.",
		}, []string{"network"}),
	}

	collectors := []prometheus.Collector{m.resolveRequests, m.resolveLatency, m.pipelineRuns, m.logsDecoded, m.logsSkipped}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveResolve records one explorer request.
func (m *Metrics) ObserveResolve(net network.Network, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "none"
	}
	m.resolveRequests.WithLabelValues(net.String(), status).Inc()
	m.resolveLatency.WithLabelValues(net.String()).Observe(elapsed.Seconds())
}

// ObserveRun records a pipeline outcome with its decoded and skipped counts.
func (m *Metrics) ObserveRun(net network.Network, outcome string, decoded, skipped int) {
	if m == nil {
		return
	}
	m.pipelineRuns.WithLabelValues(net.String(), outcome).Inc()
	m.logsDecoded.WithLabelValues(net.String()).Add(float64(decoded))
	m.logsSkipped.WithLabelValues(net.String()).Add(float64(skipped))
}
