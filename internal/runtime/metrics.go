package runtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the process-wide Prometheus collectors named in
// SPEC_FULL.md's observability expansion: an autopilot iteration gauge,
// an approval decision counter, and a sink flush counter. Runtime
// increments ApprovalDecisions through the approval chain's OnDecide
// callback; nothing in this module updates AutopilotIterations or
// SinkFlushes. The core never dials an exporter itself; callers supply a
// prometheus.Registerer.
var Metrics = struct {
	AutopilotIterations prometheus.Gauge
	ApprovalDecisions   *prometheus.CounterVec
	SinkFlushes         prometheus.Counter
}{
	AutopilotIterations: prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flemma_autopilot_iteration",
		Help: "Current autopilot iteration count for the most recently observed document.",
	}),
	ApprovalDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flemma_approval_decisions_total",
		Help: "Approval resolver chain decisions by decision and resolver name.",
	}, []string{"decision", "resolver"}),
	SinkFlushes: prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flemma_sink_flushes_total",
		Help: "Total number of batched sink flush cycles across all documents.",
	}),
}

var (
	registerMu   sync.Mutex
	registerOnce = map[prometheus.Registerer]bool{}
)

// registerMetrics registers the package's collectors with reg exactly
// once per registerer, tolerating repeated calls from multiple Runtime
// instances sharing a registry.
func registerMetrics(reg prometheus.Registerer) {
	registerMu.Lock()
	defer registerMu.Unlock()
	if registerOnce[reg] {
		return
	}
	registerOnce[reg] = true
	reg.MustRegister(Metrics.AutopilotIterations, Metrics.ApprovalDecisions, Metrics.SinkFlushes)
}
