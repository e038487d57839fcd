// Package metrics exposes orchestrator counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "orchestrator"

// Collector owns its registry so that several collectors can live in one process (tests).
type Collector struct {
	registry *prometheus.Registry

	heartbeats          *prometheus.CounterVec
	heartbeatLatency    prometheus.Histogram
	assignments         prometheus.Counter
	assignmentConflicts prometheus.Counter
	orphansRecovered    prometheus.Counter
	reconcileSweeps     *prometheus.CounterVec
	reconcileUpdates    *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeat_instructions_total",
			Help:      "Heartbeat response entries by instruction.",
		}, []string{"instruction"}),
		heartbeatLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "heartbeat_duration_seconds",
			Help:      "Time spent processing one heartbeat.",
			Buckets:   prometheus.DefBuckets,
		}),
		assignments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_assignments_total",
			Help:      "Jobs handed to a worker.",
		}),
		assignmentConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_assignment_conflicts_total",
			Help:      "Assignment attempts lost to a concurrent writer.",
		}),
		orphansRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_orphans_recovered_total",
			Help:      "Running jobs returned to the queue after their worker went silent.",
		}),
		reconcileSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_sweeps_total",
			Help:      "Endpoint reconciliation sweeps by outcome.",
		}, []string{"outcome"}),
		reconcileUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_updates_total",
			Help:      "Identity record updates by result.",
		}, []string{"result"}),
	}

	c.registry.MustRegister(
		c.heartbeats,
		c.heartbeatLatency,
		c.assignments,
		c.assignmentConflicts,
		c.orphansRecovered,
		c.reconcileSweeps,
		c.reconcileUpdates,
	)
	return c
}

// Registry is exposed for tests and for callers that want to add their own collectors.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// The recording methods are nil-safe so components can run without metrics.

func (c *Collector) RecordInstruction(instruction string) {
	if c == nil {
		return
	}
	c.heartbeats.WithLabelValues(instruction).Inc()
}

func (c *Collector) ObserveHeartbeat(seconds float64) {
	if c == nil {
		return
	}
	c.heartbeatLatency.Observe(seconds)
}

func (c *Collector) RecordAssignment() {
	if c == nil {
		return
	}
	c.assignments.Inc()
}

func (c *Collector) RecordAssignmentConflict() {
	if c == nil {
		return
	}
	c.assignmentConflicts.Inc()
}

func (c *Collector) RecordOrphans(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.orphansRecovered.Add(float64(n))
}

func (c *Collector) RecordSweep(outcome string) {
	if c == nil {
		return
	}
	c.reconcileSweeps.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordEndpointUpdate(result string) {
	if c == nil {
		return
	}
	c.reconcileUpdates.WithLabelValues(result).Inc()
}
