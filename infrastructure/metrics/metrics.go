// Package metrics provides Prometheus instrumentation for the
// coordinator's control plane, modeled on the teacher's
// infrastructure/metrics package: one Metrics struct, collectors
// registered at construction, typed Record*/Set* helpers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the coordinator updates.
type Metrics struct {
	// HTTP submission surface
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// NodeRegistry
	ConnectedNodes      *prometheus.GaugeVec // labeled by tier
	NodeHeartbeatsTotal  prometheus.Counter
	CircuitBreakerTrips  *prometheus.CounterVec // labeled by node_id
	CircuitBreakerOpen   prometheus.Gauge

	// TaskOrchestrator
	TasksSubmittedTotal  *prometheus.CounterVec // labeled by mode
	TasksCompletedTotal  *prometheus.CounterVec // labeled by status
	TaskDuration         *prometheus.HistogramVec
	SubtaskAssignRetries prometheus.Counter
	SubtaskTimeouts      prometheus.Counter

	// StreamHub
	StreamQueueDepth  prometheus.Gauge
	StreamChunksTotal prometheus.Counter
	StreamDropsTotal  prometheus.Counter

	// Reputation
	ReputationDecayRuns prometheus.Counter
}

// New creates a Metrics instance registered against the default
// registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a
// caller-supplied registerer, useful for isolated tests.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iris_http_requests_total",
				Help: "Total number of client submission-surface HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iris_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "iris_http_requests_in_flight",
				Help: "Current number of in-flight HTTP requests.",
			},
		),
		ConnectedNodes: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "iris_connected_nodes",
				Help: "Current number of connected worker nodes, by tier.",
			},
			[]string{"tier"},
		),
		NodeHeartbeatsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_node_heartbeats_total",
				Help: "Total number of HEARTBEAT frames processed.",
			},
		),
		CircuitBreakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iris_circuit_breaker_trips_total",
				Help: "Total number of times a worker's circuit breaker opened.",
			},
			[]string{"node_id"},
		),
		CircuitBreakerOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "iris_circuit_breaker_open_count",
				Help: "Current number of worker circuit breakers in the open state.",
			},
		),
		TasksSubmittedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iris_tasks_submitted_total",
				Help: "Total number of tasks submitted, by mode.",
			},
			[]string{"mode"},
		),
		TasksCompletedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "iris_tasks_completed_total",
				Help: "Total number of tasks reaching a terminal status.",
			},
			[]string{"status"},
		),
		TaskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "iris_task_duration_seconds",
				Help:    "Time from task creation to terminal status.",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
			},
			[]string{"mode", "difficulty"},
		),
		SubtaskAssignRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_subtask_assign_retries_total",
				Help: "Total number of subtask assignment retries.",
			},
		),
		SubtaskTimeouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_subtask_timeouts_total",
				Help: "Total number of subtasks that reached the Timeout status.",
			},
		),
		StreamQueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "iris_stream_queue_depth",
				Help: "Current total depth across all live stream session queues.",
			},
		),
		StreamChunksTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_stream_chunks_total",
				Help: "Total number of stream chunks pushed.",
			},
		),
		StreamDropsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_stream_drops_total",
				Help: "Total number of stream chunks dropped due to a full queue.",
			},
		),
		ReputationDecayRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "iris_reputation_decay_runs_total",
				Help: "Total number of weekly reputation decay sweeps run.",
			},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.RequestsTotal,
			m.RequestDuration,
			m.RequestsInFlight,
			m.ConnectedNodes,
			m.NodeHeartbeatsTotal,
			m.CircuitBreakerTrips,
			m.CircuitBreakerOpen,
			m.TasksSubmittedTotal,
			m.TasksCompletedTotal,
			m.TaskDuration,
			m.SubtaskAssignRetries,
			m.SubtaskTimeouts,
			m.StreamQueueDepth,
			m.StreamChunksTotal,
			m.StreamDropsTotal,
			m.ReputationDecayRuns,
		)
	}

	return m
}

// RecordHTTPRequest records one client-submission-surface request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCircuitBreakerTrip records a breaker's Closed/HalfOpen -> Open
// transition for nodeID.
func (m *Metrics) RecordCircuitBreakerTrip(nodeID string) {
	m.CircuitBreakerTrips.WithLabelValues(nodeID).Inc()
	m.CircuitBreakerOpen.Inc()
}

// RecordCircuitBreakerRecovery records a breaker returning to Closed.
func (m *Metrics) RecordCircuitBreakerRecovery() {
	m.CircuitBreakerOpen.Dec()
}

// RecordTaskSubmitted records a task entering Pending.
func (m *Metrics) RecordTaskSubmitted(mode string) {
	m.TasksSubmittedTotal.WithLabelValues(mode).Inc()
}

// RecordTaskTerminal records a task reaching a terminal status.
func (m *Metrics) RecordTaskTerminal(mode, difficulty, status string, duration time.Duration) {
	m.TasksCompletedTotal.WithLabelValues(status).Inc()
	m.TaskDuration.WithLabelValues(mode, difficulty).Observe(duration.Seconds())
}

// RecordNodeConnected records a worker entering the connection table
// under the given tier.
func (m *Metrics) RecordNodeConnected(tier string) {
	m.ConnectedNodes.WithLabelValues(tier).Inc()
}

// RecordNodeDisconnected records a worker leaving the connection table.
func (m *Metrics) RecordNodeDisconnected(tier string) {
	m.ConnectedNodes.WithLabelValues(tier).Dec()
}

// RecordStreamChunk records one chunk successfully enqueued onto a
// StreamHub session.
func (m *Metrics) RecordStreamChunk() {
	m.StreamChunksTotal.Inc()
}

// RecordStreamDrop records one chunk dropped because its session's
// queue was full or no longer exists.
func (m *Metrics) RecordStreamDrop() {
	m.StreamDropsTotal.Inc()
}

// SetStreamQueueDepth sets the current total depth across every live
// stream session queue, sampled at each sweep.
func (m *Metrics) SetStreamQueueDepth(depth float64) {
	m.StreamQueueDepth.Set(depth)
}

// RecordReputationDecayRun records one completed weekly decay sweep.
func (m *Metrics) RecordReputationDecayRun() {
	m.ReputationDecayRuns.Inc()
}
