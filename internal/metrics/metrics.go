// Package metrics counts mutations, rejections and log write failures.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "evidenca"

// Recorder holds the counters. A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry       *prometheus.Registry
	stockMutations *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	logFailures    *prometheus.CounterVec
	deviceEvents   *prometheus.CounterVec
	edits          *prometheus.CounterVec
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		stockMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_mutations_total",
			Help:      "Accepted stock changes by audit action.",
		}, []string{"action"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Rejected operations by operation and error kind.",
		}, []string{"operation", "kind"}),
		logFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_write_failures_total",
			Help:      "Audit or history writes that failed after a committed mutation.",
		}, []string{"log"}),
		deviceEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_events_total",
			Help:      "Device lifecycle transitions by event type.",
		}, []string{"event"}),
		edits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cell_edits_total",
			Help:      "Applied single-cell edits by category kind.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.stockMutations, r.rejections, r.logFailures, r.deviceEvents, r.edits)
	return r
}

// Registry returns the registry the counters are registered with.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// StockMutation counts an accepted stock change.
func (r *Recorder) StockMutation(action string) {
	if r == nil {
		return
	}
	r.stockMutations.WithLabelValues(action).Inc()
}

// Rejection counts a failed operation.
func (r *Recorder) Rejection(operation, kind string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(operation, kind).Inc()
}

// LogFailure counts a failed audit, history or device log write.
func (r *Recorder) LogFailure(log string) {
	if r == nil {
		return
	}
	r.logFailures.WithLabelValues(log).Inc()
}

// DeviceEvent counts an assign or return.
func (r *Recorder) DeviceEvent(event string) {
	if r == nil {
		return
	}
	r.deviceEvents.WithLabelValues(event).Inc()
}

// Edit counts an applied cell edit.
func (r *Recorder) Edit(kind string) {
	if r == nil {
		return
	}
	r.edits.WithLabelValues(kind).Inc()
}
