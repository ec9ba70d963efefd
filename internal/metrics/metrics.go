// Package metrics provides Prometheus metrics for the moderation engine
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. It satisfies
// moderation.Instrumentation.
type Metrics struct {
	OperationsTotal    *prometheus.CounterVec
	OperationDuration  *prometheus.HistogramVec
	SideEffectFailures *prometheus.CounterVec
	QueueDepth         *prometheus.GaugeVec
	ReconcileRepairs   *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	ImportedEntries    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_operations_total",
				Help: "Total number of engine operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lexicon_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		SideEffectFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_side_effect_failures_total",
				Help: "Activity records and notifications that failed after a committed change",
			},
			[]string{"kind"},
		),
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lexicon_queue_depth",
				Help: "Items waiting in a moderation queue at the last listing",
			},
			[]string{"queue"},
		),
		ReconcileRepairs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_reconcile_repairs_total",
				Help: "Inconsistent states repaired by the reconciler",
			},
			[]string{"anomaly"},
		),
		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_notifications_total",
				Help: "Notifications handed to a delivery channel",
			},
			[]string{"channel", "status"},
		),
		ImportedEntries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexicon_imported_entries_total",
				Help: "Rows processed by bulk import",
			},
			[]string{"status"},
		),
	}
}

// ObserveOperation records an operation with its outcome
func (m *Metrics) ObserveOperation(op, outcome string, seconds float64) {
	m.OperationsTotal.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(seconds)
}

// SideEffectFailed counts a failed best-effort side effect
func (m *Metrics) SideEffectFailed(kind string) {
	m.SideEffectFailures.WithLabelValues(kind).Inc()
}

// SetQueueDepth records the size of a queue
func (m *Metrics) SetQueueDepth(queue string, depth int) {
	m.QueueDepth.WithLabelValues(queue).Set(float64(depth))
}

// Repaired counts a reconciler repair
func (m *Metrics) Repaired(anomaly string) {
	m.ReconcileRepairs.WithLabelValues(anomaly).Inc()
}

// NotificationSent counts a delivery attempt on a channel
func (m *Metrics) NotificationSent(channel string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// Imported counts one processed import row
func (m *Metrics) Imported(status string) {
	m.ImportedEntries.WithLabelValues(status).Inc()
}

// Handler serves the metrics gathered by g
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
