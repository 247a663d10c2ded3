// Package prom adapts scope's debug event stream to Prometheus metrics.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/relaykit/scope/scope"
)

// Metrics is a prometheus.Collector tracking scope and task lifecycle
// counts plus task duration, fed by scope.SubscribeTaskDebug. Register it
// with a prometheus.Registerer and call Attach once scope.EnableTaskDebug
// has been turned on.
type Metrics struct {
	scopesOpened *prometheus.CounterVec
	scopesClosed *prometheus.CounterVec
	tasksStarted prometheus.Counter
	tasksByState *prometheus.CounterVec
	taskDuration prometheus.Histogram

	unsubscribe func()
}

// New builds an unattached Metrics collector.
func New() *Metrics {
	return &Metrics{
		scopesOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scope",
			Name:      "scopes_opened_total",
			Help:      "Scopes opened, by scope type.",
		}, []string{"type"}),
		scopesClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scope",
			Name:      "scopes_closed_total",
			Help:      "Scopes closed, by scope type.",
		}, []string{"type"}),
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "scope",
			Name:      "tasks_started_total",
			Help:      "Tasks registered across all scopes.",
		}),
		tasksByState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scope",
			Name:      "tasks_finished_total",
			Help:      "Tasks that reached a terminal status, by status.",
		}, []string{"status"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "scope",
			Name:      "task_duration_seconds",
			Help:      "Task duration from start to terminal transition.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.scopesOpened.Describe(ch)
	m.scopesClosed.Describe(ch)
	m.tasksStarted.Describe(ch)
	m.tasksByState.Describe(ch)
	m.taskDuration.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.scopesOpened.Collect(ch)
	m.scopesClosed.Collect(ch)
	m.tasksStarted.Collect(ch)
	m.tasksByState.Collect(ch)
	m.taskDuration.Collect(ch)
}

// Attach subscribes to scope's debug event stream. It is a no-op with
// respect to metric values until scope.EnableTaskDebug has been called,
// since emission is otherwise suppressed at the source. Call the returned
// func (or Detach) to stop observing.
func (m *Metrics) Attach() (detach func()) {
	m.unsubscribe = scope.SubscribeTaskDebug(m.onEvent)
	return m.unsubscribe
}

// Detach stops observing scope's debug event stream. Safe to call even if
// Attach was never called.
func (m *Metrics) Detach() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Metrics) onEvent(ev scope.DebugEvent) {
	switch ev.Kind {
	case scope.EventScopeOpened:
		m.scopesOpened.WithLabelValues(ev.ScopeType).Inc()
	case scope.EventScopeClosed:
		m.scopesClosed.WithLabelValues(ev.ScopeType).Inc()
	case scope.EventTaskRegistered:
		m.tasksStarted.Inc()
	case scope.EventTaskUpdated:
		if ev.Status == scope.StatusRunning {
			return
		}
		m.tasksByState.WithLabelValues(ev.Status.String()).Inc()
		if !ev.Timing.StartTime.IsZero() && !ev.Timing.EndTime.IsZero() {
			m.taskDuration.Observe(ev.Timing.EndTime.Sub(ev.Timing.StartTime).Seconds())
		}
	}
}
