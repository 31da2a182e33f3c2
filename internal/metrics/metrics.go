// Package metrics - счётчики клиента комментариев для Prometheus.
// Все методы безопасны на nil-ресивере: тесты и сборки без метрик передают nil.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "comments_client"

// Исходы операций (значение лейбла outcome).
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeBusy     = "busy"
	OutcomeNotFound = "not_found"
)

// Обработка уведомлений (значение лейбла handling).
const (
	EventRefreshed = "refreshed"
	EventDeferred  = "deferred"
	EventDropped   = "dropped"
)

type Metrics struct {
	actions *prometheus.CounterVec
	loads   *prometheus.CounterVec
	events  *prometheus.CounterVec
	nodes   prometheus.Gauge
}

// New регистрирует метрики в reg (обычно prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Optimistic actions by kind and outcome.",
		}, []string{"action", "outcome"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subtree_loads_total",
			Help:      "Subtree fetches by outcome.",
		}, []string{"outcome"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and how they were handled.",
		}, []string{"kind", "handling"}),
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tree_nodes",
			Help:      "Comments currently held in the local forest.",
		}),
	}

	reg.MustRegister(m.actions, m.loads, m.events, m.nodes)

	return m
}

// Action учитывает завершённое действие (reply/post/edit/delete/restore).
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// Load учитывает загрузку поддерева.
func (m *Metrics) Load(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

// Event учитывает обработанное уведомление.
func (m *Metrics) Event(kind, handling string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind, handling).Inc()
}

// Nodes выставляет текущий размер леса.
func (m *Metrics) Nodes(n int) {
	if m == nil {
		return
	}
	m.nodes.Set(float64(n))
}
