package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics counts order and cart outcomes. A nil receiver or one built
// without a registerer is a no-op so services can run without metrics.
type CheckoutMetrics struct {
	ordersCreated   prometheus.Counter
	orderFailures   *prometheus.CounterVec
	ordersCancelled prometheus.Counter
	transitions     *prometheus.CounterVec
	cartMerges      *prometheus.CounterVec
	mergeClamps     prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	m := &CheckoutMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Orders committed by checkout.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_failures_total",
			Help: "Order operations rejected or failed, by error code.",
		}, []string{"code"}),
		ordersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_cancelled_total",
			Help: "Orders cancelled with stock restored.",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Persisted order status transitions.",
		}, []string{"from", "to"}),
		cartMerges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cart_merges_total",
			Help: "Guest cart merges by outcome mode.",
		}, []string{"mode"}),
		mergeClamps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cart_merge_clamps_total",
			Help: "Merged cart lines reduced to the available stock.",
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderFailures, m.ordersCancelled, m.transitions, m.cartMerges, m.mergeClamps)
	return m
}

func (m *CheckoutMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncOrderFailure records a failed order operation under its error code.
func (m *CheckoutMetrics) IncOrderFailure(code string) {
	if m == nil || m.orderFailures == nil {
		return
	}
	m.orderFailures.WithLabelValues(normalizeLabel(code)).Inc()
}

func (m *CheckoutMetrics) IncOrderCancelled() {
	if m == nil || m.ordersCancelled == nil {
		return
	}
	m.ordersCancelled.Inc()
}

// IncTransition records a status change that was persisted.
func (m *CheckoutMetrics) IncTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// IncCartMerge records a merge outcome (noop, reown or merge).
func (m *CheckoutMetrics) IncCartMerge(mode string) {
	if m == nil || m.cartMerges == nil {
		return
	}
	m.cartMerges.WithLabelValues(normalizeLabel(mode)).Inc()
}

// AddMergeClamps adds the number of lines clamped during one merge.
func (m *CheckoutMetrics) AddMergeClamps(n int) {
	if m == nil || m.mergeClamps == nil || n <= 0 {
		return
	}
	m.mergeClamps.Add(float64(n))
}
