package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Failure reasons used as label values
const (
	ReasonValidation        = "validation"
	ReasonNotFound          = "not_found"
	ReasonInsufficientStock = "insufficient_stock"
	ReasonTimeout           = "timeout"
	ReasonPersistence       = "persistence"
)

// OrderMetrics instruments the sales order engine. A nil *OrderMetrics is a no-op.
type OrderMetrics struct {
	ordersCreated prometheus.Counter
	orderFailures *prometheus.CounterVec
	unitsSold     prometheus.Counter
	txDuration    prometheus.Histogram
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		ordersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retailpos",
			Subsystem: "sales",
			Name:      "orders_created_total",
			Help:      "Sales orders committed.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "retailpos",
			Subsystem: "sales",
			Name:      "order_failures_total",
			Help:      "Sales order attempts rolled back, by reason.",
		}, []string{"reason"}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "retailpos",
			Subsystem: "sales",
			Name:      "units_sold_total",
			Help:      "Stock units deducted by committed sales orders.",
		}),
		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "retailpos",
			Subsystem: "sales",
			Name:      "order_tx_duration_seconds",
			Help:      "Wall time of the order creation transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.ordersCreated, m.orderFailures, m.unitsSold, m.txDuration)
	return m
}

func (m *OrderMetrics) OrderCreated(units int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.unitsSold.Add(float64(units))
	m.txDuration.Observe(elapsed.Seconds())
}

func (m *OrderMetrics) OrderFailed(reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(reason).Inc()
	m.txDuration.Observe(elapsed.Seconds())
}
