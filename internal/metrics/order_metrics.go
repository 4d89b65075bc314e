package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики операций над корзинами и заказами.
type OrderMetrics struct {
	// Счётчики операций
	cartAdditions    prometheus.Counter
	cartRemovals     prometheus.Counter
	checkouts        prometheus.Counter
	ordersCompleted  prometheus.Counter
	ordersReopened   prometheus.Counter
	observationEdits prometheus.Counter

	// Отказы по кодам ошибок
	failures *prometheus.CounterVec

	// Время выполнения checkout
	checkoutDuration prometheus.Histogram
}

// NewOrderMetrics регистрирует метрики в глобальном registerer.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		cartAdditions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_cart_additions_total",
			Help: "Total number of products added to carts",
		}),
		cartRemovals: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_cart_removals_total",
			Help: "Total number of products removed from carts",
		}),
		checkouts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_checkouts_total",
			Help: "Total number of successful checkouts",
		}),
		ordersCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_orders_completed_total",
			Help: "Total number of orders marked complete",
		}),
		ordersReopened: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_orders_reopened_total",
			Help: "Total number of orders marked incomplete again",
		}),
		observationEdits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "comanda_observation_edits_total",
			Help: "Total number of order observation edits",
		}),
		failures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "comanda_operation_failures_total",
			Help: "Total number of failed operations by error code",
		}, []string{"code"}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "comanda_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCartAddition увеличивает счётчик добавлений в корзину.
func (m *OrderMetrics) RecordCartAddition() {
	m.cartAdditions.Inc()
}

// RecordCartRemoval увеличивает счётчик удалений из корзины.
func (m *OrderMetrics) RecordCartRemoval() {
	m.cartRemovals.Inc()
}

// RecordCheckout увеличивает счётчик успешных checkout.
func (m *OrderMetrics) RecordCheckout() {
	m.checkouts.Inc()
}

// RecordOrderCompleted увеличивает счётчик завершённых заказов.
func (m *OrderMetrics) RecordOrderCompleted() {
	m.ordersCompleted.Inc()
}

// RecordOrderReopened увеличивает счётчик возвращённых в работу заказов.
func (m *OrderMetrics) RecordOrderReopened() {
	m.ordersReopened.Inc()
}

// RecordObservationEdit увеличивает счётчик правок заметок.
func (m *OrderMetrics) RecordObservationEdit() {
	m.observationEdits.Inc()
}

// RecordFailure учитывает отказ операции по стабильному коду ошибки.
func (m *OrderMetrics) RecordFailure(code string) {
	m.failures.WithLabelValues(code).Inc()
}

// RecordCheckoutDuration записывает время выполнения checkout.
func (m *OrderMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}
