package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors, registered on their own registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	HttpRequestsTotal   *prometheus.CounterVec
	HttpRequestDuration *prometheus.HistogramVec

	// Authentication metrics
	AuthErrorsCounter *prometheus.CounterVec

	// Database operation metrics
	DbOperationDuration *prometheus.HistogramVec

	// Order workflow metrics
	OrdersPlacedCounter     prometheus.Counter
	OrderTransitionsCounter *prometheus.CounterVec
	PaymentsCounter         *prometheus.CounterVec
	StockConflictsCounter   prometheus.Counter

	// Inventory metrics
	ProductInventoryGauge *prometheus.GaugeVec
}

// NewMetrics creates the collectors using the given metric name prefix
func NewMetrics(prefix string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		HttpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HttpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),

		AuthErrorsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_auth_errors_total",
				Help: "Total number of authentication errors",
			},
			[]string{"type"},
		),

		DbOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    prefix + "_db_operation_duration_seconds",
				Help:    "Duration of database operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),

		OrdersPlacedCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_orders_placed_total",
				Help: "Total number of orders placed",
			},
		),

		OrderTransitionsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_order_transitions_total",
				Help: "Total number of order status transitions",
			},
			[]string{"from", "to"},
		),

		PaymentsCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: prefix + "_payments_total",
				Help: "Total number of payment status changes",
			},
			[]string{"status"},
		),

		StockConflictsCounter: factory.NewCounter(
			prometheus.CounterOpts{
				Name: prefix + "_stock_conflicts_total",
				Help: "Total number of orders rejected for insufficient stock",
			},
		),

		ProductInventoryGauge: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: prefix + "_product_inventory",
				Help: "Current inventory level for products",
			},
			[]string{"product_id"},
		),
	}
}

// Handler exposes the registry for scraping
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request count and duration for every route
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			method := c.Request().Method
			path := c.Path()
			status := strconv.Itoa(c.Response().Status)

			m.HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
			m.HttpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())

			return nil
		}
	}
}

// TrackDBOperation returns a function that records the duration of a database operation.
// Usage: defer m.TrackDBOperation("place_order")(time.Now())
func (m *Metrics) TrackDBOperation(operation string) func(startTime time.Time) {
	return func(startTime time.Time) {
		if m == nil {
			return
		}
		m.DbOperationDuration.WithLabelValues(operation).Observe(time.Since(startTime).Seconds())
	}
}

// RecordOrderPlaced increments the placed orders counter
func (m *Metrics) RecordOrderPlaced() {
	if m == nil {
		return
	}
	m.OrdersPlacedCounter.Inc()
}

// RecordOrderTransition counts an order status change
func (m *Metrics) RecordOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.OrderTransitionsCounter.WithLabelValues(from, to).Inc()
}

// RecordPayment counts a payment status change
func (m *Metrics) RecordPayment(status string) {
	if m == nil {
		return
	}
	m.PaymentsCounter.WithLabelValues(status).Inc()
}

// RecordStockConflict counts an order rejected for insufficient stock
func (m *Metrics) RecordStockConflict() {
	if m == nil {
		return
	}
	m.StockConflictsCounter.Inc()
}

// RecordAuthError counts a rejected request by failure type
func (m *Metrics) RecordAuthError(errType string) {
	if m == nil {
		return
	}
	m.AuthErrorsCounter.WithLabelValues(errType).Inc()
}

// UpdateProductInventory updates the gauge for product inventory
func (m *Metrics) UpdateProductInventory(productID uint, count int) {
	if m == nil {
		return
	}
	m.ProductInventoryGauge.WithLabelValues(strconv.FormatUint(uint64(productID), 10)).Set(float64(count))
}

// DeleteProductInventory drops the gauge series of a removed product
func (m *Metrics) DeleteProductInventory(productID uint) {
	if m == nil {
		return
	}
	m.ProductInventoryGauge.DeleteLabelValues(strconv.FormatUint(uint64(productID), 10))
}
