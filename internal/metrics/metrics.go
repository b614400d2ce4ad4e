package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shop"

type Metrics struct {
	Checkouts        *prometheus.CounterVec
	CheckoutDuration *prometheus.HistogramVec
	PaymentDuration  *prometheus.HistogramVec
	Reconciliations  prometheus.Counter
	PersistRetries   prometheus.Counter

	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

// New registers the order service collectors on reg.
func New(reg prometheus.Registerer, service string) *Metrics {
	m := &Metrics{
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		CheckoutDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "checkout_duration_seconds",
			Help:      "End to end checkout latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		PaymentDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "payment_charge_duration_seconds",
			Help:      "Latency of a single charge call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "result"}),
		Reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "reconciliation_items_total",
			Help:      "Charges that succeeded without a persisted order.",
		}),
		PersistRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "persist_retries_total",
			Help:      "Retried post-payment transactions.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: service,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.Checkouts, m.CheckoutDuration, m.PaymentDuration,
		m.Reconciliations, m.PersistRetries,
		m.Requests, m.LatencyMS,
	)
	return m
}

// The observe helpers accept a nil receiver so callers can run without metrics.

func (m *Metrics) ObserveCheckout(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
	m.CheckoutDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func (m *Metrics) ObservePayment(method, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.PaymentDuration.WithLabelValues(method, result).Observe(d.Seconds())
}

func (m *Metrics) IncReconciliation() {
	if m == nil {
		return
	}
	m.Reconciliations.Inc()
}

func (m *Metrics) IncPersistRetry() {
	if m == nil {
		return
	}
	m.PersistRetries.Inc()
}

// Middleware counts requests by matched route so path ids do not explode
// label cardinality.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				if he, ok := err.(*echo.HTTPError); ok {
					status = he.Code
				} else if !c.Response().Committed {
					status = http.StatusInternalServerError
				}
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.Requests.WithLabelValues(route, c.Request().Method, strconv.Itoa(status)).Inc()
			m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
