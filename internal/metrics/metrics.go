// Package metrics collects and exposes Prometheus metrics for the web service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records login, credits and checkout activity.
type Collector struct {
	logins          *prometheus.CounterVec
	creditsFetches  *prometheus.CounterVec
	orders          *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	requestDuration prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stealthbuddy_logins_total",
			Help: "Login callbacks by result.",
		}, []string{"result"}),
		creditsFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stealthbuddy_credits_fetch_total",
			Help: "Credit balance lookups against the backend by result.",
		}, []string{"result"}),
		orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stealthbuddy_orders_total",
			Help: "Payment orders requested from the backend by result.",
		}, []string{"result"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stealthbuddy_checkouts_total",
			Help: "Checkout attempts by final outcome.",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stealthbuddy_http_requests_total",
			Help: "HTTP responses by method and status code.",
		}, []string{"method", "status_code"}),
		requestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "stealthbuddy_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.creditsFetches,
		c.orders,
		c.checkouts,
		c.httpRequests,
		c.requestDuration,
	)

	return c
}

// RecordLogin counts a login callback.
func (c *Collector) RecordLogin(err error) {
	c.logins.WithLabelValues(result(err)).Inc()
}

// ObserveCreditsFetch counts a balance lookup.
func (c *Collector) ObserveCreditsFetch(err error) {
	c.creditsFetches.WithLabelValues(result(err)).Inc()
}

// ObserveOrder counts an order request.
func (c *Collector) ObserveOrder(err error) {
	c.orders.WithLabelValues(result(err)).Inc()
}

// ObserveCheckout counts a settled checkout attempt.
func (c *Collector) ObserveCheckout(outcome string) {
	c.checkouts.WithLabelValues(outcome).Inc()
}

// RecordHTTPRequest counts a served request and its latency.
func (c *Collector) RecordHTTPRequest(method string, status int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	c.requestDuration.Observe(duration.Seconds())
}

// Handler returns the HTTP handler for Prometheus scrapes.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
