package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "storefront"

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the HTTP and checkout collectors. It also satisfies
// service.CheckoutRecorder.
type Metrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	checkouts       *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// NewMetrics registers the collectors (plus Go and process collectors) on reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "checkout_total",
			Help:      "Checkout lifecycle outcomes",
		}, []string{"outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.checkouts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// CheckoutOutcome counts one checkout outcome.
func (m *Metrics) CheckoutOutcome(outcome string) {
	m.checkouts.With(prometheus.Labels{"outcome": outcome}).Inc()
}

func (m *Metrics) instrument(c *gin.Context) {
	start := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	labels := prometheus.Labels{
		"method": c.Request.Method,
		"route":  route,
		"status": strconv.Itoa(c.Writer.Status()),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(time.Since(start).Seconds())
}

func (m *Metrics) handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{}))
}
