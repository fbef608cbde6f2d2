// Package metrics exposes ledger and HTTP telemetry as prometheus collectors.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"pickme-intel/internal/credits"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ledger implements credits.Observer.
type Ledger struct {
	operations    *prometheus.CounterVec
	credits       *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	driftDetected prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

var _ credits.Observer = (*Ledger)(nil)

// New registers the collectors on promRegistry.
func New(promRegistry prometheus.Registerer) *Ledger {
	promautoFactory := promauto.With(promRegistry)
	m := &Ledger{}
	m.operations = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_ledger_operations_total",
		Help: "ledger operations by outcome",
	}, []string{"op", "result"})
	m.credits = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_ledger_credits_total",
		Help: "credits moved through the ledger",
	}, []string{"direction"})
	m.latency = promautoFactory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "credits_ledger_operation_seconds",
		Help:    "latency of ledger units of work",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	}, []string{"op"})
	m.driftDetected = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "credits_ledger_drift_detected",
		Help: "reconciliations that found a cached balance differing from the ledger",
	})
	m.httpRequests = promautoFactory.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	return m
}

func (m *Ledger) ObserveOperation(op string, err error, elapsed time.Duration) {
	m.operations.WithLabelValues(op, result(err)).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Ledger) ObserveCredits(_ credits.Action, n int64) {
	switch {
	case n > 0:
		m.credits.WithLabelValues("in").Add(float64(n))
	case n < 0:
		m.credits.WithLabelValues("out").Add(float64(-n))
	}
}

func (m *Ledger) ObserveDrift(_ string, drift int64) {
	if drift != 0 {
		m.driftDetected.Inc()
	}
}

// Middleware counts requests by matched route so path parameters do not explode cardinality.
func (m *Ledger) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, credits.ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, credits.ErrConsistencyViolation):
		return "drift"
	case errors.Is(err, credits.ErrStoreFailure):
		return "store_failure"
	default:
		return "rejected"
	}
}
