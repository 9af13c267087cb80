package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "iap_reconciliations_total",
			Help: "Reconciliation attempts by flow and terminal outcome",
		},
		[]string{"flow", "outcome"},
	)

	ReceiptValidationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "iap_receipt_validation_duration_seconds",
			Help:    "Duration of App Store receipt validation calls",
			Buckets: prometheus.DefBuckets,
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"handler", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "method"},
	)
)

// Register registers all collectors with the default registry. Call once.
func Register() {
	prometheus.MustRegister(ReconciliationsTotal)
	prometheus.MustRegister(ReceiptValidationDuration)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

func ObserveReconciliation(flow, outcome string) {
	ReconciliationsTotal.WithLabelValues(flow, outcome).Inc()
}

func ObserveValidation(started time.Time) {
	ReceiptValidationDuration.Observe(time.Since(started).Seconds())
}

// Middleware records request count and latency per route pattern.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				// let the error handler write the status before reading it
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequestDuration.WithLabelValues(route, c.Request().Method).Observe(time.Since(start).Seconds())
			httpRequestsTotal.WithLabelValues(route, c.Request().Method, strconv.Itoa(c.Response().Status)).Inc()
			return nil
		}
	}
}
