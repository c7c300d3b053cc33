package api

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vulnpilot",
		Name:      "api_requests_total",
		Help:      "Backend requests by endpoint and response status.",
	}, []string{"endpoint", "status"})
	metricRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vulnpilot",
		Name:      "api_request_duration_seconds",
		Help:      "Backend request latency by endpoint.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})
	metricUnauthorized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "vulnpilot",
		Name:      "api_unauthorized_total",
		Help:      "Responses that reported the session as unauthorized.",
	})
)

// statusLabel is "unreachable" for requests without a response.
func statusLabel(status int) string {
	if status == 0 {
		return "unreachable"
	}
	return prometheusStatus(status)
}

func prometheusStatus(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status == 401, status == 403, status == 404, status == 429:
		return strconv.Itoa(status)
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
