// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestra_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_guard_rejections_total",
			Help: "Tenant guard rejections by stage",
		},
		[]string{"stage"},
	)

	LimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestra_limit_exceeded_total",
			Help: "Free-tier limit hits by module",
		},
		[]string{"module"},
	)

	EnterprisesRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestra_enterprises_registered_total",
			Help: "Enterprises registered",
		},
	)
)
