package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_status_transitions_total",
		Help: "Total number of persisted order status transitions.",
	},
		[]string{"from", "to"},
	)

	IllegalTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_illegal_transitions_total",
		Help: "Transitions outside the transition table, by whether they were rejected.",
	},
		[]string{"from", "to", "rejected"},
	)

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_notification_failures_total",
		Help: "Total number of failed notification deliveries by channel.",
	},
		[]string{"channel"},
	)

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_refunds_total",
		Help: "Total number of refund attempts by outcome.",
	},
		[]string{"outcome"},
	)

	RestockedUnitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_restocked_units_total",
		Help: "Total number of inventory units returned to stock.",
	})

	EventPublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_event_publish_failures_total",
		Help: "Total number of order events that could not be published.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by method, route and status.",
	},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	},
		[]string{"method", "route"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
