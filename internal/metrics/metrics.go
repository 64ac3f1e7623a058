// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "restaurant_reservation"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route template and status.",
		},
		[]string{"method", "route", "status"},
	)

	reservationOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_ops_total",
			Help:      "Reservation writes by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
)

// Register registers the collectors with the default registry. Safe to call
// multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservationOps)
	})
}

// IncHTTP counts one served request.
func IncHTTP(method, route string, status int) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// IncReservationOp counts a reservation operation.  outcome is "ok" or an
// error kind label.
func IncReservationOp(op, outcome string) {
	reservationOps.WithLabelValues(op, outcome).Inc()
}
