package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BookingsCreated The total number of confirmed bookings (counter)
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "created_total",
			Help:      "The total number of confirmed bookings",
		},
	)

	// BookingsRejected total number of booking attempts refused by a precondition (counter)
	BookingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "rejected_total",
			Help:      "The total number of booking attempts refused by a precondition",
		},
		[]string{"reason"},
	)

	// BookingTransitions total number of status changes out of confirmed (counter)
	BookingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "transitions_total",
			Help:      "The total number of status changes out of confirmed",
		},
		[]string{"status"},
	)

	// RefundsIssued The total refund amount owed on cancellations (counter)
	RefundsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "bookings",
			Name:      "refund_amount_total",
			Help:      "The total refund amount owed on cancellations",
		},
	)

	// SeatLockWait time spent waiting for a vehicle-day seat lock (histogram)
	SeatLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "bookings",
			Name:      "seat_lock_wait_seconds",
			Help:      "Time spent waiting for a vehicle-day seat lock",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	// NotificationsFailed total number of booking notifications that could not be published (counter)
	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "notifications",
			Name:      "failed_total",
			Help:      "The total number of booking notifications that could not be published",
		},
		[]string{"kind"},
	)
)
