package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "bookings_created_total",
			Help:      "Bookings accepted into pending status.",
		},
	)

	bookingConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "booking_conflicts_total",
			Help:      "Booking requests rejected by the schedule conflict guard.",
		},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "booking_transitions_total",
			Help:      "Booking status transitions by target status.",
		},
		[]string{"to"},
	)

	invoicesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "invoices_generated_total",
			Help:      "Invoices generated from completed bookings.",
		},
	)

	effectFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort side-effect step failures by task type.",
		},
		[]string{"task"},
	)

	effectProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pawsit",
			Name:      "side_effects_processed_total",
			Help:      "Side-effect tasks processed by the worker, by task type.",
		},
		[]string{"task"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			bookingsCreated,
			bookingConflicts,
			bookingTransitions,
			invoicesGenerated,
			effectFailures,
			effectProcessed,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated() {
	bookingsCreated.Inc()
}

func IncBookingConflict() {
	bookingConflicts.Inc()
}

func IncBookingTransition(to string) {
	bookingTransitions.WithLabelValues(to).Inc()
}

func IncInvoiceGenerated() {
	invoicesGenerated.Inc()
}

func IncEffectFailure(task string) {
	effectFailures.WithLabelValues(task).Inc()
}

func IncEffectProcessed(task string) {
	effectProcessed.WithLabelValues(task).Inc()
}
