package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	// Business
	bookingEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_events_total",
			Help: "Booking and payment lifecycle events by type.",
		},
		[]string{"type"},
	)
	seatsReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "seats_reserved_total",
			Help: "Total seats reserved across all bookings.",
		},
	)

	// Outbox
	outboxSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_messages_sent_total",
			Help: "Total number of outbox messages marked as sent.",
		},
	)
	outboxFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_messages_failed_total",
			Help: "Total number of outbox messages marked as failed.",
		},
	)
	outboxRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_retries_total",
			Help: "Total number of outbox send retries (failed attempts).",
		},
	)
	outboxLagSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "outbox_lag_seconds",
			Help:    "Lag between outbox message creation and send attempt (seconds).",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

var registerOnce sync.Once

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,

			bookingEvents,
			seatsReserved,

			outboxSent,
			outboxFailed,
			outboxRetries,
			outboxLagSeconds,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// GinMiddleware records count and latency per route template so path
// parameters don't explode the label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := strconv.Itoa(c.Writer.Status())
		httpRequests.WithLabelValues(c.Request.Method, route, code).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route, code).Observe(time.Since(start).Seconds())
	}
}

// --- Business ---

func IncBookingEvent(eventType string) { bookingEvents.WithLabelValues(eventType).Inc() }
func AddSeatsReserved(n int) {
	if n > 0 {
		seatsReserved.Add(float64(n))
	}
}

// --- Outbox ---

func IncOutboxSent()   { outboxSent.Inc() }
func IncOutboxFailed() { outboxFailed.Inc() }
func IncOutboxRetry()  { outboxRetries.Inc() }
func ObserveOutboxLagSeconds(sec float64) {
	if sec < 0 {
		sec = 0
	}
	outboxLagSeconds.Observe(sec)
}
