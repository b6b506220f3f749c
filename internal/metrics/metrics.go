// Package metrics holds the Prometheus collectors for the scheduling engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "coach_scheduling"

// Metrics groups the engine's collectors. A nil *Metrics is valid and records
// nothing, so services can be built without a registry in tests.
type Metrics struct {
	bookings      *prometheus.CounterVec
	materialized  prometheus.Counter
	sweepOutcomes *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	notifications *prometheus.CounterVec
	resolvedSlots prometheus.Histogram
	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	registry      prometheus.Gatherer
}

// New registers the collectors with reg. Pass a fresh prometheus.NewRegistry()
// in tests to avoid duplicate registration.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		bookings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Booking attempts by outcome.",
		}, []string{"outcome"}),
		materialized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "plans",
			Name:      "instances_created_total",
			Help:      "Scheduled instances created by plan materialization.",
		}),
		sweepOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "appointments_total",
			Help:      "Reminder sweep results per appointment.",
		}, []string{"result"}),
		sweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reminders",
			Name:      "sweep_duration_seconds",
			Help:      "Wall time of one reminder sweep.",
			Buckets:   prometheus.DefBuckets,
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sends_total",
			Help:      "Notification sends by template kind and status.",
		}, []string{"kind", "status"}),
		resolvedSlots: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "resolved_slots",
			Help:      "Number of open slots returned per resolution.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Booking outcomes.
const (
	BookingConfirmed = "confirmed"
	BookingSlotTaken = "slot_taken"
	BookingRejected  = "rejected"
	BookingError     = "error"
)

func (m *Metrics) IncBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddMaterialized(n int) {
	if m == nil {
		return
	}
	m.materialized.Add(float64(n))
}

// ObserveSweep records one sweep's aggregate counts.
func (m *Metrics) ObserveSweep(sent, failed, skipped int, took time.Duration) {
	if m == nil {
		return
	}
	m.sweepOutcomes.WithLabelValues("sent").Add(float64(sent))
	m.sweepOutcomes.WithLabelValues("failed").Add(float64(failed))
	m.sweepOutcomes.WithLabelValues("skipped").Add(float64(skipped))
	m.sweepDuration.Observe(took.Seconds())
}

func (m *Metrics) IncNotification(kind, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) ObserveResolved(n int) {
	if m == nil {
		return
	}
	m.resolvedSlots.Observe(float64(n))
}

// ObserveRequest records one served HTTP request. route is the matched
// pattern, never the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
