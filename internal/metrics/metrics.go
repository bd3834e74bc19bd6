package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters and histograms for booking flows. A nil
// *SchedulingMetrics records nothing.
type SchedulingMetrics struct {
	bookingsTotal      *prometheus.CounterVec
	cancellationsTotal *prometheus.CounterVec
	sideEffectFailures *prometheus.CounterVec
	remindersTotal     *prometheus.CounterVec
	operationLatency   *prometheus.HistogramVec
	meetingLinks       *prometheus.GaugeVec
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"outcome"}),
		cancellationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Cancellation attempts by outcome",
		}, []string{"outcome"}),
		sideEffectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "side_effect_failures_total",
			Help:      "Failed notifications and job calls after commit",
		}, []string{"effect"}),
		remindersTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "telehealth",
			Subsystem: "reminders",
			Name:      "processed_total",
			Help:      "Reminder jobs processed by the worker",
		}, []string{"status"}),
		operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "telehealth",
			Subsystem: "scheduling",
			Name:      "operation_latency_seconds",
			Help:      "Latency of booking and cancellation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		meetingLinks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "telehealth",
			Subsystem: "meeting_links",
			Name:      "count",
			Help:      "Meeting links in the pool by status",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancellationsTotal, m.sideEffectFailures, m.remindersTotal, m.operationLatency, m.meetingLinks)
	return m
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveCancellation(outcome string) {
	if m == nil {
		return
	}
	m.cancellationsTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailures.WithLabelValues(effect).Inc()
}

func (m *SchedulingMetrics) ObserveReminder(status string) {
	if m == nil {
		return
	}
	m.remindersTotal.WithLabelValues(status).Inc()
}

func (m *SchedulingMetrics) ObserveLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.operationLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *SchedulingMetrics) SetMeetingLinks(available, inUse int) {
	if m == nil {
		return
	}
	m.meetingLinks.WithLabelValues("available").Set(float64(available))
	m.meetingLinks.WithLabelValues("in_use").Set(float64(inUse))
}
