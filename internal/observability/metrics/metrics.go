package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking engine.
// A nil receiver is valid and records nothing.
type BookingMetrics struct {
	bookingTotal     *prometheus.CounterVec
	bookingLatency   *prometheus.HistogramVec
	transitionsTotal *prometheus.CounterVec
	refundsTotal     *prometheus.CounterVec
	outboxPending    prometheus.Gauge
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbancare",
			Subsystem: "booking",
			Name:      "attempts_total",
			Help:      "Total booking attempts",
		}, []string{"outcome"}),
		bookingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "urbancare",
			Subsystem: "booking",
			Name:      "latency_seconds",
			Help:      "Latency of booking attempts",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbancare",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total lifecycle transition attempts",
		}, []string{"action", "outcome"}),
		refundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "urbancare",
			Subsystem: "refunds",
			Name:      "deliveries_total",
			Help:      "Total refund delivery attempts",
		}, []string{"outcome"}),
		outboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "urbancare",
			Subsystem: "refunds",
			Name:      "outbox_pending",
			Help:      "Refund instructions awaiting delivery",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingTotal, m.bookingLatency, m.transitionsTotal, m.refundsTotal, m.outboxPending)
	return m
}

func (m *BookingMetrics) ObserveBooking(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
	m.bookingLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *BookingMetrics) ObserveRefundDelivery(outcome string) {
	if m == nil {
		return
	}
	m.refundsTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) SetOutboxPending(n int) {
	if m == nil {
		return
	}
	m.outboxPending.Set(float64(n))
}
