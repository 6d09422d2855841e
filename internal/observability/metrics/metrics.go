package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters for the booking and ledger flows.
type BookingMetrics struct {
	bookingsTotal     *prometheus.CounterVec
	bookingConflicts  *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	transactionsTotal *prometheus.CounterVec
	voidsTotal        prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "babyspa",
			Subsystem: "booking",
			Name:      "appointments_total",
			Help:      "Appointments created, by channel and initial status",
		}, []string{"channel", "status"}),
		bookingConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "babyspa",
			Subsystem: "booking",
			Name:      "conflicts_total",
			Help:      "Booking attempts refused, by error code",
		}, []string{"code"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "babyspa",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Appointment state transitions",
		}, []string{"to"}),
		transactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "babyspa",
			Subsystem: "ledger",
			Name:      "transactions_total",
			Help:      "Ledger transactions recorded, by type and category",
		}, []string{"type", "category"}),
		voidsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "babyspa",
			Subsystem: "ledger",
			Name:      "voids_total",
			Help:      "Transactions voided",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.bookingConflicts, m.transitionsTotal,
		m.transactionsTotal, m.voidsTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(channel, status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(channel, status).Inc()
}

func (m *BookingMetrics) ObserveConflict(code string) {
	if m == nil {
		return
	}
	m.bookingConflicts.WithLabelValues(code).Inc()
}

func (m *BookingMetrics) ObserveTransition(to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to).Inc()
}

func (m *BookingMetrics) ObserveTransaction(txType, category string) {
	if m == nil {
		return
	}
	m.transactionsTotal.WithLabelValues(txType, category).Inc()
}

func (m *BookingMetrics) ObserveVoid() {
	if m == nil {
		return
	}
	m.voidsTotal.Inc()
}
