package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewBookingMetricsRegisters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveBooking("staff", "SCHEDULED")
	m.ObserveConflict("TIME_SLOT_FULL")
	m.ObserveTransition("COMPLETED")
	m.ObserveTransaction("INCOME", "PACKAGE_INSTALLMENT")
	m.ObserveVoid()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 5 {
		t.Fatalf("expected 5 metric families, got %d", len(families))
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveBooking("staff", "SCHEDULED")
	m.ObserveConflict("TIME_SLOT_FULL")
	m.ObserveTransition("COMPLETED")
	m.ObserveTransaction("INCOME", "EXPENSE")
	m.ObserveVoid()
}
