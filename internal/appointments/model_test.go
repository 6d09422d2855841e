package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTransitions(t *testing.T) {
	cases := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPendingPayment, StatusScheduled, true},
		{StatusPendingPayment, StatusNoShow, true},
		{StatusPendingPayment, StatusInProgress, false},
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusNoShow, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusCancelled, StatusScheduled, false},
		{StatusNoShow, StatusScheduled, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.from.CanTransitionTo(tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusNoShow} {
		assert.True(t, s.Terminal(), "%s", s)
		assert.False(t, s.Active(), "%s", s)
	}
	for _, s := range []Status{StatusPendingPayment, StatusScheduled, StatusInProgress} {
		assert.False(t, s.Terminal(), "%s", s)
		assert.True(t, s.Active(), "%s", s)
	}
}

func TestReschedulable(t *testing.T) {
	assert.True(t, StatusScheduled.Reschedulable())
	assert.True(t, StatusPendingPayment.Reschedulable())
	assert.False(t, StatusInProgress.Reschedulable())
	assert.False(t, StatusCompleted.Reschedulable())
}

func TestStartsAt(t *testing.T) {
	a := &Appointment{
		Date:      time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
	}
	assert.Equal(t, time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC), a.StartsAt())
}
