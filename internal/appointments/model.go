package appointments

import (
	"time"

	"github.com/google/uuid"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPendingPayment Status = "PENDING_PAYMENT"
	StatusScheduled      Status = "SCHEDULED"
	StatusInProgress     Status = "IN_PROGRESS"
	StatusCompleted      Status = "COMPLETED"
	StatusCancelled      Status = "CANCELLED"
	StatusNoShow         Status = "NO_SHOW"
)

// transitions is the full state machine. Anything not listed is refused
// with INVALID_STATUS.
var transitions = map[Status][]Status{
	StatusPendingPayment: {StatusScheduled, StatusCancelled, StatusNoShow},
	StatusScheduled:      {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress:     {StatusCompleted, StatusCancelled},
}

// CanTransitionTo reports whether the move is legal.
func (s Status) CanTransitionTo(target Status) bool {
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// Terminal reports whether the status ends the lifecycle.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Active reports whether the appointment occupies slot capacity and counts
// toward the one-per-baby-per-day rule.
func (s Status) Active() bool {
	switch s {
	case StatusPendingPayment, StatusScheduled, StatusInProgress:
		return true
	}
	return false
}

// Reschedulable reports whether date/time may still be changed.
func (s Status) Reschedulable() bool {
	return s == StatusScheduled || s == StatusPendingPayment
}

// Appointment is one scheduled therapy session. Rows are never deleted;
// cancellation is a status change kept for history.
type Appointment struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Status    Status    `json:"status"`
	// Channel records which booking origin created the appointment; its
	// capacity rules keep applying on reschedule.
	Channel           string     `json:"channel"`
	BabyID            *uuid.UUID `json:"baby_id,omitempty"`
	ParentID          *uuid.UUID `json:"parent_id,omitempty"`
	PackagePurchaseID *uuid.UUID `json:"package_purchase_id,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// StartsAt combines the calendar date with the wall-clock start time.
func (a *Appointment) StartsAt() time.Time {
	t, err := time.Parse("15:04", a.StartTime)
	if err != nil {
		return a.Date
	}
	return time.Date(a.Date.Year(), a.Date.Month(), a.Date.Day(),
		t.Hour(), t.Minute(), 0, 0, a.Date.Location())
}
