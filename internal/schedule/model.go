package schedule

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Channel is the booking origin. Staff books against the full therapist
// pool; the portal deliberately under-books to keep walk-in flexibility.
type Channel string

const (
	ChannelStaff  Channel = "staff"
	ChannelPortal Channel = "portal"
)

// ParseChannel validates a channel string, defaulting to staff.
func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelStaff, "":
		return ChannelStaff, nil
	case ChannelPortal:
		return ChannelPortal, nil
	}
	return "", fmt.Errorf("schedule: unknown channel %q", s)
}

// MinutesOfDay converts a local wall-clock HH:MM string to minutes since
// midnight.
func MinutesOfDay(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, fmt.Errorf("schedule: parse time %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// Period is one open/close span of a business day, in minutes since
// midnight, [Open, Close).
type Period struct {
	Open  int
	Close int
}

// BlockingEvent consumes therapist capacity for its time window.
type BlockingEvent struct {
	ID                uuid.UUID
	Name              string
	Start             int
	End               int
	BlockedTherapists int
}

// BookedInterval is an active appointment's occupied span.
type BookedInterval struct {
	AppointmentID uuid.UUID
	Start         int
	End           int
}

// Day is everything the calculator needs to know about one calendar date.
type Day struct {
	Date    time.Time
	Closed  bool
	Periods []Period
	Events  []BlockingEvent
	Booked  []BookedInterval
}

// Slot is one bookable time bucket.
type Slot struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
	Available int    `json:"available"`
}

// DateKey returns a stable int64 for advisory locking on a calendar date.
func DateKey(date time.Time) int64 {
	return int64(date.Year())*10000 + int64(date.Month())*100 + int64(date.Day())
}
