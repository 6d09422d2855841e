package schedule

import (
	"time"
)

// Settings is the configuration snapshot the calculator works from. It is
// injected explicitly so capacity changes take effect on a defined reload
// cadence instead of being read from mutable global state per request.
type Settings struct {
	BucketMinutes       int
	StaffCapacity       int
	PortalCapacity      int
	PortalSameDayBuffer time.Duration
}

// Calculator computes per-bucket availability for a date and channel.
type Calculator struct {
	settings Settings
}

// NewCalculator creates a calculator with the given settings snapshot.
func NewCalculator(settings Settings) *Calculator {
	if settings.BucketMinutes <= 0 {
		settings.BucketMinutes = 30
	}
	return &Calculator{settings: settings}
}

// BaseCapacity returns the channel's base concurrent-slot capacity.
func (c *Calculator) BaseCapacity(channel Channel) int {
	if channel == ChannelPortal {
		return c.settings.PortalCapacity
	}
	return c.settings.StaffCapacity
}

// Compute returns one slot per bucket across the day's open periods.
//
// now is the caller-reported current time and only matters for same-day
// portal requests, where buckets starting inside the buffer window are
// forced unavailable. A nil now skips the buffer check.
func (c *Calculator) Compute(day Day, channel Channel, now *time.Time) []Slot {
	if day.Closed || len(day.Periods) == 0 {
		return []Slot{}
	}

	base := c.BaseCapacity(channel)
	width := c.settings.BucketMinutes

	cutoff := -1
	if channel == ChannelPortal && now != nil && sameDate(day.Date, *now) {
		cutoff = SameDayCutoff(*now, c.settings.PortalSameDayBuffer)
	}

	var slots []Slot
	for _, period := range day.Periods {
		for start := period.Open; start+width <= period.Close; start += width {
			end := start + width

			occupied := 0
			for _, b := range day.Booked {
				if overlaps(b.Start, b.End, start, end) {
					occupied++
				}
			}

			blocked := 0
			for _, ev := range day.Events {
				if overlaps(ev.Start, ev.End, start, end) && ev.BlockedTherapists > blocked {
					blocked = ev.BlockedTherapists
				}
			}

			capacity := base - blocked
			if capacity < 0 {
				capacity = 0
			}
			available := capacity - occupied
			if available < 0 {
				available = 0
			}
			if cutoff >= 0 && start < cutoff {
				available = 0
			}

			slots = append(slots, Slot{
				Time:      FormatMinutes(start),
				Capacity:  capacity,
				Occupied:  occupied,
				Available: available,
			})
		}
	}
	if slots == nil {
		slots = []Slot{}
	}
	return slots
}

// HasAvailability reports whether every bucket overlapped by [start, end)
// still has room, excluding the given appointment from the occupied count.
// Reschedules pass their own id so the current slot does not block the move.
func (c *Calculator) HasAvailability(day Day, channel Channel, start, end int, exclude *BookedInterval) bool {
	if day.Closed || len(day.Periods) == 0 {
		return false
	}
	if !withinHours(day.Periods, start, end) {
		return false
	}

	base := c.BaseCapacity(channel)
	width := c.settings.BucketMinutes

	for bucket := alignDown(start, width); bucket < end; bucket += width {
		occupied := 0
		for _, b := range day.Booked {
			if exclude != nil && b.AppointmentID == exclude.AppointmentID {
				continue
			}
			if overlaps(b.Start, b.End, bucket, bucket+width) {
				occupied++
			}
		}
		blocked := 0
		for _, ev := range day.Events {
			if overlaps(ev.Start, ev.End, bucket, bucket+width) && ev.BlockedTherapists > blocked {
				blocked = ev.BlockedTherapists
			}
		}
		if occupied >= base-blocked {
			return false
		}
	}
	return true
}

// WithinHours reports whether [start, end) falls inside one open period.
func (c *Calculator) WithinHours(day Day, start, end int) bool {
	return withinHours(day.Periods, start, end)
}

func withinHours(periods []Period, start, end int) bool {
	for _, p := range periods {
		if start >= p.Open && end <= p.Close {
			return true
		}
	}
	return false
}

func overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

func alignDown(v, width int) int {
	return v - v%width
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

// SameDayCutoff returns the first minute of day still bookable from the
// portal given the same-day buffer. When now plus the buffer rolls past
// midnight the whole day is cut off, so the wall-clock minutes of the
// buffered time must not wrap back to a small number.
func SameDayCutoff(now time.Time, buffer time.Duration) int {
	buffered := now.Add(buffer)
	if !sameDate(now, buffered) {
		return 24 * 60
	}
	return buffered.Hour()*60 + buffered.Minute()
}
