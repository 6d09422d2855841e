package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository loads the scheduling inputs for a calendar date. Wall-clock
// times are stored as HH:MM text, deliberately timezone-invariant.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

// activeStatuses are the appointment statuses that occupy slot capacity.
const activeStatuses = `('PENDING_PAYMENT', 'SCHEDULED', 'IN_PROGRESS')`

// LoadDay assembles everything the calculator needs for one date. A date
// with no business-hours rows comes back closed.
func (r *Repository) LoadDay(ctx context.Context, date time.Time) (Day, error) {
	day := Day{Date: date}

	var closed bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM closed_dates WHERE date = $1)`, date).Scan(&closed)
	if err != nil {
		return day, fmt.Errorf("schedule: check closed date: %w", err)
	}
	if closed {
		day.Closed = true
		return day, nil
	}

	periods, err := r.loadPeriods(ctx, int(date.Weekday()))
	if err != nil {
		return day, err
	}
	if len(periods) == 0 {
		day.Closed = true
		return day, nil
	}
	day.Periods = periods

	if day.Events, err = r.loadEvents(ctx, date); err != nil {
		return day, err
	}
	if day.Booked, err = r.loadBooked(ctx, date); err != nil {
		return day, err
	}
	return day, nil
}

func (r *Repository) loadPeriods(ctx context.Context, weekday int) ([]Period, error) {
	rows, err := r.db.Query(ctx, `
		SELECT open_time, close_time
		FROM business_hours
		WHERE weekday = $1
		ORDER BY open_time`, weekday)
	if err != nil {
		return nil, fmt.Errorf("schedule: load business hours: %w", err)
	}
	defer rows.Close()

	var periods []Period
	for rows.Next() {
		var open, close string
		if err := rows.Scan(&open, &close); err != nil {
			return nil, fmt.Errorf("schedule: scan business hours: %w", err)
		}
		p, err := periodFromStrings(open, close)
		if err != nil {
			return nil, err
		}
		periods = append(periods, p)
	}
	return periods, rows.Err()
}

func (r *Repository) loadEvents(ctx context.Context, date time.Time) ([]BlockingEvent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, start_time, end_time, blocked_therapists
		FROM blocking_events
		WHERE date = $1`, date)
	if err != nil {
		return nil, fmt.Errorf("schedule: load events: %w", err)
	}
	defer rows.Close()

	var events []BlockingEvent
	for rows.Next() {
		var ev BlockingEvent
		var start, end string
		if err := rows.Scan(&ev.ID, &ev.Name, &start, &end, &ev.BlockedTherapists); err != nil {
			return nil, fmt.Errorf("schedule: scan event: %w", err)
		}
		if ev.Start, err = MinutesOfDay(start); err != nil {
			return nil, err
		}
		if ev.End, err = MinutesOfDay(end); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *Repository) loadBooked(ctx context.Context, date time.Time) ([]BookedInterval, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, start_time, end_time
		FROM appointments
		WHERE date = $1 AND status IN `+activeStatuses, date)
	if err != nil {
		return nil, fmt.Errorf("schedule: load booked intervals: %w", err)
	}
	defer rows.Close()

	var booked []BookedInterval
	for rows.Next() {
		var b BookedInterval
		var start, end string
		if err := rows.Scan(&b.AppointmentID, &start, &end); err != nil {
			return nil, fmt.Errorf("schedule: scan booked interval: %w", err)
		}
		if b.Start, err = MinutesOfDay(start); err != nil {
			return nil, err
		}
		if b.End, err = MinutesOfDay(end); err != nil {
			return nil, err
		}
		booked = append(booked, b)
	}
	return booked, rows.Err()
}

func periodFromStrings(open, close string) (Period, error) {
	o, err := MinutesOfDay(open)
	if err != nil {
		return Period{}, err
	}
	c, err := MinutesOfDay(close)
	if err != nil {
		return Period{}, err
	}
	return Period{Open: o, Close: c}, nil
}
