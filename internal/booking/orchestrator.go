// Package booking orchestrates appointment creation, rescheduling and
// cancellation across the schedule, client, package and ledger packages.
// Every mutation revalidates its guards inside a transaction holding the
// date's advisory lock, so two competing requests for the last slot cannot
// both succeed.
package booking

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/appointments"
	"github.com/danielthames360/baby-spa-sub004/internal/clients"
	"github.com/danielthames360/baby-spa-sub004/internal/events"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/ledger"
	"github.com/danielthames360/baby-spa-sub004/internal/observability/metrics"
	"github.com/danielthames360/baby-spa-sub004/internal/packages"
	"github.com/danielthames360/baby-spa-sub004/internal/schedule"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

var bookingTracer = otel.Tracer("babyspa.internal.booking")

// Notifier is told when a date's availability changed so live views can
// refresh. The websocket hub implements it.
type Notifier interface {
	AvailabilityChanged(date time.Time)
}

// Settings holds the orchestrator's policy knobs.
type Settings struct {
	PortalSameDayBuffer time.Duration
	MinCancelLead       time.Duration
	MaxClientClockSkew  time.Duration
}

// CreateInput describes a booking request.
type CreateInput struct {
	Date              time.Time
	StartTime         string
	EndTime           string
	Channel           schedule.Channel
	BabyID            *uuid.UUID
	ParentID          *uuid.UUID
	PackagePurchaseID *uuid.UUID
	Notes             string
	// ClientNow is the caller-reported current time, clamped against the
	// server clock before any lead-time rule uses it.
	ClientNow *time.Time
}

// Orchestrator runs the booking flows.
type Orchestrator struct {
	db         storage.Beginner
	calculator *schedule.Calculator
	cache      *schedule.AvailabilityCache
	limiter    *PortalLimiter
	notifier   Notifier
	settings   Settings
	logger     *logging.Logger
	metrics    *metrics.BookingMetrics
	now        func() time.Time
}

// NewOrchestrator constructs the booking orchestrator. cache, limiter,
// notifier and metrics may be nil.
func NewOrchestrator(db storage.Beginner, calculator *schedule.Calculator, cache *schedule.AvailabilityCache,
	limiter *PortalLimiter, notifier Notifier, settings Settings, logger *logging.Logger, m *metrics.BookingMetrics) *Orchestrator {
	if calculator == nil {
		panic("booking: calculator required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if settings.MaxClientClockSkew <= 0 {
		settings.MaxClientClockSkew = 30 * time.Minute
	}
	return &Orchestrator{
		db:         db,
		calculator: calculator,
		cache:      cache,
		limiter:    limiter,
		notifier:   notifier,
		settings:   settings,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Create books one appointment. All capacity and policy guards run inside
// the transaction, after the date's advisory lock is held.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput) (*appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("babyspa.date", in.Date.Format("2006-01-02")),
		attribute.String("babyspa.channel", string(in.Channel)),
	)

	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}
	perm := identity.PermBookStaff
	if in.Channel == schedule.ChannelPortal {
		perm = identity.PermBookPortal
	}
	if !actor.Can(perm) {
		return nil, o.conflict(apperrors.ErrPermissionDenied)
	}

	if in.BabyID == nil && in.ParentID == nil {
		return nil, o.conflict(apperrors.ErrMissingClient)
	}
	startMin, endMin, err := parseInterval(in.StartTime, in.EndTime)
	if err != nil {
		return nil, o.conflict(err)
	}

	now := schedule.ClampClientNow(in.ClientNow, o.now(), o.settings.MaxClientClockSkew)

	if in.Channel == schedule.ChannelPortal && o.limiter != nil {
		allowed, err := o.limiter.Allow(ctx, actor.UserID)
		if err != nil {
			o.logger.Warn("portal rate limiter unavailable", "error", err)
		} else if !allowed {
			return nil, o.conflict(apperrors.ErrPortalRateLimited)
		}
	}

	appt := &appointments.Appointment{
		Date:              in.Date,
		StartTime:         schedule.FormatMinutes(startMin),
		EndTime:           schedule.FormatMinutes(endMin),
		Channel:           string(in.Channel),
		BabyID:            in.BabyID,
		ParentID:          in.ParentID,
		PackagePurchaseID: in.PackagePurchaseID,
		Notes:             in.Notes,
	}

	var event events.AppointmentEventV1
	err = storage.WithTx(ctx, o.db, func(tx pgx.Tx) error {
		if err := storage.LockDate(ctx, tx, schedule.DateKey(in.Date)); err != nil {
			return err
		}

		day, err := schedule.NewRepository(tx).LoadDay(ctx, in.Date)
		if err != nil {
			return err
		}
		if day.Closed {
			return apperrors.ErrDateClosed
		}
		if !o.calculator.WithinHours(day, startMin, endMin) {
			return apperrors.ErrOutsideBusinessHours
		}
		if err := o.checkPortalBuffer(in.Channel, in.Date, startMin, now); err != nil {
			return err
		}

		status := appointments.StatusScheduled
		if in.BabyID != nil {
			busy, err := appointments.NewRepository(tx).BabyHasActiveOnDate(ctx, *in.BabyID, in.Date, uuid.Nil)
			if err != nil {
				return err
			}
			if busy {
				return apperrors.ErrBabyAlreadyHasAppt
			}
			baby, err := clients.NewRepository(tx).GetBaby(ctx, *in.BabyID)
			if err != nil {
				return err
			}
			if baby.RequiresPrepayment && in.PackagePurchaseID == nil {
				// Portal clients cannot settle at the desk, so the booking is
				// refused outright. Staff can still book and collect first.
				if in.Channel == schedule.ChannelPortal {
					return apperrors.ErrPrepaymentRequired
				}
				status = appointments.StatusPendingPayment
			}
			event.BabyName = baby.Name
			if appt.ParentID == nil {
				appt.ParentID = &baby.ParentID
			}
		}

		if in.PackagePurchaseID != nil {
			purchase, err := packages.NewRepository(tx).GetForUpdate(ctx, *in.PackagePurchaseID)
			if err != nil {
				return err
			}
			if in.BabyID != nil && purchase.BabyID != *in.BabyID {
				return apperrors.ErrPackagePurchaseNotFound
			}
			active, err := appointments.NewRepository(tx).CountActiveForPurchase(ctx, purchase.ID)
			if err != nil {
				return err
			}
			if err := packages.ValidateBooking(purchase, active); err != nil {
				return err
			}
			if purchase.RequiresAdvance && !purchase.AdvanceSatisfied() {
				status = appointments.StatusPendingPayment
			}
			event.PackageName = purchase.PackageName
		}

		if !o.calculator.HasAvailability(day, in.Channel, startMin, endMin, nil) {
			return apperrors.ErrTimeSlotFull
		}

		appt.Status = status
		repo := appointments.NewRepository(tx)
		if err := repo.Insert(ctx, appt); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &appointments.HistoryEntry{
			AppointmentID: appt.ID,
			Field:         "status",
			OldValue:      "",
			NewValue:      string(status),
			ActorID:       actor.UserID,
		}); err != nil {
			return err
		}

		if appt.ParentID != nil {
			parent, err := clients.NewRepository(tx).GetParent(ctx, *appt.ParentID)
			if err != nil {
				return err
			}
			event.ParentName = parent.Name
			event.ParentEmail = parent.Email
			event.ParentPhone = parent.Phone
		}
		event.AppointmentID = appt.ID.String()
		event.Date = in.Date.Format("2006-01-02")
		event.StartTime = appt.StartTime
		_, err = events.NewOutboxStore(tx).Insert(ctx, events.TypeAppointmentCreatedV1, event)
		return err
	})
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveConflict(apperrors.CodeOf(err))
		return nil, err
	}

	o.afterMutation(ctx, in.Date)
	o.metrics.ObserveBooking(string(in.Channel), string(appt.Status))
	o.logger.Info("appointment created",
		"appointment_id", appt.ID, "date", event.Date, "start", appt.StartTime,
		"status", appt.Status, "channel", in.Channel, "actor", actor.UserID)
	return appt, nil
}

// Reschedule moves an appointment to a new date or time. The old slot does
// not count against the new one; both dates' availability caches are
// invalidated.
func (o *Orchestrator) Reschedule(ctx context.Context, id uuid.UUID, date time.Time, startTime, endTime string, clientNow *time.Time) (*appointments.Appointment, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.reschedule")
	defer span.End()
	span.SetAttributes(attribute.String("babyspa.appointment_id", id.String()))

	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}
	startMin, endMin, err := parseInterval(startTime, endTime)
	if err != nil {
		return nil, err
	}
	now := schedule.ClampClientNow(clientNow, o.now(), o.settings.MaxClientClockSkew)

	var appt *appointments.Appointment
	var oldDate time.Time
	err = storage.WithTx(ctx, o.db, func(tx pgx.Tx) error {
		if err := storage.LockDate(ctx, tx, schedule.DateKey(date)); err != nil {
			return err
		}

		repo := appointments.NewRepository(tx)
		a, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := o.authorizeOwn(actor, a, identity.PermBookStaff); err != nil {
			return err
		}
		if !a.Status.Reschedulable() {
			return apperrors.ErrInvalidStatus
		}
		if actor.Role == identity.RoleClient && now.Add(o.settings.MinCancelLead).After(a.StartsAt()) {
			return apperrors.ErrTooLate
		}

		day, err := schedule.NewRepository(tx).LoadDay(ctx, date)
		if err != nil {
			return err
		}
		if day.Closed {
			return apperrors.ErrDateClosed
		}
		if !o.calculator.WithinHours(day, startMin, endMin) {
			return apperrors.ErrOutsideBusinessHours
		}
		// The portal's same-day buffer applies to the new slot too; a
		// reschedule is not a way around it.
		if err := o.checkPortalBuffer(channelOf(a), date, startMin, now); err != nil {
			return err
		}

		if a.BabyID != nil {
			busy, err := repo.BabyHasActiveOnDate(ctx, *a.BabyID, date, a.ID)
			if err != nil {
				return err
			}
			if busy {
				return apperrors.ErrBabyAlreadyHasAppt
			}
		}

		exclude := &schedule.BookedInterval{AppointmentID: a.ID}
		if !o.calculator.HasAvailability(day, channelOf(a), startMin, endMin, exclude) {
			return apperrors.ErrTimeSlotFull
		}

		oldDate = a.Date
		oldStart := a.StartTime
		if err := repo.UpdateSchedule(ctx, a.ID, date, schedule.FormatMinutes(startMin), schedule.FormatMinutes(endMin)); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &appointments.HistoryEntry{
			AppointmentID: a.ID,
			Field:         "schedule",
			OldValue:      oldDate.Format("2006-01-02") + " " + oldStart,
			NewValue:      date.Format("2006-01-02") + " " + schedule.FormatMinutes(startMin),
			ActorID:       actor.UserID,
		}); err != nil {
			return err
		}

		a.Date = date
		a.StartTime = schedule.FormatMinutes(startMin)
		a.EndTime = schedule.FormatMinutes(endMin)
		appt = a

		_, err = events.NewOutboxStore(tx).Insert(ctx, events.TypeAppointmentRescheduledV1, events.AppointmentEventV1{
			AppointmentID: a.ID.String(),
			Date:          date.Format("2006-01-02"),
			StartTime:     a.StartTime,
			OldDate:       oldDate.Format("2006-01-02"),
			OldStartTime:  oldStart,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveConflict(apperrors.CodeOf(err))
		return nil, err
	}

	o.afterMutation(ctx, oldDate)
	if !sameDate(oldDate, date) {
		o.afterMutation(ctx, date)
	}
	o.logger.Info("appointment rescheduled", "appointment_id", id, "date", date.Format("2006-01-02"), "actor", actor.UserID)
	return appt, nil
}

// Cancel marks an appointment CANCELLED. Appointments with recorded
// payments must go through a void first; portal clients are held to the
// minimum lead time.
func (o *Orchestrator) Cancel(ctx context.Context, id uuid.UUID, reason string, clientNow *time.Time) error {
	ctx, span := bookingTracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("babyspa.appointment_id", id.String()))

	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return apperrors.ErrPermissionDenied
	}
	if strings.TrimSpace(reason) == "" {
		return apperrors.ErrCancelReasonRequired
	}
	now := schedule.ClampClientNow(clientNow, o.now(), o.settings.MaxClientClockSkew)

	var date time.Time
	err := storage.WithTx(ctx, o.db, func(tx pgx.Tx) error {
		repo := appointments.NewRepository(tx)
		a, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := o.authorizeOwn(actor, a, identity.PermCancelAny); err != nil {
			return err
		}
		if !a.Status.CanTransitionTo(appointments.StatusCancelled) {
			return apperrors.ErrInvalidStatus
		}
		if actor.Role == identity.RoleClient && now.Add(o.settings.MinCancelLead).After(a.StartsAt()) {
			return apperrors.ErrTooLate
		}

		paid, err := ledger.NewRepository(tx).HasPaymentsForAppointment(ctx, a.ID)
		if err != nil {
			return err
		}
		if paid {
			return apperrors.ErrHasPayments
		}

		if err := repo.UpdateStatus(ctx, a.ID, appointments.StatusCancelled, reason); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &appointments.HistoryEntry{
			AppointmentID: a.ID,
			Field:         "status",
			OldValue:      string(a.Status),
			NewValue:      string(appointments.StatusCancelled),
			ActorID:       actor.UserID,
		}); err != nil {
			return err
		}

		date = a.Date
		_, err = events.NewOutboxStore(tx).Insert(ctx, events.TypeAppointmentCancelledV1, events.AppointmentEventV1{
			AppointmentID: a.ID.String(),
			Date:          a.Date.Format("2006-01-02"),
			StartTime:     a.StartTime,
			CancelReason:  reason,
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveConflict(apperrors.CodeOf(err))
		return err
	}

	o.afterMutation(ctx, date)
	o.metrics.ObserveTransition(string(appointments.StatusCancelled))
	o.logger.Info("appointment cancelled", "appointment_id", id, "actor", actor.UserID)
	return nil
}

// checkPortalBuffer refuses portal-channel slots starting inside the
// same-day buffer window.
func (o *Orchestrator) checkPortalBuffer(channel schedule.Channel, date time.Time, startMin int, now time.Time) error {
	if channel != schedule.ChannelPortal || !sameDate(date, now) {
		return nil
	}
	if startMin < schedule.SameDayCutoff(now, o.settings.PortalSameDayBuffer) {
		return apperrors.ErrTimeSlotFull
	}
	return nil
}

// authorizeOwn grants staff with the permission, and portal clients acting
// on their own family's appointment.
func (o *Orchestrator) authorizeOwn(actor identity.Actor, a *appointments.Appointment, staffPerm identity.Permission) error {
	if actor.Can(staffPerm) {
		return nil
	}
	if actor.Role == identity.RoleClient && actor.ParentID != "" &&
		a.ParentID != nil && a.ParentID.String() == actor.ParentID {
		return nil
	}
	return apperrors.ErrPermissionDenied
}

func (o *Orchestrator) afterMutation(ctx context.Context, date time.Time) {
	if o.cache != nil {
		o.cache.Invalidate(ctx, date)
	}
	if o.notifier != nil {
		o.notifier.AvailabilityChanged(date)
	}
}

func (o *Orchestrator) conflict(err error) error {
	o.metrics.ObserveConflict(apperrors.CodeOf(err))
	return err
}

func parseInterval(startTime, endTime string) (int, int, error) {
	startMin, err := schedule.MinutesOfDay(startTime)
	if err != nil {
		return 0, 0, apperrors.ErrOutsideBusinessHours
	}
	endMin, err := schedule.MinutesOfDay(endTime)
	if err != nil || endMin <= startMin {
		return 0, 0, apperrors.ErrOutsideBusinessHours
	}
	return startMin, endMin, nil
}

func channelOf(a *appointments.Appointment) schedule.Channel {
	if a.Channel == string(schedule.ChannelPortal) {
		return schedule.ChannelPortal
	}
	return schedule.ChannelStaff
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
