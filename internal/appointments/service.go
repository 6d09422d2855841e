package appointments

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/clients"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/observability/metrics"
	"github.com/danielthames360/baby-spa-sub004/internal/packages"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

var apptTracer = otel.Tracer("babyspa.internal.appointments")

// PaymentCounter reports how many non-voided payments have been applied to
// a package purchase. The ledger repository satisfies it.
type PaymentCounter interface {
	CountPurchasePayments(ctx context.Context, purchaseID uuid.UUID) (int, error)
}

// PaymentCounterFactory builds a counter bound to the given querier so the
// count runs on the caller's transaction.
type PaymentCounterFactory func(db storage.Querier) PaymentCounter

// Service runs the session-day transitions: start, complete, no-show.
// Booking, reschedule and cancellation live in the orchestrator; this
// service owns what happens once the family is (or is not) in the building.
type Service struct {
	db              storage.Beginner
	payments        PaymentCounterFactory
	noShowThreshold int
	logger          *logging.Logger
	metrics         *metrics.BookingMetrics
}

// NewService constructs the transition service.
func NewService(db storage.Beginner, payments PaymentCounterFactory, noShowThreshold int, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if noShowThreshold <= 0 {
		noShowThreshold = 3
	}
	return &Service{
		db:              db,
		payments:        payments,
		noShowThreshold: noShowThreshold,
		logger:          logger,
		metrics:         m,
	}
}

// Start moves a SCHEDULED appointment to IN_PROGRESS when the family
// arrives.
func (s *Service) Start(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "appointments.start", identity.PermStartSession, id, StatusInProgress, nil)
}

// Complete finishes an IN_PROGRESS appointment. When the appointment draws
// on a package purchase, one session is consumed atomically with the status
// change, after the installment gates for this session are verified.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "appointments.complete", identity.PermCompleteSession, id, StatusCompleted,
		func(ctx context.Context, tx pgx.Tx, a *Appointment) error {
			if a.PackagePurchaseID == nil {
				return nil
			}
			pkgRepo := packages.NewRepository(tx)
			purchase, err := pkgRepo.GetForUpdate(ctx, *a.PackagePurchaseID)
			if err != nil {
				return err
			}
			paidCount := 0
			if s.payments != nil {
				if paidCount, err = s.payments(tx).CountPurchasePayments(ctx, purchase.ID); err != nil {
					return err
				}
			}
			if err := packages.ValidateConsumption(purchase, paidCount); err != nil {
				return err
			}
			return pkgRepo.ConsumeSession(ctx, purchase.ID)
		})
}

// NoShow marks a no-arrival. The baby's no-show counter is bumped in the
// same transaction, and crossing the threshold flags the client so future
// bookings demand prepayment.
func (s *Service) NoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "appointments.no_show", identity.PermMarkNoShow, id, StatusNoShow,
		func(ctx context.Context, tx pgx.Tx, a *Appointment) error {
			if a.BabyID == nil {
				return nil
			}
			clientRepo := clients.NewRepository(tx)
			count, err := clientRepo.IncrementNoShow(ctx, *a.BabyID)
			if err != nil {
				return err
			}
			if count >= s.noShowThreshold {
				if err := clientRepo.SetRequiresPrepayment(ctx, *a.BabyID, true); err != nil {
					return err
				}
				s.logger.Warn("baby flagged for prepayment after repeated no-shows",
					"baby_id", a.BabyID, "no_show_count", count)
			}
			return nil
		})
}

func (s *Service) transition(ctx context.Context, span string, perm identity.Permission, id uuid.UUID, target Status,
	sideEffect func(ctx context.Context, tx pgx.Tx, a *Appointment) error) (*Appointment, error) {

	ctx, sp := apptTracer.Start(ctx, span)
	defer sp.End()
	sp.SetAttributes(attribute.String("babyspa.appointment_id", id.String()))

	actor, ok := identity.ActorFromContext(ctx)
	if !ok || !actor.Can(perm) {
		return nil, apperrors.ErrPermissionDenied
	}

	var result *Appointment
	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := NewRepository(tx)
		a, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !a.Status.CanTransitionTo(target) {
			return apperrors.Wrap(apperrors.ErrInvalidStatus, "cannot move %s to %s", a.Status, target)
		}

		if sideEffect != nil {
			if err := sideEffect(ctx, tx, a); err != nil {
				return err
			}
		}

		if err := repo.UpdateStatus(ctx, a.ID, target, ""); err != nil {
			return err
		}
		if err := repo.AppendHistory(ctx, &HistoryEntry{
			AppointmentID: a.ID,
			Field:         "status",
			OldValue:      string(a.Status),
			NewValue:      string(target),
			ActorID:       actor.UserID,
		}); err != nil {
			return err
		}
		a.Status = target
		result = a
		return nil
	})
	if err != nil {
		sp.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveTransition(string(target))
	s.logger.Info("appointment transitioned",
		"appointment_id", id, "to", target, "actor", actor.UserID)
	return result, nil
}
