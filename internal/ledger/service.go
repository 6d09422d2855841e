package ledger

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/appointments"
	"github.com/danielthames360/baby-spa-sub004/internal/events"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/inventory"
	"github.com/danielthames360/baby-spa-sub004/internal/observability/metrics"
	"github.com/danielthames360/baby-spa-sub004/internal/packages"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

var ledgerTracer = otel.Tracer("babyspa.internal.ledger")

// CreateInput describes a transaction to record.
type CreateInput struct {
	Type          Type
	Category      Category
	ReferenceType ReferenceType
	ReferenceID   uuid.UUID
	Items         []Item
	Tender        []TenderEntry
	// InstallmentNumber must be set for PACKAGE_INSTALLMENT payments.
	InstallmentNumber *int
}

// Service records and voids transactions. Every mutation runs in a single
// database transaction so the ledger row, its side effects on purchases and
// stock, and the outbox event land together or not at all.
type Service struct {
	db               storage.Beginner
	voidReasonMinLen int
	logger           *logging.Logger
	metrics          *metrics.BookingMetrics
}

// NewService constructs the ledger service.
func NewService(db storage.Beginner, voidReasonMinLen int, logger *logging.Logger, m *metrics.BookingMetrics) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if voidReasonMinLen <= 0 {
		voidReasonMinLen = 10
	}
	return &Service{db: db, voidReasonMinLen: voidReasonMinLen, logger: logger, metrics: m}
}

// Create validates and records a transaction. All integrity checks run
// before any write; the first failing rule aborts with its stable code and
// nothing is persisted.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("babyspa.category", string(in.Category)),
		attribute.String("babyspa.type", string(in.Type)),
	)

	actor, ok := identity.ActorFromContext(ctx)
	if !ok {
		return nil, apperrors.ErrPermissionDenied
	}
	perm := identity.PermRecordPayment
	if in.Type == TypeExpense {
		perm = identity.PermRecordExpense
	}
	if !actor.Can(perm) {
		return nil, apperrors.ErrPermissionDenied
	}

	if err := ValidateTender(in.Items, in.Tender); err != nil {
		return nil, err
	}
	total := ItemsTotal(in.Items)

	t := &Transaction{
		Type:              in.Type,
		Category:          in.Category,
		ReferenceType:     in.ReferenceType,
		ReferenceID:       in.ReferenceID,
		Items:             in.Items,
		Tender:            in.Tender,
		Total:             total,
		InstallmentNumber: in.InstallmentNumber,
		CreatedBy:         actor.UserID,
	}

	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		if t.HasCash() && actor.Role.RequiresCashRegister() {
			session, err := NewCashRegisterRepository(tx).GetOpenForUser(ctx, actor.UserID)
			if err != nil {
				return err
			}
			t.CashRegisterID = &session.ID
		}

		if in.Category == CategoryProductSale {
			if err := s.deductSoldStock(ctx, tx, t); err != nil {
				return err
			}
		}

		if in.Category.AppliesToPurchase() && in.ReferenceType == RefPackagePurchase {
			if err := s.applyToPurchase(ctx, tx, t, actor); err != nil {
				return err
			}
		}

		if in.ReferenceType == RefAppointment && in.Type == TypeIncome {
			if err := s.applyToAppointment(ctx, tx, t, actor); err != nil {
				return err
			}
		}

		if err := NewRepository(tx).Insert(ctx, t); err != nil {
			return err
		}

		// Movement rows carry a foreign key to the transaction header, so
		// they go in only after the header row exists.
		if in.Category == CategoryProductSale {
			return s.recordSaleMovements(ctx, tx, t)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.metrics.ObserveConflict(apperrors.CodeOf(err))
		return nil, err
	}

	s.metrics.ObserveTransaction(string(t.Type), string(t.Category))
	s.logger.Info("transaction recorded",
		"transaction_id", t.ID, "category", t.Category, "total", t.Total, "actor", actor.UserID)
	return t, nil
}

// deductSoldStock removes stock for every product line. The SQL guard
// inside DeductStock refuses oversells under concurrency.
func (s *Service) deductSoldStock(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	invRepo := inventory.NewRepository(tx)
	for _, item := range t.Items {
		if item.ProductID == nil {
			continue
		}
		if err := invRepo.DeductStock(ctx, *item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// recordSaleMovements writes one SALE movement per product line against the
// already-inserted transaction header.
func (s *Service) recordSaleMovements(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	invRepo := inventory.NewRepository(tx)
	for _, item := range t.Items {
		if item.ProductID == nil {
			continue
		}
		if err := invRepo.RecordMovement(ctx, &inventory.Movement{
			ProductID:     *item.ProductID,
			Type:          inventory.MovementSale,
			Quantity:      -item.Quantity,
			TransactionID: &t.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyToPurchase applies a payment to a package purchase: installment
// ordering and amount rules, the balance update, promotion of appointments
// parked in PENDING_PAYMENT, and the payment.recorded outbox event.
func (s *Service) applyToPurchase(ctx context.Context, tx pgx.Tx, t *Transaction, actor identity.Actor) error {
	pkgRepo := packages.NewRepository(tx)
	purchase, err := pkgRepo.GetForUpdate(ctx, t.ReferenceID)
	if err != nil {
		return err
	}

	paidCount, err := NewRepository(tx).CountPurchasePayments(ctx, purchase.ID)
	if err != nil {
		return err
	}

	if t.Category == CategoryInstallment {
		if t.InstallmentNumber == nil {
			return apperrors.ErrInvalidInstallmentNum
		}
		if err := packages.ValidateInstallmentPayment(purchase, paidCount, *t.InstallmentNumber, t.Total); err != nil {
			return err
		}
	}

	if err := pkgRepo.AddPaid(ctx, purchase.ID, t.Total); err != nil {
		return err
	}
	purchase.PaidAmount = purchase.PaidAmount.Add(t.Total)

	if purchase.AdvanceSatisfied() {
		promoted, err := appointments.NewRepository(tx).PromotePendingPayments(ctx, purchase.ID, actor.UserID)
		if err != nil {
			return err
		}
		if len(promoted) > 0 {
			s.logger.Info("appointments released from pending payment",
				"package_purchase_id", purchase.ID, "count", len(promoted))
		}
	}

	if purchase.FullyPaid() && purchase.FullyConsumed() {
		if err := pkgRepo.SetActive(ctx, purchase.ID, false); err != nil {
			return err
		}
	}

	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	installment := 0
	if t.InstallmentNumber != nil {
		installment = *t.InstallmentNumber
	}
	_, err = events.NewOutboxStore(tx).Insert(ctx, events.TypePaymentRecordedV1, events.PaymentRecordedV1{
		TransactionID:     t.ID.String(),
		PackagePurchaseID: purchase.ID.String(),
		Amount:            t.Total.StringFixed(2),
		InstallmentNumber: installment,
	})
	return err
}

// applyToAppointment releases an appointment parked in PENDING_PAYMENT when
// a payment references it directly, the prepayment path for bookings made
// without a package purchase.
func (s *Service) applyToAppointment(ctx context.Context, tx pgx.Tx, t *Transaction, actor identity.Actor) error {
	promoted, err := appointments.NewRepository(tx).PromotePending(ctx, t.ReferenceID, actor.UserID)
	if err != nil {
		return err
	}
	if promoted {
		s.logger.Info("appointment released from pending payment", "appointment_id", t.ReferenceID)
	}
	return nil
}

// Void reverses a transaction. The original row is stamped, never deleted,
// and a mirror-image reversal row keeps daily totals reconcilable. Side
// effects are undone symmetrically: purchase balances come back down, sold
// stock comes back in.
func (s *Service) Void(ctx context.Context, id uuid.UUID, reason string) (*Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.void")
	defer span.End()
	span.SetAttributes(attribute.String("babyspa.transaction_id", id.String()))

	actor, ok := identity.ActorFromContext(ctx)
	if !ok || !actor.Can(identity.PermVoidTransaction) {
		return nil, apperrors.ErrPermissionDenied
	}
	if len(strings.TrimSpace(reason)) < s.voidReasonMinLen {
		return nil, apperrors.ErrVoidReasonTooShort
	}

	var reversal *Transaction
	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := NewRepository(tx)
		t, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Voided() {
			return apperrors.ErrTransactionVoided
		}
		if t.IsReversal() {
			return apperrors.ErrCannotVoidReversal
		}

		if t.Category.AppliesToPurchase() && t.ReferenceType == RefPackagePurchase {
			if err := s.unwindPurchasePayment(ctx, tx, repo, t); err != nil {
				return err
			}
		}
		if t.Category == CategoryProductSale {
			if err := s.restoreSoldStock(ctx, tx, t); err != nil {
				return err
			}
		}

		if err := repo.MarkVoided(ctx, t.ID, reason, actor.UserID); err != nil {
			return err
		}

		reversal = &Transaction{
			Type:          flip(t.Type),
			Category:      t.Category,
			ReferenceType: t.ReferenceType,
			ReferenceID:   t.ReferenceID,
			Total:         t.Total,
			Tender:        t.Tender,
			CreatedBy:     actor.UserID,
			ReversalOf:    &t.ID,
		}
		if reversal.HasCash() && actor.Role.RequiresCashRegister() {
			session, err := NewCashRegisterRepository(tx).GetOpenForUser(ctx, actor.UserID)
			if err != nil {
				return err
			}
			reversal.CashRegisterID = &session.ID
		}
		return repo.Insert(ctx, reversal)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.metrics.ObserveVoid()
	s.logger.Info("transaction voided",
		"transaction_id", id, "reversal_id", reversal.ID, "actor", actor.UserID)
	return reversal, nil
}

// unwindPurchasePayment enforces the latest-payment-only rule and backs the
// amount out of the purchase. A purchase that had been closed out by the
// payment becomes active again.
func (s *Service) unwindPurchasePayment(ctx context.Context, tx pgx.Tx, repo *Repository, t *Transaction) error {
	latest, err := repo.LatestPurchasePayment(ctx, t.ReferenceID)
	if err != nil {
		return err
	}
	if latest != t.ID {
		return apperrors.ErrOnlyLatestPaymentVoid
	}
	pkgRepo := packages.NewRepository(tx)
	if err := pkgRepo.SubtractPaid(ctx, t.ReferenceID, t.Total); err != nil {
		return err
	}
	return pkgRepo.SetActive(ctx, t.ReferenceID, true)
}

func (s *Service) restoreSoldStock(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	invRepo := inventory.NewRepository(tx)
	for _, item := range t.Items {
		if item.ProductID == nil {
			continue
		}
		if err := invRepo.RestoreStock(ctx, *item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := invRepo.RecordMovement(ctx, &inventory.Movement{
			ProductID:     *item.ProductID,
			Type:          inventory.MovementVoidReturn,
			Quantity:      item.Quantity,
			TransactionID: &t.ID,
		}); err != nil {
			return err
		}
	}
	return nil
}

func flip(t Type) Type {
	if t == TypeIncome {
		return TypeExpense
	}
	return TypeIncome
}

// OpenCashRegister starts a drawer session for the acting user.
func (s *Service) OpenCashRegister(ctx context.Context, openingAmount decimal.Decimal) (*CashRegisterSession, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok || !actor.Can(identity.PermManageRegister) {
		return nil, apperrors.ErrPermissionDenied
	}

	var session *CashRegisterSession
	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		session, err = NewCashRegisterRepository(tx).OpenSession(ctx, actor.UserID, openingAmount)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cash register opened", "session_id", session.ID, "user_id", actor.UserID)
	return session, nil
}

// CurrentCashRegister returns the acting user's open drawer session, or
// CASH_REGISTER_REQUIRED when no session is open.
func (s *Service) CurrentCashRegister(ctx context.Context) (*CashRegisterSession, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok || !actor.Can(identity.PermManageRegister) {
		return nil, apperrors.ErrPermissionDenied
	}

	var session *CashRegisterSession
	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		session, err = NewCashRegisterRepository(tx).GetOpenForUser(ctx, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// CloseCashRegister closes the acting user's drawer, recording the counted
// amount against the expected balance.
func (s *Service) CloseCashRegister(ctx context.Context, declared decimal.Decimal) (*CashRegisterSession, error) {
	actor, ok := identity.ActorFromContext(ctx)
	if !ok || !actor.Can(identity.PermManageRegister) {
		return nil, apperrors.ErrPermissionDenied
	}

	var session *CashRegisterSession
	err := storage.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		repo := NewCashRegisterRepository(tx)
		open, err := repo.GetOpenForUser(ctx, actor.UserID)
		if err != nil {
			return err
		}
		session, err = repo.CloseSession(ctx, open.ID, declared)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("cash register closed",
		"session_id", session.ID, "deviation", session.Deviation, "user_id", actor.UserID)
	return session, nil
}
