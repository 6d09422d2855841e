package packages

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository persists package purchases.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

const purchaseColumns = `
	id, baby_id, package_name, total_sessions, used_sessions,
	installments, installment_amount, paid_amount, final_price,
	payment_plan, installments_pay_on_sessions, requires_advance, active, created_at`

// Create inserts a new purchase at the point of sale.
func (r *Repository) Create(ctx context.Context, p *Purchase) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO package_purchases (
			id, baby_id, package_name, total_sessions, used_sessions,
			installments, installment_amount, paid_amount, final_price,
			payment_plan, installments_pay_on_sessions, requires_advance, active
		) VALUES ($1,$2,$3,$4,0,$5,$6,$7,$8,$9,$10,$11,TRUE)`,
		p.ID, p.BabyID, p.PackageName, p.TotalSessions,
		p.Installments, p.InstallmentAmount, p.PaidAmount, p.FinalPrice,
		p.PaymentPlan, gatesToInt32(p.InstallmentsPayOnSessions), p.RequiresAdvance)
	if err != nil {
		return fmt.Errorf("packages: insert purchase: %w", err)
	}
	return nil
}

// Get loads a purchase by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate loads a purchase with a row lock, serializing concurrent
// session consumption and payment application.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	return r.get(ctx, id, true)
}

func (r *Repository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM package_purchases WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var p Purchase
	var gates []int32
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.BabyID, &p.PackageName, &p.TotalSessions, &p.UsedSessions,
		&p.Installments, &p.InstallmentAmount, &p.PaidAmount, &p.FinalPrice,
		&p.PaymentPlan, &gates, &p.RequiresAdvance, &p.Active, &p.CreatedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrPackagePurchaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("packages: load purchase: %w", err)
	}
	p.InstallmentsPayOnSessions = gatesToInt(gates)
	return &p, nil
}

// ConsumeSession increments used_sessions by exactly one, refusing in SQL
// to go past the total. Called only on appointment completion.
func (r *Repository) ConsumeSession(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE package_purchases
		SET used_sessions = used_sessions + 1
		WHERE id = $1 AND used_sessions < total_sessions`, id)
	if err != nil {
		return fmt.Errorf("packages: consume session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNoSessionsRemaining
	}
	return nil
}

// ReleaseSession undoes one consumed session when a completing transaction
// is reversed.
func (r *Repository) ReleaseSession(ctx context.Context, id uuid.UUID) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE package_purchases
		SET used_sessions = used_sessions - 1
		WHERE id = $1 AND used_sessions > 0`, id)
	if err != nil {
		return fmt.Errorf("packages: release session: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrPackagePurchaseNotFound
	}
	return nil
}

// AddPaid applies a payment to the purchase balance. The SQL guard keeps
// paid_amount from ever exceeding final_price.
func (r *Repository) AddPaid(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE package_purchases
		SET paid_amount = paid_amount + $2
		WHERE id = $1 AND paid_amount + $2 <= final_price + 0.01`, id, amount)
	if err != nil {
		return fmt.Errorf("packages: add paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrPaidExceedsPrice
	}
	return nil
}

// SubtractPaid symmetrically reverses a payment on void.
func (r *Repository) SubtractPaid(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE package_purchases
		SET paid_amount = paid_amount - $2
		WHERE id = $1 AND paid_amount - $2 >= 0`, id, amount)
	if err != nil {
		return fmt.Errorf("packages: subtract paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrPackagePurchaseNotFound
	}
	return nil
}

// SetActive marks a purchase consumed or refunded.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if _, err := r.db.Exec(ctx, `
		UPDATE package_purchases SET active = $2 WHERE id = $1`, id, active); err != nil {
		return fmt.Errorf("packages: set active: %w", err)
	}
	return nil
}

func gatesToInt32(gates []int) []int32 {
	out := make([]int32, len(gates))
	for i, g := range gates {
		out[i] = int32(g)
	}
	return out
}

func gatesToInt(gates []int32) []int {
	if len(gates) == 0 {
		return nil
	}
	out := make([]int, len(gates))
	for i, g := range gates {
		out[i] = int(g)
	}
	return out
}
