package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository persists transactions with their item and tender lines.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

// Insert writes the transaction header plus its item and tender rows.
// Callers run it inside the same pgx transaction as the side effects.
func (r *Repository) Insert(ctx context.Context, t *Transaction) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO transactions (
			id, type, category, reference_type, reference_id, total,
			cash_register_id, installment_number, created_by, reversal_of
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		t.ID, t.Type, t.Category, t.ReferenceType, t.ReferenceID, t.Total,
		t.CashRegisterID, t.InstallmentNumber, t.CreatedBy, t.ReversalOf).Scan(&t.CreatedAt)
	if err != nil {
		return fmt.Errorf("ledger: insert transaction: %w", err)
	}

	for i := range t.Items {
		item := &t.Items[i]
		if item.ID == uuid.Nil {
			item.ID = uuid.New()
		}
		if _, err := r.db.Exec(ctx, `
			INSERT INTO transaction_items (id, transaction_id, description, quantity, unit_price, product_id)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			item.ID, t.ID, item.Description, item.Quantity, item.UnitPrice, item.ProductID); err != nil {
			return fmt.Errorf("ledger: insert transaction item: %w", err)
		}
	}

	for _, e := range t.Tender {
		if _, err := r.db.Exec(ctx, `
			INSERT INTO transaction_payments (id, transaction_id, method, amount, reference)
			VALUES ($1,$2,$3,$4,$5)`,
			uuid.New(), t.ID, e.Method, e.Amount, e.Reference); err != nil {
			return fmt.Errorf("ledger: insert tender entry: %w", err)
		}
	}
	return nil
}

// GetForUpdate locks and loads a transaction header with its lines.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := r.db.QueryRow(ctx, `
		SELECT id, type, category, reference_type, reference_id, total,
		       cash_register_id, installment_number, created_by, created_at,
		       voided_at, COALESCE(void_reason, ''), COALESCE(voided_by, ''), reversal_of
		FROM transactions WHERE id = $1 FOR UPDATE`, id).Scan(
		&t.ID, &t.Type, &t.Category, &t.ReferenceType, &t.ReferenceID, &t.Total,
		&t.CashRegisterID, &t.InstallmentNumber, &t.CreatedBy, &t.CreatedAt,
		&t.VoidedAt, &t.VoidReason, &t.VoidedBy, &t.ReversalOf)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load transaction: %w", err)
	}

	if t.Items, err = r.loadItems(ctx, id); err != nil {
		return nil, err
	}
	if t.Tender, err = r.loadTender(ctx, id); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) loadItems(ctx context.Context, txID uuid.UUID) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, description, quantity, unit_price, product_id
		FROM transaction_items WHERE transaction_id = $1`, txID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var i Item
		if err := rows.Scan(&i.ID, &i.Description, &i.Quantity, &i.UnitPrice, &i.ProductID); err != nil {
			return nil, fmt.Errorf("ledger: scan item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (r *Repository) loadTender(ctx context.Context, txID uuid.UUID) ([]TenderEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT method, amount, COALESCE(reference, '')
		FROM transaction_payments WHERE transaction_id = $1`, txID)
	if err != nil {
		return nil, fmt.Errorf("ledger: load tender: %w", err)
	}
	defer rows.Close()

	var tender []TenderEntry
	for rows.Next() {
		var e TenderEntry
		if err := rows.Scan(&e.Method, &e.Amount, &e.Reference); err != nil {
			return nil, fmt.Errorf("ledger: scan tender: %w", err)
		}
		tender = append(tender, e)
	}
	return tender, rows.Err()
}

// MarkVoided stamps the original transaction. The row stays; nothing is
// deleted.
func (r *Repository) MarkVoided(ctx context.Context, id uuid.UUID, reason, voidedBy string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE transactions
		SET voided_at = now(), void_reason = $2, voided_by = $3
		WHERE id = $1 AND voided_at IS NULL`, id, reason, voidedBy)
	if err != nil {
		return fmt.Errorf("ledger: mark voided: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrTransactionVoided
	}
	return nil
}

// CountPurchasePayments counts non-voided payments applied to a purchase.
// This is the paid-installment count the ordering rules work from.
func (r *Repository) CountPurchasePayments(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM transactions
		WHERE reference_type = 'PACKAGE_PURCHASE'
		  AND reference_id = $1
		  AND type = 'INCOME'
		  AND voided_at IS NULL
		  AND reversal_of IS NULL`, purchaseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ledger: count purchase payments: %w", err)
	}
	return count, nil
}

// LatestPurchasePayment returns the id of the most recent non-voided
// payment on a purchase. Only that payment may be reversed.
func (r *Repository) LatestPurchasePayment(ctx context.Context, purchaseID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, `
		SELECT id
		FROM transactions
		WHERE reference_type = 'PACKAGE_PURCHASE'
		  AND reference_id = $1
		  AND type = 'INCOME'
		  AND voided_at IS NULL
		  AND reversal_of IS NULL
		ORDER BY created_at DESC
		LIMIT 1`, purchaseID).Scan(&id)
	if storage.IsNoRows(err) {
		return uuid.Nil, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("ledger: latest purchase payment: %w", err)
	}
	return id, nil
}

// HasPaymentsForAppointment reports whether any non-voided transaction
// references the appointment. Cancellation is refused while one exists.
func (r *Repository) HasPaymentsForAppointment(ctx context.Context, appointmentID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM transactions
			WHERE reference_type = 'APPOINTMENT'
			  AND reference_id = $1
			  AND voided_at IS NULL
			  AND reversal_of IS NULL
		)`, appointmentID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ledger: check appointment payments: %w", err)
	}
	return exists, nil
}
