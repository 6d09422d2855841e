package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository persists products and stock movements.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

// GetProduct loads a product by id.
func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `
		SELECT id, name, unit_price, stock, created_at
		FROM products WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.UnitPrice, &p.Stock, &p.CreatedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("inventory: load product: %w", err)
	}
	return &p, nil
}

// DeductStock removes quantity units, refusing in SQL to go negative so a
// concurrent sale cannot oversell.
func (r *Repository) DeductStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE products SET stock = stock - $2
		WHERE id = $1 AND stock >= $2`, productID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: deduct stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		exists, err := r.productExists(ctx, productID)
		if err != nil {
			return err
		}
		if !exists {
			return apperrors.ErrProductNotFound
		}
		return apperrors.ErrInsufficientStock
	}
	return nil
}

// RestoreStock puts quantity units back when a sale is voided.
func (r *Repository) RestoreStock(ctx context.Context, productID uuid.UUID, quantity int) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE products SET stock = stock + $2 WHERE id = $1`, productID, quantity)
	if err != nil {
		return fmt.Errorf("inventory: restore stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrProductNotFound
	}
	return nil
}

// RecordMovement appends a stock movement row.
func (r *Repository) RecordMovement(ctx context.Context, m *Movement) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO inventory_movements (id, product_id, movement_type, quantity, transaction_id)
		VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ProductID, m.Type, m.Quantity, m.TransactionID)
	if err != nil {
		return fmt.Errorf("inventory: record movement: %w", err)
	}
	return nil
}

func (r *Repository) productExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("inventory: check product: %w", err)
	}
	return exists, nil
}
