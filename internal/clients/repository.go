package clients

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository persists parents and babies.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

// GetBaby loads a baby by id.
func (r *Repository) GetBaby(ctx context.Context, id uuid.UUID) (*Baby, error) {
	var b Baby
	err := r.db.QueryRow(ctx, `
		SELECT id, parent_id, name, birth_date, no_show_count, requires_prepayment, created_at
		FROM babies WHERE id = $1`, id).Scan(
		&b.ID, &b.ParentID, &b.Name, &b.BirthDate, &b.NoShowCount, &b.RequiresPrepayment, &b.CreatedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clients: load baby: %w", err)
	}
	return &b, nil
}

// GetParent loads a parent by id.
func (r *Repository) GetParent(ctx context.Context, id uuid.UUID) (*Parent, error) {
	var p Parent
	err := r.db.QueryRow(ctx, `
		SELECT id, name, phone, email, created_at
		FROM parents WHERE id = $1`, id).Scan(
		&p.ID, &p.Name, &p.Phone, &p.Email, &p.CreatedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clients: load parent: %w", err)
	}
	return &p, nil
}

// IncrementNoShow bumps the baby's no-show counter and returns the new
// count. The prepayment flag is flipped by the caller once the threshold
// is reached, inside the same transaction.
func (r *Repository) IncrementNoShow(ctx context.Context, babyID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		UPDATE babies SET no_show_count = no_show_count + 1
		WHERE id = $1
		RETURNING no_show_count`, babyID).Scan(&count)
	if storage.IsNoRows(err) {
		return 0, apperrors.ErrClientNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("clients: increment no-show: %w", err)
	}
	return count, nil
}

// SetRequiresPrepayment flips the prepayment flag for future bookings.
func (r *Repository) SetRequiresPrepayment(ctx context.Context, babyID uuid.UUID, required bool) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE babies SET requires_prepayment = $2 WHERE id = $1`, babyID, required)
	if err != nil {
		return fmt.Errorf("clients: set requires prepayment: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrClientNotFound
	}
	return nil
}
