package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// CashRegisterSession is one staff member's open-to-close drawer lifecycle.
// A partial unique index guarantees at most one open session per user; the
// constraint, not an in-memory lock, is the concurrency control.
type CashRegisterSession struct {
	ID             uuid.UUID        `json:"id"`
	UserID         string           `json:"user_id"`
	OpeningAmount  decimal.Decimal  `json:"opening_amount"`
	ExpectedAmount *decimal.Decimal `json:"expected_amount,omitempty"`
	DeclaredAmount *decimal.Decimal `json:"declared_amount,omitempty"`
	Deviation      *decimal.Decimal `json:"deviation,omitempty"`
	OpenedAt       time.Time        `json:"opened_at"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
}

// Open reports whether the session is still open.
func (s *CashRegisterSession) Open() bool {
	return s.ClosedAt == nil
}

// CashRegisterRepository persists drawer sessions.
type CashRegisterRepository struct {
	db storage.Querier
}

// NewCashRegisterRepository creates a repository over a pool or transaction.
func NewCashRegisterRepository(db storage.Querier) *CashRegisterRepository {
	return &CashRegisterRepository{db: db}
}

// OpenSession starts a drawer session for the user. The unique index on
// open sessions turns a second open into CASH_REGISTER_ALREADY_OPEN.
func (r *CashRegisterRepository) OpenSession(ctx context.Context, userID string, openingAmount decimal.Decimal) (*CashRegisterSession, error) {
	s := &CashRegisterSession{
		ID:            uuid.New(),
		UserID:        userID,
		OpeningAmount: openingAmount,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO cash_register_sessions (id, user_id, opening_amount)
		VALUES ($1, $2, $3)
		RETURNING opened_at`, s.ID, s.UserID, s.OpeningAmount).Scan(&s.OpenedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, apperrors.ErrCashRegisterOpen
		}
		return nil, fmt.Errorf("ledger: open cash register session: %w", err)
	}
	return s, nil
}

// GetOpenForUser returns the user's open session, if any.
func (r *CashRegisterRepository) GetOpenForUser(ctx context.Context, userID string) (*CashRegisterSession, error) {
	var s CashRegisterSession
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, opening_amount, opened_at
		FROM cash_register_sessions
		WHERE user_id = $1 AND closed_at IS NULL`, userID).Scan(
		&s.ID, &s.UserID, &s.OpeningAmount, &s.OpenedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrCashRegisterRequired
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load open session: %w", err)
	}
	return &s, nil
}

// CashBalance computes the session's expected drawer contents: opening
// amount plus signed cash tender across the session's non-voided
// transactions.
func (r *CashRegisterRepository) CashBalance(ctx context.Context, sessionID uuid.UUID) (decimal.Decimal, error) {
	var opening, movement decimal.Decimal
	err := r.db.QueryRow(ctx, `
		SELECT s.opening_amount,
		       COALESCE(SUM(
		           CASE WHEN t.type = 'INCOME' THEN tp.amount ELSE -tp.amount END
		       ), 0)
		FROM cash_register_sessions s
		LEFT JOIN transactions t
		       ON t.cash_register_id = s.id AND t.voided_at IS NULL
		LEFT JOIN transaction_payments tp
		       ON tp.transaction_id = t.id AND tp.method = 'CASH'
		WHERE s.id = $1
		GROUP BY s.opening_amount`, sessionID).Scan(&opening, &movement)
	if storage.IsNoRows(err) {
		return decimal.Zero, apperrors.ErrCashRegisterNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: compute cash balance: %w", err)
	}
	return opening.Add(movement), nil
}

// CloseSession closes the drawer, recording the expected balance, the
// amount the staff member counted, and the deviation between them.
func (r *CashRegisterRepository) CloseSession(ctx context.Context, sessionID uuid.UUID, declared decimal.Decimal) (*CashRegisterSession, error) {
	expected, err := r.CashBalance(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	deviation := declared.Sub(expected)

	var s CashRegisterSession
	err = r.db.QueryRow(ctx, `
		UPDATE cash_register_sessions
		SET closed_at = now(),
		    expected_amount = $2,
		    declared_amount = $3,
		    deviation = $4
		WHERE id = $1 AND closed_at IS NULL
		RETURNING id, user_id, opening_amount, expected_amount, declared_amount, deviation, opened_at, closed_at`,
		sessionID, expected, declared, deviation).Scan(
		&s.ID, &s.UserID, &s.OpeningAmount, &s.ExpectedAmount, &s.DeclaredAmount,
		&s.Deviation, &s.OpenedAt, &s.ClosedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrCashRegisterNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: close session: %w", err)
	}
	return &s, nil
}
