package appointments

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

var apptCols = []string{
	"id", "date", "start_time", "end_time", "status", "channel", "baby_id", "parent_id",
	"package_purchase_id", "cancel_reason", "notes", "created_at",
}

var purchaseCols = []string{
	"id", "baby_id", "package_name", "total_sessions", "used_sessions",
	"installments", "installment_amount", "paid_amount", "final_price",
	"payment_plan", "installments_pay_on_sessions", "requires_advance", "active", "created_at",
}

func staffCtx(role identity.Role) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{UserID: "staff-1", Role: role})
}

func apptRow(id uuid.UUID, status Status, babyID, purchaseID *uuid.UUID) *pgxmock.Rows {
	return pgxmock.NewRows(apptCols).AddRow(
		id, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "10:00", "10:30",
		status, "staff", babyID, nil, purchaseID, "", "", time.Now())
}

type stubCounter struct{ count int }

func (s stubCounter) CountPurchasePayments(context.Context, uuid.UUID) (int, error) {
	return s.count, nil
}

func stubPayments(count int) PaymentCounterFactory {
	return func(storage.Querier) PaymentCounter { return stubCounter{count: count} }
}

func TestStartMovesScheduledToInProgress(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusScheduled, nil, nil))
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(id, StatusInProgress, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), id, "status", string(StatusScheduled), string(StatusInProgress), "staff-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil, 3, nil, nil)
	a, err := svc.Start(staffCtx(identity.RoleReception), id)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRefusesCompletedAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusCompleted, nil, nil))
	mock.ExpectRollback()

	svc := NewService(mock, nil, 3, nil, nil)
	_, err = svc.Start(staffCtx(identity.RoleAdmin), id)
	assert.True(t, apperrors.IsCode(err, "INVALID_STATUS"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartRequiresPermission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, nil, 3, nil, nil)
	_, err = svc.Start(staffCtx(identity.RoleClient), uuid.New())
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}

func TestCompleteConsumesPackageSession(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	purchaseID := uuid.New()
	babyID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusInProgress, &babyID, &purchaseID))
	mock.ExpectQuery(`SELECT .* FROM package_purchases WHERE id = \$1 FOR UPDATE`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows(purchaseCols).AddRow(
			purchaseID, babyID, "Hydro 10", 10, 2,
			4, "250.00", "500.00", "1000.00",
			"FIXED_INSTALLMENTS", []int32(nil), true, true, time.Now()))
	mock.ExpectExec(`UPDATE package_purchases\s+SET used_sessions = used_sessions \+ 1`).
		WithArgs(purchaseID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(id, StatusCompleted, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), id, "status", string(StatusInProgress), string(StatusCompleted), "staff-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, stubPayments(2), 3, nil, nil)
	a, err := svc.Complete(staffCtx(identity.RoleTherapist), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteBlocksOnUnpaidGatedInstallment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	purchaseID := uuid.New()
	babyID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusInProgress, &babyID, &purchaseID))
	// Session 5 is about to be completed but the installment gated at
	// session 4 has not been paid.
	mock.ExpectQuery(`SELECT .* FROM package_purchases WHERE id = \$1 FOR UPDATE`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows(purchaseCols).AddRow(
			purchaseID, babyID, "Hydro 10", 10, 4,
			3, "300.00", "300.00", "900.00",
			"PAY_ON_SESSIONS", []int32{1, 4, 8}, true, true, time.Now()))
	mock.ExpectRollback()

	svc := NewService(mock, stubPayments(1), 3, nil, nil)
	_, err = svc.Complete(staffCtx(identity.RoleTherapist), id)
	assert.True(t, apperrors.IsCode(err, "INSTALLMENT_PAYMENT_REQUIRED"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoShowFlagsBabyAtThreshold(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	babyID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusScheduled, &babyID, nil))
	mock.ExpectQuery(`UPDATE babies SET no_show_count = no_show_count \+ 1`).
		WithArgs(babyID).
		WillReturnRows(pgxmock.NewRows([]string{"no_show_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE babies SET requires_prepayment`).
		WithArgs(babyID, true).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(id, StatusNoShow, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), id, "status", string(StatusScheduled), string(StatusNoShow), "staff-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil, 3, nil, nil)
	a, err := svc.NoShow(staffCtx(identity.RoleReception), id)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, a.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNoShowBelowThresholdDoesNotFlag(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	babyID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM appointments WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).WillReturnRows(apptRow(id, StatusScheduled, &babyID, nil))
	mock.ExpectQuery(`UPDATE babies SET no_show_count = no_show_count \+ 1`).
		WithArgs(babyID).
		WillReturnRows(pgxmock.NewRows([]string{"no_show_count"}).AddRow(1))
	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(id, StatusNoShow, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), id, "status", string(StatusScheduled), string(StatusNoShow), "staff-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, nil, 3, nil, nil)
	_, err = svc.NoShow(staffCtx(identity.RoleReception), id)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
