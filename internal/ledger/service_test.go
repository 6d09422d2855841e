package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/inventory"
)

var txHeaderCols = []string{
	"id", "type", "category", "reference_type", "reference_id", "total",
	"cash_register_id", "installment_number", "created_by", "created_at",
	"voided_at", "void_reason", "voided_by", "reversal_of",
}

func actorCtx(role identity.Role) context.Context {
	return identity.WithActor(context.Background(), identity.Actor{UserID: "staff-1", Role: role})
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCreateRejectsTenderMismatchBeforeAnyWrite(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:          TypeIncome,
		Category:      CategoryProductSale,
		ReferenceType: RefProductSale,
		ReferenceID:   uuid.New(),
		Items:         []Item{{Description: "Lotion", Quantity: 2, UnitPrice: dec("50.00")}},
		Tender:        []TenderEntry{{Method: MethodCard, Amount: dec("90.00")}},
	})
	assert.True(t, apperrors.IsCode(err, "PAYMENT_SUM_MISMATCH"))
	// No Begin expected; validation failed before touching the database.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRequiresOpenDrawerForReceptionCash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM cash_register_sessions`).
		WithArgs("staff-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Create(actorCtx(identity.RoleReception), CreateInput{
		Type:          TypeIncome,
		Category:      CategoryExpense,
		ReferenceType: RefExpense,
		ReferenceID:   uuid.New(),
		Items:         []Item{{Description: "Towels", Quantity: 1, UnitPrice: dec("80.00")}},
		Tender:        []TenderEntry{{Method: MethodCash, Amount: dec("80.00")}},
	})
	assert.True(t, apperrors.IsCode(err, "CASH_REGISTER_REQUIRED"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInstallmentPaymentAppliesAndPromotes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	purchaseID := uuid.New()
	babyID := uuid.New()
	number := 2

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM package_purchases WHERE id = \$1 FOR UPDATE`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "baby_id", "package_name", "total_sessions", "used_sessions",
			"installments", "installment_amount", "paid_amount", "final_price",
			"payment_plan", "installments_pay_on_sessions", "requires_advance", "active", "created_at",
		}).AddRow(
			purchaseID, babyID, "Hydro 10", 10, 1,
			4, "250.00", "250.00", "1000.00",
			"FIXED_INSTALLMENTS", []int32(nil), true, true, time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`UPDATE package_purchases\s+SET paid_amount = paid_amount \+ \$2`).
		WithArgs(purchaseID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`UPDATE appointments SET status = 'SCHEDULED'`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs(pgxmock.AnyArg(), "payment.recorded.v1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), TypeIncome, CategoryInstallment, RefPackagePurchase, purchaseID,
			pgxmock.AnyArg(), (*uuid.UUID)(nil), &number, "staff-1", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO transaction_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Installment 2 of 4", 1, pgxmock.AnyArg(), (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transaction_payments`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), MethodCard, pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, 10, nil, nil)
	tx, err := svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:              TypeIncome,
		Category:          CategoryInstallment,
		ReferenceType:     RefPackagePurchase,
		ReferenceID:       purchaseID,
		Items:             []Item{{Description: "Installment 2 of 4", Quantity: 1, UnitPrice: dec("250.00")}},
		Tender:            []TenderEntry{{Method: MethodCard, Amount: dec("250.00")}},
		InstallmentNumber: &number,
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryInstallment, tx.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRejectsOutOfOrderInstallment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	purchaseID := uuid.New()
	number := 3

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`SELECT .* FROM package_purchases WHERE id = \$1 FOR UPDATE`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "baby_id", "package_name", "total_sessions", "used_sessions",
			"installments", "installment_amount", "paid_amount", "final_price",
			"payment_plan", "installments_pay_on_sessions", "requires_advance", "active", "created_at",
		}).AddRow(
			purchaseID, uuid.New(), "Hydro 10", 10, 1,
			4, "250.00", "250.00", "1000.00",
			"FIXED_INSTALLMENTS", []int32(nil), true, true, time.Now()))
	mock.ExpectQuery(`SELECT COUNT\(\*\)`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:              TypeIncome,
		Category:          CategoryInstallment,
		ReferenceType:     RefPackagePurchase,
		ReferenceID:       purchaseID,
		Items:             []Item{{Description: "Installment 3 of 4", Quantity: 1, UnitPrice: dec("250.00")}},
		Tender:            []TenderEntry{{Method: MethodCard, Amount: dec("250.00")}},
		InstallmentNumber: &number,
	})
	assert.True(t, apperrors.IsCode(err, "INVALID_INSTALLMENT_NUMBER"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAppointmentPaymentReleasesParkedAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`UPDATE appointments SET status = 'SCHEDULED'\s+WHERE id = \$1 AND status = 'PENDING_PAYMENT'`).
		WithArgs(apptID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO appointment_history`).
		WithArgs(pgxmock.AnyArg(), apptID, "status", "PENDING_PAYMENT", "SCHEDULED", "staff-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), TypeIncome, CategoryAdvancePayment, RefAppointment, apptID,
			pgxmock.AnyArg(), (*uuid.UUID)(nil), (*int)(nil), "staff-1", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO transaction_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Session prepayment", 1, pgxmock.AnyArg(), (*uuid.UUID)(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transaction_payments`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), MethodQR, pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, 10, nil, nil)
	tx, err := svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:          TypeIncome,
		Category:      CategoryAdvancePayment,
		ReferenceType: RefAppointment,
		ReferenceID:   apptID,
		Items:         []Item{{Description: "Session prepayment", Quantity: 1, UnitPrice: dec("120.00")}},
		Tender:        []TenderEntry{{Method: MethodQR, Amount: dec("120.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, RefAppointment, tx.ReferenceType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductSaleWritesMovementAfterHeader(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	productID := uuid.New()
	saleRef := uuid.New()

	// Expectations are ordered: the movement row references the transaction
	// header, so it must land after the header insert.
	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`UPDATE products SET stock = stock - \$2`).
		WithArgs(productID, 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs(pgxmock.AnyArg(), TypeIncome, CategoryProductSale, RefProductSale, saleRef,
			pgxmock.AnyArg(), (*uuid.UUID)(nil), (*int)(nil), "staff-1", (*uuid.UUID)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(time.Now()))
	mock.ExpectExec(`INSERT INTO transaction_items`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "Bath lotion", 2, pgxmock.AnyArg(), &productID).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO transaction_payments`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), MethodCard, pgxmock.AnyArg(), "").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO inventory_movements`).
		WithArgs(pgxmock.AnyArg(), productID, inventory.MovementSale, -2, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	svc := NewService(mock, 10, nil, nil)
	tx, err := svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:          TypeIncome,
		Category:      CategoryProductSale,
		ReferenceType: RefProductSale,
		ReferenceID:   saleRef,
		Items:         []Item{{Description: "Bath lotion", Quantity: 2, UnitPrice: dec("45.00"), ProductID: &productID}},
		Tender:        []TenderEntry{{Method: MethodCard, Amount: dec("90.00")}},
	})
	require.NoError(t, err)
	assert.Equal(t, CategoryProductSale, tx.Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProductSaleRejectsOversell(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	productID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectExec(`UPDATE products SET stock = stock - \$2`).
		WithArgs(productID, 5).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM products`).
		WithArgs(productID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Create(actorCtx(identity.RoleAdmin), CreateInput{
		Type:          TypeIncome,
		Category:      CategoryProductSale,
		ReferenceType: RefProductSale,
		ReferenceID:   uuid.New(),
		Items:         []Item{{Description: "Bath lotion", Quantity: 5, UnitPrice: dec("45.00"), ProductID: &productID}},
		Tender:        []TenderEntry{{Method: MethodCard, Amount: dec("225.00")}},
	})
	assert.True(t, apperrors.IsCode(err, "INSUFFICIENT_STOCK"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidRejectsShortReason(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Void(actorCtx(identity.RoleAdmin), uuid.New(), "typo")
	assert.True(t, apperrors.IsCode(err, "VOID_REASON_TOO_SHORT"))
}

func TestVoidRejectsReversalRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	original := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(txHeaderCols).AddRow(
			id, TypeExpense, CategoryInstallment, RefPackagePurchase, uuid.New(), "250.00",
			nil, nil, "staff-1", time.Now(), nil, "", "", &original))
	mock.ExpectQuery(`FROM transaction_items`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "description", "quantity", "unit_price", "product_id"}))
	mock.ExpectQuery(`FROM transaction_payments`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"method", "amount", "reference"}))
	mock.ExpectRollback()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Void(actorCtx(identity.RoleAdmin), id, "duplicate entry, see note")
	assert.True(t, apperrors.IsCode(err, "CANNOT_VOID_REVERSAL"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidOnlyLatestPurchasePayment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	purchaseID := uuid.New()

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	mock.ExpectQuery(`FROM transactions WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(txHeaderCols).AddRow(
			id, TypeIncome, CategoryInstallment, RefPackagePurchase, purchaseID, "250.00",
			nil, nil, "staff-1", time.Now(), nil, "", "", nil))
	mock.ExpectQuery(`FROM transaction_items`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "description", "quantity", "unit_price", "product_id"}))
	mock.ExpectQuery(`FROM transaction_payments`).WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"method", "amount", "reference"}).
			AddRow(MethodCard, "250.00", ""))
	mock.ExpectQuery(`ORDER BY created_at DESC`).
		WithArgs(purchaseID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(uuid.New()))
	mock.ExpectRollback()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Void(actorCtx(identity.RoleAdmin), id, "entered against wrong client")
	assert.True(t, apperrors.IsCode(err, "CAN_ONLY_DELETE_LATEST_PAYMENT"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoidRequiresPermission(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	svc := NewService(mock, 10, nil, nil)
	_, err = svc.Void(actorCtx(identity.RoleTherapist), uuid.New(), "entered against wrong client")
	assert.True(t, apperrors.IsCode(err, "PERMISSION_DENIED"))
}
