package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/pkg/money"
)

// Type is the money direction of a transaction.
type Type string

const (
	TypeIncome  Type = "INCOME"
	TypeExpense Type = "EXPENSE"
)

// Category classifies what business activity produced the transaction.
type Category string

const (
	CategoryAdvancePayment Category = "ADVANCE_PAYMENT"
	CategoryInstallment    Category = "PACKAGE_INSTALLMENT"
	CategoryPackageSale    Category = "PACKAGE_SALE"
	CategoryProductSale    Category = "PRODUCT_SALE"
	CategoryExpense        Category = "EXPENSE"
)

// paymentCategories apply money to a package purchase balance.
func (c Category) AppliesToPurchase() bool {
	return c == CategoryAdvancePayment || c == CategoryInstallment || c == CategoryPackageSale
}

// ReferenceType names the business entity a transaction points at.
type ReferenceType string

const (
	RefAppointment     ReferenceType = "APPOINTMENT"
	RefPackagePurchase ReferenceType = "PACKAGE_PURCHASE"
	RefProductSale     ReferenceType = "PRODUCT_SALE"
	RefExpense         ReferenceType = "EXPENSE"
)

// PaymentMethod is one tender kind in a split payment.
type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodCard     PaymentMethod = "CARD"
	MethodQR       PaymentMethod = "QR"
	MethodTransfer PaymentMethod = "TRANSFER"
)

// ParsePaymentMethod validates a tender method string.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case MethodCash, MethodCard, MethodQR, MethodTransfer:
		return PaymentMethod(s), nil
	}
	return "", fmt.Errorf("ledger: unknown payment method %q", s)
}

// Item is one line of a transaction.
type Item struct {
	ID          uuid.UUID       `json:"id"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
}

// LineTotal is quantity times unit price.
func (i Item) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// TenderEntry is one payment method's share of a split payment.
type TenderEntry struct {
	Method    PaymentMethod   `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

// Transaction is an immutable financial record. It is never edited in
// place; the only permitted mutation is a reason-carrying void that writes
// a reversal and stamps the original.
type Transaction struct {
	ID             uuid.UUID       `json:"id"`
	Type           Type            `json:"type"`
	Category       Category        `json:"category"`
	ReferenceType  ReferenceType   `json:"reference_type"`
	ReferenceID    uuid.UUID       `json:"reference_id"`
	Items          []Item          `json:"items"`
	Tender         []TenderEntry   `json:"tender"`
	Total          decimal.Decimal `json:"total"`
	CashRegisterID *uuid.UUID      `json:"cash_register_id,omitempty"`

	// InstallmentNumber is set for PACKAGE_INSTALLMENT transactions.
	InstallmentNumber *int `json:"installment_number,omitempty"`

	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason string     `json:"void_reason,omitempty"`
	VoidedBy   string     `json:"voided_by,omitempty"`

	// ReversalOf links a reversal back to the transaction it undoes.
	ReversalOf *uuid.UUID `json:"reversal_of,omitempty"`
}

// Voided reports whether the transaction has been voided.
func (t *Transaction) Voided() bool {
	return t.VoidedAt != nil
}

// IsReversal reports whether the transaction itself reverses another.
func (t *Transaction) IsReversal() bool {
	return t.ReversalOf != nil
}

// HasCash reports whether any tender line uses cash.
func (t *Transaction) HasCash() bool {
	return tenderHasCash(t.Tender)
}

// CashAmount sums the cash tender lines.
func (t *Transaction) CashAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range t.Tender {
		if e.Method == MethodCash {
			total = total.Add(e.Amount)
		}
	}
	return total
}

func tenderHasCash(tender []TenderEntry) bool {
	for _, e := range tender {
		if e.Method == MethodCash {
			return true
		}
	}
	return false
}

// ItemsTotal sums the item lines.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, i := range items {
		total = total.Add(i.LineTotal())
	}
	return total
}

// TenderTotal sums the tender lines.
func TenderTotal(tender []TenderEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range tender {
		total = total.Add(e.Amount)
	}
	return total
}

// ValidateTender enforces the split-payment integrity rules: at least one
// tender line, every amount positive, and the tender sum matching the item
// sum within tolerance. Runs before any write.
func ValidateTender(items []Item, tender []TenderEntry) error {
	if len(tender) == 0 {
		return apperrors.ErrPaymentMethodRequired
	}
	for _, e := range tender {
		if !money.IsPositive(e.Amount) {
			return apperrors.ErrPaymentSumMismatch
		}
	}
	if !money.Matches(ItemsTotal(items), TenderTotal(tender)) {
		return apperrors.ErrPaymentSumMismatch
	}
	return nil
}
