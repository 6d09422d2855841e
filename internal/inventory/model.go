package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a retail item sold at the front desk.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Stock     int             `json:"stock"`
	CreatedAt time.Time       `json:"created_at"`
}

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementSale       MovementType = "SALE"
	MovementVoidReturn MovementType = "VOID_RETURN"
	MovementRestock    MovementType = "RESTOCK"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

// Movement is one append-only stock change, always written in the same
// transaction as whatever caused it.
type Movement struct {
	ID            uuid.UUID    `json:"id"`
	ProductID     uuid.UUID    `json:"product_id"`
	Type          MovementType `json:"type"`
	Quantity      int          `json:"quantity"`
	TransactionID *uuid.UUID   `json:"transaction_id,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}
