package packages

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/pkg/money"
)

// PaymentPlan selects how installments come due.
type PaymentPlan string

const (
	// PlanFixedInstallments is a fixed count of equal installments paid in
	// order on the family's own cadence.
	PlanFixedInstallments PaymentPlan = "FIXED_INSTALLMENTS"
	// PlanPayOnSessions gates installments on reaching specific session
	// numbers instead of a calendar cadence.
	PlanPayOnSessions PaymentPlan = "PAY_ON_SESSIONS"
)

// Purchase is a prepaid bundle of sessions bought for one baby.
type Purchase struct {
	ID                uuid.UUID       `json:"id"`
	BabyID            uuid.UUID       `json:"baby_id"`
	PackageName       string          `json:"package_name"`
	TotalSessions     int             `json:"total_sessions"`
	UsedSessions      int             `json:"used_sessions"`
	Installments      int             `json:"installments"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	FinalPrice        decimal.Decimal `json:"final_price"`
	PaymentPlan       PaymentPlan     `json:"payment_plan"`
	// InstallmentsPayOnSessions holds the 1-based session indices that gate
	// a required payment, ascending. Only used by PlanPayOnSessions.
	InstallmentsPayOnSessions []int     `json:"installments_pay_on_sessions,omitempty"`
	RequiresAdvance           bool      `json:"requires_advance"`
	Active                    bool      `json:"active"`
	CreatedAt                 time.Time `json:"created_at"`
}

// RemainingSessions derives the consumable balance. Never negative.
func (p *Purchase) RemainingSessions() int {
	remaining := p.TotalSessions - p.UsedSessions
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FullyPaid reports whether the purchase has reached its final price.
func (p *Purchase) FullyPaid() bool {
	return p.PaidAmount.GreaterThanOrEqual(p.FinalPrice)
}

// FullyConsumed reports whether every session has been used.
func (p *Purchase) FullyConsumed() bool {
	return p.UsedSessions >= p.TotalSessions
}

// AdvanceSatisfied reports whether enough has been paid to move an
// appointment out of PENDING_PAYMENT. The required minimum is one
// installment, or the full price when the plan has no installments.
func (p *Purchase) AdvanceSatisfied() bool {
	if !p.RequiresAdvance {
		return true
	}
	minimum := p.InstallmentAmount
	if !money.IsPositive(minimum) {
		minimum = p.FinalPrice
	}
	return p.PaidAmount.Add(money.Tolerance).GreaterThanOrEqual(minimum)
}
