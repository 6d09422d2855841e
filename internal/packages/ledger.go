package packages

import (
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/pkg/money"
)

// NextInstallment returns the next payable installment number given how
// many have been paid. Installments are strictly ordered, so the answer is
// always paidCount+1 until the plan is exhausted.
func NextInstallment(p *Purchase, paidCount int) (int, bool) {
	if p.Installments <= 0 || paidCount >= p.Installments {
		return 0, false
	}
	return paidCount + 1, true
}

// InstallmentDue reports whether the next installment is currently due.
// Fixed plans are always due once unpaid; session-gated plans come due when
// the gating session has been consumed.
func InstallmentDue(p *Purchase, paidCount int) bool {
	next, ok := NextInstallment(p, paidCount)
	if !ok {
		return false
	}
	if p.PaymentPlan != PlanPayOnSessions {
		return true
	}
	if next-1 >= len(p.InstallmentsPayOnSessions) {
		return true
	}
	return p.UsedSessions >= p.InstallmentsPayOnSessions[next-1]
}

// ValidateInstallmentPayment checks number ordering and amount before an
// installment payment is recorded. Errors carry the stable codes callers
// surface to the UI.
func ValidateInstallmentPayment(p *Purchase, paidCount, number int, amount decimal.Decimal) error {
	next, ok := NextInstallment(p, paidCount)
	if !ok {
		return apperrors.ErrInstallmentAlreadyPaid
	}
	if number <= paidCount {
		return apperrors.ErrInstallmentAlreadyPaid
	}
	if number != next {
		return apperrors.ErrInvalidInstallmentNum
	}
	if !money.MatchesWithin(amount, p.InstallmentAmount, money.InstallmentTolerance) {
		return apperrors.ErrInvalidInstallmentAmt
	}
	if p.PaidAmount.Add(amount).GreaterThan(p.FinalPrice.Add(money.Tolerance)) {
		return apperrors.ErrPaidExceedsPrice
	}
	return nil
}

// RequiredPaidForSession returns how many installments must already be paid
// before the given 1-based session index may be completed. Completing the
// gating session itself is allowed; sessions beyond it are blocked until
// that installment is settled.
func RequiredPaidForSession(p *Purchase, sessionIndex int) int {
	if p.PaymentPlan != PlanPayOnSessions {
		return 0
	}
	required := 0
	for _, gate := range p.InstallmentsPayOnSessions {
		if gate < sessionIndex {
			required++
		}
	}
	return required
}

// ValidateConsumption gates a session completion: there must be a session
// left and every installment gated before this session must be paid.
func ValidateConsumption(p *Purchase, paidCount int) error {
	if p.RemainingSessions() <= 0 {
		return apperrors.ErrNoSessionsRemaining
	}
	sessionIndex := p.UsedSessions + 1
	if paidCount < RequiredPaidForSession(p, sessionIndex) {
		return apperrors.ErrInstallmentPaymentDue
	}
	return nil
}

// ValidateBooking gates creating a new appointment against the purchase:
// sessions not yet consumed minus ones already promised to active
// appointments must stay positive.
func ValidateBooking(p *Purchase, activeAppointments int) error {
	if !p.Active {
		return apperrors.ErrPackagePurchaseNotFound
	}
	if p.RemainingSessions()-activeAppointments <= 0 {
		return apperrors.ErrNoSessionsRemaining
	}
	return nil
}
