// Package apperrors defines the stable error codes surfaced by the booking
// and ledger core. Handlers map codes to HTTP statuses; callers switch on
// codes, never on error strings.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a domain error carrying a stable machine-readable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// New creates a domain error with a stable code.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Not-found.
var (
	ErrAppointmentNotFound     = New("APPOINTMENT_NOT_FOUND", "appointment not found")
	ErrPackagePurchaseNotFound = New("PACKAGE_PURCHASE_NOT_FOUND", "package purchase not found")
	ErrProductNotFound         = New("PRODUCT_NOT_FOUND", "product not found")
	ErrTransactionNotFound     = New("TRANSACTION_NOT_FOUND", "transaction not found")
	ErrClientNotFound          = New("CLIENT_NOT_FOUND", "client not found")
)

// Conflict and capacity.
var (
	ErrTimeSlotFull           = New("TIME_SLOT_FULL", "no available slots at the requested time")
	ErrBabyAlreadyHasAppt     = New("BABY_ALREADY_HAS_APPOINTMENT", "the baby already has an active appointment on this date")
	ErrNoSessionsRemaining    = New("NO_SESSIONS_REMAINING", "the package has no sessions remaining")
	ErrInsufficientStock      = New("INSUFFICIENT_STOCK", "not enough stock to complete the sale")
	ErrCashRegisterOpen       = New("CASH_REGISTER_ALREADY_OPEN", "the user already has an open cash register session")
	ErrCashRegisterNotFound   = New("CASH_REGISTER_NOT_FOUND", "cash register session not found")
	ErrCashRegisterNotOpen    = New("CASH_REGISTER_NOT_OPEN", "the cash register session is not open")
	ErrPortalRateLimited      = New("PORTAL_RATE_LIMITED", "too many portal booking attempts, try again later")
)

// Policy violations.
var (
	ErrDateClosed           = New("DATE_CLOSED", "the spa is closed on this date")
	ErrOutsideBusinessHours = New("OUTSIDE_BUSINESS_HOURS", "the requested time is outside business hours")
	ErrTooLate              = New("TOO_LATE", "the minimum lead time for this change has passed")
	ErrHasPayments          = New("HAS_PAYMENTS", "the appointment has recorded payments and must be refunded instead")
	ErrInvalidStatus        = New("INVALID_STATUS", "the operation is not allowed in the appointment's current status")
	ErrMissingClient        = New("CLIENT_REQUIRED", "either a baby or a parent must be referenced")
	ErrCancelReasonRequired = New("CANCEL_REASON_REQUIRED", "a cancellation reason is required")
	ErrPermissionDenied     = New("PERMISSION_DENIED", "the actor's role does not allow this operation")
	ErrPrepaymentRequired   = New("PREPAYMENT_REQUIRED", "this client must prepay before booking")
)

// Payment integrity.
var (
	ErrPaymentSumMismatch      = New("PAYMENT_SUM_MISMATCH", "payment method amounts do not add up to the transaction total")
	ErrInvalidInstallmentNum   = New("INVALID_INSTALLMENT_NUMBER", "installments must be paid in order")
	ErrInvalidInstallmentAmt   = New("INVALID_INSTALLMENT_AMOUNT", "the amount does not match the plan's installment amount")
	ErrInstallmentAlreadyPaid  = New("INSTALLMENT_ALREADY_PAID", "this installment has already been paid")
	ErrInstallmentPaymentDue   = New("INSTALLMENT_PAYMENT_REQUIRED", "a gated installment must be paid before completing further sessions")
	ErrCashRegisterRequired    = New("CASH_REGISTER_REQUIRED", "an open cash register session is required for cash payments")
	ErrOnlyLatestPaymentVoid   = New("CAN_ONLY_DELETE_LATEST_PAYMENT", "only the most recent installment payment can be reversed")
	ErrTransactionVoided       = New("TRANSACTION_ALREADY_VOIDED", "the transaction has already been voided")
	ErrCannotVoidReversal      = New("CANNOT_VOID_REVERSAL", "a reversal transaction cannot itself be voided")
	ErrPaymentMethodRequired   = New("PAYMENT_METHOD_REQUIRED", "at least one payment method is required")
	ErrVoidReasonTooShort      = New("VOID_REASON_TOO_SHORT", "the void reason is too short")
	ErrPaidExceedsPrice        = New("PAID_EXCEEDS_FINAL_PRICE", "payment would exceed the purchase's final price")
)

// ErrInternal covers unexpected storage or infrastructure failures. Details
// are logged server-side, never returned to the caller.
var ErrInternal = New("INTERNAL_ERROR", "an internal error occurred")

// CodeOf extracts the stable code from err, or INTERNAL_ERROR for anything
// that is not a domain error.
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ErrInternal.Code
}

// IsCode reports whether err carries the given stable code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// Wrap annotates a domain error with context while preserving its code.
func Wrap(err error, format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, err)...)
}

var httpStatus = map[string]int{
	ErrAppointmentNotFound.Code:     http.StatusNotFound,
	ErrPackagePurchaseNotFound.Code: http.StatusNotFound,
	ErrProductNotFound.Code:         http.StatusNotFound,
	ErrTransactionNotFound.Code:     http.StatusNotFound,
	ErrClientNotFound.Code:          http.StatusNotFound,
	ErrCashRegisterNotFound.Code:    http.StatusNotFound,

	ErrTimeSlotFull.Code:        http.StatusConflict,
	ErrBabyAlreadyHasAppt.Code:  http.StatusConflict,
	ErrNoSessionsRemaining.Code: http.StatusConflict,
	ErrInsufficientStock.Code:   http.StatusConflict,
	ErrCashRegisterOpen.Code:    http.StatusConflict,
	ErrTransactionVoided.Code:   http.StatusConflict,

	ErrPermissionDenied.Code:  http.StatusForbidden,
	ErrPortalRateLimited.Code: http.StatusTooManyRequests,

	ErrInternal.Code: http.StatusInternalServerError,
}

// HTTPStatus maps a domain error to the HTTP status handlers should emit.
// Unlisted domain codes are client errors.
func HTTPStatus(err error) int {
	if status, ok := httpStatus[CodeOf(err)]; ok {
		return status
	}
	var ae *Error
	if errors.As(err, &ae) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
