package events

// Event type identifiers published through the outbox. Versioned so the
// notifier can evolve payloads without breaking older consumers.
const (
	TypeAppointmentCreatedV1     = "appointment.created.v1"
	TypeAppointmentCancelledV1   = "appointment.cancelled.v1"
	TypeAppointmentRescheduledV1 = "appointment.rescheduled.v1"
	TypePaymentRecordedV1        = "payment.recorded.v1"
)

// AppointmentEventV1 carries what the notifier needs to format a
// confirmation, cancellation or reschedule message. Message content and
// delivery live outside the core.
type AppointmentEventV1 struct {
	AppointmentID string `json:"appointment_id"`
	BabyName      string `json:"baby_name"`
	ParentName    string `json:"parent_name"`
	ParentEmail   string `json:"parent_email,omitempty"`
	ParentPhone   string `json:"parent_phone,omitempty"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	PackageName   string `json:"package_name,omitempty"`
	// OldDate/OldStartTime are set on reschedules.
	OldDate      string `json:"old_date,omitempty"`
	OldStartTime string `json:"old_start_time,omitempty"`
	CancelReason string `json:"cancel_reason,omitempty"`
}

// PaymentRecordedV1 announces money applied to a package purchase.
type PaymentRecordedV1 struct {
	TransactionID     string `json:"transaction_id"`
	PackagePurchaseID string `json:"package_purchase_id,omitempty"`
	Amount            string `json:"amount"`
	InstallmentNumber int    `json:"installment_number,omitempty"`
}
