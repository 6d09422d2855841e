// Package notify turns outbox events into client-facing messages. Message
// delivery is best effort downstream of the ledger: a failed send leaves
// the event pending for the next poll, never the booking in doubt.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/danielthames360/baby-spa-sub004/internal/events"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// WhatsAppSender delivers one WhatsApp message.
type WhatsAppSender interface {
	Send(ctx context.Context, phone, body string) error
}

// Service formats and routes appointment and payment events.
type Service struct {
	email    EmailSender
	whatsapp WhatsAppSender
	logger   *logging.Logger
}

// NewService creates the notifier. Either sender may be nil.
func NewService(email EmailSender, whatsapp WhatsAppSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{email: email, whatsapp: whatsapp, logger: logger}
}

// Handle implements events.DeliveryHandler.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeAppointmentCreatedV1,
		events.TypeAppointmentCancelledV1,
		events.TypeAppointmentRescheduledV1:
		var ev events.AppointmentEventV1
		if err := json.Unmarshal(entry.Payload, &ev); err != nil {
			return fmt.Errorf("notify: decode %s: %w", entry.Type, err)
		}
		return s.notifyAppointment(ctx, entry.Type, ev)
	case events.TypePaymentRecordedV1:
		// Payments have no client-facing message yet; the event exists for
		// downstream accounting consumers.
		return nil
	default:
		s.logger.Warn("unknown outbox event type", "type", entry.Type)
		return nil
	}
}

func (s *Service) notifyAppointment(ctx context.Context, eventType string, ev events.AppointmentEventV1) error {
	subject, body := FormatAppointmentMessage(eventType, ev)

	if s.email != nil && ev.ParentEmail != "" {
		msg := EmailMessage{
			To:      ev.ParentEmail,
			ToName:  ev.ParentName,
			Subject: subject,
			Body:    body,
		}
		if err := s.email.Send(ctx, msg); err != nil {
			return fmt.Errorf("notify: email: %w", err)
		}
	}
	if s.whatsapp != nil && ev.ParentPhone != "" {
		if err := s.whatsapp.Send(ctx, ev.ParentPhone, body); err != nil {
			return fmt.Errorf("notify: whatsapp: %w", err)
		}
	}
	return nil
}

// FormatAppointmentMessage renders the subject and body for an appointment
// event.
func FormatAppointmentMessage(eventType string, ev events.AppointmentEventV1) (subject, body string) {
	name := ev.BabyName
	if name == "" {
		name = "your baby"
	}
	when := fmt.Sprintf("%s at %s", ev.Date, ev.StartTime)

	switch eventType {
	case events.TypeAppointmentCancelledV1:
		subject = "Appointment cancelled"
		body = fmt.Sprintf("The session for %s on %s has been cancelled.", name, when)
		if ev.CancelReason != "" {
			body += " Reason: " + ev.CancelReason
		}
	case events.TypeAppointmentRescheduledV1:
		subject = "Appointment rescheduled"
		body = fmt.Sprintf("The session for %s has moved from %s %s to %s.",
			name, ev.OldDate, ev.OldStartTime, when)
	default:
		subject = "Appointment confirmed"
		body = fmt.Sprintf("The session for %s is confirmed for %s.", name, when)
		if ev.PackageName != "" {
			body += fmt.Sprintf(" Package: %s.", ev.PackageName)
		}
	}
	return subject, body
}
