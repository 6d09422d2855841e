package appointments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/storage"
)

// Repository persists appointments and their append-only history.
type Repository struct {
	db storage.Querier
}

// NewRepository creates a repository over a pool or transaction.
func NewRepository(db storage.Querier) *Repository {
	return &Repository{db: db}
}

const apptColumns = `
	id, date, start_time, end_time, status, channel, baby_id, parent_id,
	package_purchase_id, COALESCE(cancel_reason, ''), COALESCE(notes, ''), created_at`

// Insert writes a new appointment.
func (r *Repository) Insert(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO appointments (
			id, date, start_time, end_time, status, channel, baby_id, parent_id,
			package_purchase_id, notes
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING created_at`,
		a.ID, a.Date, a.StartTime, a.EndTime, a.Status, a.Channel, a.BabyID, a.ParentID,
		a.PackagePurchaseID, a.Notes).Scan(&a.CreatedAt)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// Get loads an appointment by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, false)
}

// GetForUpdate locks and loads, serializing concurrent transitions.
func (r *Repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return r.get(ctx, id, true)
}

func (r *Repository) get(ctx context.Context, id uuid.UUID, forUpdate bool) (*Appointment, error) {
	query := `SELECT ` + apptColumns + ` FROM appointments WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var a Appointment
	err := r.db.QueryRow(ctx, query, id).Scan(
		&a.ID, &a.Date, &a.StartTime, &a.EndTime, &a.Status, &a.Channel, &a.BabyID, &a.ParentID,
		&a.PackagePurchaseID, &a.CancelReason, &a.Notes, &a.CreatedAt)
	if storage.IsNoRows(err) {
		return nil, apperrors.ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return &a, nil
}

// UpdateStatus moves the appointment to a new status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, cancelReason string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments SET status = $2, cancel_reason = NULLIF($3, '')
		WHERE id = $1`, id, status, cancelReason)
	if err != nil {
		return fmt.Errorf("appointments: update status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrAppointmentNotFound
	}
	return nil
}

// UpdateSchedule rewrites date and time on reschedule.
func (r *Repository) UpdateSchedule(ctx context.Context, id uuid.UUID, date time.Time, startTime, endTime string) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments SET date = $2, start_time = $3, end_time = $4
		WHERE id = $1`, id, date, startTime, endTime)
	if err != nil {
		return fmt.Errorf("appointments: update schedule: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrAppointmentNotFound
	}
	return nil
}

// BabyHasActiveOnDate enforces the one-active-appointment-per-baby-per-day
// rule, optionally excluding an appointment (its own reschedule).
func (r *Repository) BabyHasActiveOnDate(ctx context.Context, babyID uuid.UUID, date time.Time, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE baby_id = $1 AND date = $2
			  AND status IN ('PENDING_PAYMENT', 'SCHEDULED', 'IN_PROGRESS')
			  AND id <> $3
		)`, babyID, date, exclude).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("appointments: check baby active: %w", err)
	}
	return exists, nil
}

// CountActiveForPurchase counts active appointments holding sessions of a
// purchase. Bulk creation may not promise more than remaining minus these.
func (r *Repository) CountActiveForPurchase(ctx context.Context, purchaseID uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE package_purchase_id = $1
		  AND status IN ('PENDING_PAYMENT', 'SCHEDULED', 'IN_PROGRESS')`, purchaseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("appointments: count active for purchase: %w", err)
	}
	return count, nil
}

// PromotePendingPayments flips a purchase's PENDING_PAYMENT appointments to
// SCHEDULED once the advance payment is satisfied, writing a history row
// for each. Returns the promoted ids.
func (r *Repository) PromotePendingPayments(ctx context.Context, purchaseID uuid.UUID, actorID string) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `
		UPDATE appointments SET status = 'SCHEDULED'
		WHERE package_purchase_id = $1 AND status = 'PENDING_PAYMENT'
		RETURNING id`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("appointments: promote pending: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("appointments: scan promoted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := r.AppendHistory(ctx, &HistoryEntry{
			AppointmentID: id,
			Field:         "status",
			OldValue:      string(StatusPendingPayment),
			NewValue:      string(StatusScheduled),
			ActorID:       actorID,
		}); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// PromotePending flips a single PENDING_PAYMENT appointment to SCHEDULED,
// the release path for a payment that references the appointment directly
// rather than a package purchase. Reports whether the appointment was
// actually parked.
func (r *Repository) PromotePending(ctx context.Context, id uuid.UUID, actorID string) (bool, error) {
	ct, err := r.db.Exec(ctx, `
		UPDATE appointments SET status = 'SCHEDULED'
		WHERE id = $1 AND status = 'PENDING_PAYMENT'`, id)
	if err != nil {
		return false, fmt.Errorf("appointments: promote pending: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return false, nil
	}
	return true, r.AppendHistory(ctx, &HistoryEntry{
		AppointmentID: id,
		Field:         "status",
		OldValue:      string(StatusPendingPayment),
		NewValue:      string(StatusScheduled),
		ActorID:       actorID,
	})
}

// AppendHistory writes one immutable audit row. The table has no update or
// delete path; dispute resolution depends on it.
func (r *Repository) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO appointment_history (id, appointment_id, field, old_value, new_value, actor_id)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		e.ID, e.AppointmentID, e.Field, e.OldValue, e.NewValue, e.ActorID)
	if err != nil {
		return fmt.Errorf("appointments: append history: %w", err)
	}
	return nil
}
