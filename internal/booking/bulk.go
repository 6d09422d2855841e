package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/appointments"
	"github.com/danielthames360/baby-spa-sub004/internal/schedule"
)

// BulkSlot is one requested slot in a bulk booking.
type BulkSlot struct {
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
}

// BulkConflict reports one slot that could not be booked and why.
type BulkConflict struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	Code      string `json:"code"`
}

// BulkInput books several sessions of one package purchase at once,
// typically the whole package laid out on a weekly cadence.
type BulkInput struct {
	BabyID            uuid.UUID
	PackagePurchaseID uuid.UUID
	Notes             string
	Slots             []BulkSlot
}

// BulkResult is a partial-success outcome: every slot either became an
// appointment or a conflict entry.
type BulkResult struct {
	Created   []*appointments.Appointment `json:"created"`
	Conflicts []BulkConflict              `json:"conflicts"`
}

// CreateBulk books each requested slot independently, continuing past
// failures. Each slot gets its own transaction, so one full time slot does
// not undo the sessions already booked; the per-purchase session cap still
// holds because every iteration recounts active appointments under the
// purchase's row lock.
func (o *Orchestrator) CreateBulk(ctx context.Context, in BulkInput) (*BulkResult, error) {
	if len(in.Slots) == 0 {
		return &BulkResult{Conflicts: []BulkConflict{}}, nil
	}

	result := &BulkResult{Conflicts: []BulkConflict{}}
	for _, slot := range in.Slots {
		appt, err := o.Create(ctx, CreateInput{
			Date:              slot.Date,
			StartTime:         slot.StartTime,
			EndTime:           slot.EndTime,
			Channel:           schedule.ChannelStaff,
			BabyID:            &in.BabyID,
			PackagePurchaseID: &in.PackagePurchaseID,
			Notes:             in.Notes,
		})
		if err != nil {
			result.Conflicts = append(result.Conflicts, BulkConflict{
				Date:      slot.Date.Format("2006-01-02"),
				StartTime: slot.StartTime,
				Code:      apperrors.CodeOf(err),
			})
			continue
		}
		result.Created = append(result.Created, appt)
	}

	o.logger.Info("bulk booking finished",
		"package_purchase_id", in.PackagePurchaseID,
		"created", len(result.Created), "conflicts", len(result.Conflicts))
	return result, nil
}
