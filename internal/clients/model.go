package clients

import (
	"time"

	"github.com/google/uuid"
)

// Parent is the account holder who books and pays.
type Parent struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Baby is the client receiving therapy sessions. No-shows accumulate here;
// past the threshold the baby's future bookings require prepayment.
type Baby struct {
	ID                 uuid.UUID `json:"id"`
	ParentID           uuid.UUID `json:"parent_id"`
	Name               string    `json:"name"`
	BirthDate          time.Time `json:"birth_date"`
	NoShowCount        int       `json:"no_show_count"`
	RequiresPrepayment bool      `json:"requires_prepayment"`
	CreatedAt          time.Time `json:"created_at"`
}
