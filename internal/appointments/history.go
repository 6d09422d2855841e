package appointments

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HistoryEntry is one immutable audit record of an appointment mutation:
// what changed, from what, to what, by whom, when.
type HistoryEntry struct {
	ID            uuid.UUID `json:"id"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	Field         string    `json:"field"`
	OldValue      string    `json:"old_value"`
	NewValue      string    `json:"new_value"`
	ActorID       string    `json:"actor_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryArchive is the read side of the audit trail, used by staff when
// resolving disputes. Queries run over database/sql.
type HistoryArchive struct {
	db *sql.DB
}

// NewHistoryArchive creates the archive query service.
func NewHistoryArchive(db *sql.DB) *HistoryArchive {
	return &HistoryArchive{db: db}
}

// HistoryFilter narrows an archive query.
type HistoryFilter struct {
	AppointmentID uuid.UUID
	Field         string
	Since         time.Time
	Limit         int
}

// Query returns history entries for an appointment, oldest first.
func (a *HistoryArchive) Query(ctx context.Context, filter HistoryFilter) ([]HistoryEntry, error) {
	query := `
		SELECT id, appointment_id, field, old_value, new_value, actor_id, created_at
		FROM appointment_history
		WHERE appointment_id = $1
	`
	args := []interface{}{filter.AppointmentID}
	argIdx := 2

	if filter.Field != "" {
		query += fmt.Sprintf(" AND field = $%d", argIdx)
		args = append(args, filter.Field)
		argIdx++
	}
	if !filter.Since.IsZero() {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, filter.Since)
		argIdx++
	}

	query += " ORDER BY created_at ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: query history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.Field, &e.OldValue,
			&e.NewValue, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("appointments: scan history: %w", err)
		}
		entries = append(entries, e)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, rows.Err()
}
