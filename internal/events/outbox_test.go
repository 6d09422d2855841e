package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxInsertMarshalsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	payload := PaymentRecordedV1{TransactionID: "tx-1", Amount: "150.00"}
	data, _ := json.Marshal(payload)

	mock.ExpectExec(`INSERT INTO outbox`).
		WithArgs(pgxmock.AnyArg(), TypePaymentRecordedV1, data).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := NewOutboxStore(mock)
	id, err := store.Insert(context.Background(), TypePaymentRecordedV1, payload)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxFetchPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Now()
	mock.ExpectQuery(`SELECT id, type, payload, created_at`).
		WithArgs(int32(10)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "payload", "created_at"}).
			AddRow(id, TypeAppointmentCreatedV1, []byte(`{"date":"2026-03-01"}`), created))

	store := NewOutboxStore(mock)
	entries, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, TypeAppointmentCreatedV1, entries[0].Type)
	assert.JSONEq(t, `{"date":"2026-03-01"}`, string(entries[0].Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkDeliveredIdempotent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec(`UPDATE outbox`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE outbox`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := NewOutboxStore(mock)
	ok, err := store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkDelivered(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type recordingHandler struct {
	entries []OutboxEntry
	fail    bool
}

func (h *recordingHandler) Handle(_ context.Context, entry OutboxEntry) error {
	if h.fail {
		return assert.AnError
	}
	h.entries = append(h.entries, entry)
	return nil
}

func TestDelivererDrainMarksDelivered(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery(`SELECT id, type, payload, created_at`).
		WithArgs(int32(25)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "payload", "created_at"}).
			AddRow(id, TypeAppointmentCancelledV1, []byte(`{}`), time.Now()))
	mock.ExpectExec(`UPDATE outbox`).WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	handler := &recordingHandler{}
	d := NewDeliverer(NewOutboxStore(mock), handler, nil)
	d.drain(context.Background())

	require.Len(t, handler.entries, 1)
	assert.Equal(t, TypeAppointmentCancelledV1, handler.entries[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelivererDrainKeepsFailedEntries(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, type, payload, created_at`).
		WithArgs(int32(25)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "type", "payload", "created_at"}).
			AddRow(uuid.New(), TypePaymentRecordedV1, []byte(`{}`), time.Now()))

	d := NewDeliverer(NewOutboxStore(mock), &recordingHandler{fail: true}, nil)
	d.drain(context.Background())

	// No MarkDelivered expected; the entry stays pending for the next tick.
	assert.NoError(t, mock.ExpectationsWereMet())
}
