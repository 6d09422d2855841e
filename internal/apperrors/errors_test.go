package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOfWrappedError(t *testing.T) {
	err := Wrap(ErrTimeSlotFull, "booking 2026-02-10 10:00")
	assert.Equal(t, "TIME_SLOT_FULL", CodeOf(err))
	assert.True(t, IsCode(err, "TIME_SLOT_FULL"))
	assert.True(t, errors.Is(err, ErrTimeSlotFull))
}

func TestCodeOfUnknownError(t *testing.T) {
	assert.Equal(t, "INTERNAL_ERROR", CodeOf(fmt.Errorf("pg: connection reset")))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrAppointmentNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(Wrap(ErrBabyAlreadyHasAppt, "create")))
	assert.Equal(t, http.StatusUnprocessableEntity, HTTPStatus(ErrPaymentSumMismatch))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
