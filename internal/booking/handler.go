package booking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/internal/appointments"
	"github.com/danielthames360/baby-spa-sub004/internal/identity"
	"github.com/danielthames360/baby-spa-sub004/internal/schedule"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// Handler serves the appointment lifecycle endpoints.
type Handler struct {
	orchestrator *Orchestrator
	transitions  *appointments.Service
	history      *appointments.HistoryArchive
	logger       *logging.Logger
}

// NewHandler creates the booking handler. history may be nil when the
// archive read side is not wired.
func NewHandler(orchestrator *Orchestrator, transitions *appointments.Service, history *appointments.HistoryArchive, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		orchestrator: orchestrator,
		transitions:  transitions,
		history:      history,
		logger:       logger,
	}
}

type createAppointmentRequest struct {
	Date              string     `json:"date"`
	StartTime         string     `json:"start_time"`
	EndTime           string     `json:"end_time"`
	Channel           string     `json:"channel"`
	BabyID            *uuid.UUID `json:"baby_id,omitempty"`
	ParentID          *uuid.UUID `json:"parent_id,omitempty"`
	PackagePurchaseID *uuid.UUID `json:"package_purchase_id,omitempty"`
	Notes             string     `json:"notes,omitempty"`
	ClientNow         *time.Time `json:"client_now,omitempty"`
}

// CreateAppointment handles POST /appointments.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, `{"error":"invalid or missing date"}`, http.StatusBadRequest)
		return
	}
	channel, err := schedule.ParseChannel(req.Channel)
	if err != nil {
		http.Error(w, `{"error":"unknown channel"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.orchestrator.Create(r.Context(), CreateInput{
		Date:              date,
		StartTime:         req.StartTime,
		EndTime:           req.EndTime,
		Channel:           channel,
		BabyID:            req.BabyID,
		ParentID:          req.ParentID,
		PackagePurchaseID: req.PackagePurchaseID,
		Notes:             req.Notes,
		ClientNow:         req.ClientNow,
	})
	if err != nil {
		h.writeError(w, err, "create appointment failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, appt)
}

type bulkRequest struct {
	BabyID            uuid.UUID  `json:"baby_id"`
	PackagePurchaseID uuid.UUID  `json:"package_purchase_id"`
	Notes             string     `json:"notes,omitempty"`
	Slots             []BulkSlot `json:"slots"`
}

// CreateBulk handles POST /appointments/bulk.
func (h *Handler) CreateBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	result, err := h.orchestrator.CreateBulk(r.Context(), BulkInput{
		BabyID:            req.BabyID,
		PackagePurchaseID: req.PackagePurchaseID,
		Notes:             req.Notes,
		Slots:             req.Slots,
	})
	if err != nil {
		h.writeError(w, err, "bulk booking failed")
		return
	}
	status := http.StatusCreated
	if len(result.Created) == 0 {
		status = http.StatusConflict
	}
	h.writeJSON(w, status, result)
}

type rescheduleRequest struct {
	Date      string     `json:"date"`
	StartTime string     `json:"start_time"`
	EndTime   string     `json:"end_time"`
	ClientNow *time.Time `json:"client_now,omitempty"`
}

// Reschedule handles POST /appointments/{id}/reschedule.
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		http.Error(w, `{"error":"invalid or missing date"}`, http.StatusBadRequest)
		return
	}

	appt, err := h.orchestrator.Reschedule(r.Context(), id, date, req.StartTime, req.EndTime, req.ClientNow)
	if err != nil {
		h.writeError(w, err, "reschedule failed")
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

type cancelRequest struct {
	Reason    string     `json:"reason"`
	ClientNow *time.Time `json:"client_now,omitempty"`
}

// Cancel handles POST /appointments/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.orchestrator.Cancel(r.Context(), id, req.Reason, req.ClientNow); err != nil {
		h.writeError(w, err, "cancel failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Start handles POST /appointments/{id}/start.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transitions.Start)
}

// Complete handles POST /appointments/{id}/complete.
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transitions.Complete)
}

// NoShow handles POST /appointments/{id}/no-show.
func (h *Handler) NoShow(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.transitions.NoShow)
}

// History handles GET /appointments/{id}/history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	actor, ok := identity.ActorFromContext(r.Context())
	if !ok || !actor.Can(identity.PermViewHistory) {
		h.writeError(w, apperrors.ErrPermissionDenied, "history denied")
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.history.Query(r.Context(), appointments.HistoryFilter{
		AppointmentID: id,
		Field:         r.URL.Query().Get("field"),
	})
	if err != nil {
		h.writeError(w, err, "history query failed")
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, id uuid.UUID) (*appointments.Appointment, error)) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	appt, err := fn(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "transition failed")
		return
	}
	h.writeJSON(w, http.StatusOK, appt)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid appointment id"}`, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(msg, "error", err)
	}
	var ae *apperrors.Error
	if !errors.As(err, &ae) {
		ae = apperrors.ErrInternal
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": ae.Message,
		"code":  ae.Code,
	})
}
