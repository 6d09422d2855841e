package schedule

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// Handler serves availability queries for the booking UIs.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates an availability handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// AvailabilityResponse is the payload for GET /availability.
type AvailabilityResponse struct {
	Date    string `json:"date"`
	Channel string `json:"channel"`
	Slots   []Slot `json:"slots"`
}

// GetAvailability handles GET /availability?date=YYYY-MM-DD&channel=portal&now=RFC3339.
func (h *Handler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	dateStr := r.URL.Query().Get("date")
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		http.Error(w, `{"error":"invalid or missing date"}`, http.StatusBadRequest)
		return
	}

	channel, err := ParseChannel(r.URL.Query().Get("channel"))
	if err != nil {
		http.Error(w, `{"error":"unknown channel"}`, http.StatusBadRequest)
		return
	}

	var clientNow *time.Time
	if nowStr := r.URL.Query().Get("now"); nowStr != "" {
		parsed, err := time.Parse(time.RFC3339, nowStr)
		if err != nil {
			http.Error(w, `{"error":"invalid now timestamp"}`, http.StatusBadRequest)
			return
		}
		clientNow = &parsed
	}

	slots, err := h.service.Availability(r.Context(), date, channel, clientNow)
	if err != nil {
		h.logger.Error("availability query failed", "error", err, "date", dateStr)
		http.Error(w, `{"error":"failed to compute availability"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AvailabilityResponse{
		Date:    dateStr,
		Channel: string(channel),
		Slots:   slots,
	})
}
