package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/danielthames360/baby-spa-sub004/internal/apperrors"
	"github.com/danielthames360/baby-spa-sub004/pkg/logging"
)

// Handler serves the transaction and cash register endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a ledger handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type itemRequest struct {
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	ProductID   *uuid.UUID      `json:"product_id,omitempty"`
}

type tenderRequest struct {
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference,omitempty"`
}

type createTransactionRequest struct {
	Type              string          `json:"type"`
	Category          string          `json:"category"`
	ReferenceType     string          `json:"reference_type"`
	ReferenceID       uuid.UUID       `json:"reference_id"`
	Items             []itemRequest   `json:"items"`
	Payments          []tenderRequest `json:"payments"`
	InstallmentNumber *int            `json:"installment_number,omitempty"`
}

// CreateTransaction handles POST /transactions.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	in := CreateInput{
		Type:              Type(req.Type),
		Category:          Category(req.Category),
		ReferenceType:     ReferenceType(req.ReferenceType),
		ReferenceID:       req.ReferenceID,
		InstallmentNumber: req.InstallmentNumber,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, Item{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			ProductID:   item.ProductID,
		})
	}
	for _, entry := range req.Payments {
		method, err := ParsePaymentMethod(entry.Method)
		if err != nil {
			http.Error(w, `{"error":"unknown payment method"}`, http.StatusBadRequest)
			return
		}
		in.Tender = append(in.Tender, TenderEntry{
			Method:    method,
			Amount:    entry.Amount,
			Reference: entry.Reference,
		})
	}

	tx, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "create transaction failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

type recordPaymentRequest struct {
	AppointmentID     *uuid.UUID      `json:"appointment_id,omitempty"`
	PackagePurchaseID *uuid.UUID      `json:"package_purchase_id,omitempty"`
	Category          string          `json:"category"`
	Description       string          `json:"description,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Payments          []tenderRequest `json:"payments"`
	InstallmentNumber *int            `json:"installment_number,omitempty"`
}

// RecordPayment handles POST /payments, the payment shorthand over the
// transaction ledger: one income line against either a package purchase or
// a single appointment, with the same split-tender and installment rules as
// POST /transactions.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	category := Category(req.Category)
	in := CreateInput{
		Type:              TypeIncome,
		InstallmentNumber: req.InstallmentNumber,
	}
	switch {
	case req.PackagePurchaseID != nil:
		if category == "" {
			category = CategoryInstallment
		}
		if !category.AppliesToPurchase() {
			http.Error(w, `{"error":"category does not apply to a package purchase"}`, http.StatusBadRequest)
			return
		}
		in.ReferenceType, in.ReferenceID = RefPackagePurchase, *req.PackagePurchaseID
	case req.AppointmentID != nil:
		if category == "" {
			category = CategoryAdvancePayment
		}
		in.ReferenceType, in.ReferenceID = RefAppointment, *req.AppointmentID
	default:
		http.Error(w, `{"error":"appointment_id or package_purchase_id is required"}`, http.StatusBadRequest)
		return
	}
	in.Category = category

	description := req.Description
	if description == "" {
		description = "Payment"
	}
	in.Items = []Item{{Description: description, Quantity: 1, UnitPrice: req.Amount}}
	for _, entry := range req.Payments {
		method, err := ParsePaymentMethod(entry.Method)
		if err != nil {
			http.Error(w, `{"error":"unknown payment method"}`, http.StatusBadRequest)
			return
		}
		in.Tender = append(in.Tender, TenderEntry{
			Method:    method,
			Amount:    entry.Amount,
			Reference: entry.Reference,
		})
	}

	tx, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err, "record payment failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, tx)
}

type voidRequest struct {
	Reason string `json:"reason"`
}

// VoidTransaction handles POST /transactions/{id}/void.
func (h *Handler) VoidTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, `{"error":"invalid transaction id"}`, http.StatusBadRequest)
		return
	}
	var req voidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}

	reversal, err := h.service.Void(r.Context(), id, req.Reason)
	if err != nil {
		h.writeError(w, err, "void transaction failed")
		return
	}
	h.writeJSON(w, http.StatusOK, reversal)
}

type openRegisterRequest struct {
	OpeningAmount decimal.Decimal `json:"opening_amount"`
}

// OpenCashRegister handles POST /cash-register/open.
func (h *Handler) OpenCashRegister(w http.ResponseWriter, r *http.Request) {
	var req openRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	session, err := h.service.OpenCashRegister(r.Context(), req.OpeningAmount)
	if err != nil {
		h.writeError(w, err, "open cash register failed")
		return
	}
	h.writeJSON(w, http.StatusCreated, session)
}

// CurrentCashRegister handles GET /cash-register/current.
func (h *Handler) CurrentCashRegister(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.CurrentCashRegister(r.Context())
	if err != nil {
		h.writeError(w, err, "load current cash register failed")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
}

type closeRegisterRequest struct {
	DeclaredAmount decimal.Decimal `json:"declared_amount"`
}

// CloseCashRegister handles POST /cash-register/close.
func (h *Handler) CloseCashRegister(w http.ResponseWriter, r *http.Request) {
	var req closeRegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	session, err := h.service.CloseCashRegister(r.Context(), req.DeclaredAmount)
	if err != nil {
		h.writeError(w, err, "close cash register failed")
		return
	}
	h.writeJSON(w, http.StatusOK, session)
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
