package ap

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kirana-labs/kirana-erp/internal/platform/httpx"
)

// Handler exposes payment ledger endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the accounts payable handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes mounts payment routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.record)
	r.Get("/aging", h.aging)
	r.Get("/invoice/{invoiceID}", h.listForInvoice)
	r.Get("/{id}", h.get)
	r.Post("/{id}/reverse", h.reverse)
	r.Post("/{id}/amend", h.amend)
}

type paymentPayload struct {
	InvoiceID   int64     `json:"invoice_id" validate:"required"`
	Amount      float64   `json:"amount" validate:"gt=0"`
	Method      string    `json:"method,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	PaymentDate time.Time `json:"payment_date,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type amendPayload struct {
	Amount      float64   `json:"amount" validate:"gt=0"`
	Method      string    `json:"method,omitempty"`
	Reference   string    `json:"reference,omitempty"`
	PaymentDate time.Time `json:"payment_date,omitempty"`
	Notes       string    `json:"notes,omitempty"`
}

type reversePayload struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	var payload paymentPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	payment, err := h.service.RecordPayment(r.Context(), RecordPaymentInput(payload))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	payment, err := h.service.GetPayment(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) listForInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID, err := strconv.ParseInt(chi.URLParam(r, "invoiceID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid invoice id")
		return
	}
	payments, err := h.service.ListPayments(r.Context(), invoiceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": payments})
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var payload reversePayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	reversal, err := h.service.ReversePayment(r.Context(), id, payload.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) amend(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var payload amendPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	replacement, err := h.service.AmendPayment(r.Context(), id, RecordPaymentInput{
		Amount:      payload.Amount,
		Method:      payload.Method,
		Reference:   payload.Reference,
		PaymentDate: payload.PaymentDate,
		Notes:       payload.Notes,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, replacement)
}

func (h *Handler) aging(w http.ResponseWriter, r *http.Request) {
	asOf := time.Now()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "as_of must be YYYY-MM-DD")
			return
		}
		asOf = parsed
	}
	report, err := h.service.Aging(r.Context(), asOf)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}
