package procurement

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kirana-labs/kirana-erp/internal/gst"
	"github.com/kirana-labs/kirana-erp/internal/handoff"
	"github.com/kirana-labs/kirana-erp/internal/platform/httpx"
)

// Handler exposes purchase order and goods receipt endpoints. The handoff
// channel carries the "receive this order" intent from the order screen to
// the receipt form.
type Handler struct {
	service  *Service
	handoff  *handoff.Channel
	validate *validator.Validate
}

// NewHandler constructs the procurement handler.
func NewHandler(service *Service, channel *handoff.Channel) *Handler {
	return &Handler{service: service, handoff: channel, validate: validator.New()}
}

// Routes mounts procurement routes.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.listOrders)
		r.Post("/", h.createOrder)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/cancel", h.cancelOrder)
		r.Post("/{id}/receive", h.publishReceiveIntent)
	})
	r.Route("/receipts", func(r chi.Router) {
		r.Get("/", h.listReceipts)
		r.Post("/", h.createReceipt)
		r.Get("/new", h.receiptDefaults)
		r.Get("/{id}", h.getReceipt)
	})
}

type orderLinePayload struct {
	ItemID  int64   `json:"item_id" validate:"required"`
	Qty     float64 `json:"qty" validate:"gt=0"`
	Rate    float64 `json:"rate" validate:"gt=0"`
	GSTRate float64 `json:"gst_rate" validate:"gte=0,lte=100"`
}

type createOrderPayload struct {
	Number       string             `json:"number,omitempty"`
	VendorID     int64              `json:"vendor_id" validate:"required"`
	OrderDate    time.Time          `json:"order_date,omitempty"`
	ExpectedDate time.Time          `json:"expected_date,omitempty"`
	Notes        string             `json:"notes,omitempty"`
	Lines        []orderLinePayload `json:"lines" validate:"required,min=1,dive"`
}

type receiptLinePayload struct {
	ItemID      int64      `json:"item_id" validate:"required"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	Qty         float64    `json:"qty" validate:"gt=0"`
	Rate        float64    `json:"rate" validate:"gt=0"`
	GSTRate     float64    `json:"gst_rate" validate:"gte=0,lte=100"`
}

type createReceiptPayload struct {
	Number       string               `json:"number" validate:"required"`
	OrderID      int64                `json:"order_id,omitempty"`
	VendorID     int64                `json:"vendor_id,omitempty"`
	VendorName   string               `json:"vendor_name,omitempty"`
	InvoiceDate  time.Time            `json:"invoice_date,omitempty"`
	ReceivedDate time.Time            `json:"received_date,omitempty"`
	Notes        string               `json:"notes,omitempty"`
	OtherCharges float64              `json:"other_charges,omitempty"`
	Discount     float64              `json:"discount,omitempty"`
	RoundOff     float64              `json:"round_off,omitempty"`
	Lines        []receiptLinePayload `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	filters := ListFilters{
		Status:   r.URL.Query().Get("status"),
		VendorID: vendorID,
		Search:   r.URL.Query().Get("q"),
		SortBy:   r.URL.Query().Get("sort"),
		SortDir:  r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.ListOrders(r.Context(), limit, offset, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var payload createOrderPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateOrderInput{
		Number:       payload.Number,
		VendorID:     payload.VendorID,
		OrderDate:    payload.OrderDate,
		ExpectedDate: payload.ExpectedDate,
		Notes:        payload.Notes,
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, OrderLineInput(line))
	}
	order, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	order, lines, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "lines": lines})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if err := h.service.CancelOrder(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// publishReceiveIntent records that the user wants to receive this order.
// The next visit to /receipts/new picks the intent up exactly once.
func (h *Handler) publishReceiveIntent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	if _, _, err := h.service.GetOrder(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.handoff.Publish(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"order_id": id})
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	vendorID, _ := strconv.ParseInt(r.URL.Query().Get("vendor_id"), 10, 64)
	filters := ListFilters{
		Status:   r.URL.Query().Get("payment_status"),
		VendorID: vendorID,
		Search:   r.URL.Query().Get("q"),
		SortBy:   r.URL.Query().Get("sort"),
		SortDir:  r.URL.Query().Get("dir"),
	}
	items, total, err := h.service.ListInvoices(r.Context(), limit, offset, filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
}

func (h *Handler) createReceipt(w http.ResponseWriter, r *http.Request) {
	var payload createReceiptPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	input := CreateReceiptInput{
		Number:       payload.Number,
		OrderID:      payload.OrderID,
		VendorID:     payload.VendorID,
		VendorName:   payload.VendorName,
		InvoiceDate:  payload.InvoiceDate,
		ReceivedDate: payload.ReceivedDate,
		Notes:        payload.Notes,
		Adjustments: gst.Adjustments{
			OtherCharges: payload.OtherCharges,
			Discount:     payload.Discount,
			RoundOff:     payload.RoundOff,
		},
	}
	for _, line := range payload.Lines {
		input.Lines = append(input.Lines, ReceiptLineInput(line))
	}
	invoice, err := h.service.CreateReceipt(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, invoice)
}

// receiptDefaults serves the receipt form pre-fill. With ?order_id it uses
// that order; otherwise it consumes a pending handoff intent, if any.
func (h *Handler) receiptDefaults(w http.ResponseWriter, r *http.Request) {
	orderID, _ := strconv.ParseInt(r.URL.Query().Get("order_id"), 10, 64)
	if orderID == 0 && h.handoff != nil {
		id, ok, err := h.handoff.ConsumeOnce(r.Context())
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		if ok {
			orderID = id
		}
	}
	if orderID == 0 {
		httpx.JSON(w, http.StatusOK, map[string]any{"order": nil, "lines": []ReceiptLineInput{}})
		return
	}
	order, lines, err := h.service.ReceiptDefaults(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "lines": lines})
}

func (h *Handler) getReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	invoice, lines, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invoice": invoice, "lines": lines})
}

func pagination(r *http.Request) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
