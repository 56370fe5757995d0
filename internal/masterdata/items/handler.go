package items

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kirana-labs/kirana-erp/internal/platform/httpx"
)

// Handler exposes item endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs the item handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service, validate: validator.New()}
}

// Routes mounts item routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
}

type itemPayload struct {
	SKU          string  `json:"sku" validate:"required"`
	Name         string  `json:"name" validate:"required"`
	HSN          string  `json:"hsn,omitempty"`
	Unit         string  `json:"unit,omitempty"`
	GSTRate      float64 `json:"gst_rate" validate:"gte=0,lte=100"`
	PurchaseRate float64 `json:"purchase_rate" validate:"gte=0"`
	SellingRate  float64 `json:"selling_rate" validate:"gte=0"`
	Active       bool    `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	list, total, err := h.service.List(r.Context(), limit, offset, r.URL.Query().Get("q"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": list, "total": total})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if sku := r.URL.Query().Get("sku"); sku != "" {
		item, err := h.service.GetBySKU(r.Context(), sku)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	item, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item, err := h.service.Create(r.Context(), Item{
		SKU: payload.SKU, Name: payload.Name, HSN: payload.HSN, Unit: payload.Unit,
		GSTRate: payload.GSTRate, PurchaseRate: payload.PurchaseRate, SellingRate: payload.SellingRate,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	var payload itemPayload
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	item := Item{
		ID: id, SKU: payload.SKU, Name: payload.Name, HSN: payload.HSN, Unit: payload.Unit,
		GSTRate: payload.GSTRate, PurchaseRate: payload.PurchaseRate, SellingRate: payload.SellingRate,
		Active: payload.Active,
	}
	if err := h.service.Update(r.Context(), item); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "updated"})
}
