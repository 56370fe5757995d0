package inventory

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kirana-labs/kirana-erp/internal/platform/httpx"
)

// Handler exposes read-only batch endpoints.
type Handler struct {
	repo *Repository
}

// NewHandler constructs the inventory handler.
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// Routes mounts batch routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	itemID, _ := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	invoiceID, _ := strconv.ParseInt(r.URL.Query().Get("invoice_id"), 10, 64)
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	batches, err := h.repo.ListBatches(r.Context(), BatchFilter{ItemID: itemID, InvoiceID: invoiceID, Limit: limit})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": batches})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return
	}
	batch, err := h.repo.GetBatch(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}
