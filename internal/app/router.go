package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kirana-labs/kirana-erp/internal/ap"
	"github.com/kirana-labs/kirana-erp/internal/inventory"
	"github.com/kirana-labs/kirana-erp/internal/masterdata/items"
	"github.com/kirana-labs/kirana-erp/internal/masterdata/vendors"
	"github.com/kirana-labs/kirana-erp/internal/platform/httpx"
	"github.com/kirana-labs/kirana-erp/internal/procurement"
)

// Handlers collects the per-module HTTP handlers mounted by the router.
type Handlers struct {
	Procurement *procurement.Handler
	Payments    *ap.Handler
	Inventory   *inventory.Handler
	Vendors     *vendors.Handler
	Items       *items.Handler
}

// NewRouter builds the HTTP router with the default middleware stack.
func NewRouter(mw MiddlewareConfig, handlers Handlers) chi.Router {
	r := chi.NewRouter()
	for _, m := range MiddlewareStack(mw) {
		r.Use(m)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if mw.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", mw.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/purchases", func(r chi.Router) {
			handlers.Procurement.Routes(r)
		})
		r.Route("/payments", func(r chi.Router) {
			handlers.Payments.Routes(r)
		})
		r.Route("/batches", func(r chi.Router) {
			handlers.Inventory.Routes(r)
		})
		r.Route("/vendors", func(r chi.Router) {
			handlers.Vendors.Routes(r)
		})
		r.Route("/items", func(r chi.Router) {
			handlers.Items.Routes(r)
		})
	})
	return r
}
