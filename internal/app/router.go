package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/papyrus-erp/papyrus-erp/internal/inventory"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/products"
	"github.com/papyrus-erp/papyrus-erp/internal/masterdata/stores"
	"github.com/papyrus-erp/papyrus-erp/internal/platform/httpx"
	"github.com/papyrus-erp/papyrus-erp/internal/production"
	"github.com/papyrus-erp/papyrus-erp/internal/valuation"
)

// RouterParams aggregates handler dependencies for the HTTP router.
type RouterParams struct {
	Logger     *slog.Logger
	Config     *Config
	Products   *products.Handler
	Stores     *stores.Handler
	Inventory  *inventory.Handler
	Production *production.Handler
	Valuation  *valuation.Handler
}

// NewRouter assembles the Papyrus HTTP surface.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/masterdata", func(md chi.Router) {
		if p.Products != nil {
			md.Route("/products", p.Products.MountRoutes)
		}
		if p.Stores != nil {
			md.Route("/stores", p.Stores.MountRoutes)
		}
	})
	if p.Inventory != nil {
		r.Route("/inventory", p.Inventory.MountRoutes)
	}
	if p.Production != nil {
		r.Route("/production", p.Production.MountRoutes)
	}
	if p.Valuation != nil {
		r.Route("/reports", p.Valuation.MountRoutes)
	}
	return r
}
