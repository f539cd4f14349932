package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/importprocess"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/platform/httpx"
	"github.com/meridian-erp/meridian-erp/internal/purchaseorder"
	"github.com/meridian-erp/meridian-erp/internal/quotation"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger               *slog.Logger
	Config               *Config
	QuotationHandler     *quotation.Handler
	PurchaseOrderHandler *purchaseorder.Handler
	ImportHandler        *importprocess.Handler
	MasterdataHandler    *masterdata.Handler
	Pool                 *pgxpool.Pool
}

// NewRouter assembles the full HTTP surface.
func NewRouter(p RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: p.Logger, Config: p.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if p.Pool != nil {
			if err := p.Pool.Ping(req.Context()); err != nil {
				httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "database unreachable")
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/quotations", p.QuotationHandler.MountRoutes)
		api.Route("/purchase-orders", p.PurchaseOrderHandler.MountRoutes)
		api.Route("/imports", p.ImportHandler.MountRoutes)
		api.Route("/masterdata", p.MasterdataHandler.MountRoutes)
	})

	return r
}
