package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-erp/meridian-erp/internal/approval"
	"github.com/meridian-erp/meridian-erp/internal/assets"
	"github.com/meridian-erp/meridian-erp/internal/fiscal"
	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/masterdata"
	"github.com/meridian-erp/meridian-erp/internal/payroll"
	"github.com/meridian-erp/meridian-erp/internal/purchasing"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/treasury"
	"github.com/meridian-erp/meridian-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	MasterDataHandler *masterdata.Handler
	FiscalHandler     *fiscal.Handler
	LedgerHandler     *ledger.Handler
	InventoryHandler  *inventory.Handler
	AssetsHandler     *assets.Handler
	SalesHandler      *sales.Handler
	PurchasingHandler *purchasing.Handler
	TreasuryHandler   *treasury.Handler
	PayrollHandler    *payroll.Handler
	ApprovalHandler   *approval.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/masterdata", params.MasterDataHandler.MountRoutes)
		r.Route("/fiscal", params.FiscalHandler.MountRoutes)
		r.Route("/ledger", params.LedgerHandler.MountRoutes)
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/assets", params.AssetsHandler.MountRoutes)
		r.Route("/sales/invoices", params.SalesHandler.MountRoutes)
		r.Route("/purchasing/invoices", params.PurchasingHandler.MountRoutes)
		r.Route("/treasury", params.TreasuryHandler.MountRoutes)
		r.Route("/payroll/runs", params.PayrollHandler.MountRoutes)
		r.Route("/approvals", params.ApprovalHandler.MountRoutes)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
