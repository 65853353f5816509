package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bakeledger/bakeledger/internal/catalog"
	"github.com/bakeledger/bakeledger/internal/creditnote"
	"github.com/bakeledger/bakeledger/internal/invoicing"
	"github.com/bakeledger/bakeledger/internal/ledger"
	"github.com/bakeledger/bakeledger/internal/observability"
	"github.com/bakeledger/bakeledger/internal/returns"
	"github.com/bakeledger/bakeledger/internal/sales"
	"github.com/bakeledger/bakeledger/internal/settlement"
	"github.com/bakeledger/bakeledger/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	CatalogHandler    *catalog.Handler
	LedgerHandler     *ledger.Handler
	InvoicingHandler  *invoicing.Handler
	SalesHandler      *sales.Handler
	ReturnsHandler    *returns.Handler
	CreditNoteHandler *creditnote.Handler
	SettlementHandler *settlement.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with engine defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.CatalogHandler != nil {
			r.Route("/catalog", params.CatalogHandler.MountRoutes)
		}
		if params.LedgerHandler != nil {
			r.Route("/ledger", params.LedgerHandler.MountRoutes)
		}
		if params.InvoicingHandler != nil {
			r.Route("/invoices", params.InvoicingHandler.MountRoutes)
		}
		if params.SalesHandler != nil {
			r.Route("/sales", params.SalesHandler.MountRoutes)
		}
		if params.ReturnsHandler != nil {
			r.Route("/returns", params.ReturnsHandler.MountRoutes)
		}
		if params.CreditNoteHandler != nil {
			r.Route("/credit-notes", params.CreditNoteHandler.MountRoutes)
		}
		if params.SettlementHandler != nil {
			r.Route("/settlements", params.SettlementHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
