package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vastrabill/vastrabill/internal/billing"
	"github.com/vastrabill/vastrabill/internal/company"
	"github.com/vastrabill/vastrabill/internal/customers"
	"github.com/vastrabill/vastrabill/internal/gstin"
	"github.com/vastrabill/vastrabill/internal/ledger"
	"github.com/vastrabill/vastrabill/internal/observability"
	"github.com/vastrabill/vastrabill/internal/tax"
	"github.com/vastrabill/vastrabill/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	GstinHandler     *gstin.Handler
	TaxHandler       *tax.Handler
	CustomersHandler *customers.Handler
	CompanyHandler   *company.Handler
	BillingHandler   *billing.Handler
	LedgerHandler    *ledger.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	if params.Metrics != nil {
		r.Use(params.Metrics.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/gstin", params.GstinHandler.MountRoutes)
	r.Route("/tax", params.TaxHandler.MountRoutes)
	r.Route("/company", params.CompanyHandler.MountRoutes)
	r.Route("/customers", func(r chi.Router) {
		params.CustomersHandler.MountRoutes(r)
		params.LedgerHandler.MountCustomerRoutes(r)
	})
	r.Route("/invoices", params.BillingHandler.MountInvoiceRoutes)
	r.Route("/dyeing-bills", params.BillingHandler.MountDyeingBillRoutes)
	r.Route("/payments", params.LedgerHandler.MountRoutes)
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
