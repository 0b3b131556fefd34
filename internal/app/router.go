package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/garuda-dms/garuda-dms/internal/adjustment"
	"github.com/garuda-dms/garuda-dms/internal/closure"
	"github.com/garuda-dms/garuda-dms/internal/ledger"
	"github.com/garuda-dms/garuda-dms/internal/masterdata/companies"
	"github.com/garuda-dms/garuda-dms/internal/observability"
	"github.com/garuda-dms/garuda-dms/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	ClosureHandler    *closure.Handler
	CompaniesHandler  *companies.Handler
	LedgerHandler     *ledger.Handler
	AdjustmentHandler *adjustment.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
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

	if params.ClosureHandler != nil {
		params.ClosureHandler.MountRoutes(r)
	}
	if params.CompaniesHandler != nil {
		params.CompaniesHandler.MountRoutes(r)
	}
	if params.LedgerHandler != nil {
		params.LedgerHandler.MountRoutes(r)
	}
	if params.AdjustmentHandler != nil {
		params.AdjustmentHandler.MountRoutes(r)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
