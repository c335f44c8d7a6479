package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/billing"
	"github.com/ledgerline/ledgerline/internal/parties"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/products"
	"github.com/ledgerline/ledgerline/internal/reports"
)

// RouterDeps aggregates the handlers the HTTP surface mounts.
type RouterDeps struct {
	Logger    *slog.Logger
	Config    *Config
	Documents *billing.Handler
	Products  *products.Handler
	Parties   *parties.Handler
	Reports   *reports.Handler
}

// NewRouter assembles the full route tree. Everything under
// /businesses requires a gateway-authenticated caller.
func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: deps.Logger, Config: deps.Config}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/businesses/{businessID}", func(r chi.Router) {
		r.Use(RequireCaller(deps.Logger))
		if deps.Documents != nil {
			r.Mount("/documents", deps.Documents.Routes())
		}
		if deps.Products != nil {
			r.Mount("/products", deps.Products.Routes())
		}
		if deps.Parties != nil {
			r.Mount("/parties", deps.Parties.Routes())
		}
		if deps.Reports != nil {
			r.Mount("/reports", deps.Reports.Routes())
		}
	})

	return r
}
