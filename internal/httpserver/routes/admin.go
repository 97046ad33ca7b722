package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/mw"
)

func init() { Register("admin", registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	admin := r.With(mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger))

	r.Get("/healthz", handlers.Healthz(d))
	admin.Get("/readyz", handlers.Readyz(d))
	admin.Get("/infra", handlers.Infra(d))
	admin.Post("/api/harvest", handlers.Harvest(d))
	if d.Metrics != nil {
		admin.Method("GET", "/metrics", d.Metrics.Handler())
	}
}
