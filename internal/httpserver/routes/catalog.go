package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/handlers"
)

func init() { Register("catalog", registerCatalog) }

func registerCatalog(r chi.Router, d deps.Deps) {
	r.Get("/api/catalogs", handlers.Catalogs(d))
	r.Get("/api/services", handlers.Services(d))
	r.Get("/api/services/{id}", handlers.Service(d))
	r.Get("/api/layers/{id}", handlers.Layer(d))
}
