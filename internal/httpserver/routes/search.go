package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/mw"
)

func init() { Register("search", registerSearch) }

func registerSearch(r chi.Router, d deps.Deps) {
	limit := mw.RateLimit(mw.RateLimitConfig{
		Burst:             d.SearchRateBurst,
		RefillPerIPPerMin: d.SearchRatePerMin,
		MaxEntries:        10000,
		TrustProxy:        d.TrustProxy,
	})
	h := handlers.Search(d)
	r.With(limit).Get("/api/search", h)
	r.With(limit).Get("/api/catalogs/{catalog}/search", h)
}
