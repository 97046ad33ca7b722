package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

// Search serves the layer search API on the default catalog, or on the
// catalog named in the path.
func Search(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		engineName := "none"
		status := http.StatusOK
		defer func() {
			if d.Metrics != nil {
				d.Metrics.ObserveSearch(engineName, status, time.Since(start))
			}
		}()

		req, err := searchapi.ParseRequest(r.URL.Query())
		if err != nil {
			status = writeError(w, d, err)
			return
		}

		req.Catalog = d.DefaultCatalog
		if slug := chi.URLParam(r, "catalog"); slug != "" {
			if _, err := d.Repo.GetCatalog(r.Context(), slug); err != nil {
				if errors.Is(err, domain.ErrNotFound) {
					status = http.StatusNotFound
					writeStatus(w, status, "catalog %q not found", slug)
					return
				}
				status = writeError(w, d, err)
				return
			}
			req.Catalog = slug
		}

		engine, err := d.Engines.Pick(req.Engine)
		if err != nil {
			status = writeError(w, d, err)
			return
		}
		engineName = engine.Name()

		resp, err := engine.Search(r.Context(), req)
		if err != nil {
			status = writeError(w, d, err)
			return
		}
		writeJSON(w, status, resp)
	}
}
