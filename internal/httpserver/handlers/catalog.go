package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/georegistry/internal/domain"
	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
)

type serviceView struct {
	*domain.Service
	Layers int               `json:"layers_count"`
	Stats  domain.CheckStats `json:"checks"`
}

type layerView struct {
	*domain.Layer
	Stats domain.CheckStats `json:"checks"`
}

// Catalogs lists the catalogs.
func Catalogs(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cats, err := d.Repo.ListCatalogs(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, cats)
	}
}

// Services lists the services, optionally only those of ?catalog=.
func Services(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Repo.ListServices(r.Context())
		if err != nil {
			writeError(w, d, err)
			return
		}
		catalog := r.URL.Query().Get("catalog")
		out := make([]*domain.Service, 0, len(all))
		for _, s := range all {
			if catalog == "" || s.Catalog == catalog {
				out = append(out, s)
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// Service returns one service with its layer count and check metrics.
func Service(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		ctx := r.Context()
		svc, err := d.Repo.GetService(ctx, id)
		if err != nil {
			notFoundOr(w, d, err, "service %d not found", id)
			return
		}
		layers, err := d.Repo.ListLayers(ctx, id)
		if err != nil {
			writeError(w, d, err)
			return
		}
		checks, err := d.Repo.ListChecks(ctx, svc.ResourceKey())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, serviceView{Service: svc, Layers: len(layers), Stats: domain.Stats(checks)})
	}
}

// Layer returns one layer with its check metrics.
func Layer(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		ctx := r.Context()
		l, err := d.Repo.GetLayer(ctx, id)
		if err != nil {
			notFoundOr(w, d, err, "layer %d not found", id)
			return
		}
		checks, err := d.Repo.ListChecks(ctx, l.ResourceKey())
		if err != nil {
			writeError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, layerView{Layer: l, Stats: domain.Stats(checks)})
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeStatus(w, http.StatusBadRequest, "invalid id %q", raw)
		return 0, false
	}
	return id, true
}

func notFoundOr(w http.ResponseWriter, d deps.Deps, err error, format string, args ...any) {
	if errors.Is(err, domain.ErrNotFound) {
		writeStatus(w, http.StatusNotFound, format, args...)
		return
	}
	writeError(w, d, err)
}
