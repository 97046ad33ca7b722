package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
)

type healthzResponse struct {
	Status         string  `json:"status"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
	Backend        string  `json:"backend,omitempty"`
	DefaultCatalog string  `json:"default_catalog,omitempty"`
	SearchEngine   string  `json:"search_engine,omitempty"`
	Version        string  `json:"version,omitempty"`
	Commit         string  `json:"commit,omitempty"`
	BuildDate      string  `json:"build_date,omitempty"`
	GoVersion      string  `json:"go_version,omitempty"`
}

// Healthz is the liveness check. It never touches Redis or the search
// engines; /readyz does.
func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	engine := ""
	if d.Engines != nil {
		engine = d.Engines.Default().Name()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		writeJSON(w, http.StatusOK, healthzResponse{
			Status:         "ok",
			UptimeSeconds:  now().Sub(d.StartTime).Seconds(),
			Backend:        d.Backend,
			DefaultCatalog: d.DefaultCatalog,
			SearchEngine:   engine,
			Version:        d.Version,
			Commit:         d.Commit,
			BuildDate:      d.BuildDate,
			GoVersion:      d.GoVersion,
		})
	}
}
