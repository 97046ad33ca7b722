package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/redis"
	"github.com/MrSnakeDoc/georegistry/internal/scheduler"
)

type componentStatus struct {
	OK       bool   `json:"ok"`
	Mode     string `json:"mode,omitempty"`
	Services *int   `json:"services,omitempty"`
	Catalogs *int   `json:"catalogs,omitempty"`
	Default  bool   `json:"default,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

type infraResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
	Harvest    *harvestStatus             `json:"harvest,omitempty"`
}

type harvestStatus struct {
	Running bool                `json:"running"`
	Last    scheduler.RunStatus `json:"last"`
}

// Infra reports the state of the catalog store, every search engine and
// the harvest scheduler.
func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		components := map[string]componentStatus{
			"catalog": checkCatalog(ctx, d),
		}
		if d.RedisClient != nil {
			components["redis"] = checkRedis(ctx, d)
		}
		def := d.Engines.Default().Name()
		for _, e := range d.Engines.All() {
			st := componentStatus{OK: true, Default: e.Name() == def}
			if err := e.Ping(ctx); err != nil {
				st.OK = false
				st.Error = err.Error()
			}
			components[e.Name()] = st
		}

		resp := infraResponse{
			Status:     determineStatus(components, def),
			Components: components,
		}
		if d.Scheduler != nil {
			resp.Harvest = &harvestStatus{Running: d.Scheduler.Running(), Last: d.Scheduler.Last()}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func determineStatus(components map[string]componentStatus, defaultEngine string) string {
	// No catalog or no default engine = no search at all
	if !components["catalog"].OK || !components[defaultEngine].OK {
		return "critical"
	}
	for _, c := range components {
		if !c.OK {
			return "degraded"
		}
	}
	return "ok"
}

func checkCatalog(ctx context.Context, d deps.Deps) componentStatus {
	st := componentStatus{Mode: d.Backend}
	cats, err := d.Repo.ListCatalogs(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	svcs, err := d.Repo.ListServices(ctx)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	nc, ns := len(cats), len(svcs)
	st.OK = true
	st.Catalogs = &nc
	st.Services = &ns
	return st
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	rtt, err := redis.Ping(ctx, d.RedisClient, time.Second)
	if err != nil {
		return componentStatus{OK: false, Error: err.Error()}
	}
	return componentStatus{OK: true, Latency: rtt.String()}
}
