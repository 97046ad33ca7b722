package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/redis"
)

type readyzResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// Readyz reports ready once the catalog store and the default search
// engine answer.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if d.RedisClient != nil {
			if _, err := redis.Ping(ctx, d.RedisClient, time.Second); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Reason: "redis: " + err.Error()})
				return
			}
		}
		if err := d.Engines.Default().Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, readyzResponse{Reason: d.Engines.Default().Name() + ": " + err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, readyzResponse{Ready: true})
	}
}
