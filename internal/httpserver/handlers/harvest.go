package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
)

type harvestResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Harvest triggers a manual harvest run of every service.
func Harvest(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.HarvestTrigger == nil {
			writeStatus(w, http.StatusServiceUnavailable, "harvest scheduler is not running")
			return
		}
		if d.Scheduler != nil && d.Scheduler.Running() {
			writeJSON(w, http.StatusTooManyRequests, harvestResponse{Message: "harvest already in progress, please wait"})
			return
		}

		select {
		case d.HarvestTrigger <- struct{}{}:
			d.Logger.Info("manual harvest triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, harvestResponse{Triggered: true, Message: "harvest triggered"})
		default:
			d.Logger.Warn("harvest already queued",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, harvestResponse{Message: "harvest already queued, please wait"})
		}
	}
}
