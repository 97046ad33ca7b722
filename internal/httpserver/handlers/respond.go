package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MrSnakeDoc/georegistry/internal/httpserver/deps"
	"github.com/MrSnakeDoc/georegistry/internal/logger"
	"github.com/MrSnakeDoc/georegistry/internal/search/searchapi"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders err as {"error": {"message": ...}} and returns the
// status it used. Server-side failures are logged.
func writeError(w http.ResponseWriter, d deps.Deps, err error) int {
	e := searchapi.AsError(err)
	if e.Status >= http.StatusInternalServerError {
		d.Logger.Error("request failed",
			logger.Int("status", e.Status),
			logger.Error(err))
	}
	writeJSON(w, e.Status, e)
	return e.Status
}

func writeStatus(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, &searchapi.Error{Status: status, Message: fmt.Sprintf(format, args...)})
}
