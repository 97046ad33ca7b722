package mw

import (
	"encoding/json"
	"net/http"
)

type rejection struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// reject answers with the API error envelope used by the handlers.
func reject(w http.ResponseWriter, status int, msg string) {
	var body rejection
	body.Error.Message = msg
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
