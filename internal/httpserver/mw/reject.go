package mw

import (
	"encoding/json"
	"net/http"
)

// rejectBody has the shape of the API error responses written by handlers.
type rejectBody struct {
	Error struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

func reject(w http.ResponseWriter, status int, kind, message string) {
	var body rejectBody
	body.Error.Kind = kind
	body.Error.Message = message
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
