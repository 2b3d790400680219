package api

import (
	"encoding/json"
	"net/http"
)

type handlers struct {
	events Events
}

type errorBody struct {
	Error string `json:"error"`
}

// health reports ready once a device has published its first snapshot.
func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.events.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "device not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "chip": snap.Chip})
}

func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.events.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "device not initialized"})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
