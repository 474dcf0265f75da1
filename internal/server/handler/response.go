package handler

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v with the given status. Encoding failures become a bare 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// ackResponse is the body of every webhook acknowledgement.
type ackResponse struct {
	Status     string `json:"status"`
	Stage      string `json:"stage,omitempty"`
	Message    string `json:"message,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
