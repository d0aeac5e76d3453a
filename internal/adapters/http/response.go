package http

import (
	"encoding/json"
	"net/http"
)

// successEnvelope and apiError are the two response shapes this service
// emits. Payment clients poll the snapshot endpoint aggressively, so the
// envelope stays flat and stable.
type successEnvelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type apiError struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Data: data})
}

func writeMessage(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, successEnvelope{Status: "success", Message: message})
}

func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, apiError{Status: "error", Code: code, Message: message})
}
