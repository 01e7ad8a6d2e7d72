package httpx

import (
	"encoding/json"
	"net/http"
)

// envelope is the uniform response body shape.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeSuccess wraps data in a success envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Status: "success", Message: message, Data: data})
}

// writeError sends an error envelope. The HTTP status and the envelope
// status are independent: some business failures ship as errors on a 200.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Status: "error", Message: msg})
}

// writeErrorData sends an error envelope with a diagnostic payload.
func writeErrorData(w http.ResponseWriter, status int, msg string, data any) {
	writeJSON(w, status, envelope{Status: "error", Message: msg, Data: data})
}

// writeHTML sends a raw HTML document.
func writeHTML(w http.ResponseWriter, status int, doc string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(doc))
}
