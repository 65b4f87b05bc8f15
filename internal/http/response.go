package http

import (
	"encoding/json"
	"net/http"
)

// ErrorBody é o formato de erro lido pelo cliente de sessão.
type ErrorBody struct {
	Detail  string `json:"detail"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

// WriteJSON escreve o corpo sem envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError escreve erro normalizado.
func WriteError(w http.ResponseWriter, status int, code, detail string, details any) {
	WriteJSON(w, status, ErrorBody{Detail: detail, Code: code, Details: details})
}
