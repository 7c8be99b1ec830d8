package middleware

import (
	"encoding/json"
	"net/http"

	"go-fintrack/internal/model"
)

func jsonEncode(w http.ResponseWriter, value any) error {
	return json.NewEncoder(w).Encode(value)
}

func writeErrorBody(w http.ResponseWriter, status int, body model.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = jsonEncode(w, body)
}
