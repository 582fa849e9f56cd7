package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "component", "api", "error", err)
	}
}

// httpError writes {"error":{"message","type"}}.
func httpError(w http.ResponseWriter, code int, errType, format string, args ...any) {
	writeJSON(w, code, map[string]errorBody{
		"error": {Message: fmt.Sprintf(format, args...), Type: errType},
	})
}
