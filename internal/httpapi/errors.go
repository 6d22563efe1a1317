package httpapi

import (
	"encoding/json"
	"net/http"

	"llamad/internal/supervisor"
	"llamad/pkg/types"
)

// HTTPError allows services to provide an HTTP status code for an error.
type HTTPError interface {
	error
	StatusCode() int
}

// ensureErrorStatus maps well-known supervisor errors to HTTP status codes.
func ensureErrorStatus(err error) int {
	switch {
	case supervisor.IsModelNotFound(err):
		return http.StatusNotFound
	case supervisor.IsStartupTimeout(err):
		return http.StatusGatewayTimeout
	case supervisor.IsTermination(err):
		return http.StatusInternalServerError
	}
	if he, ok := err.(HTTPError); ok {
		return he.StatusCode()
	}
	return http.StatusInternalServerError
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
