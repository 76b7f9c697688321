package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"picta/internal/embed"
	"picta/internal/queryparser"
	"picta/internal/store"
)

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends the structured error body: a stable code and a
// human message.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]string{"code": code, "message": message})
}

// respondDomainError maps sentinel errors to HTTP statuses. Low-level
// errors never leak unwrapped to the boundary.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", "photo not found")
	case errors.Is(err, queryparser.ErrInvalidQuery):
		respondError(w, http.StatusBadRequest, "invalid_query", "query is empty or malformed")
	case errors.Is(err, embed.ErrModelUnavailable):
		respondError(w, http.StatusServiceUnavailable, "model_unavailable", "embedding model is unavailable")
	case errors.Is(err, store.ErrUnavailable):
		respondError(w, http.StatusServiceUnavailable, "store_unavailable", "corpus store is unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
