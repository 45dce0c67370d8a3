// internal/controller/render.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropsentry/campaign-backend/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error kinds onto HTTP statuses. Lifecycle
// guard violations go back verbatim so the operator sees which
// precondition failed.
func writeError(w http.ResponseWriter, err error) {
	var (
		notFound     *apperrors.NotFoundError
		invalid      *apperrors.InvalidTransitionError
		conflict     *apperrors.ConflictError
		unauthorized *apperrors.UnauthorizedError
		upstream     *apperrors.UpstreamUnavailableError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "precondition": invalid.Reason})
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.As(err, &unauthorized):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	case errors.As(err, &upstream):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}
