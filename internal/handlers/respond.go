// Package handlers is the HTTP surface of the booking service. Handlers
// are plain http.HandlerFunc with method checks; ids travel in query
// strings and JSON bodies, not path segments.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/smartpro-app/smartpro-backend/internal/apperr"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// writeError maps the domain taxonomy onto HTTP statuses. Unclassified
// errors are logged with detail but surface as a bare 500.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		logger.Error("unclassified handler error", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
		return
	}
	status := statusForKind(e.Kind)
	if status >= 500 {
		logger.Error("request failed", "kind", string(e.Kind), "err", err)
	}
	writeJSON(w, status, errorResponse{Error: e.Msg, Code: string(e.Kind)})
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindSlotUnavailable, apperr.KindInvalidTransition:
		return http.StatusConflict
	case apperr.KindPermissionDenied:
		return http.StatusForbidden
	case apperr.KindAuthRequired:
		return http.StatusUnauthorized
	case apperr.KindInvalidService:
		return http.StatusUnprocessableEntity
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
