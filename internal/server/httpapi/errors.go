package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/anpetrov/filegate/internal/common"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// statusFromError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is an internal failure and must not leak detail.
func statusFromError(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrIntegrityConflict):
		return http.StatusConflict, "integrity_conflict"
	case errors.Is(err, common.ErrTokenNotFound):
		return http.StatusNotFound, "token_not_found"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token_expired"
	case errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrInvalidTokenKind),
		errors.Is(err, common.ErrTokenValidationFailed),
		errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFromError(err)

	if status == http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
	}

	msg := code
	if status != http.StatusInternalServerError {
		msg = err.Error()
	}

	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
