// Package respond writes JSON bodies and maps service errors to status codes.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/orchestra/internal/api/dto"
	"github.com/hugh/orchestra/internal/apperr"
)

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Message(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, dto.MessageResponse{Message: msg})
}

// Error translates err. Anything outside the apperr taxonomy is logged and
// answered with a generic 500.
func Error(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		verr  *apperr.ValidationError
		lerr  *apperr.LimitExceededError
		typed *apperr.Error
	)

	switch {
	case errors.As(err, &verr):
		JSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{Message: verr.Message, Errors: verr.Fields})
	case errors.As(err, &lerr):
		current, limit := lerr.Current, lerr.Limit
		JSON(w, http.StatusForbidden, dto.ErrorResponse{Message: lerr.Message, CurrentCount: &current, Limit: &limit})
	case errors.As(err, &typed):
		JSON(w, statusOf(typed.Kind), dto.ErrorResponse{Message: typed.Message})
	default:
		if log != nil {
			log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		}
		JSON(w, http.StatusInternalServerError, dto.ErrorResponse{Message: "Internal server error"})
	}
}

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
