package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/vintrade-console/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDetail: тело ошибки в формате {"detail": "..."}, его читает клиент консоли.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError разделяет типы ошибок на 404 / 409 / 422 / 500.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeDetail(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyDecided), errors.Is(err, domain.ErrInvalidTransition):
		writeDetail(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidRule):
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("request failed", zap.String("op", op), zap.Error(err))
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}
