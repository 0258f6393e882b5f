package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/amara-obi/invoicetrack/internal/common"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response failed", zap.Error(err))
	}
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// reported as 500 without leaking internals.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := errorBody{Error: "internal server error"}

	var appErr *common.AppError
	if errors.As(err, &appErr) {
		body.Code = appErr.Code
		body.Error = appErr.Message
		switch {
		case errors.Is(err, common.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, common.ErrInvalidInput), errors.Is(err, common.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, common.ErrConflict):
			status = http.StatusConflict
		default:
			body.Error = "internal server error"
		}
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	s.respondJSON(w, status, body)
}
