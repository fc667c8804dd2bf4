package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/kiloshop/orderform/internal/session"
	"github.com/kiloshop/orderform/internal/submit"
	"go.uber.org/zap"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode JSON response", zap.Error(err))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// statusFor maps a domain error onto an HTTP status.
func statusFor(err error) (int, errorResponse) {
	if e, ok := apperr.As(err); ok {
		resp := errorResponse{Error: e.Message, Code: e.Code, Field: e.Field}
		switch e.Kind {
		case apperr.KindValidation:
			return http.StatusUnprocessableEntity, resp
		case apperr.KindConfiguration:
			return http.StatusServiceUnavailable, resp
		case apperr.KindNetwork:
			return http.StatusBadGateway, resp
		}
	}

	switch {
	case errors.Is(err, submit.ErrInFlight):
		return http.StatusConflict, errorResponse{Error: "order is already being sent", Code: "in_flight"}
	case errors.Is(err, session.ErrRowNotFound):
		return http.StatusNotFound, errorResponse{Error: "row not found"}
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrSessionClosed):
		return http.StatusNotFound, errorResponse{Error: "session not found"}
	case errors.Is(err, session.ErrUnknownEvent):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	}
	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}

func writeError(w http.ResponseWriter, err error) {
	status, resp := statusFor(err)
	writeJSON(w, status, resp)
}
