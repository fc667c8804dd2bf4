package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/kiloshop/orderform/internal/attempt"
	"go.uber.org/zap"
)

// AttemptLister is satisfied by attempt.MemoryStore and attempt.PostgresStore.
type AttemptLister interface {
	List(ctx context.Context, limit, offset int) ([]attempt.Attempt, error)
}

// AttemptHandler exposes the submission log to admins.
type AttemptHandler struct {
	store  AttemptLister
	logger *zap.Logger
}

func NewAttemptHandler(store AttemptLister, logger *zap.Logger) *AttemptHandler {
	return &AttemptHandler{store: store, logger: logger}
}

// RegisterRoutes expects to be mounted under an ADMIN-only group.
func (h *AttemptHandler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/attempts", h.List)
}

const maxAttemptPage = 200

// List handles GET /admin/attempts?limit=&offset=
func (h *AttemptHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", attempt.DefaultLimit)
	if err != nil || limit < 1 || limit > maxAttemptPage {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid limit"})
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid offset"})
		return
	}

	attempts, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("list attempts", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, attempts)
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
