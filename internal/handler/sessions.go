package handler

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/auth"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/export"
	"github.com/kiloshop/orderform/internal/order"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/kiloshop/orderform/internal/session"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionStore defines the session manager methods needed by the handlers.
// Satisfied by *session.Manager; narrow interface for testability.
type SessionStore interface {
	Create(initial []cart.Initial) *session.Session
	Get(id uuid.UUID) (*session.Session, bool)
	Delete(id uuid.UUID) bool
	TTL() time.Duration
}

// SessionHandler serves the order form of one page session.
type SessionHandler struct {
	store     SessionStore
	jwtSecret string
	logger    *zap.Logger
	now       func() time.Time
}

func NewSessionHandler(store SessionStore, jwtSecret string, logger *zap.Logger) *SessionHandler {
	return &SessionHandler{store: store, jwtSecret: jwtSecret, logger: logger, now: time.Now}
}

// RegisterRoutes registers the session endpoints. Expected to be mounted
// inside an authenticated, session-scoped subrouter: /sessions/{sid}
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.End)
	r.Post("/rows", h.AddRow)
	r.Delete("/rows", h.ClearRows)
	r.Post("/rows/{rid}/events", h.RowEvent)
	r.Delete("/rows/{rid}", h.RemoveRow)
	r.Put("/delivery", h.SetDelivery)
	r.Put("/customer", h.UpdateCustomer)
	r.Post("/submit", h.Submit)
	r.Get("/snapshot", h.Snapshot)
	r.Get("/export.csv", h.Export)
	r.Get("/payments/{provider}", h.Payment)
}

// --- Request / Response types ---

type seedRequest struct {
	Key string           `json:"key"`
	Qty *decimal.Decimal `json:"qty"`
}

func (s seedRequest) initial() cart.Initial {
	return cart.Initial{Key: s.Key, Quantity: s.Qty}
}

type createSessionRequest struct {
	Items []seedRequest `json:"items"`
}

type createSessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	Session   session.View `json:"session"`
}

type snapshotResponse struct {
	Items []session.SeedView `json:"items"`
}

type rowEventRequest struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type deliveryRequest struct {
	Include bool `json:"include"`
}

type submitRequest struct {
	Lang string `json:"lang"`
}

type paymentResponse struct {
	Provider payment.Provider `json:"provider"`
	URL      string           `json:"url"`
	Target   payment.Target   `json:"target"`
	Amount   string           `json:"amount"`
}

// --- Handlers ---

// Create starts a page session. The body is optional; items seed the cart.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}

	initial := make([]cart.Initial, 0, len(req.Items))
	for _, it := range req.Items {
		initial = append(initial, it.initial())
	}
	s := h.store.Create(initial)

	ttl := h.store.TTL()
	token, err := auth.GenerateSessionToken(h.jwtSecret, s.ID, ttl)
	if err != nil {
		h.store.Delete(s.ID)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, createSessionResponse{
		Token:     token,
		ExpiresAt: h.now().Add(ttl),
		Session:   s.View(),
	})
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.View())
}

// End closes the session and disconnects its pages.
func (h *SessionHandler) End(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	h.store.Delete(s.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) AddRow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var seed *cart.Initial
	if r.ContentLength != 0 {
		var req seedRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in := req.initial()
		seed = &in
	}

	res, err := s.AddRow(seed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *SessionHandler) ClearRows(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	totals, err := s.ClearRows()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.RowResult{Totals: totals})
}

func (h *SessionHandler) RowEvent(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}

	var req rowEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := s.RowEvent(rowID, req.Type, req.Value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SessionHandler) RemoveRow(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	rowID, ok := parseRowID(w, r)
	if !ok {
		return
	}

	totals, err := s.RemoveRow(rowID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.RowResult{Totals: totals})
}

func (h *SessionHandler) SetDelivery(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req deliveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	totals, err := s.SetDelivery(req.Include)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.RowResult{Totals: totals})
}

func (h *SessionHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req session.Customer
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.UpdateCustomer(req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.View().Customer)
}

// Submit validates and sends the order. The response carries the order ID
// and the landing page to navigate to.
func (h *SessionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	meta := order.Meta{Lang: req.Lang, ClientAgent: r.UserAgent()}

	res, err := s.Submit(r.Context(), meta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Snapshot returns the cached cart in the body shape Create accepts, so a
// reloaded page can start a new session with the same rows.
func (h *SessionHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshotResponse{Items: s.SnapshotView()})
}

// Export downloads the cart as CSV.
func (h *SessionHandler) Export(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.ExportCSV(&buf); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// Payment returns the pay-by-link URL for the current amount. With
// ?redirect=1 a same-window provider answers with a redirect instead.
func (h *SessionHandler) Payment(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	link, err := s.PaymentLink(chi.URLParam(r, "provider"))
	if err != nil {
		writeError(w, err)
		return
	}

	if r.URL.Query().Get("redirect") == "1" && link.Target == payment.TargetSelf {
		http.Redirect(w, r, link.URL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, paymentResponse{
		Provider: link.Provider,
		URL:      link.URL,
		Target:   link.Target,
		Amount:   link.Amount,
	})
}

// --- Helpers ---

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sid, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session ID"})
		return nil, false
	}
	s, ok := h.store.Get(sid)
	if !ok {
		writeError(w, session.ErrNotFound)
		return nil, false
	}
	return s, true
}

func parseRowID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "rid")))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid row ID"})
		return uuid.Nil, false
	}
	return id, true
}
