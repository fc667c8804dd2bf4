// Package session hosts one order form per page load. All UI events of a
// session are applied one at a time under the session lock; only the network
// part of a submission runs outside it.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/enum"
	"github.com/kiloshop/orderform/internal/export"
	"github.com/kiloshop/orderform/internal/money"
	"github.com/kiloshop/orderform/internal/order"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/kiloshop/orderform/internal/submit"
	"github.com/kiloshop/orderform/internal/ws"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("session not found")
	ErrRowNotFound   = errors.New("row not found")
	ErrUnknownEvent  = errors.New("unknown row event")
	ErrSessionClosed = errors.New("session closed")
)

// Broadcaster pushes events to the pages watching a session.
type Broadcaster interface {
	BroadcastToSession(sessionID uuid.UUID, event ws.Event)
	CloseSession(sessionID uuid.UUID)
}

type Session struct {
	ID uuid.UUID

	mu       sync.Mutex
	cart     *cart.Cart
	form     order.Form
	pipeline *submit.Pipeline
	payments *payment.Builder
	snapshot []cart.Initial
	closed   bool

	hub    Broadcaster
	logger *zap.Logger

	createdAt time.Time
	lastSeen  time.Time
}

func newSession(id uuid.UUID, idx *catalog.Index, opts Options, pipeline *submit.Pipeline, hub Broadcaster, logger *zap.Logger, now time.Time) *Session {
	s := &Session{
		ID:        id,
		cart:      cart.New(idx, opts.Delivery),
		form:      order.Form{HasEmail: opts.HasEmail},
		pipeline:  pipeline,
		payments:  payment.NewBuilder(opts.Payments),
		hub:       hub,
		logger:    logger.With(zap.Stringer("session_id", id)),
		createdAt: now,
		lastSeen:  now,
	}
	s.cart.Subscribe(s.onTotals)
	pipeline.SetEffects(s)
	pipeline.OnStateChange(s.onSubmitState)
	return s
}

// onTotals runs under s.mu from inside a cart recompute.
func (s *Session) onTotals(t cart.Totals) {
	s.snapshot = s.cart.Snapshot()
	s.broadcast(enum.EventTotalsUpdated, totalsView(t))
}

func (s *Session) onSubmitState(state submit.State, ctl submit.Control) {
	s.broadcast(enum.EventSubmitState, SubmitView{State: state.String(), Control: ctl})
}

func (s *Session) broadcast(eventType string, payload any) {
	if s.hub == nil {
		return
	}
	ev, err := ws.NewEvent(eventType, payload)
	if err != nil {
		s.logger.Error("encode ws event", zap.String("type", eventType), zap.Error(err))
		return
	}
	s.hub.BroadcastToSession(s.ID, ev)
}

// ClearSnapshot drops the cached cart after a successful order.
func (s *Session) ClearSnapshot() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = nil
}

// Snapshot returns the cached cart: the seeds a new page load would rebuild
// the rows from. It is empty after a successful order until the cart is
// edited again.
func (s *Session) Snapshot() []cart.Initial {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]cart.Initial(nil), s.snapshot...)
}

// SnapshotView is Snapshot in its wire form.
func (s *Session) SnapshotView() []SeedView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return seedViews(s.snapshot)
}

// lock acquires the session and fails if it has been deleted.
func (s *Session) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	return nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() View {
	lines := s.cart.Lines()
	rows := make([]LineView, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, lineView(l))
	}
	d := s.cart.Delivery()
	v := View{
		ID:     s.ID,
		Rows:   rows,
		Totals: totalsView(s.cart.Totals()),
		Delivery: DeliveryView{
			Available: d.Available,
			Fee:       money.FormatMoney(d.Fee),
		},
		Customer: Customer{
			Name:      s.form.Name,
			Phone:     s.form.Phone,
			Address:   s.form.Address,
			Email:     s.form.Email,
			Notes:     s.form.Notes,
			Allergies: s.form.Allergies,
			Honeypot:  s.form.Honeypot,
		},
		HasEmail:  s.form.HasEmail,
		Control:   s.pipeline.Control(),
		Providers: s.payments.Providers(),
		Snapshot:  seedViews(s.snapshot),
	}
	if o, ok := s.pipeline.LastOutcome(); ok {
		ov := &OutcomeView{State: o.State.String(), OrderID: o.Result.OrderID}
		if e, ok := apperr.As(o.Err); ok {
			ov.Code = e.Code
			ov.Message = e.Message
		}
		v.LastOutcome = ov
	}
	return v
}

// Event returns the current totals as a WebSocket event; it is the first
// message a new connection receives.
func (s *Session) Event() (ws.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ws.NewEvent(enum.EventTotalsUpdated, totalsView(s.cart.Totals()))
}

func (s *Session) AddRow(initial *cart.Initial) (RowResult, error) {
	if err := s.lock(); err != nil {
		return RowResult{}, err
	}
	defer s.mu.Unlock()

	r := s.cart.AddRow(initial)
	lv := lineView(r.Line())
	return RowResult{Row: &lv, Totals: totalsView(s.cart.Totals())}, nil
}

// ClearRows empties the cart.
func (s *Session) ClearRows() (TotalsView, error) {
	if err := s.lock(); err != nil {
		return TotalsView{}, err
	}
	defer s.mu.Unlock()
	return totalsView(s.cart.Clear()), nil
}

// RowEvent applies one UI event to a row. value is the new product key for
// product events and the field text for quantity and notes events.
func (s *Session) RowEvent(rowID uuid.UUID, eventType, value string) (RowResult, error) {
	if err := s.lock(); err != nil {
		return RowResult{}, err
	}
	defer s.mu.Unlock()

	r, ok := s.cart.Row(rowID)
	if !ok {
		return RowResult{}, ErrRowNotFound
	}

	var suppressed bool
	switch eventType {
	case enum.RowEventProduct:
		r.ChangeProduct(value)
	case enum.RowEventQuantity:
		r.EditQuantity(value)
	case enum.RowEventBlur:
		r.BlurQuantity()
	case enum.RowEventIncrement:
		r.Increment()
	case enum.RowEventDecrement:
		r.Decrement()
	case enum.RowEventNotes:
		r.EditNotes(value)
	case enum.RowEventFocus:
		r.Focus()
	case enum.RowEventWheel:
		suppressed = r.Wheel()
	default:
		return RowResult{}, fmt.Errorf("%w: %q", ErrUnknownEvent, eventType)
	}

	lv := lineView(r.Line())
	return RowResult{Row: &lv, Totals: totalsView(s.cart.Totals()), Suppressed: suppressed}, nil
}

func (s *Session) RemoveRow(rowID uuid.UUID) (TotalsView, error) {
	if err := s.lock(); err != nil {
		return TotalsView{}, err
	}
	defer s.mu.Unlock()

	r, ok := s.cart.Row(rowID)
	if !ok {
		return TotalsView{}, ErrRowNotFound
	}
	r.Remove()
	return totalsView(s.cart.Totals()), nil
}

// SetDelivery flips the delivery toggle.
func (s *Session) SetDelivery(include bool) (TotalsView, error) {
	if err := s.lock(); err != nil {
		return TotalsView{}, err
	}
	defer s.mu.Unlock()
	return totalsView(s.cart.SetIncludeDelivery(include)), nil
}

// UpdateCustomer replaces the customer section.
func (s *Session) UpdateCustomer(c Customer) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.form.Name = c.Name
	s.form.Phone = c.Phone
	s.form.Address = c.Address
	s.form.Email = c.Email
	s.form.Notes = cart.NormalizeNewlines(c.Notes)
	s.form.Allergies = cart.NormalizeNewlines(c.Allergies)
	s.form.Honeypot = c.Honeypot
	return nil
}

// SwapCatalog reprices the session against idx.
func (s *Session) SwapCatalog(idx *catalog.Index) {
	if err := s.lock(); err != nil {
		return
	}
	defer s.mu.Unlock()
	s.cart.SwapCatalog(idx)
}

// Submit validates the cart and form, then posts the order. Validation runs
// under the session lock against a consistent snapshot; the POST does not
// hold it.
func (s *Session) Submit(ctx context.Context, meta order.Meta) (submit.Result, error) {
	if err := s.lock(); err != nil {
		return submit.Result{}, err
	}
	if err := s.pipeline.CheckEndpoint(); err != nil {
		s.mu.Unlock()
		return submit.Result{}, err
	}
	payload, err := order.Validate(s.cart.Lines(), s.form, meta)
	s.mu.Unlock()
	if err != nil {
		return submit.Result{}, err
	}

	res, err := s.pipeline.Submit(ctx, payload)
	if err != nil {
		return submit.Result{}, err
	}
	s.broadcast(enum.EventOrderPlaced, res)
	return res, nil
}

// ExportCSV writes the cart as CSV.
func (s *Session) ExportCSV(w io.Writer) error {
	if err := s.lock(); err != nil {
		return err
	}
	lines := s.cart.Lines()
	allergies := s.form.Allergies
	s.mu.Unlock()

	return export.WriteCSV(w, lines, allergies)
}

// PaymentLink builds the pay-by-link URL for the current payable amount.
func (s *Session) PaymentLink(provider string) (payment.Link, error) {
	if err := s.lock(); err != nil {
		return payment.Link{}, err
	}
	payable := s.cart.Totals().Payable
	s.mu.Unlock()

	return s.payments.Build(payment.Provider(strings.ToLower(provider)), payable)
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if s.hub != nil {
		s.broadcast(enum.EventSessionClosed, map[string]string{"id": s.ID.String()})
		s.hub.CloseSession(s.ID)
	}
}
