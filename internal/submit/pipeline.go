// Package submit sends a validated order payload to the remote order endpoint
// and interprets the reply.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/apperr"
	"github.com/kiloshop/orderform/internal/attempt"
	"github.com/kiloshop/orderform/internal/order"
	"go.uber.org/zap"
)

// Defaults applied by New for zero Config fields, and the request body type.
const (
	// DefaultTimeout bounds one POST including reading the reply.
	DefaultTimeout = 15 * time.Second
	// DefaultIdleLabel is the submit button text while idle.
	DefaultIdleLabel = "Place order"
	// DefaultSendingLabel is the submit button text while a POST is in flight.
	DefaultSendingLabel = "Sending..."
	// ContentType is the body type of every POST.
	ContentType = "text/plain;charset=UTF-8"

	snippetLen   = 200
	maxReplySize = 1 << 20
)

// ErrInFlight is returned by Submit while another submission is sending.
var ErrInFlight = errors.New("submission already in progress")

// State of the pipeline.
type State int

// Pipeline states.
const (
	StateIdle State = iota
	StateSending
	StateSuccess
	StateFailed
)

// String returns the upper-case state name used in events and views.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSending:
		return "SENDING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Control is the rendering of the submit button.
type Control struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// Config configures a Pipeline. An empty Endpoint makes every Submit fail
// with a Configuration error.
type Config struct {
	Endpoint     string
	Timeout      time.Duration
	IdleLabel    string
	SendingLabel string
	// LandingURL is where the shopper is sent after a successful order.
	LandingURL string
	SessionID  uuid.UUID
}

// Doer is satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Recorder receives one attempt per POST.
type Recorder interface {
	Record(ctx context.Context, a attempt.Attempt) error
}

// Effects run after a successful submission.
type Effects interface {
	ClearSnapshot()
}

// Result of a successful submission.
type Result struct {
	OrderID  string `json:"order_id"`
	Redirect string `json:"redirect,omitempty"`
}

// Outcome is the last finished attempt.
type Outcome struct {
	State  State
	Result Result
	Err    error
	At     time.Time
}

// Pipeline drives one session's submissions through Idle, Sending and
// Success or Failed, then back to Idle. It is safe for concurrent use.
type Pipeline struct {
	cfg      Config
	client   Doer
	recorder Recorder
	logger   *zap.Logger

	mu        sync.Mutex
	state     State
	last      *Outcome
	effects   Effects
	observers []func(State, Control)
}

// New builds a pipeline. A nil client uses a client bounded by the pipeline
// timeout; recorder and logger may be nil.
func New(cfg Config, client Doer, recorder Recorder, logger *zap.Logger) *Pipeline {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.IdleLabel == "" {
		cfg.IdleLabel = DefaultIdleLabel
	}
	if cfg.SendingLabel == "" {
		cfg.SendingLabel = DefaultSendingLabel
	}
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout + time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, client: client, recorder: recorder, logger: logger}
}

// SetEffects installs the hook run after a successful submission.
func (p *Pipeline) SetEffects(e Effects) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effects = e
}

// OnStateChange registers fn to be called on every state transition. fn runs
// on the submitting goroutine and must not call back into the pipeline.
func (p *Pipeline) OnStateChange(fn func(State, Control)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Endpoint reports the configured endpoint.
func (p *Pipeline) Endpoint() string { return p.cfg.Endpoint }

// CheckEndpoint returns a Configuration error when no endpoint is set.
func (p *Pipeline) CheckEndpoint() error {
	if p.cfg.Endpoint == "" {
		return apperr.Configuration(apperr.CodeMissingEndpoint, "Order endpoint is not configured.")
	}
	return nil
}

// State reports the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Control reports how the submit button should render right now.
func (p *Pipeline) Control() Control {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.controlLocked()
}

// LastOutcome returns the most recent finished attempt, if any.
func (p *Pipeline) LastOutcome() (Outcome, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Outcome{}, false
	}
	return *p.last, true
}

func (p *Pipeline) controlLocked() Control {
	if p.state == StateSending {
		return Control{Label: p.cfg.SendingLabel, Disabled: true}
	}
	return Control{Label: p.cfg.IdleLabel}
}

func (p *Pipeline) transition(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.notify()
}

func (p *Pipeline) notify() {
	p.mu.Lock()
	s, ctl := p.state, p.controlLocked()
	observers := append(([]func(State, Control))(nil), p.observers...)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(s, ctl)
	}
}

// Submit POSTs payload once. It returns ErrInFlight while another
// submission is running. Every failure is an *apperr.Error; the pipeline is
// back in StateIdle when Submit returns.
func (p *Pipeline) Submit(ctx context.Context, payload order.Payload) (Result, error) {
	if err := p.CheckEndpoint(); err != nil {
		return Result{}, err
	}

	p.mu.Lock()
	if p.state == StateSending {
		p.mu.Unlock()
		return Result{}, ErrInFlight
	}
	p.state = StateSending
	p.mu.Unlock()
	p.notify()

	started := time.Now()
	res, status, err := p.post(ctx, payload)
	finished := time.Now()

	outcome := Outcome{State: StateSuccess, Result: res, Err: err, At: finished}
	if err != nil {
		outcome.State = StateFailed
	}
	p.record(ctx, payload, outcome, status, started)

	p.mu.Lock()
	p.last = &outcome
	effects := p.effects
	p.mu.Unlock()

	if err == nil && effects != nil {
		effects.ClearSnapshot()
	}

	p.transition(outcome.State)
	p.transition(StateIdle)
	return res, err
}

func (p *Pipeline) post(ctx context.Context, payload order.Payload) (Result, int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, 0, fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, 0, apperr.Network(apperr.CodeTransport, "Network / submit error: invalid endpoint", err)
	}
	req.Header.Set("Content-Type", ContentType)

	resp, err := p.client.Do(req)
	if err != nil {
		return Result{}, 0, p.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		return Result{}, resp.StatusCode, p.transportError(ctx, err)
	}

	res, err := p.interpret(resp.StatusCode, raw)
	return res, resp.StatusCode, err
}

func (p *Pipeline) transportError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.Networkf(apperr.CodeTimeout, "Network / submit error: request timed out after %s", p.cfg.Timeout)
	}
	return apperr.Network(apperr.CodeTransport, "Network / submit error: could not reach the order endpoint", err)
}

func (p *Pipeline) interpret(status int, raw []byte) (Result, error) {
	if status < 200 || status > 299 {
		msg := fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
		if len(raw) > 0 {
			msg += " - " + snippet(raw)
		}
		e := apperr.Network(apperr.CodeHTTPStatus, "Network / submit error: "+msg, nil)
		e.Status = status
		e.Detail = msg
		return Result{}, e
	}

	var reply any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if !json.Valid(raw) || dec.Decode(&reply) != nil {
		return Result{}, malformed(status, "invalid JSON: "+snippet(raw))
	}
	obj, isObject := reply.(map[string]any)
	if !isObject {
		return Result{}, malformed(status, "expected a JSON object: "+snippet(raw))
	}

	if ok, _ := obj["ok"].(bool); ok {
		return Result{OrderID: idString(obj["id"]), Redirect: p.cfg.LandingURL}, nil
	}

	reason := "Unknown error"
	if v, present := obj["error"]; present && v != nil {
		reason = valueString(v)
	}
	e := apperr.Network(apperr.CodeRejected, "Network / submit error: "+reason, nil)
	e.Status = status
	e.Detail = reason
	return Result{}, e
}

func malformed(status int, msg string) *apperr.Error {
	e := apperr.Network(apperr.CodeMalformedResponse, "Network / submit error: "+msg, nil)
	e.Status = status
	e.Detail = msg
	return e
}

func (p *Pipeline) record(ctx context.Context, payload order.Payload, o Outcome, status int, started time.Time) {
	a := attempt.Attempt{
		ID:         uuid.New(),
		SessionID:  p.cfg.SessionID,
		StartedAt:  started,
		FinishedAt: o.At,
		Outcome:    attempt.OutcomeSuccess,
		OrderID:    o.Result.OrderID,
		HTTPStatus: status,
		ItemCount:  len(payload.Items),
		TotalQty:   payload.TotalQuantity(),
		Payable:    payload.Amount(),
	}
	fields := []zap.Field{
		zap.Stringer("session_id", p.cfg.SessionID),
		zap.Int("items", a.ItemCount),
		zap.String("total_qty", a.TotalQty.String()),
		zap.Duration("elapsed", a.Duration()),
	}

	if o.Err != nil {
		a.Outcome = attempt.OutcomeFailed
		if e, ok := apperr.As(o.Err); ok {
			a.ErrorCode = e.Code
			a.Detail = e.Detail
		}
		if a.Detail == "" {
			a.Detail = o.Err.Error()
		}
		p.logger.Warn("order submit failed", append(fields, zap.String("code", a.ErrorCode), zap.Error(o.Err))...)
	} else {
		p.logger.Info("order submitted", append(fields, zap.String("order_id", a.OrderID))...)
	}

	if p.recorder == nil {
		return
	}
	// The request context may already be past its deadline.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.recorder.Record(rctx, a); err != nil {
		p.logger.Error("record attempt", zap.Error(err))
	}
}

func snippet(raw []byte) string {
	s := string(raw)
	if utf8.RuneCountInString(s) <= snippetLen {
		return s
	}
	return string([]rune(s)[:snippetLen])
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case json.Number:
		return id.String()
	default:
		return valueString(v)
	}
}

func valueString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
