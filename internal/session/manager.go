package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiloshop/orderform/internal/cart"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/payment"
	"github.com/kiloshop/orderform/internal/submit"
	"go.uber.org/zap"
)

const DefaultTTL = 2 * time.Hour

// Options are the site-wide settings every new session starts from.
type Options struct {
	Catalog  *catalog.Index
	Delivery cart.Delivery
	Payments payment.Config
	Submit   submit.Config
	HasEmail bool
	TTL      time.Duration
}

// Manager owns the live sessions. Sessions are kept in memory only and are
// evicted after TTL without activity.
type Manager struct {
	opts     Options
	client   submit.Doer
	recorder submit.Recorder
	hub      Broadcaster
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.RWMutex
	catalog  *catalog.Index
	sessions map[uuid.UUID]*Session
}

func NewManager(opts Options, client submit.Doer, recorder submit.Recorder, hub Broadcaster, logger *zap.Logger) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Empty()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		opts:     opts,
		client:   client,
		recorder: recorder,
		hub:      hub,
		logger:   logger,
		now:      time.Now,
		catalog:  opts.Catalog,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// TTL is the idle lifetime of a session.
func (m *Manager) TTL() time.Duration { return m.opts.TTL }

// Catalog returns the index new sessions are priced from.
func (m *Manager) Catalog() *catalog.Index {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.catalog
}

// Create starts a session. With no seeds the cart starts with one default
// row, as a fresh page does.
func (m *Manager) Create(initial []cart.Initial) *Session {
	id := uuid.New()
	cfg := m.opts.Submit
	cfg.SessionID = id
	pipeline := submit.New(cfg, m.client, m.recorder, m.logger)

	idx := m.Catalog()
	s := newSession(id, idx, m.opts, pipeline, m.hub, m.logger, m.now())

	s.mu.Lock()
	if len(initial) == 0 {
		s.cart.AddRow(nil)
	}
	for i := range initial {
		s.cart.AddRow(&initial[i])
	}
	s.mu.Unlock()

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Debug("session created", zap.Stringer("session_id", id), zap.Int("rows", max(len(initial), 1)))
	return s
}

// Get returns a live session and marks it active.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	s.touch(m.now())
	return s, true
}

// Delete ends a session and disconnects its pages.
func (m *Manager) Delete(id uuid.UUID) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than TTL and returns how many were
// removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.TTL {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.close()
	}
	if len(expired) > 0 {
		m.logger.Info("sessions expired", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			m.Sweep(t)
		}
	}
}

// SwapCatalog reprices every live session and every future one against idx.
func (m *Manager) SwapCatalog(idx *catalog.Index) {
	if idx == nil {
		idx = catalog.Empty()
	}
	m.mu.Lock()
	m.catalog = idx
	live := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		live = append(live, s)
	}
	m.mu.Unlock()

	for _, s := range live {
		s.SwapCatalog(idx)
	}
}
