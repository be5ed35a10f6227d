// Package storefront ties the per-visitor session pieces together.  A
// Session bundles the document manager with the cart, the active order
// tracker and navigation state built on top of it; the Registry opens one
// bundle per visitor id, keeps it while the visitor is active and shuts it
// down once it has been idle for too long.
package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/cart"
	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/navigation"
	"github.com/iliyamo/restaurant-storefront/internal/orders"
	"github.com/iliyamo/restaurant-storefront/internal/scheduler"
	"github.com/iliyamo/restaurant-storefront/internal/session"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

// ErrInvalidID is returned by Open and Reset for an empty visitor id.
var ErrInvalidID = errors.New("invalid session id")

// Session is everything the storefront keeps for one visitor.
type Session struct {
	ID         string
	Manager    *session.Manager
	Cart       *cart.Store
	Orders     *orders.Tracker
	Navigation *navigation.State

	mu       sync.Mutex
	lastSeen time.Time
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

// shutdown stops background work, writes deferred scroll offsets and
// detaches the manager so requests still holding this bundle cannot write
// over a session reopened later.
func (s *Session) shutdown(ctx context.Context) {
	s.Orders.Stop()
	s.Navigation.Flush(ctx)
	s.Manager.Detach()
}

type Config struct {
	Policy         session.Policy
	IdleTimeout    time.Duration
	Tracker        orders.Config
	ScrollThrottle time.Duration
	// Clock overrides time.Now for documents and idle accounting.
	Clock func() time.Time
}

type Registry struct {
	backend storage.Backend
	source  orders.Source
	cfg     Config
	log     *logger.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	base     context.Context
	janitor  *scheduler.Task
}

func NewRegistry(backend storage.Backend, source orders.Source, cfg Config, log *logger.Logger) *Registry {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	r := &Registry{
		backend:  backend,
		source:   source,
		cfg:      cfg,
		log:      logger.OrNop(log),
		now:      now,
		sessions: make(map[string]*Session),
		base:     context.Background(),
	}
	interval := cfg.IdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}
	r.janitor = scheduler.New("session-janitor", interval, func(ctx context.Context) { r.EvictIdle(ctx) })
	return r
}

// Start runs the idle eviction loop.  Tracker tasks of sessions opened
// afterwards are bound to ctx as well.
func (r *Registry) Start(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
	r.janitor.Start(ctx)
}

// Open returns the visitor's session, initializing it on first use.
func (r *Registry) Open(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	if s, ok := r.Lookup(id); ok {
		return s, nil
	}

	s := r.build(ctx, id)

	r.mu.Lock()
	if existing, ok := r.sessions[id]; ok {
		r.mu.Unlock()
		existing.touch(r.now())
		return existing, nil
	}
	r.sessions[id] = s
	base := r.base
	r.mu.Unlock()

	s.Orders.Start(base)
	r.log.Debug("session opened", "session_id", id)
	return s, nil
}

// Lookup returns an already open session and marks it active.
func (r *Registry) Lookup(id string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(r.now())
	}
	return s, ok
}

func (r *Registry) build(ctx context.Context, id string) *Session {
	mgr := session.NewManager(
		r.backend.Slot(SlotName(id)),
		session.WithPolicy(r.cfg.Policy),
		session.WithLogger(r.log.With("session_id", id)),
		session.WithLegacy(LegacySlots(r.backend, id)),
		session.WithClock(r.now),
	)
	mgr.Initialize(ctx)

	s := &Session{
		ID:         id,
		Manager:    mgr,
		Cart:       cart.New(mgr, r.log),
		Orders:     orders.NewTracker(mgr, r.source, r.cfg.Tracker, r.log),
		Navigation: navigation.New(mgr, r.cfg.ScrollThrottle, r.log),
		lastSeen:   r.now(),
	}
	s.Cart.Load(ctx)
	s.Orders.Load(ctx)
	return s
}

// Reset clears the visitor's stored document and opens a fresh session in
// place of the old one.
func (r *Registry) Reset(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	r.mu.Lock()
	old, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		old.Orders.Stop()
		old.Manager.Detach()
		if err := old.Manager.Clear(ctx); err != nil {
			return nil, err
		}
	} else {
		mgr := session.NewManager(r.backend.Slot(SlotName(id)), session.WithLogger(r.log))
		if err := mgr.Clear(ctx); err != nil {
			return nil, err
		}
	}
	r.log.Info("session reset", "session_id", id)
	return r.Open(ctx, id)
}

// EvictIdle closes sessions that have not been used for longer than the
// idle timeout and returns how many were closed.
func (r *Registry) EvictIdle(ctx context.Context) int {
	cutoff := r.now().Add(-r.cfg.IdleTimeout)
	var idle []*Session
	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range idle {
		s.shutdown(ctx)
	}
	if len(idle) > 0 {
		r.log.Debug("evicted idle sessions", "count", len(idle))
	}
	return len(idle)
}

// Close stops the eviction loop and shuts down every open session.
func (r *Registry) Close(ctx context.Context) {
	r.janitor.Stop()
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		all = append(all, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range all {
		s.shutdown(ctx)
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// SlotName is the storage slot holding a visitor's session document.
func SlotName(id string) string { return "session:" + id }

// LegacySlots names the flat slots older clients wrote for a visitor.
func LegacySlots(b storage.Backend, id string) session.Legacy {
	return session.Legacy{
		Cart:         b.Slot("legacy:cart_items:" + id),
		ActiveOrders: b.Slot("legacy:active_orders:" + id),
		User:         b.Slot("legacy:user:" + id),
	}
}
