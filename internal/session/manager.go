// Package session owns the versioned, TTL-governed session document that
// backs a visitor's cart, tracked orders, menu cache and navigation state.
//
// A Manager is the only writer to its storage slot.  Every mutation is a
// read-merge-write of the whole document under the Manager's mutex, so
// sibling fields are never dropped when one component is updated.  Storage
// and parse failures are logged and treated as "no session"; they never
// escape as panics and never block the caller.
//
// Two processes writing the same slot are not coordinated: the last write
// wins.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/model"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

// ErrNoDocument is returned by operations that need a stored document when
// none (or only an unreadable one) exists.
var ErrNoDocument = errors.New("no session document")

// ErrDetached is returned by writes through a Manager after Detach.
var ErrDetached = errors.New("session manager detached")

type Manager struct {
	slot   storage.Slot
	legacy Legacy
	policy Policy
	log    *logger.Logger
	now    func() time.Time

	mu       sync.Mutex
	detached bool
}

type Option func(*Manager)

func WithPolicy(p Policy) Option            { return func(m *Manager) { m.policy = p.withDefaults() } }
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }
func WithLogger(l *logger.Logger) Option    { return func(m *Manager) { m.log = logger.OrNop(l) } }
func WithLegacy(l Legacy) Option            { return func(m *Manager) { m.legacy = l } }

func NewManager(slot storage.Slot, opts ...Option) *Manager {
	m := &Manager{
		slot:   slot,
		policy: DefaultPolicy(),
		log:    logger.Nop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("slot", slot.Name())
	return m
}

func (m *Manager) Policy() Policy { return m.policy }

// Now returns the manager's clock reading.  Dependent stores use it so the
// whole session shares one notion of time.
func (m *Manager) Now() time.Time { return m.now() }

func (m *Manager) newDocument() *Document {
	now := m.now()
	d := &Document{
		SchemaVersion:  m.policy.SchemaVersion,
		SavedAtEpochMs: epochMs(now),
		TimeToLiveMs:   m.policy.DocumentTTL.Milliseconds(),
		Cart:           CartState{Items: []CartItem{}, LastModifiedEpochMs: epochMs(now)},
		ActiveOrders:   ActiveOrdersState{Orders: []ActiveOrder{}, LastUpdatedEpochMs: epochMs(now)},
		Navigation:     DefaultNavigation(m.policy.HomePath),
	}
	return d
}

// Initialize loads the stored document, discarding it when invalid, prunes
// expired components, folds in legacy data and writes the result back.  It
// always returns a usable document.
func (m *Manager) Initialize(ctx context.Context) *Document {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.load(ctx)
	switch {
	case doc == nil:
		doc = m.newDocument()
	case !m.IsValid(doc):
		m.log.Info("discarding session document", "reason", m.invalidReason(doc), "schema_version", doc.SchemaVersion)
		doc = m.newDocument()
	default:
		doc = m.PruneExpiredSubcomponents(doc)
	}
	m.migrateLegacy(ctx, doc)
	if !m.detached {
		_ = m.write(ctx, doc)
	}
	return doc
}

// Detach stops the manager from writing its slot.  A write already in
// progress completes first; every later Save, Update or setter returns
// ErrDetached.  Clear still works.  Used when a visitor's session is
// replaced while requests may still hold the old one.
func (m *Manager) Detach() {
	m.mu.Lock()
	m.detached = true
	m.mu.Unlock()
}

// Load parses the stored document.  It returns nil when nothing is stored
// or the stored value cannot be read or decoded.  Load does not validate.
func (m *Manager) Load(ctx context.Context) *Document {
	return m.load(ctx)
}

func (m *Manager) load(ctx context.Context) *Document {
	raw, ok, err := m.slot.Read(ctx)
	if err != nil {
		m.log.Warn("session read failed", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		m.log.Warn("session document unreadable", "error", err)
		return nil
	}
	doc.normalize()
	return &doc
}

func (m *Manager) write(ctx context.Context, doc *Document) error {
	doc.SavedAtEpochMs = epochMs(m.now())
	if doc.TimeToLiveMs <= 0 {
		doc.TimeToLiveMs = m.policy.DocumentTTL.Milliseconds()
	}
	doc.normalize()
	b, err := json.Marshal(doc)
	if err != nil {
		m.log.Warn("session encode failed", "error", err)
		return fmt.Errorf("encode session: %w", err)
	}
	if err := m.slot.Write(ctx, string(b)); err != nil {
		m.log.Warn("session write failed", "error", err, "bytes", len(b))
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// IsValid reports whether doc is within its own TTL and carries the
// current schema version.
func (m *Manager) IsValid(doc *Document) bool {
	return doc != nil && m.invalidReason(doc) == ""
}

func (m *Manager) invalidReason(doc *Document) string {
	if doc.SchemaVersion != m.policy.SchemaVersion {
		return "schema_version"
	}
	if epochMs(m.now())-doc.SavedAtEpochMs > doc.TimeToLiveMs {
		return "expired"
	}
	return ""
}

// PruneExpiredSubcomponents applies each component's expiry policy to an
// otherwise valid document and drops tracked orders whose delivery
// estimate has passed.  doc is modified in place and returned.
func (m *Manager) PruneExpiredSubcomponents(doc *Document) *Document {
	now := m.now()
	nowMs := epochMs(now)

	if mc := doc.MenuCache; mc != nil {
		stale := mc.SchemaVersion != m.policy.SchemaVersion ||
			nowMs-mc.FetchedAtEpochMs > m.policy.Menu.TTL.Milliseconds()
		if stale {
			if m.policy.Menu.OnExpire == ExpireTouch && mc.SchemaVersion == m.policy.SchemaVersion {
				mc.FetchedAtEpochMs = nowMs
			} else {
				doc.MenuCache = nil
			}
		}
	}

	if nowMs-doc.Cart.LastModifiedEpochMs > m.policy.Cart.TTL.Milliseconds() {
		if m.policy.Cart.OnExpire == ExpirePrune {
			doc.Cart.Items = []CartItem{}
		}
		doc.Cart.LastModifiedEpochMs = nowMs
	}

	if nowMs-doc.SavedAtEpochMs > m.policy.Navigation.TTL.Milliseconds() &&
		m.policy.Navigation.OnExpire == ExpirePrune {
		doc.Navigation = DefaultNavigation(m.policy.HomePath)
	}

	doc.ActiveOrders.Orders = filterLive(doc.ActiveOrders.Orders, now)
	return doc
}

func filterLive(orders []ActiveOrder, now time.Time) []ActiveOrder {
	out := make([]ActiveOrder, 0, len(orders))
	for _, o := range orders {
		if !o.Expired(now) {
			out = append(out, o)
		}
	}
	return out
}

// Patch lists the document fields Save should replace.  Nil fields are
// left untouched; ClearUser and ClearMenu reset the nullable fields.
type Patch struct {
	User         *UserProfile
	ClearUser    bool
	Cart         *CartState
	ActiveOrders *ActiveOrdersState
	MenuCache    *MenuCache
	ClearMenu    bool
	Navigation   *NavigationState
	Preferences  *Preferences
}

func (p Patch) apply(d *Document) {
	if p.ClearUser {
		d.User = nil
	}
	if p.User != nil {
		u := *p.User
		d.User = &u
	}
	if p.Cart != nil {
		d.Cart = *p.Cart
	}
	if p.ActiveOrders != nil {
		d.ActiveOrders = *p.ActiveOrders
	}
	if p.ClearMenu {
		d.MenuCache = nil
	}
	if p.MenuCache != nil {
		mc := *p.MenuCache
		d.MenuCache = &mc
	}
	if p.Navigation != nil {
		d.Navigation = *p.Navigation
	}
	if p.Preferences != nil {
		d.Preferences = *p.Preferences
	}
}

// Save merges patch into the current document, or into a fresh one when
// the stored document is missing or invalid, and writes it back.
func (m *Manager) Save(ctx context.Context, patch Patch) error {
	return m.Update(ctx, patch.apply)
}

// Update runs fn against the current document and writes the result.  The
// read, fn and write happen under the manager's lock.
func (m *Manager) Update(ctx context.Context, fn func(*Document)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.detached {
		return ErrDetached
	}
	doc := m.load(ctx)
	if doc == nil || !m.IsValid(doc) {
		doc = m.newDocument()
	}
	fn(doc)
	return m.write(ctx, doc)
}

// SetUser stores the authenticated user.  A nil user signs the session out.
func (m *Manager) SetUser(ctx context.Context, u *UserProfile) error {
	if u == nil {
		return m.Save(ctx, Patch{ClearUser: true})
	}
	return m.Save(ctx, Patch{User: u})
}

func (m *Manager) SetCart(ctx context.Context, items []CartItem) error {
	return m.Update(ctx, func(d *Document) {
		d.Cart = CartState{Items: cloneCartItems(items), LastModifiedEpochMs: epochMs(m.now())}
	})
}

func (m *Manager) SetActiveOrders(ctx context.Context, orders []ActiveOrder) error {
	return m.Update(ctx, func(d *Document) {
		cp := make([]ActiveOrder, len(orders))
		copy(cp, orders)
		d.ActiveOrders = ActiveOrdersState{Orders: cp, LastUpdatedEpochMs: epochMs(m.now())}
	})
}

func (m *Manager) SetMenuCache(ctx context.Context, categories []model.Category, itemsByCategory map[string][]model.MenuItem, deals []model.Deal) error {
	return m.Update(ctx, func(d *Document) {
		d.MenuCache = &MenuCache{
			Categories:          categories,
			MenuItemsByCategory: itemsByCategory,
			Deals:               deals,
			FetchedAtEpochMs:    epochMs(m.now()),
			SchemaVersion:       m.policy.SchemaVersion,
		}
	})
}

// SetCurrentPath records a route change.  The previous path is only
// replaced when the path actually changes.
func (m *Manager) SetCurrentPath(ctx context.Context, path string, query map[string]string) error {
	return m.Update(ctx, func(d *Document) {
		if d.Navigation.CurrentPath != path {
			d.Navigation.PreviousPath = d.Navigation.CurrentPath
		}
		d.Navigation.CurrentPath = path
		q := make(map[string]string, len(query))
		for k, v := range query {
			q[k] = v
		}
		d.Navigation.QueryParams = q
	})
}

func (m *Manager) SetScrollPosition(ctx context.Context, path string, offset int) error {
	return m.SetScrollPositions(ctx, map[string]int{path: offset})
}

// SetScrollPositions records several offsets in one write.
func (m *Manager) SetScrollPositions(ctx context.Context, offsets map[string]int) error {
	if len(offsets) == 0 {
		return nil
	}
	return m.Update(ctx, func(d *Document) {
		for p, off := range offsets {
			d.Navigation.ScrollPositionsByPath[p] = off
		}
	})
}

func (m *Manager) SetPreferences(ctx context.Context, patch PreferencesPatch) error {
	return m.Update(ctx, func(d *Document) { d.Preferences.apply(patch) })
}

// ShouldRefetchMenu reports whether the menu must be fetched again: there
// is no valid document, no cached menu, or the cached menu is too old.
func (m *Manager) ShouldRefetchMenu(ctx context.Context) bool {
	doc := m.load(ctx)
	if doc == nil || !m.IsValid(doc) || doc.MenuCache == nil {
		return true
	}
	if doc.MenuCache.SchemaVersion != m.policy.SchemaVersion {
		return true
	}
	return epochMs(m.now())-doc.MenuCache.FetchedAtEpochMs > m.policy.Menu.TTL.Milliseconds()
}

// Clear deletes the stored document.  Reloading the client is the
// caller's decision.
func (m *Manager) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.slot.Remove(ctx); err != nil {
		m.log.Warn("session clear failed", "error", err)
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ExportJSON returns the stored document as indented JSON.
func (m *Manager) ExportJSON(ctx context.Context) (string, error) {
	doc := m.load(ctx)
	if doc == nil {
		return "", ErrNoDocument
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cloneCartItems(items []CartItem) []CartItem {
	out := make([]CartItem, len(items))
	copy(out, items)
	return out
}
