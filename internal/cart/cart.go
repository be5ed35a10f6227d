// Package cart holds a visitor's cart lines in memory and writes every
// change through the session manager.
package cart

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/session"
)

// Line is a cart item together with its fingerprint.
type Line struct {
	Fingerprint string `json:"fingerprint"`
	session.CartItem
}

// MaxQuantity caps the units on a single line.
const MaxQuantity = 99

type Totals struct {
	ItemCount int     `json:"totalItems"`
	Price     float64 `json:"totalPrice"`
}

type Store struct {
	mu     sync.Mutex
	sess   *session.Manager
	log    *logger.Logger
	items  []session.CartItem
	loaded bool
}

func New(sess *session.Manager, log *logger.Logger) *Store {
	return &Store{sess: sess, log: logger.OrNop(log)}
}

// Fingerprint identifies a cart line by product id and options.  Options
// are serialized with sorted keys, so key order never produces a different
// fingerprint, and hashed to keep the value URL safe.
func Fingerprint(id string, options map[string]any) string {
	if len(options) == 0 {
		return id
	}
	canon, err := json.Marshal(options)
	if err != nil {
		canon = []byte(fmt.Sprint(options))
	}
	sum := sha256.Sum256(canon)
	return id + "~" + hex.EncodeToString(sum[:8])
}

// Load replaces the in-memory lines with the cart stored in the session.
// Writes are ignored until Load has run, so an empty store can never
// overwrite a stored cart.  Stored lines sharing a fingerprint, as older
// clients wrote them, are merged into one and the merged cart is saved.
func (s *Store) Load(ctx context.Context) {
	var items []session.CartItem
	if doc := s.sess.Load(ctx); doc != nil && s.sess.IsValid(doc) {
		items = doc.Cart.Items
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]session.CartItem, 0, len(items))
	changed := false
	for _, it := range items {
		if it.Quantity <= 0 {
			continue
		}
		if q := clampQuantity(it.Quantity); q != it.Quantity {
			it.Quantity = q
			changed = true
		}
		if i := s.indexOf(Fingerprint(it.ID, it.Options)); i >= 0 {
			s.items[i].Quantity = clampQuantity(s.items[i].Quantity + it.Quantity)
			changed = true
			continue
		}
		s.items = append(s.items, it)
	}
	s.loaded = true
	if changed {
		s.persist(ctx)
	}
}

// AddItem adds one unit of item.  An existing line with the same
// fingerprint has its quantity incremented; otherwise a new line with
// quantity 1 is appended.  item.Quantity is ignored.
func (s *Store) AddItem(ctx context.Context, item session.CartItem) string {
	return s.AddQuantity(ctx, item, 1)
}

// AddQuantity adds n units of item, n at least 1.  The line never holds
// more than MaxQuantity units.
func (s *Store) AddQuantity(ctx context.Context, item session.CartItem, n int) string {
	if n < 1 {
		n = 1
	}
	fp := Fingerprint(item.ID, item.Options)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(fp); i >= 0 {
		s.items[i].Quantity = clampQuantity(s.items[i].Quantity + n)
	} else {
		item.Quantity = clampQuantity(n)
		item.Options = copyOptions(item.Options)
		s.items = append(s.items, item)
	}
	s.persist(ctx)
	return fp
}

// RemoveItem drops the line with the given fingerprint and reports whether
// it existed.
func (s *Store) RemoveItem(ctx context.Context, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remove(ctx, fingerprint)
}

// UpdateQuantity sets a line's quantity, capped at MaxQuantity.  Zero or
// less removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, fingerprint string, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if quantity <= 0 {
		return s.remove(ctx, fingerprint)
	}
	i := s.indexOf(fingerprint)
	if i < 0 {
		return false
	}
	s.items[i].Quantity = clampQuantity(quantity)
	s.persist(ctx)
	return true
}

func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = []session.CartItem{}
	s.persist(ctx)
}

// Lines returns a copy of the cart in insertion order.
func (s *Store) Lines() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, Line{Fingerprint: Fingerprint(it.ID, it.Options), CartItem: it})
	}
	return out
}

func (s *Store) Totals() Totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t Totals
	for _, it := range s.items {
		t.ItemCount += it.Quantity
		t.Price += it.UnitPrice * float64(it.Quantity)
	}
	return t
}

func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
}

func (s *Store) remove(ctx context.Context, fingerprint string) bool {
	i := s.indexOf(fingerprint)
	if i < 0 {
		return false
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persist(ctx)
	return true
}

func (s *Store) indexOf(fingerprint string) int {
	for i, it := range s.items {
		if Fingerprint(it.ID, it.Options) == fingerprint {
			return i
		}
	}
	return -1
}

// persist must be called with s.mu held.
func (s *Store) persist(ctx context.Context) {
	if !s.loaded {
		s.log.Debug("cart write skipped before load")
		return
	}
	// Failures are logged by the session manager; the in-memory cart stays
	// authoritative until the next successful write.
	_ = s.sess.SetCart(ctx, s.items)
}

func clampQuantity(q int) int {
	if q > MaxQuantity {
		return MaxQuantity
	}
	return q
}

func copyOptions(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
