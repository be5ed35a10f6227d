// Package orders tracks a visitor's in-flight orders.  The tracked set is
// persisted through the session manager on every change, swept for orders
// whose delivery estimate has passed, and periodically replaced by the
// remote view of the customer's active orders.
package orders

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/logger"
	"github.com/iliyamo/restaurant-storefront/internal/model"
	"github.com/iliyamo/restaurant-storefront/internal/scheduler"
	"github.com/iliyamo/restaurant-storefront/internal/session"
)

// ErrNoCustomer is returned by RefreshFromRemote when the session has no
// signed-in user to look orders up for.
var ErrNoCustomer = errors.New("no signed-in customer")

// Source is the part of the remote orders API the tracker needs.
type Source interface {
	// GetActiveOrdersByCustomer returns orders placed with either the email
	// or the phone.  An empty key matches nothing.
	GetActiveOrdersByCustomer(ctx context.Context, email, phone string) ([]model.Order, error)
}

type Config struct {
	SweepInterval time.Duration
	PollInterval  time.Duration
}

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 30 * time.Second
	}
	return c
}

type Tracker struct {
	mu     sync.Mutex
	sess   *session.Manager
	source Source
	log    *logger.Logger
	orders []session.ActiveOrder
	loaded bool
	// epoch changes whenever the tracker stops, so a fetch that started
	// before Stop is not applied after it.
	epoch uint64

	sweep *scheduler.Task
	poll  *scheduler.Task
}

func NewTracker(sess *session.Manager, source Source, cfg Config, log *logger.Logger) *Tracker {
	cfg = cfg.withDefaults()
	t := &Tracker{sess: sess, source: source, log: logger.OrNop(log)}
	t.sweep = scheduler.New("order-sweep", cfg.SweepInterval, func(ctx context.Context) { t.Sweep(ctx) })
	t.poll = scheduler.New("order-poll", cfg.PollInterval, t.pollOnce)
	return t
}

// Load reads the tracked orders from the session, dropping expired ones.
func (t *Tracker) Load(ctx context.Context) {
	var orders []session.ActiveOrder
	if doc := t.sess.Load(ctx); doc != nil && t.sess.IsValid(doc) {
		orders = doc.ActiveOrders.Orders
	}
	now := t.sess.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.orders = make([]session.ActiveOrder, 0, len(orders))
	for _, o := range orders {
		if !o.Expired(now) {
			t.orders = append(t.orders, o)
		}
	}
	t.loaded = true
}

// Orders returns a copy of the tracked orders.
func (t *Tracker) Orders() []session.ActiveOrder {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]session.ActiveOrder, len(t.orders))
	copy(out, t.orders)
	return out
}

func (t *Tracker) Get(id string) (session.ActiveOrder, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(id); i >= 0 {
		return t.orders[i], true
	}
	return session.ActiveOrder{}, false
}

// Add starts tracking o.  An order already tracked under the same id is
// replaced in place.
func (t *Tracker) Add(ctx context.Context, o session.ActiveOrder) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i := t.indexOf(o.ID); i >= 0 {
		t.orders[i] = o
	} else {
		t.orders = append(t.orders, o)
	}
	t.persist(ctx)
}

// UpdateStatus overwrites an order's status, and its delivery estimate when
// eta is non-nil.  Transitions are not validated.
func (t *Tracker) UpdateStatus(ctx context.Context, id string, status session.OrderStatus, eta *time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.orders[i].Status = status
	if eta != nil {
		t.orders[i].EstimatedDeliveryAt = *eta
	}
	t.persist(ctx)
	return true
}

func (t *Tracker) Remove(ctx context.Context, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexOf(id)
	if i < 0 {
		return false
	}
	t.orders = append(t.orders[:i], t.orders[i+1:]...)
	t.persist(ctx)
	return true
}

// TimeRemaining returns how long until the order's delivery estimate,
// never less than zero.
func (t *Tracker) TimeRemaining(id string) (time.Duration, bool) {
	o, ok := t.Get(id)
	if !ok {
		return 0, false
	}
	return Remaining(o, t.sess.Now()), true
}

// Remaining is max(0, estimated delivery - now).
func Remaining(o session.ActiveOrder, now time.Time) time.Duration {
	if d := o.EstimatedDeliveryAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Sweep drops orders whose delivery estimate has passed and returns how
// many were removed.
func (t *Tracker) Sweep(ctx context.Context) int {
	now := t.sess.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.orders[:0:0]
	for _, o := range t.orders {
		if !o.Expired(now) {
			kept = append(kept, o)
		}
	}
	removed := len(t.orders) - len(kept)
	if removed > 0 {
		t.orders = kept
		t.persist(ctx)
		t.log.Debug("swept expired orders", "removed", removed)
	}
	return removed
}

// RefreshFromRemote replaces the tracked set with the customer's active
// remote orders.  Local status edits are lost.  On error the tracked set
// is left unchanged.
func (t *Tracker) RefreshFromRemote(ctx context.Context) error {
	email, phone := t.customer(ctx)
	if email == "" && phone == "" {
		return ErrNoCustomer
	}
	t.mu.Lock()
	epoch := t.epoch
	t.mu.Unlock()

	remote, err := t.source.GetActiveOrdersByCustomer(ctx, email, phone)
	if err != nil {
		return err
	}

	now := t.sess.Now()
	next := make([]session.ActiveOrder, 0, len(remote))
	for _, r := range remote {
		if model.IsTerminalOrderStatus(r.Status) {
			continue
		}
		o := FromRemoteOrder(r)
		if !o.Expired(now) {
			next = append(next, o)
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.epoch != epoch {
		t.log.Debug("discarding refresh that finished after stop")
		return nil
	}
	t.orders = next
	t.persist(ctx)
	return nil
}

// Start launches the sweep and poll tasks.
func (t *Tracker) Start(ctx context.Context) {
	t.sweep.Start(ctx)
	t.poll.Start(ctx)
}

// Stop halts both tasks and waits for them to exit.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.epoch++
	t.mu.Unlock()
	t.sweep.Stop()
	t.poll.Stop()
}

func (t *Tracker) pollOnce(ctx context.Context) {
	t.mu.Lock()
	n := len(t.orders)
	t.mu.Unlock()
	if n == 0 {
		return
	}
	if err := t.RefreshFromRemote(ctx); err != nil && !errors.Is(err, ErrNoCustomer) && ctx.Err() == nil {
		t.log.Warn("active order refresh failed", "error", err)
	}
}

// customer returns the signed-in user's email and phone.  Orders placed
// with either belong to the user.
func (t *Tracker) customer(ctx context.Context) (email, phone string) {
	doc := t.sess.Load(ctx)
	if doc == nil || doc.User == nil {
		return "", ""
	}
	return doc.User.Email, doc.User.Phone
}

func (t *Tracker) indexOf(id string) int {
	for i, o := range t.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// persist must be called with t.mu held.
func (t *Tracker) persist(ctx context.Context) {
	if !t.loaded {
		return
	}
	_ = t.sess.SetActiveOrders(ctx, t.orders)
}
