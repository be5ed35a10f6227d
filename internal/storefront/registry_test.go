package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/model"
	"github.com/iliyamo/restaurant-storefront/internal/orders"
	"github.com/iliyamo/restaurant-storefront/internal/session"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type noOrders struct{}

func (noOrders) GetActiveOrdersByCustomer(context.Context, string, string) ([]model.Order, error) {
	return nil, nil
}

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryBackend, *clock) {
	t.Helper()
	clk := &clock{t: time.Date(2026, 5, 2, 18, 30, 0, 0, time.UTC)}
	b := storage.NewMemoryBackend()
	r := NewRegistry(b, noOrders{}, Config{
		IdleTimeout:    10 * time.Minute,
		Tracker:        orders.Config{SweepInterval: time.Hour, PollInterval: time.Hour},
		ScrollThrottle: time.Hour,
		Clock:          clk.Now,
	}, nil)
	t.Cleanup(func() { r.Close(context.Background()) })
	return r, b, clk
}

func TestOpenReturnsSameSession(t *testing.T) {
	r, b, _ := newTestRegistry(t)
	ctx := context.Background()

	a, err := r.Open(ctx, "v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	again, err := r.Open(ctx, "v1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if a != again {
		t.Fatal("second Open built a new session")
	}
	if _, ok, _ := b.Slot(SlotName("v1")).Read(ctx); !ok {
		t.Fatal("Open should persist an initialized document")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d, want 1", r.Len())
	}
}

func TestOpenRejectsEmptyID(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	if _, err := r.Open(context.Background(), ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
}

func TestOpenMigratesLegacyCart(t *testing.T) {
	r, b, _ := newTestRegistry(t)
	ctx := context.Background()
	raw, _ := json.Marshal([]session.CartItem{{ID: "margherita", Name: "Margherita", UnitPrice: 650, Quantity: 2}})
	legacy := LegacySlots(b, "v2")
	if err := legacy.Cart.Write(ctx, string(raw)); err != nil {
		t.Fatal(err)
	}

	s, err := r.Open(ctx, "v2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := s.Cart.Totals(); got.ItemCount != 2 {
		t.Fatalf("ItemCount = %d, want 2", got.ItemCount)
	}
	if _, ok, _ := legacy.Cart.Read(ctx); ok {
		t.Fatal("legacy cart slot should be removed")
	}
}

func TestEvictIdleFlushesNavigation(t *testing.T) {
	r, b, clk := newTestRegistry(t)
	ctx := context.Background()

	s, _ := r.Open(ctx, "v3")
	s.Navigation.RecordScroll(ctx, "/menu", 100)
	if s.Navigation.RecordScroll(ctx, "/menu", 900) {
		t.Fatal("second scroll should be deferred by the throttle")
	}

	clk.Advance(5 * time.Minute)
	if n := r.EvictIdle(ctx); n != 0 {
		t.Fatalf("evicted %d sessions before idle timeout", n)
	}
	clk.Advance(6 * time.Minute)
	if n := r.EvictIdle(ctx); n != 1 {
		t.Fatalf("evicted %d sessions, want 1", n)
	}
	if r.Len() != 0 {
		t.Fatalf("Len = %d after eviction", r.Len())
	}

	m := session.NewManager(b.Slot(SlotName("v3")), session.WithClock(clk.Now))
	doc := m.Load(ctx)
	if doc == nil || doc.Navigation.ScrollPositionsByPath["/menu"] != 900 {
		t.Fatalf("deferred scroll offset not flushed: %+v", doc)
	}
}

func TestLookupKeepsSessionAlive(t *testing.T) {
	r, _, clk := newTestRegistry(t)
	ctx := context.Background()
	if _, err := r.Open(ctx, "v4"); err != nil {
		t.Fatal(err)
	}
	clk.Advance(8 * time.Minute)
	if _, ok := r.Lookup("v4"); !ok {
		t.Fatal("Lookup lost the session")
	}
	clk.Advance(8 * time.Minute)
	if n := r.EvictIdle(ctx); n != 0 {
		t.Fatalf("evicted %d, session was used 8m ago", n)
	}
}

func TestResetStartsFreshDocument(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	s, _ := r.Open(ctx, "v5")
	s.Cart.AddItem(ctx, session.CartItem{ID: "cola", Name: "Cola", UnitPrice: 150, Quantity: 1})

	fresh, err := r.Reset(ctx, "v5")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if fresh == s {
		t.Fatal("Reset returned the old session")
	}
	if !fresh.Cart.Empty() {
		t.Fatal("cart survived reset")
	}
	if r.Len() != 1 {
		t.Fatalf("Len = %d after reset", r.Len())
	}
}

func TestResetDetachesOldSession(t *testing.T) {
	r, b, clk := newTestRegistry(t)
	ctx := context.Background()
	old, _ := r.Open(ctx, "v7")
	old.Cart.AddItem(ctx, session.CartItem{ID: "cola", Name: "Cola", UnitPrice: 150})

	if _, err := r.Reset(ctx, "v7"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	// A request that resolved the session before the reset keeps writing
	// through the old bundle.
	old.Cart.AddItem(ctx, session.CartItem{ID: "fries", Name: "Fries", UnitPrice: 300})
	old.Navigation.RecordRoute(ctx, "/checkout", nil)

	doc := session.NewManager(b.Slot(SlotName("v7")), session.WithClock(clk.Now)).Load(ctx)
	if doc == nil {
		t.Fatal("reset session has no stored document")
	}
	if len(doc.Cart.Items) != 0 {
		t.Fatalf("old bundle wrote its cart back: %+v", doc.Cart.Items)
	}
	if doc.Navigation.CurrentPath != "/" {
		t.Fatalf("old bundle wrote navigation back: %q", doc.Navigation.CurrentPath)
	}
	fresh, ok := r.Lookup("v7")
	if !ok || !fresh.Cart.Empty() {
		t.Fatal("fresh session should have an empty cart")
	}
}

func TestResetUnopenedSession(t *testing.T) {
	r, b, _ := newTestRegistry(t)
	ctx := context.Background()
	if err := b.Slot(SlotName("v6")).Write(ctx, `{"schemaVersion":"0.1"}`); err != nil {
		t.Fatal(err)
	}
	s, err := r.Reset(ctx, "v6")
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	doc := s.Manager.Load(ctx)
	if doc == nil || doc.SchemaVersion != session.CurrentSchemaVersion {
		t.Fatalf("document not rebuilt: %+v", doc)
	}
}

func TestCloseShutsDownSessions(t *testing.T) {
	r, _, _ := newTestRegistry(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := r.Open(ctx, id); err != nil {
			t.Fatal(err)
		}
	}
	r.Close(ctx)
	if r.Len() != 0 {
		t.Fatalf("Len = %d after Close", r.Len())
	}
}
