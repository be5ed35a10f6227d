package cart

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/iliyamo/restaurant-storefront/internal/session"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

func newStore(t *testing.T) (*Store, *session.Manager) {
	t.Helper()
	m := session.NewManager(storage.NewMemoryBackend().Slot("session:cart"))
	m.Initialize(context.Background())
	s := New(m, nil)
	s.Load(context.Background())
	return s, m
}

func pizza(size string) session.CartItem {
	return session.CartItem{ID: "p1", Name: "Tikka", UnitPrice: 500, Category: "pizza", Options: map[string]any{"size": size}}
}

func TestAddSameFingerprintMerges(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp1 := s.AddItem(ctx, pizza(`9"`))
	fp2 := s.AddItem(ctx, pizza(`9"`))

	if fp1 != fp2 {
		t.Fatalf("fingerprints differ: %q vs %q", fp1, fp2)
	}
	lines := s.Lines()
	if len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("lines = %+v, want one line with quantity 2", lines)
	}
}

func TestAddDifferentOptionsStaysDistinct(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	s.AddItem(ctx, pizza(`9"`))
	s.AddItem(ctx, pizza(`12"`))

	lines := s.Lines()
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].Options["size"] != `9"` || lines[1].Options["size"] != `12"` {
		t.Fatalf("insertion order not preserved: %+v", lines)
	}
}

func TestFingerprintIgnoresKeyOrder(t *testing.T) {
	var a, b map[string]any
	if err := json.Unmarshal([]byte(`{"size":"12\"","crust":"thin","toppings":["olive","onion"]}`), &a); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`{"toppings":["olive","onion"],"crust":"thin","size":"12\""}`), &b); err != nil {
		t.Fatal(err)
	}
	if Fingerprint("p1", a) != Fingerprint("p1", b) {
		t.Fatal("fingerprint depends on option key order")
	}
	if Fingerprint("p1", a) == Fingerprint("p2", a) {
		t.Fatal("fingerprint ignores product id")
	}
	if Fingerprint("p1", nil) != "p1" || Fingerprint("p1", map[string]any{}) != "p1" {
		t.Fatal("items without options should be fingerprinted by id")
	}
}

func TestUpdateQuantity(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp := s.AddItem(ctx, pizza(`9"`))

	if !s.UpdateQuantity(ctx, fp, 4) {
		t.Fatal("UpdateQuantity on existing line returned false")
	}
	if got := s.Lines()[0].Quantity; got != 4 {
		t.Fatalf("quantity = %d, want 4", got)
	}
	if s.UpdateQuantity(ctx, "missing", 2) {
		t.Fatal("UpdateQuantity on missing line returned true")
	}
}

func TestQuantityFloorRemovesLine(t *testing.T) {
	for _, q := range []int{0, -3} {
		s, m := newStore(t)
		ctx := context.Background()
		fp := s.AddItem(ctx, pizza(`9"`))
		s.AddItem(ctx, pizza(`12"`))

		if !s.UpdateQuantity(ctx, fp, q) {
			t.Fatalf("UpdateQuantity(%d) returned false", q)
		}
		for _, l := range s.Lines() {
			if l.Fingerprint == fp {
				t.Fatalf("line with quantity %d still present", q)
			}
		}
		for _, it := range m.Load(ctx).Cart.Items {
			if it.Quantity <= 0 {
				t.Fatalf("persisted non-positive quantity: %+v", it)
			}
		}
	}
}

func TestRemoveAndClear(t *testing.T) {
	s, m := newStore(t)
	ctx := context.Background()
	fp := s.AddItem(ctx, pizza(`9"`))
	s.AddItem(ctx, session.CartItem{ID: "drink", UnitPrice: 150})

	if !s.RemoveItem(ctx, fp) || s.RemoveItem(ctx, fp) {
		t.Fatal("RemoveItem should succeed once")
	}
	if len(s.Lines()) != 1 {
		t.Fatalf("lines = %+v", s.Lines())
	}
	s.Clear(ctx)
	if !s.Empty() || len(m.Load(ctx).Cart.Items) != 0 {
		t.Fatal("Clear should empty memory and storage")
	}
}

func TestTotals(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp := s.AddItem(ctx, session.CartItem{ID: "a", UnitPrice: 500})
	s.UpdateQuantity(ctx, fp, 2)
	s.AddItem(ctx, session.CartItem{ID: "b", UnitPrice: 300})

	got := s.Totals()
	if got.ItemCount != 3 || got.Price != 1300 {
		t.Fatalf("Totals = %+v, want {3 1300}", got)
	}
}

func TestEveryMutationPersists(t *testing.T) {
	s, m := newStore(t)
	ctx := context.Background()
	s.AddItem(ctx, pizza(`9"`))

	other := New(m, nil)
	other.Load(ctx)
	if lines := other.Lines(); len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("reloaded cart = %+v", lines)
	}
}

func TestWritesGatedUntilLoad(t *testing.T) {
	m := session.NewManager(storage.NewMemoryBackend().Slot("session:gate"))
	ctx := context.Background()
	m.Initialize(ctx)
	_ = m.SetCart(ctx, []session.CartItem{{ID: "kept", Quantity: 2}})

	s := New(m, nil)
	s.Clear(ctx) // before Load: must not touch storage
	if items := m.Load(ctx).Cart.Items; len(items) != 1 || items[0].ID != "kept" {
		t.Fatalf("write before load clobbered stored cart: %+v", items)
	}
	s.Load(ctx)
	if lines := s.Lines(); len(lines) != 1 || lines[0].Quantity != 2 {
		t.Fatalf("loaded lines = %+v", lines)
	}
}

func TestStoredOptionsAreCopied(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	opts := map[string]any{"size": "9"}
	fp := s.AddItem(ctx, session.CartItem{ID: "p1", Options: opts})
	opts["size"] = "12"
	if s.Lines()[0].Fingerprint != fp {
		t.Fatal("mutating the caller's options changed the stored line")
	}
}

func TestQuantityIsCapped(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	fp := s.AddQuantity(ctx, pizza(`9"`), 60)
	s.AddQuantity(ctx, pizza(`9"`), 60)
	if q := s.Lines()[0].Quantity; q != MaxQuantity {
		t.Fatalf("quantity after adds = %d, want %d", q, MaxQuantity)
	}
	s.AddItem(ctx, pizza(`9"`))
	if q := s.Lines()[0].Quantity; q != MaxQuantity {
		t.Fatalf("quantity after AddItem = %d, want %d", q, MaxQuantity)
	}
	s.UpdateQuantity(ctx, fp, 1<<40)
	if q := s.Lines()[0].Quantity; q != MaxQuantity {
		t.Fatalf("quantity after update = %d, want %d", q, MaxQuantity)
	}
	if got := s.Totals().ItemCount; got != MaxQuantity {
		t.Fatalf("ItemCount = %d", got)
	}
}

func TestLoadMergesDuplicateFingerprints(t *testing.T) {
	m := session.NewManager(storage.NewMemoryBackend().Slot("session:dupes"))
	ctx := context.Background()
	m.Initialize(ctx)
	_ = m.SetCart(ctx, []session.CartItem{
		{ID: "p1", Name: "Tikka", UnitPrice: 500, Quantity: 2, Options: map[string]any{"size": "9"}},
		{ID: "cola", Name: "Cola", UnitPrice: 100, Quantity: 1},
		{ID: "p1", Name: "Tikka", UnitPrice: 500, Quantity: 3, Options: map[string]any{"size": "9"}},
		{ID: "cola", Name: "Cola", UnitPrice: 100, Quantity: 98},
	})

	s := New(m, nil)
	s.Load(ctx)
	lines := s.Lines()
	if len(lines) != 2 || lines[0].ID != "p1" || lines[0].Quantity != 5 || lines[1].Quantity != MaxQuantity {
		t.Fatalf("lines = %+v", lines)
	}
	if stored := m.Load(ctx).Cart.Items; len(stored) != 2 {
		t.Fatalf("merged cart not saved: %+v", stored)
	}
}
