package navigation

import (
	"context"
	"testing"
	"time"

	"github.com/iliyamo/restaurant-storefront/internal/session"
	"github.com/iliyamo/restaurant-storefront/internal/storage"
)

func newState(t *testing.T, throttle time.Duration) (*State, *session.Manager) {
	t.Helper()
	m := session.NewManager(storage.NewMemoryBackend().Slot("session:nav"))
	m.Initialize(context.Background())
	return New(m, throttle, nil), m
}

func TestRestoreSkipsHome(t *testing.T) {
	s, _ := newState(t, time.Hour)
	if _, ok := s.Restore(context.Background()); ok {
		t.Fatal("fresh session should not restore anywhere")
	}
}

func TestRecordRouteAndRestore(t *testing.T) {
	s, _ := newState(t, time.Hour)
	ctx := context.Background()
	s.RecordRoute(ctx, "/menu", map[string]string{"category": "pizza", "q": "fajita"})
	s.RecordScroll(ctx, "/menu", 640)

	r, ok := s.Restore(ctx)
	if !ok {
		t.Fatal("Restore reported nothing to restore")
	}
	if r.Path != "/menu" || r.ScrollOffset != 640 || !r.Replace {
		t.Fatalf("Restore = %+v", r)
	}
	if r.URL != "/menu?category=pizza&q=fajita" {
		t.Fatalf("URL = %q", r.URL)
	}
}

func TestScrollIsThrottled(t *testing.T) {
	s, m := newState(t, time.Hour)
	ctx := context.Background()

	if !s.RecordScroll(ctx, "/menu", 100) {
		t.Fatal("first scroll should be written immediately")
	}
	if s.RecordScroll(ctx, "/menu", 200) {
		t.Fatal("second scroll inside the throttle window should be deferred")
	}
	if got := m.Load(ctx).Navigation.ScrollPositionsByPath["/menu"]; got != 100 {
		t.Fatalf("stored offset = %d, want 100 before flush", got)
	}
	s.Flush(ctx)
	if got := m.Load(ctx).Navigation.ScrollPositionsByPath["/menu"]; got != 200 {
		t.Fatalf("stored offset = %d, want 200 after flush", got)
	}
}

func TestInvalidScrollIgnored(t *testing.T) {
	s, m := newState(t, time.Hour)
	ctx := context.Background()
	s.RecordScroll(ctx, "", 10)
	s.RecordScroll(ctx, "/menu", -5)
	s.Flush(ctx)
	if n := len(m.Load(ctx).Navigation.ScrollPositionsByPath); n != 0 {
		t.Fatalf("stored %d offsets, want 0", n)
	}
}

func TestRestoreAfterNavigationExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	clk := func() time.Time { return now }
	m := session.NewManager(storage.NewMemoryBackend().Slot("session:nav"), session.WithClock(clk))
	ctx := context.Background()
	m.Initialize(ctx)
	s := New(m, time.Hour, nil)
	s.RecordRoute(ctx, "/checkout", nil)

	now = now.Add(31 * time.Minute)
	m.Initialize(ctx)
	if _, ok := s.Restore(ctx); ok {
		t.Fatal("navigation older than its TTL should reset to home")
	}
}
