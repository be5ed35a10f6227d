package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// runSlotTests exercises the Slot contract against any backend.
func runSlotTests(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing slot reads as absent", func(t *testing.T) {
		v, ok, err := b.Slot("missing").Read(ctx)
		if err != nil || ok || v != "" {
			t.Fatalf("Read = (%q, %v, %v), want empty absent", v, ok, err)
		}
	})

	t.Run("write then read", func(t *testing.T) {
		s := b.Slot("doc")
		if err := s.Write(ctx, `{"a":1}`); err != nil {
			t.Fatalf("Write: %v", err)
		}
		v, ok, err := b.Slot("doc").Read(ctx)
		if err != nil || !ok || v != `{"a":1}` {
			t.Fatalf("Read = (%q, %v, %v)", v, ok, err)
		}
	})

	t.Run("overwrite", func(t *testing.T) {
		s := b.Slot("over")
		_ = s.Write(ctx, "one")
		_ = s.Write(ctx, "two")
		v, _, _ := s.Read(ctx)
		if v != "two" {
			t.Fatalf("Read = %q, want two", v)
		}
	})

	t.Run("remove", func(t *testing.T) {
		s := b.Slot("gone")
		_ = s.Write(ctx, "x")
		if err := s.Remove(ctx); err != nil {
			t.Fatalf("Remove: %v", err)
		}
		if _, ok, _ := s.Read(ctx); ok {
			t.Fatal("slot still present after Remove")
		}
		if err := s.Remove(ctx); err != nil {
			t.Fatalf("second Remove: %v", err)
		}
	})

	t.Run("slots are isolated", func(t *testing.T) {
		_ = b.Slot("a").Write(ctx, "A")
		_ = b.Slot("b").Write(ctx, "B")
		va, _, _ := b.Slot("a").Read(ctx)
		vb, _, _ := b.Slot("b").Read(ctx)
		if va != "A" || vb != "B" {
			t.Fatalf("got a=%q b=%q", va, vb)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runSlotTests(t, NewMemoryBackend())
}

func TestMemoryBackendSizeLimit(t *testing.T) {
	b := NewMemoryBackend()
	b.MaxBytes = 4
	err := b.Slot("big").Write(context.Background(), strings.Repeat("x", 5))
	if !errors.Is(err, ErrSlotTooLarge) {
		t.Fatalf("Write err = %v, want ErrSlotTooLarge", err)
	}
	if b.Len() != 0 {
		t.Fatalf("Len = %d, want 0", b.Len())
	}
}

func TestRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := NewRedisBackend(client, "test:", time.Hour)
	runSlotTests(t, b)

	if !mr.Exists("test:doc") {
		t.Fatal("expected prefixed key test:doc in redis")
	}
	if ttl := mr.TTL("test:doc"); ttl != time.Hour {
		t.Fatalf("TTL = %v, want 1h", ttl)
	}
}

func TestRedisBackendReadError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, ok, err := NewRedisBackend(client, "", 0).Slot("doc").Read(context.Background())
	if err == nil || ok {
		t.Fatalf("Read on closed server = (%v, %v), want error", ok, err)
	}
}
