package storage

import (
	"context"
	"sync"
)

// MemoryBackend keeps slot values in process memory.  It is used when no
// external store is configured and by tests.  MaxBytes, when positive,
// rejects writes larger than the limit with ErrSlotTooLarge.
type MemoryBackend struct {
	mu       sync.RWMutex
	values   map[string]string
	MaxBytes int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

func (b *MemoryBackend) Slot(name string) Slot { return &memorySlot{b: b, name: name} }

// Len reports how many slots currently hold a value.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.values)
}

type memorySlot struct {
	b    *MemoryBackend
	name string
}

func (s *memorySlot) Name() string { return s.name }

func (s *memorySlot) Read(_ context.Context) (string, bool, error) {
	s.b.mu.RLock()
	defer s.b.mu.RUnlock()
	v, ok := s.b.values[s.name]
	return v, ok, nil
}

func (s *memorySlot) Write(_ context.Context, value string) error {
	if s.b.MaxBytes > 0 && len(value) > s.b.MaxBytes {
		return ErrSlotTooLarge
	}
	s.b.mu.Lock()
	s.b.values[s.name] = value
	s.b.mu.Unlock()
	return nil
}

func (s *memorySlot) Remove(_ context.Context) error {
	s.b.mu.Lock()
	delete(s.b.values, s.name)
	s.b.mu.Unlock()
	return nil
}
