package credentials

import (
	"context"
	"sync"
)

// MemorySlot keeps the value in process memory only. Used for --ephemeral runs and tests.
type MemorySlot struct {
	mu    sync.Mutex
	value string
}

func NewMemorySlot(initial string) *MemorySlot {
	return &MemorySlot{value: initial}
}

func (s *MemorySlot) Load(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value, nil
}

func (s *MemorySlot) Save(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
	return nil
}

func (s *MemorySlot) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	return nil
}

func (s *MemorySlot) Close() error {
	return nil
}
