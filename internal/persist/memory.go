package persist

import (
	"context"
	"sync"

	"github.com/monachad/matchfeed/internal/domain"
)

// MemorySlots is an in-process SlotStore. Used when Redis persistence is
// disabled and in tests; state does not survive a restart.
type MemorySlots struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

// NewMemorySlots creates an empty in-memory slot store.
func NewMemorySlots() *MemorySlots {
	return &MemorySlots{slots: make(map[string][]byte)}
}

// Get returns the slot value, or domain.ErrNotFound if it was never written.
func (m *MemorySlots) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.slots[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Set writes the slot value.
func (m *MemorySlots) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(value))
	copy(data, value)
	m.slots[key] = data
	return nil
}

// Compile-time interface check.
var _ domain.SlotStore = (*MemorySlots)(nil)
