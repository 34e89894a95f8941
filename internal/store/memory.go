package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used by the CLI and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, scope, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.values[scope+"\x00"+key]
	m.mu.RUnlock()
	if !ok || (!entry.expires.IsZero() && !m.now().Before(entry.expires)) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, scope, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.values[scope+"\x00"+key] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, scope, key string) error {
	m.mu.Lock()
	delete(m.values, scope+"\x00"+key)
	m.mu.Unlock()
	return nil
}
