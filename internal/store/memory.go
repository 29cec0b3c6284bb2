package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

type memoryMedium struct {
	mu     sync.RWMutex
	items  map[string][]byte
	closed bool
}

// NewMemoryMedium returns a [Medium] that keeps everything in process memory.
// Nothing survives a restart.
func NewMemoryMedium() Medium {
	return &memoryMedium{items: make(map[string][]byte)}
}

func (m *memoryMedium) Get(_ context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, false, ErrStorageUnavailable
	}
	v, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *memoryMedium) Set(ctx context.Context, key string, value []byte) error {
	return m.Apply(ctx, PutOp(key, value))
}

func (m *memoryMedium) Remove(ctx context.Context, key string) error {
	return m.Apply(ctx, DeleteOp(key))
}

func (m *memoryMedium) ListKeys(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStorageUnavailable
	}

	keys := make([]string, 0, len(m.items))
	for k := range m.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *memoryMedium) Apply(_ context.Context, ops ...Op) error {
	for _, op := range ops {
		if op.Key == "" {
			return ErrEmptyKey
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStorageUnavailable
	}
	for _, op := range ops {
		if op.Delete {
			delete(m.items, op.Key)
			continue
		}
		m.items[op.Key] = append([]byte(nil), op.Value...)
	}
	return nil
}

func (m *memoryMedium) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
