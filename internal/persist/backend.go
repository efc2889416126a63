// Package persist saves and restores chart state through a key/value
// backend.
//
// The chart snapshot lives under SnapshotKey and the theme under ThemeKey.
// Backends only move bytes; decoding, schema checks and fallbacks happen in
// SnapshotStore and ThemeStore.
package persist

import (
	"context"
	"sync"
)

// Storage keys.
const (
	SnapshotKey = "gantt-chart-data"
	ThemeKey    = "gantt-theme"
)

// Backend is a key/value byte store.
type Backend interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryBackend keeps values in memory.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
	puts   int
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	m.puts++
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }

// Puts returns how many writes the backend has received.
func (m *MemoryBackend) Puts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.puts
}
