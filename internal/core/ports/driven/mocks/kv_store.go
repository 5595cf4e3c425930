package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/designpm/designpm-core/internal/core/domain"
)

// MockKeyValueStore is an in-memory KeyValueStore with a byte quota and
// failure injection, standing in for browser-style local storage.
type MockKeyValueStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	writes map[string]int

	// Quota is the maximum total bytes (keys plus values). 0 means unlimited.
	Quota int64

	// Custom behavior hooks (optional)
	SetFn func(key string, value []byte) error
	GetFn func(key string) ([]byte, error)
}

// NewMockKeyValueStore creates an empty store.
func NewMockKeyValueStore() *MockKeyValueStore {
	return &MockKeyValueStore{
		data:   make(map[string][]byte),
		writes: make(map[string]int),
	}
}

func (m *MockKeyValueStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFn != nil {
		return m.GetFn(key)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MockKeyValueStore) Set(ctx context.Context, key string, value []byte) error {
	if m.SetFn != nil {
		if err := m.SetFn(key, value); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Quota > 0 {
		used := m.usedLocked() - m.entrySize(key) + int64(len(key)+len(value))
		if used > m.Quota {
			return fmt.Errorf("set %s: %w", key, domain.ErrStorageQuotaExceeded)
		}
	}
	m.data[key] = append([]byte(nil), value...)
	m.writes[key]++
	return nil
}

func (m *MockKeyValueStore) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *MockKeyValueStore) Usage(ctx context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedLocked(), m.Quota, nil
}

func (m *MockKeyValueStore) Ping(ctx context.Context) error {
	return nil
}

// Writes returns how many successful writes key has received.
func (m *MockKeyValueStore) Writes(key string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes[key]
}

// Keys returns the number of stored keys.
func (m *MockKeyValueStore) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Raw returns the stored bytes for key without copying hooks (for test assertions).
func (m *MockKeyValueStore) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Put stores value directly, bypassing quota and hooks (for test setup).
func (m *MockKeyValueStore) Put(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
}

func (m *MockKeyValueStore) usedLocked() int64 {
	var n int64
	for k := range m.data {
		n += m.entrySize(k)
	}
	return n
}

func (m *MockKeyValueStore) entrySize(key string) int64 {
	v, ok := m.data[key]
	if !ok {
		return 0
	}
	return int64(len(key) + len(v))
}
