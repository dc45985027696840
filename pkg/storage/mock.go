package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jwebster45206/narration-engine/pkg/chat"
	"github.com/jwebster45206/narration-engine/pkg/state"
)

// MockStorage is an in-memory Gateway for tests and local runs. It round
// trips through JSON so callers see the same decoding as the Redis store.
type MockStorage struct {
	mu        sync.RWMutex
	data      []byte
	saves     int
	pingError error
	saveError error
}

// Ensure MockStorage implements Gateway interface
var _ Gateway = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError configures the mock to fail on save with the given error
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetRaw stores arbitrary bytes, e.g. a corrupt snapshot.
func (m *MockStorage) SetRaw(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = data
}

// Saves returns how many writes actually happened.
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Ping mocks storage ping
func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

// Close mocks storage close
func (m *MockStorage) Close() error {
	return nil
}

// Save mocks saving a session
func (m *MockStorage) Save(ctx context.Context, turns []chat.Turn, status state.GameStatus) error {
	if !ShouldSave(turns) {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	data, err := json.Marshal(NewSnapshot(turns, status))
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	m.data = data
	m.saves++
	return nil
}

// Load mocks loading a session
func (m *MockStorage) Load(ctx context.Context) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	snap, err := DecodeSnapshot(m.data)
	if err != nil {
		return nil, nil
	}
	return snap, nil
}
