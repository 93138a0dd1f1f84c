package storage

import (
	"sync"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.Storage = (*Memory)(nil)

// Memory is an in-process Storage.
type Memory struct {
	mu        sync.RWMutex
	values    map[string]string
	listeners *listeners
}

// NewMemory returns an empty Memory storage.
func NewMemory() *Memory {
	return &Memory{
		values:    make(map[string]string),
		listeners: newListeners(),
	}
}

// Get implements domain.Storage.
func (m *Memory) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	return value, ok
}

// Set implements domain.Storage. It always succeeds.
func (m *Memory) Set(key string, value string) bool {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()

	m.listeners.notify(key, value, false)
	return true
}

// SetRemote stores value as if another context had written it and notifies
// handlers with remote set.
func (m *Memory) SetRemote(key string, value string) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()

	m.listeners.notify(key, value, true)
}

// OnChange implements domain.Storage.
func (m *Memory) OnChange(key string, handler domain.ChangeHandler) func() {
	return m.listeners.add(key, handler)
}
