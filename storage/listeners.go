// Package storage implements the key/value storage collaborator shared by the
// settings store and the font cache.
//
// Store persists values through a domain.KVRepository and notifies handlers of
// local writes immediately and of writes made by other processes when Sync is
// called (typically from a database file watcher). Memory is an in-process
// implementation used by tests and by commands that run without a database.
package storage

import (
	"sync"

	"github.com/2005czq/lunettes/domain"
)

// listeners keeps per-key change handlers.
type listeners struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]domain.ChangeHandler
}

func newListeners() *listeners {
	return &listeners{handlers: make(map[string]map[int]domain.ChangeHandler)}
}

func (l *listeners) add(key string, handler domain.ChangeHandler) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.nextID
	l.nextID++
	if l.handlers[key] == nil {
		l.handlers[key] = make(map[int]domain.ChangeHandler)
	}
	l.handlers[key][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.handlers[key], id)
			if len(l.handlers[key]) == 0 {
				delete(l.handlers, key)
			}
		})
	}
}

// notify calls every handler registered for key outside of the lock so that
// handlers may register or unregister themselves.
func (l *listeners) notify(key, value string, remote bool) {
	l.mu.Lock()
	handlers := make([]domain.ChangeHandler, 0, len(l.handlers[key]))
	for _, handler := range l.handlers[key] {
		handlers = append(handlers, handler)
	}
	l.mu.Unlock()

	for _, handler := range handlers {
		handler(key, value, remote)
	}
}
