package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.Storage = (*Store)(nil)

// Store is a Storage persisted through a KVRepository.
type Store struct {
	repo      domain.KVRepository
	logger    *slog.Logger
	listeners *listeners

	mu       sync.Mutex
	revision int64              // highest revision already dispatched by Sync
	own      map[int64]struct{} // revisions written by this Store, not yet seen by Sync
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for storage failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a Store on top of repo. Changes already present in the
// repository are not reported by Sync.
func New(repo domain.KVRepository, options ...Option) (*Store, error) {
	revision, err := repo.LatestRevision()
	if err != nil {
		return nil, fmt.Errorf("reading latest revision : %w", err)
	}

	store := &Store{
		repo:      repo,
		logger:    slog.New(slog.DiscardHandler),
		listeners: newListeners(),
		revision:  revision,
		own:       make(map[int64]struct{}),
	}
	for _, option := range options {
		option(store)
	}
	return store, nil
}

// Get implements domain.Storage. Repository failures are logged and reported as absent.
func (s *Store) Get(key string) (string, bool) {
	value, err := s.repo.GetValue(key)
	if err != nil {
		if !errors.Is(err, domain.ErrKeyNotFound) {
			s.logger.Warn("reading stored value", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

// Set implements domain.Storage. Handlers are notified with remote unset.
func (s *Store) Set(key string, value string) bool {
	s.mu.Lock()
	revision, err := s.repo.SetValue(key, value)
	if err != nil {
		s.mu.Unlock()
		s.logger.Warn("writing stored value", "key", key, "error", err)
		return false
	}
	s.own[revision] = struct{}{}
	s.mu.Unlock()

	s.listeners.notify(key, value, false)
	return true
}

// OnChange implements domain.Storage.
func (s *Store) OnChange(key string, handler domain.ChangeHandler) func() {
	return s.listeners.add(key, handler)
}

// Sync reports every change written by other processes since the last Sync
// to the registered handlers, with remote set.
func (s *Store) Sync() error {
	s.mu.Lock()
	changes, err := s.repo.GetChangesSince(s.revision)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("getting changes since revision %d : %w", s.revision, err)
	}

	remote := make([]*domain.KVEntry, 0, len(changes))
	for _, change := range changes {
		if change.Revision > s.revision {
			s.revision = change.Revision
		}
		if _, ok := s.own[change.Revision]; ok {
			delete(s.own, change.Revision)
			continue
		}
		remote = append(remote, change)
	}
	// Own writes overwritten by another process before this Sync never show up.
	for revision := range s.own {
		if revision <= s.revision {
			delete(s.own, revision)
		}
	}
	s.mu.Unlock()

	for _, change := range remote {
		s.listeners.notify(change.Key, change.Value, true)
	}
	return nil
}
