package settings

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.SettingsSource = (*Store)(nil)

// Store holds the current settings, persists every change under
// domain.SettingsKey and follows changes written by other processes.
type Store struct {
	storage domain.Storage
	logger  *slog.Logger

	// writeMu orders writes so that storage always ends up holding the
	// settings in memory. It is taken before mu.
	writeMu sync.Mutex

	mu       sync.RWMutex
	current  domain.Settings
	nextID   int
	handlers map[int]func(domain.Settings)

	unsubscribe func()
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for load and save warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore loads the settings from storage and starts following remote changes.
// Missing or malformed stored settings yield the defaults.
func NewStore(storage domain.Storage, options ...Option) *Store {
	store := &Store{
		storage:  storage,
		logger:   slog.New(slog.DiscardHandler),
		handlers: make(map[int]func(domain.Settings)),
	}
	for _, option := range options {
		option(store)
	}

	store.current = store.load()
	store.unsubscribe = storage.OnChange(domain.SettingsKey, store.onStorageChange)
	return store
}

func (s *Store) load() domain.Settings {
	raw, ok := s.storage.Get(domain.SettingsKey)
	if !ok || raw == "" {
		return Defaults()
	}
	settings, err := Parse(raw)
	if err != nil {
		s.logger.Warn("failed to load settings, using defaults", "error", err)
		return Defaults()
	}
	return settings
}

// onStorageChange adopts settings written by another process. Local writes
// are already in effect.
func (s *Store) onStorageChange(_ string, newValue string, remote bool) {
	if !remote || newValue == "" {
		return
	}
	settings, err := Parse(newValue)
	if err != nil {
		s.logger.Warn("failed to parse settings from remote change", "error", err)
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.replace(settings)
}

// Close stops following storage changes.
func (s *Store) Close() {
	s.unsubscribe()
}

// Get implements domain.SettingsSource.
func (s *Store) Get() domain.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// OnChange implements domain.SettingsSource. Handlers run while the write that
// triggered them holds the store, so they must not write settings themselves.
func (s *Store) OnChange(handler func(domain.Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.handlers, id)
		})
	}
}

// Set replaces the settings and persists them.
func (s *Store) Set(settings domain.Settings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.replace(settings.Clone())
	return s.save(settings)
}

// Update applies fn to a snapshot of the current settings and stores the result.
func (s *Store) Update(fn func(domain.Settings) domain.Settings) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	updated := fn(s.current.Clone()).Clone()
	s.current = updated
	handlers := s.snapshotHandlersLocked()
	s.mu.Unlock()

	s.broadcast(handlers, updated)
	return s.save(updated)
}

// Reset restores the factory settings.
func (s *Store) Reset() error {
	return s.Set(Defaults())
}

func (s *Store) SetLocale(locale string) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.Locale = locale
		return settings
	})
}

func (s *Store) SetTheme(theme domain.Theme) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.Theme = theme
		return settings
	})
}

func (s *Store) SetShowFloatingButton(show bool) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.ShowFloatingButton = show
		return settings
	})
}

func (s *Store) SetSansSerifFonts(fonts []string) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.SansSerifFonts = fonts
		return settings
	})
}

func (s *Store) SetSerifFonts(fonts []string) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.SerifFonts = fonts
		return settings
	})
}

func (s *Store) SetFilterMode(mode domain.FilterMode) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.FilterMode = mode
		return settings
	})
}

func (s *Store) SetBlacklist(sites []string) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.Blacklist = sites
		return settings
	})
}

func (s *Store) SetWhitelist(sites []string) error {
	return s.Update(func(settings domain.Settings) domain.Settings {
		settings.Whitelist = sites
		return settings
	})
}

func (s *Store) replace(settings domain.Settings) {
	s.mu.Lock()
	s.current = settings
	handlers := s.snapshotHandlersLocked()
	s.mu.Unlock()

	s.broadcast(handlers, settings)
}

func (s *Store) snapshotHandlersLocked() []func(domain.Settings) {
	handlers := make([]func(domain.Settings), 0, len(s.handlers))
	for _, handler := range s.handlers {
		handlers = append(handlers, handler)
	}
	return handlers
}

func (s *Store) broadcast(handlers []func(domain.Settings), settings domain.Settings) {
	for _, handler := range handlers {
		handler(settings.Clone())
	}
}

func (s *Store) save(settings domain.Settings) error {
	encoded, err := Encode(settings)
	if err != nil {
		s.logger.Warn("failed to save settings", "error", err)
		return err
	}
	if !s.storage.Set(domain.SettingsKey, encoded) {
		s.logger.Warn("failed to save settings", "error", ErrSaveFailed)
		return fmt.Errorf("%w : storage rejected the write", ErrSaveFailed)
	}
	return nil
}
