package domain

// SettingsKey is the storage key holding the JSON encoded Settings.
const SettingsKey = "lunettes-settings"

// ChangeHandler receives a storage change. remote is true when the value was
// written by another process sharing the same storage.
type ChangeHandler func(key string, newValue string, remote bool)

// Storage is the opaque key/value persistence used by the settings store and
// the font cache. Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value stored under key and whether it exists.
	Get(key string) (string, bool)
	// Set stores value under key and reports whether the write succeeded.
	Set(key string, value string) bool
	// OnChange registers handler for changes to key.
	OnChange(key string, handler ChangeHandler) (unsubscribe func())
}

// KVRepository is the persistence contract behind the SQLite backed Storage.
type KVRepository interface {
	// GetValue returns the value for key. It returns ErrKeyNotFound if the key does not exist.
	GetValue(key string) (string, error)

	// SetValue creates or replaces the value for key and returns the new revision of the row.
	SetValue(key string, value string) (int64, error)

	// GetChangesSince returns every entry written after the given revision, ordered by revision.
	GetChangesSince(revision int64) ([]*KVEntry, error)

	// LatestRevision returns the highest revision currently stored, or 0 when empty.
	LatestRevision() (int64, error)
}

// KVEntry is a single key/value row with its revision.
type KVEntry struct {
	Key      string
	Value    string
	Revision int64
}
