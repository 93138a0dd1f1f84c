package domain

// StatsRepository reports counts about the stored data.
type StatsRepository interface {
	// CountEntries returns the number of keys in the key/value table.
	CountEntries() (int, error)
	// CountCachedFonts returns the number of persisted font payloads.
	CountCachedFonts() (int, error)
	// CountLogs returns the number of stored log entries.
	CountLogs() (int, error)
}
