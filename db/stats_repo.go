package db

import (
	"fmt"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.StatsRepository = (*Repository)(nil)

// CountEntries returns the number of keys in the key/value table.
func (repo *Repository) CountEntries() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM kv`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting entry count: %w", err)
	}

	return count, nil
}

// CountCachedFonts returns the number of persisted font payloads.
func (repo *Repository) CountCachedFonts() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM kv WHERE key LIKE ? AND value != ''`

	err := repo.dbConn.Get(&count, query, domain.FontCacheKeyPrefix+"%")
	if err != nil {
		return 0, fmt.Errorf("getting cached font count: %w", err)
	}

	return count, nil
}

// CountLogs returns the number of stored log entries.
func (repo *Repository) CountLogs() (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM logs`

	err := repo.dbConn.Get(&count, query)
	if err != nil {
		return 0, fmt.Errorf("getting log count: %w", err)
	}

	return count, nil
}
