package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/2005czq/lunettes/domain"
)

var _ domain.KVRepository = (*Repository)(nil)

// dbKVEntry represents a key/value row as stored in the database.
type dbKVEntry struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	Revision  int64     `db:"revision"`
	UpdatedAt time.Time `db:"updated_at"`
}

func toDomainKVEntry(entry *dbKVEntry) *domain.KVEntry {
	return &domain.KVEntry{
		Key:      entry.Key,
		Value:    entry.Value,
		Revision: entry.Revision,
	}
}

// GetValue implements the domain.KVRepository interface.
func (repo *Repository) GetValue(key string) (string, error) {
	var value string
	err := repo.dbConn.Get(&value, `SELECT value FROM kv WHERE key = ?`, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("getting value %q : %w", key, domain.ErrKeyNotFound)
		}
		return "", fmt.Errorf("getting value %q : %w", key, err)
	}
	return value, nil
}

// SetValue implements the domain.KVRepository interface.
// Every write takes the next revision of the whole table, so revisions order
// writes across keys and across processes sharing the file.
func (repo *Repository) SetValue(key string, value string) (int64, error) {
	query := `INSERT INTO kv (key, value, revision, updated_at)
	          VALUES (?, ?, (SELECT COALESCE(MAX(revision), 0) + 1 FROM kv), ?)
	          ON CONFLICT(key) DO UPDATE SET
	              value = excluded.value,
	              revision = excluded.revision,
	              updated_at = excluded.updated_at
	          RETURNING revision`

	var revision int64
	err := repo.dbConn.Get(&revision, query, key, value, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("setting value %q : %w", key, err)
	}
	return revision, nil
}

// GetChangesSince implements the domain.KVRepository interface.
func (repo *Repository) GetChangesSince(revision int64) ([]*domain.KVEntry, error) {
	var entries []*dbKVEntry
	err := repo.dbConn.Select(&entries, `SELECT key, value, revision, updated_at FROM kv WHERE revision > ? ORDER BY revision`, revision)
	if err != nil {
		return nil, fmt.Errorf("getting changes since %d : %w", revision, err)
	}

	changes := make([]*domain.KVEntry, len(entries))
	for i, entry := range entries {
		changes[i] = toDomainKVEntry(entry)
	}
	return changes, nil
}

// LatestRevision implements the domain.KVRepository interface.
func (repo *Repository) LatestRevision() (int64, error) {
	var revision int64
	err := repo.dbConn.Get(&revision, `SELECT COALESCE(MAX(revision), 0) FROM kv`)
	if err != nil {
		return 0, fmt.Errorf("getting latest revision : %w", err)
	}
	return revision, nil
}
