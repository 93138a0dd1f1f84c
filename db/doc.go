// Package db provides the SQLite persistence layer for lunettes.
//
// It owns the database connection and its embedded goose migrations, and
// implements the repository interfaces declared in the domain package:
//
//   - KVRepository: the revisioned key/value table backing settings and the
//     font payload cache (kv_repo.go).
//   - LogRepository: proxy log entries (log_repo.go).
//   - ConfigRepository: the MITM authority fingerprint (config_repo.go).
//   - StatsRepository: row counts reported by the CLI (stats_repo.go).
//
// Watch notifies callers when the database files are written, which is how a
// process learns about settings changed by another lunettes process.
package db
