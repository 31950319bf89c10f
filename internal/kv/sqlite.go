package kv

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open opens a SQLite database at the given path, runs migrations, and
// returns a durable Store backed by it. Use ":memory:" for tests.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}

	return nil
}

// SQLiteStore is the durable Store implementation over a single kv table.
type SQLiteStore struct {
	db *sql.DB
}

// DB exposes the underlying handle for maintenance tasks (backup checkpoint).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetByPrefix(prefix string) ([]Entry, error) {
	rows, err := s.prefixRows(prefix, "", 0)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows, prefix)
}

func (s *SQLiteStore) Scan(prefix, cursor string, limit int) ([]Entry, string, error) {
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	rows, err := s.prefixRows(prefix, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	entries, err := collectEntries(rows, prefix)
	if err != nil {
		return nil, "", err
	}
	if len(entries) > limit {
		entries = entries[:limit]
		return entries, entries[limit-1].Key, nil
	}
	return entries, "", nil
}

func (s *SQLiteStore) prefixRows(prefix, cursor string, limit int) (*sql.Rows, error) {
	lower := prefix
	if cursor > lower {
		lower = cursor
	}
	query := `SELECT key, value FROM kv WHERE key >= ?`
	args := []any{lower}
	if cursor != "" {
		query = `SELECT key, value FROM kv WHERE key > ?`
		args = []any{lower}
	}
	if end := prefixEnd(prefix); end != "" {
		query += ` AND key < ?`
		args = append(args, end)
	}
	query += ` ORDER BY key`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}
	return rows, nil
}

func collectEntries(rows *sql.Rows, prefix string) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan prefix %s: %w", prefix, err)
	}
	return entries, nil
}
