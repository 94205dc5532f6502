package checkpoint

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// driverName is the database/sql name registered by modernc.org/sqlite.
const driverName = "sqlite"

const schema = `
CREATE TABLE IF NOT EXISTS records (
	key        TEXT    NOT NULL,
	id         INTEGER NOT NULL,
	prompt     TEXT    NOT NULL,
	reply      TEXT    NOT NULL,
	model      TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	PRIMARY KEY (key, id)
)`

// SQLiteStore keeps all checkpoint logs in a single SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path. The
// special path ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating checkpoint directory: %w", err)
		}
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}

	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating checkpoint schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the records stored under key.
func (s *SQLiteStore) Load(ctx context.Context, key string) (map[int]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, prompt, reply, model, created_at FROM records WHERE key = ?`, key)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", key, err)
	}
	defer rows.Close()

	records := make(map[int]Record)
	for rows.Next() {
		var rec Record
		var created int64
		if err := rows.Scan(&rec.ID, &rec.Prompt, &rec.Reply, &rec.Model, &created); err != nil {
			return nil, fmt.Errorf("scanning checkpoint %s: %w", key, err)
		}
		if created != 0 {
			rec.Time = time.Unix(0, created).UTC()
		}
		records[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", key, err)
	}
	return records, nil
}

// Append inserts rec, replacing an earlier record at the same position.
func (s *SQLiteStore) Append(ctx context.Context, key string, rec Record) error {
	var created int64
	if !rec.Time.IsZero() {
		created = rec.Time.UnixNano()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO records (key, id, prompt, reply, model, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key, rec.ID, rec.Prompt, rec.Reply, rec.Model, created)
	if err != nil {
		return fmt.Errorf("writing checkpoint %s: %w", key, err)
	}
	return nil
}

// Clear deletes every record under key.
func (s *SQLiteStore) Clear(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE key = ?`, key); err != nil {
		return fmt.Errorf("clearing checkpoint %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
