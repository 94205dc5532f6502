// Package checkpoint persists finished translation requests so that an
// interrupted run can resume without repeating them.
//
// A checkpoint log is addressed by a key (by convention
// "{prefix}{relative path}.jsonl") and holds one Record per completed work
// item, identified by the item's position in the submitted batch. Appending a
// record for a position that is already present replaces it.
package checkpoint

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Record is one completed request.
type Record struct {
	// ID is the position of the unit in the submitted batch.
	ID     int       `json:"id"`
	Prompt string    `json:"prompt"`
	Reply  string    `json:"reply"`
	Model  string    `json:"model,omitempty"`
	Time   time.Time `json:"time"`
}

// Store is a checkpoint log backend.
type Store interface {
	// Load returns the records of key by position. A missing log yields an
	// empty map and no error.
	Load(ctx context.Context, key string) (map[int]Record, error)
	// Append durably adds rec to the log of key.
	Append(ctx context.Context, key string, rec Record) error
	// Clear removes the log of key.
	Clear(ctx context.Context, key string) error
	Close() error
}

// Kind names a Store implementation.
type Kind string

const (
	KindJSONL  Kind = "jsonl"
	KindSQLite Kind = "sqlite"
)

// SQLiteFile is the database file name used by Open for KindSQLite.
const SQLiteFile = "checkpoints.db"

// ParseKind validates a store kind; the empty string selects KindJSONL.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "", KindJSONL:
		return KindJSONL, nil
	case KindSQLite:
		return KindSQLite, nil
	default:
		return "", fmt.Errorf("unknown checkpoint store %q (valid: jsonl, sqlite)", s)
	}
}

// Open creates the store of the given kind rooted at dir.
func Open(kind Kind, dir string) (Store, error) {
	switch kind {
	case "", KindJSONL:
		return NewJSONLStore(dir), nil
	case KindSQLite:
		return NewSQLiteStore(filepath.Join(dir, SQLiteFile))
	default:
		return nil, fmt.Errorf("unknown checkpoint store %q", kind)
	}
}

// Key builds the conventional checkpoint key for a document path relative to
// the folder being translated.
func Key(prefix, relPath string) string {
	return prefix + filepath.ToSlash(relPath) + ".jsonl"
}
