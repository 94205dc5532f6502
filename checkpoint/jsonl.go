package checkpoint

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore keeps one JSON-lines file per key under Dir. Keys may contain
// slashes; the matching subdirectories are created on demand.
type JSONLStore struct {
	Dir string

	mu sync.Mutex
}

// NewJSONLStore returns a store rooted at dir.
func NewJSONLStore(dir string) *JSONLStore {
	return &JSONLStore{Dir: dir}
}

// Path returns the file that holds the log of key.
func (s *JSONLStore) Path(key string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(key))
}

// Load reads the log of key. A truncated last line, as left behind by an
// interrupted write, is ignored; a malformed line elsewhere is an error.
func (s *JSONLStore) Load(ctx context.Context, key string) (map[int]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[int]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}

	records := make(map[int]Record)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	var pending error
	lineNo := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if pending != nil {
			return nil, pending
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			pending = fmt.Errorf("checkpoint %s line %d: %w", path, lineNo, err)
			continue
		}
		records[rec.ID] = rec
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", path, err)
	}
	return records, nil
}

// Append writes rec as one line at the end of the log of key.
func (s *JSONLStore) Append(_ context.Context, key string, rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding checkpoint record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("opening checkpoint %s: %w", path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("writing checkpoint %s: %w", path, err)
	}
	return f.Close()
}

// Clear deletes the log of key. Clearing a missing log is not an error.
func (s *JSONLStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(key)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing checkpoint %s: %w", path, err)
	}
	return nil
}

// Close is a no-op; files are closed after every write.
func (s *JSONLStore) Close() error { return nil }
