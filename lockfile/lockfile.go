// Package lockfile implements doctrans.lock, a lock file that tracks the
// MD5 checksum of every source document translated into a target folder.
// This enables incremental folder runs: documents whose source is unchanged
// since their last successful translation are skipped.
//
// The lock file is stored in the project root (next to .doctrans.yaml) or,
// without a project file, in the checkpoint directory.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "doctrans.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile represents the doctrans.lock file structure.
type LockFile struct {
	Version   int                          `yaml:"version"`
	Checksums map[string]map[string]string `yaml:"checksums"` // target -> document -> md5

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Checksums: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Checksums == nil {
		lf.Checksums = make(map[string]map[string]string)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(lf.path), 0755); err != nil {
		return fmt.Errorf("creating lock file directory: %w", err)
	}
	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// TargetKey builds the lock key of a translation target: the destination
// folder plus the target language, so the same sources translated into two
// languages are tracked separately.
func TargetKey(targetDir, lang string) string {
	key := filepath.ToSlash(filepath.Clean(targetDir))
	if lang != "" {
		key += "@" + lang
	}
	return key
}

// DocumentKey builds the lock key of a source document from its path
// relative to the source folder.
func DocumentKey(relPath string) string {
	return filepath.ToSlash(relPath)
}

// IsChanged checks if a source document has changed since its last
// translation. Returns true if the document is new or its content changed.
func (lf *LockFile) IsChanged(target, key, sourceContent string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	keys, ok := lf.Checksums[target]
	if !ok {
		return true
	}
	oldHash, ok := keys[key]
	if !ok {
		return true
	}
	return oldHash != Hash(sourceContent)
}

// Update records the checksum of a source document after successful translation.
func (lf *LockFile) Update(target, key, sourceContent string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Checksums[target] == nil {
		lf.Checksums[target] = make(map[string]string)
	}
	lf.Checksums[target][key] = Hash(sourceContent)
}

// FilterChanged returns the documents whose source content has changed
// since the last translation. The input maps document key to content.
func (lf *LockFile) FilterChanged(target string, entries map[string]string) map[string]string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	changed := make(map[string]string)

	for key, content := range entries {
		hash := Hash(content)
		if existing == nil || existing[key] != hash {
			changed[key] = content
		}
	}

	return changed
}

// Clean drops entries for documents that no longer exist in the source
// folder.
func (lf *LockFile) Clean(target string, currentKeys []string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	existing := lf.Checksums[target]
	if existing == nil {
		return
	}

	valid := make(map[string]bool, len(currentKeys))
	for _, k := range currentKeys {
		valid[k] = true
	}

	for k := range existing {
		if !valid[k] {
			delete(existing, k)
		}
	}
}

// RemoveTarget removes all checksums for a target.
func (lf *LockFile) RemoveTarget(target string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	delete(lf.Checksums, target)
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of targets and tracked documents.
func (lf *LockFile) Stats() (targets, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets = len(lf.Checksums)
	for _, m := range lf.Checksums {
		keys += len(m)
	}
	return
}

// Targets returns sorted list of target keys.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Checksums))
	for t := range lf.Checksums {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// ---------------------------------------------------------------------------
// Human-readable summary
// ---------------------------------------------------------------------------

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	targets, keys := lf.Stats()
	if targets == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		n := len(lf.Checksums[t])
		parts = append(parts, fmt.Sprintf("%s: %d documents", t, n))
	}
	return fmt.Sprintf("%d targets, %d documents (%s)", targets, keys, strings.Join(parts, ", "))
}
