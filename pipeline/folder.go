package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/lockfile"
)

// FolderOptions describes one folder translation.
type FolderOptions struct {
	// Source is the folder holding the original documents.
	Source string
	// Target is the folder receiving the translations, mirroring Source.
	Target string
	// CheckpointPrefix is prepended to every document's checkpoint key.
	CheckpointPrefix string
	// Ext selects the documents to translate (e.g. ".md").
	Ext string
	// SkipExisting leaves documents alone whose output already exists.
	SkipExisting bool
	// Recursive descends into subfolders.
	Recursive bool
	// Incremental re-translates only documents whose source changed since
	// the last successful translation recorded in Lock.
	Incremental bool
	// Lock records source checksums. Required for Incremental.
	Lock *lockfile.LockFile
	// LockTarget is the lock key of this target; empty means Target.
	LockTarget string
}

func (o *FolderOptions) lockTarget() string {
	if o.LockTarget != "" {
		return o.LockTarget
	}
	return lockfile.TargetKey(o.Target, "")
}

// Document is one file found in a folder translation.
type Document struct {
	// Rel is the path relative to the source folder.
	Rel string
	Src string
	Dst string
	// Key is the checkpoint key, "{prefix}{rel}.jsonl".
	Key string
}

// FolderStats summarizes a folder translation.
type FolderStats struct {
	Translated int
	Existing   int
	Unchanged  int
}

// Documents lists the documents of a folder translation in lexical order.
// A target folder nested inside the source is never descended into.
func Documents(opts FolderOptions) ([]Document, error) {
	info, err := os.Stat(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", opts.Source, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", opts.Source)
	}

	srcAbs, _ := filepath.Abs(opts.Source)
	dstAbs, _ := filepath.Abs(opts.Target)

	var docs []Document
	err = filepath.WalkDir(opts.Source, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			if path == opts.Source {
				return nil
			}
			if !opts.Recursive {
				return filepath.SkipDir
			}
			if abs, _ := filepath.Abs(path); abs == dstAbs && abs != srcAbs {
				return filepath.SkipDir
			}
			return nil
		}
		if !de.Type().IsRegular() || !matchExt(path, opts.Ext) {
			return nil
		}
		rel, err := filepath.Rel(opts.Source, path)
		if err != nil {
			return err
		}
		docs = append(docs, Document{
			Rel: rel,
			Src: path,
			Dst: filepath.Join(opts.Target, rel),
			Key: checkpoint.Key(opts.CheckpointPrefix, rel),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", opts.Source, err)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Rel < docs[j].Rel })
	return docs, nil
}

func matchExt(path, ext string) bool {
	if ext == "" {
		return true
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.EqualFold(filepath.Ext(path), ext)
}

// TranslateFolder translates every matching document under opts.Source into
// opts.Target. Documents are processed one after another; the first failure
// aborts the folder and is returned.
func (d *Driver) TranslateFolder(ctx context.Context, opts FolderOptions) (FolderStats, error) {
	var stats FolderStats

	docs, err := Documents(opts)
	if err != nil {
		return stats, err
	}

	lock := opts.Lock
	if opts.Incremental && lock == nil {
		return stats, fmt.Errorf("incremental translation of %s requires a lock file", opts.Source)
	}
	target := opts.lockTarget()
	if lock != nil && d.Fresh {
		lock.RemoveTarget(target)
	}

	var changed map[string]string
	if opts.Incremental {
		sources := make(map[string]string, len(docs))
		for _, doc := range docs {
			data, err := os.ReadFile(doc.Src)
			if err != nil {
				return stats, fmt.Errorf("reading %s: %w", doc.Src, err)
			}
			sources[lockfile.DocumentKey(doc.Rel)] = string(data)
		}
		changed = lock.FilterChanged(target, sources)
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		if opts.Incremental {
			if _, ok := changed[lockfile.DocumentKey(doc.Rel)]; !ok && fileExists(doc.Dst) {
				stats.Unchanged++
				d.logger().Debug("source unchanged, skipping", zap.String("doc", doc.Rel))
				continue
			}
		} else if opts.SkipExisting && fileExists(doc.Dst) {
			stats.Existing++
			d.logger().Debug("output exists, skipping", zap.String("doc", doc.Rel))
			continue
		}

		d.log("[%d/%d] %s", i+1, len(docs), doc.Rel)
		if err := d.TranslateFile(ctx, doc.Src, doc.Dst, doc.Key); err != nil {
			return stats, err
		}
		stats.Translated++

		if lock != nil {
			data, err := os.ReadFile(doc.Src)
			if err != nil {
				return stats, fmt.Errorf("reading %s: %w", doc.Src, err)
			}
			lock.Update(target, lockfile.DocumentKey(doc.Rel), string(data))
			if err := lock.Save(); err != nil {
				return stats, fmt.Errorf("saving lock file: %w", err)
			}
		}
	}

	if lock != nil {
		keys := make([]string, len(docs))
		for i, doc := range docs {
			keys[i] = lockfile.DocumentKey(doc.Rel)
		}
		lock.Clean(target, keys)
		if err := lock.Save(); err != nil {
			return stats, fmt.Errorf("saving lock file: %w", err)
		}
	}
	return stats, nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
