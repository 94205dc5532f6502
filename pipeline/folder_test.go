package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/doctrans/lockfile"
	"github.com/minios-linux/doctrans/slicer"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// sourceTree creates a small documentation folder and returns its root.
func sourceTree(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "en")
	writeFile(t, filepath.Join(root, "index.md"), "hello\n")
	writeFile(t, filepath.Join(root, "guide", "setup.md"), "install it\n")
	writeFile(t, filepath.Join(root, "guide", "notes.txt"), "not markdown\n")
	writeFile(t, filepath.Join(root, "README.MD"), "upper ext\n")
	return root
}

func TestDocuments_KeysAndFilter(t *testing.T) {
	src := sourceTree(t)
	dst := filepath.Join(filepath.Dir(src), "zh")
	docs, err := Documents(FolderOptions{Source: src, Target: dst, CheckpointPrefix: "docs-", Ext: ".md", Recursive: true})
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	var keys []string
	for _, d := range docs {
		keys = append(keys, d.Key)
		if want := filepath.Join(dst, d.Rel); d.Dst != want {
			t.Errorf("Dst = %q, want %q", d.Dst, want)
		}
	}
	want := []string{"docs-README.MD.jsonl", "docs-guide/setup.md.jsonl", "docs-index.md.jsonl"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestDocuments_NonRecursive(t *testing.T) {
	src := sourceTree(t)
	docs, err := Documents(FolderOptions{Source: src, Target: t.TempDir(), Ext: "md"})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		if strings.Contains(d.Rel, string(filepath.Separator)) {
			t.Errorf("non-recursive walk returned %s", d.Rel)
		}
	}
	if len(docs) != 2 {
		t.Errorf("got %d documents, want 2", len(docs))
	}
}

func TestDocuments_SkipsNestedTarget(t *testing.T) {
	src := sourceTree(t)
	dst := filepath.Join(src, "out")
	writeFile(t, filepath.Join(dst, "index.md"), "old output\n")
	docs, err := Documents(FolderOptions{Source: src, Target: dst, Ext: ".md", Recursive: true})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range docs {
		if strings.HasPrefix(d.Rel, "out") {
			t.Errorf("target folder was walked: %s", d.Rel)
		}
	}
}

func TestDocuments_SourceMustBeDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a.md")
	writeFile(t, file, "x\n")
	if _, err := Documents(FolderOptions{Source: file}); err == nil {
		t.Error("expected error for a file source")
	}
}

func TestTranslateFolder_TranslatesAndSkipsExisting(t *testing.T) {
	src := sourceTree(t)
	dst := filepath.Join(filepath.Dir(src), "zh")
	writeFile(t, filepath.Join(dst, "index.md"), "already done\n")

	b := newMemBackend()
	d := newDriver(b, slicer.Markdown, 300)
	stats, err := d.TranslateFolder(context.Background(), FolderOptions{
		Source: src, Target: dst, Ext: ".md", Recursive: true, SkipExisting: true,
	})
	if err != nil {
		t.Fatalf("TranslateFolder: %v", err)
	}
	if diff := cmp.Diff(FolderStats{Translated: 2, Existing: 1}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, filepath.Join(dst, "guide", "setup.md")); got != "INSTALL IT\n" {
		t.Errorf("setup.md = %q", got)
	}
	if got := readFile(t, filepath.Join(dst, "index.md")); got != "already done\n" {
		t.Errorf("existing output overwritten: %q", got)
	}
	if _, err := os.Stat(filepath.Join(dst, "guide", "notes.txt")); !os.IsNotExist(err) {
		t.Error("file with another extension was translated")
	}
}

func TestTranslateFolder_AbortsOnFirstFailure(t *testing.T) {
	src := sourceTree(t)
	dst := filepath.Join(filepath.Dir(src), "zh")
	b := newMemBackend()
	b.withhold = map[string]bool{"install it\n": true}
	d := newDriver(b, slicer.Markdown, 300)
	d.Async = true

	stats, err := d.TranslateFolder(context.Background(), FolderOptions{
		Source: src, Target: dst, Ext: ".md", Recursive: true,
	})
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("err = %v, want ErrIncomplete", err)
	}
	if !strings.Contains(err.Error(), "setup.md") {
		t.Errorf("error should name the failing file: %v", err)
	}
	// README.MD sorts first and is done; index.md comes after the failure.
	if stats.Translated != 1 {
		t.Errorf("translated %d documents before the failure, want 1", stats.Translated)
	}
	if _, err := os.Stat(filepath.Join(dst, "guide", "setup.md")); !os.IsNotExist(err) {
		t.Error("incomplete document was written")
	}
	if _, err := os.Stat(filepath.Join(dst, "index.md")); !os.IsNotExist(err) {
		t.Error("folder continued after a failure")
	}
}

func TestTranslateFolder_Incremental(t *testing.T) {
	src := sourceTree(t)
	dst := filepath.Join(filepath.Dir(src), "zh")
	lock, err := lockfile.Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	opts := FolderOptions{
		Source: src, Target: dst, Ext: ".md", Recursive: true,
		Incremental: true, Lock: lock, LockTarget: lockfile.TargetKey(dst, "zh"),
	}

	b := newMemBackend()
	d := newDriver(b, slicer.Markdown, 300)
	stats, err := d.TranslateFolder(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Translated != 3 {
		t.Fatalf("first run translated %d, want 3", stats.Translated)
	}

	// Change one source and run again: only that document is redone.
	writeFile(t, filepath.Join(src, "index.md"), "hello again\n")
	stats, err = d.TranslateFolder(context.Background(), opts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(FolderStats{Translated: 1, Unchanged: 2}, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if got := readFile(t, filepath.Join(dst, "index.md")); got != "HELLO AGAIN\n" {
		t.Errorf("index.md = %q", got)
	}

	// The lock survives a reload.
	reloaded, err := lockfile.Load(filepath.Dir(lock.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if reloaded.IsChanged(opts.LockTarget, "index.md", "hello again\n") {
		t.Error("lock file does not record the new checksum")
	}
}

func TestTranslateFolder_IncrementalNeedsLock(t *testing.T) {
	src := sourceTree(t)
	d := newDriver(newMemBackend(), slicer.Markdown, 300)
	if _, err := d.TranslateFolder(context.Background(), FolderOptions{Source: src, Target: t.TempDir(), Incremental: true}); err == nil {
		t.Error("expected error without lock file")
	}
}

func TestTranslateFolder_Cancelled(t *testing.T) {
	src := sourceTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := newDriver(newMemBackend(), slicer.Markdown, 300)
	_, err := d.TranslateFolder(ctx, FolderOptions{Source: src, Target: t.TempDir(), Ext: ".md", Recursive: true})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestTranslateFile_WritesOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.txt")
	dst := filepath.Join(dir, "out", "deep", "in.txt")
	writeFile(t, src, "line one\nline two\n")
	d := newDriver(newMemBackend(), slicer.Plain, 1)
	if err := d.TranslateFile(context.Background(), src, dst, "in.txt.jsonl"); err != nil {
		t.Fatalf("TranslateFile: %v", err)
	}
	if got := readFile(t, dst); got != "LINE ONE\n\nLINE TWO\n" {
		t.Errorf("output = %q", got)
	}
}

func TestTranslateFile_MissingSource(t *testing.T) {
	d := newDriver(newMemBackend(), slicer.Plain, 1)
	err := d.TranslateFile(context.Background(), filepath.Join(t.TempDir(), "nope"), "x", "k")
	if err == nil || !strings.Contains(err.Error(), "reading") {
		t.Errorf("err = %v, want reading error", err)
	}
}
