package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/pipeline"
	"github.com/minios-linux/doctrans/slicer"
)

// fakeCompleter upper-cases the prompt and fails prompts listed in fail.
type fakeCompleter struct {
	mu       sync.Mutex
	calls    []string
	fail     map[string]bool
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls = append(f.calls, userPrompt)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.fail[userPrompt] {
		return "", fmt.Errorf("provider rejected %q", userPrompt)
	}
	return strings.ToUpper(userPrompt), nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func finalTexts(rs []slicer.Result) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		if r != nil {
			out[i] = r.FinalText()
		} else {
			out[i] = "<nil>"
		}
	}
	return out
}

func newStore(t *testing.T) checkpoint.Store {
	t.Helper()
	return checkpoint.NewJSONLStore(t.TempDir())
}

// ---------------------------------------------------------------------------
// ProcessBatch
// ---------------------------------------------------------------------------

func TestProcessBatch_OrderedResults(t *testing.T) {
	fc := &fakeCompleter{}
	b := NewBackend(fc, newStore(t), Options{MaxConcurrent: 4}, nil)
	units := []string{"a", "b", "c", "d", "e"}

	got, err := b.ProcessBatch(context.Background(), units, "doc.md.jsonl")
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestProcessBatch_ResumesFromCheckpoint(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	key := "guide.md.jsonl"
	if err := store.Append(ctx, key, checkpoint.Record{ID: 1, Prompt: "b", Reply: "cached-b"}); err != nil {
		t.Fatal(err)
	}
	// Stale entry: the source unit changed since it was translated.
	if err := store.Append(ctx, key, checkpoint.Record{ID: 2, Prompt: "old c", Reply: "OLD C"}); err != nil {
		t.Fatal(err)
	}

	fc := &fakeCompleter{}
	b := NewBackend(fc, store, Options{}, nil)
	got, err := b.ProcessBatch(ctx, []string{"a", "b", "c"}, key)
	if err != nil {
		t.Fatalf("ProcessBatch: %v", err)
	}
	if diff := cmp.Diff([]string{"A", "cached-b", "C"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if fc.callCount() != 2 {
		t.Errorf("completer called %d times, want 2", fc.callCount())
	}
}

func TestProcessBatch_FailureFailsBatch(t *testing.T) {
	fc := &fakeCompleter{fail: map[string]bool{"bad": true}}
	b := NewBackend(fc, nil, Options{MaxConcurrent: 1}, nil)
	_, err := b.ProcessBatch(context.Background(), []string{"ok", "bad", "later"}, "k")
	if err == nil || !strings.Contains(err.Error(), "unit 1") {
		t.Fatalf("err = %v, want failure naming unit 1", err)
	}
}

func TestProcessBatch_RespectsMaxConcurrent(t *testing.T) {
	fc := &fakeCompleter{delay: 5 * time.Millisecond}
	b := NewBackend(fc, nil, Options{MaxConcurrent: 2}, nil)
	units := make([]string, 12)
	for i := range units {
		units[i] = fmt.Sprintf("u%d", i)
	}
	if _, err := b.ProcessBatch(context.Background(), units, "k"); err != nil {
		t.Fatal(err)
	}
	if p := fc.peak.Load(); p > 2 {
		t.Errorf("peak concurrency %d, want <= 2", p)
	}
}

func TestProcessBatch_Progress(t *testing.T) {
	var mu sync.Mutex
	var last, calls int
	fc := &fakeCompleter{}
	b := NewBackend(fc, nil, Options{OnProgress: func(key string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if done > last {
			last = done
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
	}}, nil)
	if _, err := b.ProcessBatch(context.Background(), []string{"x", "y", "z"}, "k"); err != nil {
		t.Fatal(err)
	}
	if calls != 3 || last != 3 {
		t.Errorf("progress calls = %d, last = %d", calls, last)
	}
}

// ---------------------------------------------------------------------------
// SubmitBatch / LoadResults
// ---------------------------------------------------------------------------

func TestSubmitBatch_FailuresLeftAbsent(t *testing.T) {
	var errs []string
	var mu sync.Mutex
	fc := &fakeCompleter{fail: map[string]bool{"two": true}}
	b := NewBackend(fc, newStore(t), Options{
		OnError: func(format string, args ...any) {
			mu.Lock()
			errs = append(errs, fmt.Sprintf(format, args...))
			mu.Unlock()
		},
	}, nil)
	ctx := context.Background()
	units := []string{"one", "two", "three"}

	if err := b.SubmitBatch(ctx, units, "k"); err != nil {
		t.Fatalf("SubmitBatch: %v", err)
	}
	got, err := b.LoadResults(ctx, "k", units)
	if err != nil {
		t.Fatalf("LoadResults: %v", err)
	}
	if diff := cmp.Diff([]string{"ONE", "<nil>", "THREE"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
	if len(errs) != 1 {
		t.Errorf("got %d error reports, want 1: %v", len(errs), errs)
	}
}

func TestSubmitBatch_MaxRequests(t *testing.T) {
	fc := &fakeCompleter{}
	b := NewBackend(fc, newStore(t), Options{MaxRequests: 2, MaxConcurrent: 1}, nil)
	ctx := context.Background()
	units := []string{"a", "b", "c", "d", "e"}

	if err := b.SubmitBatch(ctx, units, "k"); err != nil {
		t.Fatal(err)
	}
	if fc.callCount() != 2 {
		t.Fatalf("first submit made %d requests, want 2", fc.callCount())
	}
	got, err := b.LoadResults(ctx, "k", units)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "B", "<nil>", "<nil>", "<nil>"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}

	// Each further submit continues where the previous one stopped.
	for i := 0; i < 2; i++ {
		if err := b.SubmitBatch(ctx, units, "k"); err != nil {
			t.Fatal(err)
		}
	}
	if fc.callCount() != 5 {
		t.Errorf("total requests = %d, want 5", fc.callCount())
	}
	got, _ = b.LoadResults(ctx, "k", units)
	if diff := cmp.Diff([]string{"A", "B", "C", "D", "E"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmitBatch_NothingPending(t *testing.T) {
	fc := &fakeCompleter{}
	b := NewBackend(fc, newStore(t), Options{}, nil)
	ctx := context.Background()
	units := []string{"a"}
	if err := b.SubmitBatch(ctx, units, "k"); err != nil {
		t.Fatal(err)
	}
	if err := b.SubmitBatch(ctx, units, "k"); err != nil {
		t.Fatal(err)
	}
	if fc.callCount() != 1 {
		t.Errorf("completer called %d times, want 1", fc.callCount())
	}
}

func TestSubmitBatch_RequiresStore(t *testing.T) {
	b := NewBackend(&fakeCompleter{}, nil, Options{}, nil)
	if err := b.SubmitBatch(context.Background(), []string{"a"}, "k"); !errors.Is(err, ErrNoStore) {
		t.Errorf("SubmitBatch err = %v, want ErrNoStore", err)
	}
	if _, err := b.LoadResults(context.Background(), "k", []string{"a"}); !errors.Is(err, ErrNoStore) {
		t.Errorf("LoadResults err = %v, want ErrNoStore", err)
	}
}

func TestSubmitBatch_Cancelled(t *testing.T) {
	fc := &fakeCompleter{delay: time.Second}
	b := NewBackend(fc, newStore(t), Options{MaxConcurrent: 2}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := b.SubmitBatch(ctx, []string{"a", "b", "c"}, "k")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestLoadResults_IgnoresExtraPositions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if err := store.Append(ctx, "k", checkpoint.Record{ID: i, Prompt: "p", Reply: fmt.Sprint(i)}); err != nil {
			t.Fatal(err)
		}
	}
	b := NewBackend(&fakeCompleter{}, store, Options{}, nil)
	got, err := b.LoadResults(ctx, "k", []string{"p", "p"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"0", "1"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadResults_StalePromptIsAbsent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	if err := store.Append(ctx, "k", checkpoint.Record{ID: 0, Prompt: "a", Reply: "A"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Append(ctx, "k", checkpoint.Record{ID: 1, Prompt: "old b", Reply: "OLD B"}); err != nil {
		t.Fatal(err)
	}
	b := NewBackend(&fakeCompleter{}, store, Options{}, nil)
	got, err := b.LoadResults(ctx, "k", []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"A", "<nil>"}, finalTexts(got)); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

// seedStale records replies for an earlier version of a two-line document.
func seedStale(t *testing.T, store checkpoint.Store) {
	t.Helper()
	ctx := context.Background()
	for i, prompt := range []string{"old first\n", "old second\n"} {
		rec := checkpoint.Record{ID: i, Prompt: prompt, Reply: fmt.Sprintf("OLD%d", i)}
		if err := store.Append(ctx, "k", rec); err != nil {
			t.Fatal(err)
		}
	}
}

func staleDriver(b *Backend) *pipeline.Driver {
	return &pipeline.Driver{
		Backend: b,
		Grammar: slicer.Plain,
		Config:  slicer.Config{Marker: slicer.DefaultMarker, LowerBound: 1},
		Cost:    func(s string) int { return len(strings.Fields(s)) },
		Async:   true,
	}
}

func TestAsyncDriver_FailedRerequestOfStaleUnit(t *testing.T) {
	store := newStore(t)
	seedStale(t, store)
	fc := &fakeCompleter{fail: map[string]bool{"new second\n": true}}
	d := staleDriver(NewBackend(fc, store, Options{}, nil))
	ctx := context.Background()
	text := "new first\nnew second\n"

	out, err := d.ProcessTextAsync(ctx, text, "k")
	if !errors.Is(err, pipeline.ErrIncomplete) {
		t.Fatalf("ProcessTextAsync = %q, %v; want ErrIncomplete", out, err)
	}
	done, total, err := d.Status(ctx, text, "k")
	if err != nil {
		t.Fatal(err)
	}
	if done != 1 || total != 2 {
		t.Errorf("Status = %d/%d, want 1/2", done, total)
	}
}

func TestAsyncDriver_StaleUnitBeyondRequestCap(t *testing.T) {
	store := newStore(t)
	seedStale(t, store)
	fc := &fakeCompleter{}
	d := staleDriver(NewBackend(fc, store, Options{MaxRequests: 1}, nil))
	ctx := context.Background()
	text := "new first\nchanged\n"

	if out, err := d.ProcessTextAsync(ctx, text, "k"); !errors.Is(err, pipeline.ErrIncomplete) {
		t.Fatalf("ProcessTextAsync = %q, %v; want ErrIncomplete", out, err)
	}
	out, err := d.ProcessTextAsync(ctx, text, "k")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if out != "NEW FIRST\n\nCHANGED\n" {
		t.Errorf("ProcessTextAsync = %q", out)
	}
	if fc.callCount() != 2 {
		t.Errorf("completer called %d times, want 2", fc.callCount())
	}
}

func TestBackend_ClearStartsFresh(t *testing.T) {
	fc := &fakeCompleter{}
	b := NewBackend(fc, newStore(t), Options{}, nil)
	ctx := context.Background()
	if _, err := b.ProcessBatch(ctx, []string{"a"}, "k"); err != nil {
		t.Fatal(err)
	}
	if err := b.Clear(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.ProcessBatch(ctx, []string{"a"}, "k"); err != nil {
		t.Fatal(err)
	}
	if fc.callCount() != 2 {
		t.Errorf("completer called %d times after clear, want 2", fc.callCount())
	}
}

func TestBackend_CheckpointRecordsModel(t *testing.T) {
	store := newStore(t)
	b := NewBackend(&fakeCompleter{}, store, Options{Model: "llama-3.3"}, nil)
	ctx := context.Background()
	if _, err := b.ProcessBatch(ctx, []string{"hi"}, "k"); err != nil {
		t.Fatal(err)
	}
	recs, err := store.Load(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	rec, ok := recs[0]
	if !ok {
		t.Fatal("no record for position 0")
	}
	if rec.Prompt != "hi" || rec.Reply != "HI" || rec.Model != "llama-3.3" || rec.Time.IsZero() {
		t.Errorf("record = %+v", rec)
	}
}
