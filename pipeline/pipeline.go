// Package pipeline drives documents through the slice/recover pipeline: a
// document is sliced into units, the units are handed to a Backend, and the
// results are reassembled into the translated document.
//
// Two modes exist. The synchronous driver waits for the backend to return
// every result. The asynchronous driver submits the units, then loads
// whatever results the backend collected; a missing result makes the
// document incomplete and nothing is written.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/minios-linux/doctrans/slicer"
)

// ErrIncomplete is returned by the asynchronous driver when the backend
// has no result for at least one unit.
var ErrIncomplete = errors.New("translation incomplete")

// Backend processes filtered units. Results are positional: result i
// belongs to unit i.
type Backend interface {
	// ProcessBatch blocks until every unit is processed.
	ProcessBatch(ctx context.Context, units []string, key string) ([]slicer.Result, error)
	// SubmitBatch runs the units whose results are not yet recorded under
	// key. Failed units are left absent.
	SubmitBatch(ctx context.Context, units []string, key string) error
	// LoadResults returns the results recorded under key for units; a
	// position whose result is absent or belongs to another unit text is nil.
	LoadResults(ctx context.Context, key string, units []string) ([]slicer.Result, error)
}

// Clearer is implemented by backends that can drop the results recorded
// under a key.
type Clearer interface {
	Clear(ctx context.Context, key string) error
}

// Driver runs documents of one grammar through a Backend.
type Driver struct {
	Backend Backend
	Grammar slicer.Grammar
	Config  slicer.Config
	Cost    slicer.CostFunc
	// Async selects the submit-then-load driver for files and folders.
	Async bool
	// Fresh clears a document's recorded results before processing it.
	Fresh bool
	// Logger receives diagnostic output; nil means no logging.
	Logger *zap.Logger
	// OnLog emits user-facing progress messages.
	OnLog func(format string, args ...any)
}

func (d *Driver) log(format string, args ...any) {
	if d.OnLog != nil {
		d.OnLog(format, args...)
	}
}

func (d *Driver) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

func (d *Driver) cost() slicer.CostFunc {
	if d.Cost == nil {
		return func(s string) int { return len([]rune(s)) }
	}
	return d.Cost
}

// Slice cuts text into units using the driver's grammar and config.
func (d *Driver) Slice(text string) (*slicer.Sliced, error) {
	return slicer.Slice(slicer.Document{Text: text, Grammar: d.Grammar}, d.Config, d.cost())
}

// ProcessText translates text synchronously. key names the checkpoint the
// backend records results under.
func (d *Driver) ProcessText(ctx context.Context, text, key string) (string, error) {
	sl, err := d.prepare(ctx, text, key)
	if err != nil {
		return "", err
	}
	var results []slicer.Result
	if len(sl.Filtered) > 0 {
		results, err = d.Backend.ProcessBatch(ctx, sl.Filtered, key)
		if err != nil {
			return "", err
		}
	}
	return d.reassemble(sl, results, key)
}

// ProcessTextAsync submits the units of text, then loads the recorded
// results. If any unit has no result, ErrIncomplete is returned.
func (d *Driver) ProcessTextAsync(ctx context.Context, text, key string) (string, error) {
	sl, err := d.prepare(ctx, text, key)
	if err != nil {
		return "", err
	}
	n := len(sl.Filtered)
	var results []slicer.Result
	if n > 0 {
		if err := d.Backend.SubmitBatch(ctx, sl.Filtered, key); err != nil {
			return "", err
		}
		results, err = d.Backend.LoadResults(ctx, key, sl.Filtered)
		if err != nil {
			return "", err
		}
		if missing := countMissing(results); missing > 0 {
			return "", fmt.Errorf("%w: %d of %d units of %s have no result", ErrIncomplete, missing, n, key)
		}
	}
	return d.reassemble(sl, results, key)
}

// Process dispatches to ProcessText or ProcessTextAsync.
func (d *Driver) Process(ctx context.Context, text, key string) (string, error) {
	if d.Async {
		return d.ProcessTextAsync(ctx, text, key)
	}
	return d.ProcessText(ctx, text, key)
}

// Status reports how many units of text already have a recorded result.
func (d *Driver) Status(ctx context.Context, text, key string) (done, total int, err error) {
	sl, err := d.Slice(text)
	if err != nil {
		return 0, 0, err
	}
	total = len(sl.Filtered)
	if total == 0 {
		return 0, 0, nil
	}
	results, err := d.Backend.LoadResults(ctx, key, sl.Filtered)
	if err != nil {
		return 0, total, err
	}
	return total - countMissing(results), total, nil
}

// TranslateFile translates the document at src and writes it to dst.
// Nothing is written when processing fails.
func (d *Driver) TranslateFile(ctx context.Context, src, dst, key string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("reading %s: %w", src, err)
	}
	out, err := d.Process(ctx, string(data), key)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	if err := os.WriteFile(dst, []byte(out), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", dst, err)
	}
	d.logger().Debug("document written", zap.String("src", src), zap.String("dst", dst))
	return nil
}

func (d *Driver) prepare(ctx context.Context, text, key string) (*slicer.Sliced, error) {
	sl, err := d.Slice(text)
	if err != nil {
		return nil, fmt.Errorf("slicing %s: %w", key, err)
	}
	d.logger().Debug("document sliced",
		zap.String("key", key),
		zap.Stringer("grammar", d.Grammar),
		zap.Int("spans", len(sl.Spans)),
		zap.Int("blocks", len(sl.Opaque)),
		zap.Int("units", sl.Units()),
		zap.Int("work", len(sl.Filtered)))

	if d.Fresh {
		if c, ok := d.Backend.(Clearer); ok {
			if err := c.Clear(ctx, key); err != nil {
				return nil, err
			}
		}
	}
	return sl, nil
}

func (d *Driver) reassemble(sl *slicer.Sliced, results []slicer.Result, key string) (string, error) {
	out, err := sl.Reassemble(results)
	if err != nil {
		return "", fmt.Errorf("reassembling %s: %w", key, err)
	}
	return out, nil
}

func countMissing(results []slicer.Result) int {
	missing := 0
	for _, r := range results {
		if r == nil {
			missing++
		}
	}
	return missing
}
