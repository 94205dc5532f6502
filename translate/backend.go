package translate

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/doctrans/checkpoint"
	"github.com/minios-linux/doctrans/slicer"
)

// ErrNoStore is returned by the asynchronous entry points when the backend
// has no checkpoint store to collect results in.
var ErrNoStore = errors.New("asynchronous translation requires a checkpoint store")

// Chat is one finished request. It is the slicer.Result handed back to the
// document pipeline.
type Chat struct {
	Prompt string
	Reply  string
	Model  string
}

// FinalText returns the model's reply.
func (c *Chat) FinalText() string { return c.Reply }

func chatFromRecord(rec checkpoint.Record) *Chat {
	return &Chat{Prompt: rec.Prompt, Reply: rec.Reply, Model: rec.Model}
}

// ---------------------------------------------------------------------------
// Backend options
// ---------------------------------------------------------------------------

// Options controls how a Backend runs units through its Completer.
type Options struct {
	// SystemPrompt is sent with every unit, with {{targetLang}} already
	// substituted.
	SystemPrompt string
	// Model is recorded in the checkpoint next to each reply.
	Model string
	// MaxConcurrent is the maximum number of requests in flight. Default: 3.
	MaxConcurrent int
	// MaxRequests caps the number of new requests one SubmitBatch call
	// launches (0 = no cap).
	MaxRequests int
	// RequestDelay is the delay between launching requests.
	RequestDelay time.Duration
	// OnProgress is called after each unit is finished.
	OnProgress func(key string, done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveMaxConcurrent() int {
	if o.MaxConcurrent > 0 {
		return o.MaxConcurrent
	}
	return 3
}

// ---------------------------------------------------------------------------
// Backend
// ---------------------------------------------------------------------------

// Backend runs document units through a Completer, one request per unit,
// and records every reply in a checkpoint store keyed by the unit's
// position. Positions already in the checkpoint are not requested again.
type Backend struct {
	completer Completer
	store     checkpoint.Store
	opts      Options
	logger    *zap.Logger
}

// NewBackend creates a Backend. store may be nil for purely synchronous use
// without resume support.
func NewBackend(c Completer, store checkpoint.Store, opts Options, logger *zap.Logger) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{completer: c, store: store, opts: opts, logger: logger}
}

// ProcessBatch translates every unit and returns one result per unit, in
// order. The first failing request cancels the rest and fails the batch;
// replies finished before the failure stay in the checkpoint.
func (b *Backend) ProcessBatch(ctx context.Context, units []string, key string) ([]slicer.Result, error) {
	done, err := b.load(ctx, key)
	if err != nil {
		return nil, err
	}

	results := make([]slicer.Result, len(units))
	pending := b.pending(units, done, key, results)

	total := len(units)
	var finished atomic.Int64
	finished.Store(int64(total - len(pending)))

	err = runParallel(ctx, pending, b.opts.effectiveMaxConcurrent(), b.opts.RequestDelay, func(ctx context.Context, i int) error {
		chat, err := b.request(ctx, key, i, units[i])
		if err != nil {
			return fmt.Errorf("unit %d of %s: %w", i, key, err)
		}
		results[i] = chat
		b.progress(key, int(finished.Add(1)), total)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// SubmitBatch requests every unit that has no checkpointed reply yet,
// launching at most MaxRequests new requests. Failed units are reported and
// left absent; the caller finds them missing in LoadResults.
func (b *Backend) SubmitBatch(ctx context.Context, units []string, key string) error {
	if b.store == nil {
		return ErrNoStore
	}
	done, err := b.load(ctx, key)
	if err != nil {
		return err
	}

	pending := b.pending(units, done, key, nil)
	if b.opts.MaxRequests > 0 && len(pending) > b.opts.MaxRequests {
		b.logger.Debug("request cap reached",
			zap.String("key", key),
			zap.Int("pending", len(pending)),
			zap.Int("max_requests", b.opts.MaxRequests))
		pending = pending[:b.opts.MaxRequests]
	}
	if len(pending) == 0 {
		return nil
	}

	total := len(units)
	var finished, failed atomic.Int64
	finished.Store(int64(total - len(pending)))

	err = runParallel(ctx, pending, b.opts.effectiveMaxConcurrent(), b.opts.RequestDelay, func(ctx context.Context, i int) error {
		_, err := b.request(ctx, key, i, units[i])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var storeErr *storeError
			if errors.As(err, &storeErr) {
				return err
			}
			failed.Add(1)
			b.opts.logError("Unit %d of %s failed: %v", i, key, err)
			b.logger.Warn("unit failed", zap.String("key", key), zap.Int("unit", i), zap.Error(err))
			return nil
		}
		b.progress(key, int(finished.Add(1)), total)
		return nil
	})
	if n := failed.Load(); n > 0 {
		b.opts.log("%s: %d of %d requests failed", key, n, len(pending))
	}
	return err
}

// LoadResults returns the checkpointed replies of key, one per unit. A
// position without a reply, or whose reply was recorded for a different
// prompt, is nil.
func (b *Backend) LoadResults(ctx context.Context, key string, units []string) ([]slicer.Result, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	done, err := b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	results := make([]slicer.Result, len(units))
	b.pending(units, done, key, results)
	return results, nil
}

// Clear drops the checkpoint of key so the next run starts fresh.
func (b *Backend) Clear(ctx context.Context, key string) error {
	if b.store == nil {
		return nil
	}
	if err := b.store.Clear(ctx, key); err != nil {
		return fmt.Errorf("clearing checkpoint %s: %w", key, err)
	}
	return nil
}

// Store returns the checkpoint store, or nil.
func (b *Backend) Store() checkpoint.Store {
	return b.store
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

// storeError marks a checkpoint write failure, which is never tolerated.
type storeError struct{ err error }

func (e *storeError) Error() string { return e.err.Error() }
func (e *storeError) Unwrap() error { return e.err }

func (b *Backend) load(ctx context.Context, key string) (map[int]checkpoint.Record, error) {
	if b.store == nil {
		return nil, nil
	}
	done, err := b.store.Load(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("loading checkpoint %s: %w", key, err)
	}
	return done, nil
}

// pending returns the positions that still need a request. A checkpointed
// reply whose prompt differs from the unit is stale and requested again.
// When results is non-nil, reusable replies are filled into it.
func (b *Backend) pending(units []string, done map[int]checkpoint.Record, key string, results []slicer.Result) []int {
	var pending []int
	reused := 0
	for i, unit := range units {
		rec, ok := done[i]
		if ok && rec.Prompt == unit {
			reused++
			if results != nil {
				results[i] = chatFromRecord(rec)
			}
			continue
		}
		if ok {
			b.logger.Debug("stale checkpoint entry", zap.String("key", key), zap.Int("unit", i))
		}
		pending = append(pending, i)
	}
	if reused > 0 {
		b.logger.Debug("resuming from checkpoint",
			zap.String("key", key),
			zap.Int("done", reused),
			zap.Int("total", len(units)))
	}
	return pending
}

func (b *Backend) request(ctx context.Context, key string, i int, unit string) (*Chat, error) {
	reply, err := b.completer.Complete(ctx, b.opts.SystemPrompt, unit)
	if err != nil {
		return nil, err
	}
	chat := &Chat{Prompt: unit, Reply: reply, Model: b.opts.Model}
	if b.store != nil {
		rec := checkpoint.Record{
			ID:     i,
			Prompt: unit,
			Reply:  reply,
			Model:  b.opts.Model,
			Time:   time.Now().UTC(),
		}
		// A reply that already arrived is kept even when the run is
		// being interrupted.
		if err := b.store.Append(context.WithoutCancel(ctx), key, rec); err != nil {
			return nil, &storeError{fmt.Errorf("writing checkpoint %s: %w", key, err)}
		}
	}
	return chat, nil
}

func (b *Backend) progress(key string, done, total int) {
	if b.opts.OnProgress != nil {
		b.opts.OnProgress(key, done, total)
	}
}
