package translate

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runParallel runs fn for every task with at most maxConcurrent in flight,
// waiting delay between launches. The first error cancels the context seen
// by the remaining tasks and is returned.
func runParallel[T any](ctx context.Context, tasks []T, maxConcurrent int, delay time.Duration, fn func(context.Context, T) error) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)

launch:
	for i, task := range tasks {
		if gctx.Err() != nil {
			break
		}
		if i > 0 && delay > 0 {
			select {
			case <-gctx.Done():
				break launch
			case <-time.After(delay):
			}
		}
		g.Go(func() error {
			return fn(gctx, task)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
