// Package batch runs a function over a set of records with bounded
// concurrency, isolating per-record failures.
package batch

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options controls a ForEach run.
type Options struct {
	// Name labels log lines, e.g. "budget alerts".
	Name string
	// Workers bounds concurrent items. Values below 1 mean sequential.
	Workers int
	// ItemTimeout bounds each item. Zero disables the per-item deadline.
	ItemTimeout time.Duration
}

// Result counts the outcome of a run.
type Result struct {
	Processed int
	Failed    int
}

// ForEach calls fn for every item. A failing or slow item never stops the
// others: errors are logged with the item key and counted. ForEach returns
// early only when ctx is cancelled, in which case the items not yet started
// are skipped.
func ForEach[T any](ctx context.Context, items []T, opts Options, key func(T) string, fn func(context.Context, T) error) Result {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	var processed, failed atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(workers)

	for _, item := range items {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			itemCtx := ctx
			if opts.ItemTimeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(ctx, opts.ItemTimeout)
				defer cancel()
			}
			processed.Add(1)
			if err := fn(itemCtx, item); err != nil {
				failed.Add(1)
				log.Printf("%s: %s: %v", opts.Name, key(item), err)
			}
			return nil
		})
	}
	_ = g.Wait()

	return Result{Processed: int(processed.Load()), Failed: int(failed.Load())}
}
