// Package executor provides bounded fan-out/fan-in primitives. Both modes
// enforce a hard cap on concurrently running units; a permit is acquired
// before a unit starts and released on every completion path.
package executor

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Unit is one schedulable piece of work.
type Unit[T any] func(ctx context.Context) (T, error)

// Result pairs a unit's output with its submission index.
type Result[T any] struct {
	Index int
	Value T
	Err   error
}

// RunAll executes all units with at most limit running concurrently and
// returns one result per unit. Results are indexed by submission order;
// completion order is not preserved. A cancelled context fails the
// not-yet-finished units with the context error.
func RunAll[T any](ctx context.Context, units []Unit[T], limit int) []Result[T] {
	if limit <= 0 {
		limit = 1
	}

	results := make([]Result[T], len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, unit := range units {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result[T]{Index: i, Err: err}
				return nil
			}
			v, err := unit(gctx)
			results[i] = Result[T]{Index: i, Value: v, Err: err}
			return nil // unit errors live in results, not the group
		})
	}
	_ = g.Wait()
	return results
}

// Stream executes units from source while keeping a sliding window of at
// most limit in flight: whenever any unit finishes, the next unit is
// admitted immediately. Results arrive on the returned channel in
// completion order; the channel closes once the source is drained and all
// admitted units have finished. Units are never forcibly abandoned here;
// cancelling ctx is the caller's responsibility and stops admission while
// failing pending acquisitions.
func Stream[T any](ctx context.Context, source <-chan Unit[T], limit int64) <-chan Result[T] {
	if limit <= 0 {
		limit = 1
	}

	out := make(chan Result[T], limit)
	sem := semaphore.NewWeighted(limit)

	go func() {
		defer close(out)

		var wg sync.WaitGroup
		index := 0
		for {
			var unit Unit[T]
			var ok bool
			select {
			case <-ctx.Done():
				ok = false
			case unit, ok = <-source:
			}
			if !ok {
				break
			}

			if err := sem.Acquire(ctx, 1); err != nil {
				out <- Result[T]{Index: index, Err: err}
				index++
				break
			}

			i := index
			index++
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				v, err := unit(ctx)
				out <- Result[T]{Index: i, Value: v, Err: err}
			}()
		}
		wg.Wait()
	}()

	return out
}
