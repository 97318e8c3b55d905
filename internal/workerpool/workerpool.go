// Package workerpool runs a function over a slice with bounded concurrency
package workerpool

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// Result pairs an item with the outcome of processing it
type Result[T, R any] struct {
	Item  T
	Value R
	Err   error
}

// Run calls fn for every item with at most workers calls in flight. Each
// call gets its own timeout when timeout > 0. A failing item never stops
// the others; results keep the order of items.
func Run[T, R any](ctx context.Context, items []T, workers int, timeout time.Duration, fn func(context.Context, T) (R, error)) []Result[T, R] {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result[T, R], len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, item := range items {
		results[i].Item = item
		g.Go(func() error {
			itemCtx := gctx
			if timeout > 0 {
				var cancel context.CancelFunc
				itemCtx, cancel = context.WithTimeout(gctx, timeout)
				defer cancel()
			}
			results[i].Value, results[i].Err = call(itemCtx, item, fn)
			return nil
		})
	}
	g.Wait()
	return results
}

// call runs fn turning a panic into an error for that item only
func call[T, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (v R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return v, err
	}
	return fn(ctx, item)
}

// Values returns the successful values and the errors of results
func Values[T, R any](results []Result[T, R]) ([]R, []error) {
	var values []R
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		values = append(values, r.Value)
	}
	return values, errs
}
