package batch

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultMaxInFlight bounds concurrent work per stage. The shared limiter still
// decides when each request is dispatched.
const DefaultMaxInFlight = 8

// ForEach runs work once per key with at most maxInFlight goroutines and returns
// after every invocation has finished. work must record its own outcome; it never
// aborts the siblings.
func ForEach[K any](executionContext context.Context, keys []K, maxInFlight int, work func(context.Context, K)) {
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}

	var group errgroup.Group
	group.SetLimit(maxInFlight)
	for _, key := range keys {
		group.Go(func() error {
			work(executionContext, key)
			return nil
		})
	}
	_ = group.Wait()
}
