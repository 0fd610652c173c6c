// Package group harvests multiple concurrent step calls from a single
// function invocation.
package group

import (
	"context"

	"github.com/inngest/inngestgo/step"
	"golang.org/x/sync/errgroup"
)

// Result holds the outcome of one function passed to Parallel.
type Result struct {
	Error error
	Value any
}

// Parallel runs each of fns concurrently within a single invocation,
// letting multiple steps be discovered (and planned) in one round-trip
// instead of one-at-a-time.
//
// Each fn runs in its own goroutine. A step call inside fn that hasn't yet
// been memoized panics with step.ControlHijack to suspend that goroutine;
// Parallel recovers it per-goroutine rather than letting it escape, so one
// planned step doesn't stop the rest of the group from being discovered in
// the same pass. Once every goroutine has settled, if any of them
// suspended, Parallel re-panics at the group level: the manager has now
// buffered every op discovered across the whole group, and the caller's own
// ControlHijack recovery (at the top of the function invocation) unwinds
// the rest of the way.
func Parallel(ctx context.Context, fns ...func(ctx context.Context) (any, error)) []Result {
	results := make([]Result, len(fns))
	suspended := make([]bool, len(fns))

	// errgroup only manages the wait; each goroutine recovers its own
	// ControlHijack rather than returning it as an error; errgroup's
	// cancel-on-first-error behavior is unused since a suspended branch
	// shouldn't interrupt its siblings' discovery this round.
	var eg errgroup.Group

	for i, fn := range fns {
		i, fn := i, fn
		eg.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(step.ControlHijack); ok {
						suspended[i] = true
						return
					}
					panic(r)
				}
			}()

			value, fnErr := fn(ctx)
			results[i] = Result{Value: value, Error: fnErr}
			return nil
		})
	}
	_ = eg.Wait()

	for _, s := range suspended {
		if s {
			panic(step.ControlHijack{})
		}
	}

	return results
}
