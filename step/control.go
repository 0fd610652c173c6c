package step

import (
	"context"

	"github.com/inngest/inngestgo/internal/sdkrequest"
)

// ControlHijack is panicked by a step tool once it has produced a new op, or
// has recorded an error (via the manager's SetErr) that ends this attempt; a
// tool whose data is memoized returns it normally. The function's invoker recovers it at the top of the call stack;
// it is never meant to escape past that point. Go has no generator/coroutine
// primitive to suspend a running function mid-execution, so a panic unwind
// is the mechanism used to stop running user code the instant a step
// decides the rest of this invocation's response.
type ControlHijack struct{}

type withinStepKeyType struct{}

var withinStepKey = withinStepKeyType{}

// preflight fetches the invocation's Manager from the context, panicking via
// ControlHijack if the context has already been cancelled (eg. a prior step
// in this same invocation already decided the response and no further step
// code should run).
func preflight(ctx context.Context) sdkrequest.Manager {
	mgr, ok := sdkrequest.ManagerFromContext(ctx)
	if !ok {
		panic("step tooling called without an sdkrequest.Manager on the context")
	}
	if ctx.Err() != nil {
		panic(ControlHijack{})
	}
	return mgr
}

// withinStep marks the context as being inside a step's callback, so that
// IsWithinStep can detect (and tools can forbid) nested step calls.
func withinStep(ctx context.Context) context.Context {
	return context.WithValue(ctx, withinStepKey, true)
}

// IsWithinStep reports whether the given context is within a running step's
// callback (eg. inside the function passed to step.Run).
func IsWithinStep(ctx context.Context) bool {
	v, _ := ctx.Value(withinStepKey).(bool)
	return v
}
