// Package middleware implements the lifecycle hook pipeline that wraps a
// function run and an event send, per spec §4.4.
package middleware

import (
	"context"

	"github.com/inngest/inngestgo/internal/event"
)

// CallContext exposes the read-only details of the current invocation to
// middleware, without exposing the invocation manager itself.
type CallContext struct {
	FunctionID string
	Env        string
	RunID      string
	Attempt    int
}

// FunctionRun is the set of hooks that wrap a single function invocation.
// Every field is optional; a nil hook is a no-op.
//
// Input hooks (TransformInput, BeforeMemoization, AfterMemoization,
// BeforeExecution) run in the order middleware was registered in. Output
// hooks (AfterExecution, TransformOutput, BeforeResponse) run in reverse
// registration order, mirroring how an onion's inner layers unwind first.
type FunctionRun struct {
	// TransformInput lets middleware rewrite the event(s)/ctx handed to the
	// user function before it runs.
	TransformInput func(ctx context.Context, events []event.Event, fnCtx CallContext) context.Context

	// BeforeMemoization runs before previously-completed steps are replayed.
	BeforeMemoization func(ctx context.Context) context.Context

	// AfterMemoization runs once all memoized steps have been replayed and
	// "new code" is about to execute.
	AfterMemoization func(ctx context.Context) context.Context

	// BeforeExecution runs immediately before new (unmemoized) step or
	// function code executes.
	BeforeExecution func(ctx context.Context) context.Context

	// AfterExecution runs immediately after new step or function code has
	// executed.
	AfterExecution func(ctx context.Context) context.Context

	// TransformOutput lets middleware rewrite a step's result/error, or the
	// function's final result/error, before it's serialized.
	TransformOutput func(ctx context.Context, result any, err error) (any, error)

	// BeforeResponse runs immediately before the HTTP response is written.
	BeforeResponse func(ctx context.Context) context.Context
}

// SendEvent is the set of hooks that wrap an outgoing event send.
type SendEvent struct {
	// TransformInput lets middleware rewrite events before they're sent.
	TransformInput func(ctx context.Context, events []event.Event) []event.Event

	// TransformOutput lets middleware observe/rewrite the result of a send.
	TransformOutput func(ctx context.Context, ids []string, err error) ([]string, error)
}

// Middleware bundles the two lifecycle hook sets a registered middleware may
// implement. Either, both, or neither may be populated.
type Middleware struct {
	OnFunctionRun func() FunctionRun
	OnSendEvent   func() SendEvent
}
