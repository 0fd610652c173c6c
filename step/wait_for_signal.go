package step

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/inngest/inngestgo/op"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrSignalNotReceived is returned when a WaitForSignal call times out. It
// indicates that a matching signal was not received before the timeout.
var ErrSignalNotReceived = fmt.Errorf("signal not received")

// WaitForSignalOpts configures a WaitForSignal call.
type WaitForSignalOpts struct {
	// Name is an optional human-readable display name, defaulting to the
	// step id.
	Name string
	// Signal is the signal to wait for: a string unique to your
	// environment that resumes this particular run. If a run is already
	// waiting on this signal, sending it again errors.
	//
	// For resuming multiple runs from a single broadcast, use
	// WaitForEvent instead: it fulfils the same need with fan-out.
	Signal string
	// Timeout is how long to wait. Every signal listener must be
	// time-bound.
	Timeout time.Duration
}

// WaitForSignal waits for a point-to-point signal to resume this run.
//
// WaitForSignal is implemented in terms of the same WaitForEvent op the
// orchestrator understands: a signal is simply a WaitForEvent listening for
// an internal signal-delivery event scoped to this run, matched by
// Signal, rather than an arbitrary application event.
func WaitForSignal[T any](ctx context.Context, stepID string, opts WaitForSignalOpts) (T, error) {
	var zero T

	mgr := preflight(ctx)

	name := opts.Name
	if name == "" {
		name = stepID
	}

	args := map[string]any{
		"signal":  opts.Signal,
		"timeout": str2duration.String(opts.Timeout),
	}

	u := mgr.NewOp(op.WaitForEvent, stepID, args)
	if _, val, ok := mgr.Step(ctx, u); ok {
		if val == nil || bytes.Equal(val, []byte("null")) {
			return zero, ErrSignalNotReceived
		}
		out, err := unmarshalStepData[T](val)
		if err != nil {
			mgr.SetErr(fmt.Errorf("error unmarshalling wait-for-signal value for %q: %w", opts.Signal, err))
			panic(ControlHijack{})
		}
		return out, nil
	}

	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: name,
		Name:        name,
		Op:          op.WaitForEvent,
		Opts:        args,
	})
	panic(ControlHijack{})
}
