package step

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inngest/inngestgo/op"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrEventNotReceived is returned when a WaitForEvent call times out without
// a matching event arriving.
var ErrEventNotReceived = fmt.Errorf("event not received")

// WaitForEventOpts configures a WaitForEvent call.
type WaitForEventOpts struct {
	// Name is an optional human-readable display name, defaulting to the
	// step id.
	Name string
	// Event is the event name to wait for.
	Event string
	// If is an optional CEL expression run against the async event and the
	// triggering event (exposed as `event` and `async`) that must evaluate
	// truthy for the event to match. Mutually exclusive with Match.
	If string
	// Match is a shorthand for an equality match between a field of the
	// triggering event and the same field of the async event, eg.
	// "data.userId" matches any incoming event whose data.userId equals
	// the triggering event's data.userId. Mutually exclusive with If.
	Match string
	// Timeout bounds how long to wait; every event listener must be
	// time-bound.
	Timeout time.Duration
}

func (o WaitForEventOpts) matchExpr() string {
	if o.If != "" {
		return o.If
	}
	if o.Match != "" {
		return fmt.Sprintf("event.%s == async.%s", o.Match, o.Match)
	}
	return ""
}

// WaitForEvent pauses the function until a matching event arrives or the
// timeout elapses. Like Sleep, it's single-phase: the orchestrator itself
// listens for the event, so an unmemoized call emits its WaitForEvent op
// directly.
func WaitForEvent[T any](ctx context.Context, id string, opts WaitForEventOpts) (T, error) {
	var zero T

	mgr := preflight(ctx)

	name := opts.Name
	if name == "" {
		name = id
	}

	args := map[string]any{
		"event":   opts.Event,
		"timeout": str2duration.String(opts.Timeout),
	}
	if expr := opts.matchExpr(); expr != "" {
		args["if"] = expr
	}

	u := mgr.NewOp(op.WaitForEvent, id, args)
	if _, val, ok := mgr.Step(ctx, u); ok {
		if val == nil || string(val) == "null" {
			return zero, ErrEventNotReceived
		}

		out, err := unmarshalStepData[T](val)
		if err != nil {
			mgr.SetErr(fmt.Errorf("error unmarshalling wait-for-event value for %q: %w", opts.Event, err))
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
