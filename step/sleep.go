package step

import (
	"context"
	"time"

	"github.com/inngest/inngestgo/internal/dateutil"
	"github.com/inngest/inngestgo/op"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// SleepOpts configures a Sleep step call site.
type SleepOpts struct {
	ID string
	// Name is an optional human-readable display name, defaulting to ID.
	Name string
}

// Sleep pauses the function for the given duration. Unlike Run, Sleep is a
// single-phase step: the orchestrator itself performs the wait, so the SDK
// only ever needs to emit the Sleep op once and never executes it inline.
func Sleep(ctx context.Context, id string, duration time.Duration) {
	mgr := preflight(ctx)
	u := mgr.NewOp(op.Sleep, id, nil)
	if _, _, ok := mgr.Step(ctx, u); ok {
		// We've already slept.
		return
	}
	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: id,
		Name:        id,
		Op:          op.Sleep,
		Opts: map[string]any{
			"duration": str2duration.String(duration),
		},
	})
	panic(ControlHijack{})
}

// SleepUntilParam constrains the types SleepUntil accepts for its deadline.
type SleepUntilParam interface {
	time.Time | string
}

// SleepUntil sleeps until a given time. This halts function execution
// entirely, and Inngest will resume the function after the given time from
// this step.
//
// This uses type constraints so that you can pass in a time.Time, or a
// string in one of the common RFC timestamps:
//
//	step.SleepUntil(ctx, "wake up", time.Now().Add(time.Hour))
//	step.SleepUntil(ctx, "wake up", "2025-04-01T00:00:00+07:00")
//	step.SleepUntil(ctx, "wake up", "2025-04-01")
//
// Strings or times without time zones will be parsed in the UTC timezone.
// If a string is unable to be parsed, SleepUntil will resume immediately.
func SleepUntil[T SleepUntilParam](ctx context.Context, id string, until T) {
	var duration time.Duration

	switch v := any(until).(type) {
	case string:
		t, _ := dateutil.Parse(v)
		duration = time.Until(t)
	case time.Time:
		duration = time.Until(v)
	}

	mgr := preflight(ctx)
	u := mgr.NewOp(op.Sleep, id, nil)
	if _, _, ok := mgr.Step(ctx, u); ok {
		// We've already slept.
		return
	}
	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: id,
		Name:        id,
		Op:          op.Sleep,
		Opts: map[string]any{
			"duration": str2duration.String(duration),
		},
	})
	panic(ControlHijack{})
}
