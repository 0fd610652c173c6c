package step

import (
	"encoding/json"
	"context"
	"fmt"
	"reflect"

	"github.com/inngest/inngestgo/internal/sdkrequest"
	"github.com/inngest/inngestgo/op"
)

// RunOpts configures a Run step call site.
type RunOpts struct {
	// ID represents the step's idempotency id.
	ID string
	// Name is an optional human-readable display name, defaulting to ID.
	Name string
}

// Run runs fn durably, memoizing its result so that on replay the function
// body doesn't re-execute: its prior output is unmarshalled into T and
// returned directly.
//
// On first encounter, Run is a two-phase step: it emits a StepPlanned op and
// suspends (via ControlHijack), asking the orchestrator to call back with
// this step's hashed id as the requested run step. Only when this
// invocation's RequestedRunStep matches (or the manager runs in background
// mode, used by tests) does fn actually execute inline, with its result
// appended as a StepRun op.
func Run[T any](
	ctx context.Context,
	id string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	mgr := preflight(ctx)
	u := mgr.NewOp(op.Run, id, nil)
	hash := u.MustHash()

	ctx, val, ok := mgr.Step(ctx, u)
	if ok {
		out, err := unmarshalStepData[T](val)
		if err != nil {
			mgr.SetErr(fmt.Errorf("error unmarshalling state for step %q: %w", id, err))
			panic(ControlHijack{})
		}
		return out, nil
	}

	if mgr.Mode() != sdkrequest.StepModeBackground && mgr.Request().RequestedRunStep != hash {
		// Not yet requested: plan it and yield, letting the orchestrator
		// choose when (and whether, alongside concurrent steps) to request it.
		mgr.AppendOp(u.Planned())
		panic(ControlHijack{})
	}

	result, err := fn(withinStep(ctx))
	if err != nil {
		mgr.SetErr(err)
		mgr.AppendOp(op.Op{
			ID:          hash,
			DisplayName: id,
			Name:        id,
			Op:          op.Run,
			Error:       &op.SerializedError{Name: "Error", Message: err.Error(), Serialized: true},
		})
		panic(ControlHijack{})
	}

	byt, merr := json.Marshal(result)
	if merr != nil {
		mgr.SetErr(fmt.Errorf("unable to marshal run response for %q: %w", id, merr))
		panic(ControlHijack{})
	}

	mgr.AppendOp(op.Op{
		ID:          hash,
		DisplayName: id,
		Name:        id,
		Op:          op.Run,
		Data:        byt,
	})
	panic(ControlHijack{})

	return zero, nil
}

// unmarshalStepData unmarshals memoized step data into T, unwrapping a
// {"data": ...} envelope if present while also accepting a bare value.
func unmarshalStepData[T any](val []byte) (T, error) {
	var zero T

	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(val, &wrapped); err == nil && wrapped.Data != nil {
		val = wrapped.Data
	}

	rt := reflect.TypeOf(zero)
	if rt == nil {
		// T is an interface type (eg. `any`): unmarshal directly into it.
		var out T
		if err := json.Unmarshal(val, &out); err != nil {
			return zero, err
		}
		return out, nil
	}

	v := reflect.New(rt)
	if err := json.Unmarshal(val, v.Interface()); err != nil {
		return zero, err
	}
	return v.Elem().Interface().(T), nil
}
