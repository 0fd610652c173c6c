package step

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sdkerrors "github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/internal/fn"
	"github.com/inngest/inngestgo/op"
	str2duration "github.com/xhit/go-str2duration/v2"
)

// InvokeOpts configures an Invoke call targeting a local ServableFunction.
type InvokeOpts struct {
	// Function is the target function.
	Function fn.ServableFunction

	// Data is the data to pass to the invoked function.
	Data map[string]any

	// User is the user data to pass to the invoked function.
	User any

	// Timeout is an optional duration specifying when the invoked function
	// will be considered timed out.
	Timeout time.Duration
}

// Invoke calls another local function by reference, returning the value it
// returns.
func Invoke[T any](ctx context.Context, id string, opts InvokeOpts) (T, error) {
	return InvokeByID[T](ctx, id, InvokeByIDOpts{
		AppID:      opts.Function.AppID(),
		FunctionID: opts.Function.ID(),
		Data:       opts.Data,
		User:       opts.User,
		Timeout:    opts.Timeout,
	})
}

// InvokeByIDOpts configures an InvokeByID call targeting a function by its
// fully-qualified app/function ID, which need not be local to this app.
type InvokeByIDOpts struct {
	// AppID is the target function's app ID (the client ID).
	AppID string

	// FunctionID is the target function's ID, without the app ID prefix.
	FunctionID string

	// Data is the data to pass to the invoked function.
	Data map[string]any

	// User is the user data to pass to the invoked function.
	User any

	// Timeout is an optional duration specifying when the invoked function
	// will be considered timed out.
	Timeout time.Duration
}

func (o InvokeByIDOpts) validate() error {
	var err error
	if o.AppID == "" {
		err = errors.Join(err, fmt.Errorf("appID is required"))
	}
	if o.FunctionID == "" {
		err = errors.Join(err, fmt.Errorf("functionID is required"))
	}
	return err
}

// InvokeByID invokes another Inngest function using its fully-qualified ID,
// returning the value returned from that function.
//
// Invoke is single-phase: the orchestrator performs the invocation itself,
// so an unmemoized call emits its InvokeFunction op directly without a
// separate planning round.
//
// If the invoked function can't be found or otherwise errors, InvokeByID
// returns a NoRetryError carrying that error's message.
func InvokeByID[T any](ctx context.Context, id string, opts InvokeByIDOpts) (T, error) {
	var zero T

	mgr := preflight(ctx)
	if err := opts.validate(); err != nil {
		mgr.SetErr(err)
		panic(ControlHijack{})
	}
	fnID := fmt.Sprintf("%s-%s", opts.AppID, opts.FunctionID)

	args := map[string]any{
		"function_id": fnID,
		"payload": map[string]any{
			"data": opts.Data,
			"user": opts.User,
		},
	}
	if opts.Timeout > 0 {
		args["timeout"] = str2duration.String(opts.Timeout)
	}

	u := mgr.NewOp(op.InvokeFunction, id, args)
	if _, val, ok := mgr.Step(ctx, u); ok {
		var valMap map[string]json.RawMessage
		if err := json.Unmarshal(val, &valMap); err != nil {
			mgr.SetErr(fmt.Errorf("error unmarshalling invoke value for %q: %w", fnID, err))
			panic(ControlHijack{})
		}

		if data, ok := valMap["data"]; ok {
			var output T
			if err := json.Unmarshal(data, &output); err != nil {
				mgr.SetErr(fmt.Errorf("error unmarshalling invoke data for %q: %w", fnID, err))
				panic(ControlHijack{})
			}
			return output, nil
		}

		if errorVal, ok := valMap["error"]; ok {
			var errObj struct {
				Message string `json:"message"`
			}
			if err := json.Unmarshal(errorVal, &errObj); err != nil {
				mgr.SetErr(fmt.Errorf("error unmarshalling invoke error for %q: %w", fnID, err))
				panic(ControlHijack{})
			}
			return zero, sdkerrors.NoRetryError(fmt.Errorf("%s", errObj.Message))
		}

		mgr.SetErr(fmt.Errorf("error parsing invoke value for %q; unknown shape", fnID))
		panic(ControlHijack{})
	}

	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: id,
		Name:        id,
		Op:          op.InvokeFunction,
		Opts:        args,
	})
	panic(ControlHijack{})
}
