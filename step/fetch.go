package step

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/inngest/inngestgo/errors"
	"github.com/inngest/inngestgo/op"
)

// FetchOpts configures a Fetch call.
type FetchOpts struct {
	// URL is the full endpoint that we're sending the request to.
	URL string `json:"url,omitempty"`
	// Headers represent additional headers to send in the request.
	Headers map[string]string `json:"headers,omitempty"`
	// Body is the raw request body.
	Body string `json:"body"`
	// Method is the HTTP method to use for the request, defaulting to POST.
	Method string `json:"method,omitempty"`
}

type gatewayResponse struct {
	Data  json.RawMessage `json:"data"`
	Error json.RawMessage `json:"error"`
}

// Fetch offloads an HTTP request to the orchestrator's gateway and resumes
// execution with the response once it completes. Like Sleep and
// WaitForEvent, it's single-phase: the orchestrator performs the request
// itself, so an unmemoized call emits its Gateway op directly.
func Fetch[OutputT any](ctx context.Context, id string, in FetchOpts) (out OutputT, err error) {
	mgr := preflight(ctx)
	u := mgr.NewOp(op.Gateway, id, nil)

	if _, val, ok := mgr.Step(ctx, u); ok {
		var unwrapped gatewayResponse
		if jsonErr := json.Unmarshal(val, &unwrapped); jsonErr == nil && (unwrapped.Data != nil || unwrapped.Error != nil) {
			if len(unwrapped.Error) > 0 {
				stepErr := errors.StepError{}
				if jsonErr := json.Unmarshal(unwrapped.Error, &stepErr); jsonErr != nil {
					mgr.SetErr(fmt.Errorf("error unmarshalling error for step %q: %w", id, jsonErr))
					panic(ControlHijack{})
				}
				_ = json.Unmarshal(stepErr.Data, &out)
				return out, stepErr
			}
			if len(unwrapped.Data) > 0 {
				val = unwrapped.Data
			}
		}

		rt := reflect.TypeOf(out)
		if rt == nil {
			var generic any
			jsonErr := json.Unmarshal(val, &generic)
			out, _ = generic.(OutputT)
			return out, jsonErr
		}
		if rt.Kind() != reflect.Ptr {
			v := reflect.New(rt)
			jsonErr := json.Unmarshal(val, v.Interface())
			return v.Elem().Interface().(OutputT), jsonErr
		}
		v := reflect.New(rt.Elem())
		jsonErr := json.Unmarshal(val, v.Interface())
		out, _ = v.Interface().(OutputT)
		return out, jsonErr
	}

	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: id,
		Name:        id,
		Op:          op.Gateway,
		Opts:        in,
	})
	panic(ControlHijack{})
}
