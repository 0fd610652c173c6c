package step

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/inngest/inngestgo/op"
)

// InferFormat names the request/response shape the orchestrator should use
// when proxying an ai.infer call to a provider.
type InferFormat string

const (
	// InferFormatOpenAIChat shapes the request/response as an OpenAI
	// /chat/completions call, the format github.com/sashabaranov/go-openai
	// models with ChatCompletionRequest/ChatCompletionResponse.
	InferFormatOpenAIChat InferFormat = "openai-chat"
	// InferFormatAnthropic shapes the request/response as an Anthropic
	// messages call.
	InferFormatAnthropic InferFormat = "anthropic"
	// InferFormatBedrock shapes the request/response for an AWS Bedrock
	// invoke-model call.
	InferFormatBedrock InferFormat = "bedrock"
)

// InferRequestOpts describes the upstream AI provider endpoint ai.infer
// should call on the SDK's behalf.
type InferRequestOpts struct {
	// URL is the provider's full completion endpoint.
	URL string `json:"url"`
	// AuthKey authenticates the call. It travels to the orchestrator in the
	// AiGateway op's opts ("auth_key"); the orchestrator, not the SDK,
	// makes the provider call with it.
	AuthKey string `json:"-"`
	// Format selects the request/response envelope.
	Format InferFormat `json:"format"`
	// Headers carries any additional headers the provider call needs.
	Headers map[string]string `json:"headers,omitempty"`
}

// InferOpts configures an Infer call.
type InferOpts[In any] struct {
	Opts InferRequestOpts
	Body In
}

// Infer proxies an AI inference request through the orchestrator's AI
// gateway, memoizing the provider's response. Like Fetch, it's
// single-phase: the orchestrator performs the call itself, so an
// unmemoized invocation emits its AiGateway op directly. provider both
// names the upstream provider (eg. "openai") and serves as this call
// site's step id.
func Infer[In any, Out any](ctx context.Context, provider string, opts InferOpts[In]) (out Out, err error) {
	mgr := preflight(ctx)

	body, merr := json.Marshal(opts.Body)
	if merr != nil {
		return out, fmt.Errorf("unable to marshal infer body for %q: %w", provider, merr)
	}

	args := map[string]any{
		"provider": provider,
		"url":      opts.Opts.URL,
		"auth_key": opts.Opts.AuthKey,
		"format":   string(opts.Opts.Format),
		"headers":  opts.Opts.Headers,
		"body":     json.RawMessage(body),
	}

	u := mgr.NewOp(op.AIGateway, provider, args)
	if _, val, ok := mgr.Step(ctx, u); ok {
		if uerr := json.Unmarshal(val, &out); uerr != nil {
			mgr.SetErr(fmt.Errorf("error unmarshalling infer response for %q: %w", provider, uerr))
			panic(ControlHijack{})
		}
		return out, nil
	}

	mgr.AppendOp(op.Op{
		ID:          u.MustHash(),
		DisplayName: provider,
		Name:        provider,
		Op:          op.AIGateway,
		Opts:        args,
	})
	panic(ControlHijack{})
}

// Wrap runs an arbitrary AI SDK call (eg. a provider client's own typed
// method) as a memoized Run step. Unlike Infer, Wrap doesn't proxy the HTTP
// call through the orchestrator's gateway — it's a thin convenience over
// Run for callers who already have a configured provider client and just
// want durable memoization of its result.
func Wrap[T any](ctx context.Context, id string, f func(ctx context.Context) (T, error)) (T, error) {
	return Run(ctx, id, f)
}
