package step

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/inngest/inngestgo/internal/middleware"
	"github.com/inngest/inngestgo/internal/sdkrequest"
	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func TestInferTypes(t *testing.T) {
	t.Run("It handles OpenAI requests using a 3rd party provider", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		req := &sdkrequest.Request{
			Steps: map[string]json.RawMessage{},
		}

		mgr := sdkrequest.NewManager(sdkrequest.Opts{
			Middleware: middleware.New(),
			Cancel:     cancel,
			Request:    req,
			Mode:       sdkrequest.StepModeYield,
		})
		ctx = sdkrequest.SetManager(ctx, mgr)

		func() {
			defer func() {
				rcv := recover()
				require.Equal(t, ControlHijack{}, rcv)
			}()

			_, err := Infer[openai.ChatCompletionRequest, openai.ChatCompletionResponse](
				ctx,
				"openai",
				InferOpts[openai.ChatCompletionRequest]{
					Opts: InferRequestOpts{
						URL:     "https://api.openai.com/v1/chat/completions",
						AuthKey: "foo",
						Format:  InferFormatOpenAIChat,
					},
					Body: openai.ChatCompletionRequest{
						Model: "gpt-4o",
						Messages: []openai.ChatCompletionMessage{
							{Role: "system", Content: "Write a story in 20 words or less"},
						},
					},
				},
			)
			require.NoError(t, err)
		}()

		require.Len(t, mgr.Ops(), 1)
		require.Equal(t, "AiGateway", string(mgr.Ops()[0].Op))
	})
}
