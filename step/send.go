package step

import (
	"context"
	"errors"

	"github.com/inngest/inngestgo/internal"
	"github.com/inngest/inngestgo/internal/event"
)

// Send sends a single event to Inngest, memoized like any other Run step so
// that retries don't re-send the event.
func Send(ctx context.Context, id string, evt event.Event) (string, error) {
	return Run(ctx, id, func(ctx context.Context) (string, error) {
		sender, ok := internal.EventSenderFromContext(ctx)
		if !ok {
			return "", errors.New("no event sender found in context")
		}
		return sender.Send(ctx, evt)
	})
}

// SendMany sends a batch of events to Inngest, memoized like any other Run
// step.
func SendMany(ctx context.Context, id string, events []event.Event) ([]string, error) {
	return Run(ctx, id, func(ctx context.Context) ([]string, error) {
		sender, ok := internal.EventSenderFromContext(ctx)
		if !ok {
			return nil, errors.New("no event sender found in context")
		}

		many := make([]any, len(events))
		for i, e := range events {
			many[i] = e
		}
		return sender.SendMany(ctx, many)
	})
}
