package middleware

import (
	"context"

	"github.com/inngest/inngestgo/internal/event"
)

// New returns an empty Manager ready to have middleware added to it.
func New() *Manager {
	return &Manager{items: []Middleware{}}
}

// Manager is a thin wrapper around a list of registered middleware, so that
// the rest of the SDK can invoke lifecycle hooks without caring how many
// middlewares are installed or whether they implement a given hook.
type Manager struct {
	items []Middleware
}

// Add registers middleware, in order. Input hooks fire in this order;
// output hooks fire in reverse.
func (m *Manager) Add(mw ...Middleware) *Manager {
	m.items = append(m.items, mw...)
	return m
}

func (m *Manager) runs() []FunctionRun {
	out := make([]FunctionRun, 0, len(m.items))
	for _, mw := range m.items {
		if mw.OnFunctionRun == nil {
			continue
		}
		out = append(out, mw.OnFunctionRun())
	}
	return out
}

func (m *Manager) sends() []SendEvent {
	out := make([]SendEvent, 0, len(m.items))
	for _, mw := range m.items {
		if mw.OnSendEvent == nil {
			continue
		}
		out = append(out, mw.OnSendEvent())
	}
	return out
}

func (m *Manager) TransformInput(ctx context.Context, events []event.Event, fnCtx CallContext) context.Context {
	for _, r := range m.runs() {
		if r.TransformInput != nil {
			ctx = r.TransformInput(ctx, events, fnCtx)
		}
	}
	return ctx
}

func (m *Manager) BeforeMemoization(ctx context.Context) context.Context {
	for _, r := range m.runs() {
		if r.BeforeMemoization != nil {
			ctx = r.BeforeMemoization(ctx)
		}
	}
	return ctx
}

func (m *Manager) AfterMemoization(ctx context.Context) context.Context {
	for _, r := range m.runs() {
		if r.AfterMemoization != nil {
			ctx = r.AfterMemoization(ctx)
		}
	}
	return ctx
}

func (m *Manager) BeforeExecution(ctx context.Context) context.Context {
	for _, r := range m.runs() {
		if r.BeforeExecution != nil {
			ctx = r.BeforeExecution(ctx)
		}
	}
	return ctx
}

// AfterExecution runs in reverse registration order: the last-registered
// middleware's inner layer unwinds first.
func (m *Manager) AfterExecution(ctx context.Context) context.Context {
	runs := m.runs()
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].AfterExecution != nil {
			ctx = runs[i].AfterExecution(ctx)
		}
	}
	return ctx
}

func (m *Manager) TransformOutput(ctx context.Context, result any, err error) (any, error) {
	runs := m.runs()
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].TransformOutput != nil {
			result, err = runs[i].TransformOutput(ctx, result, err)
		}
	}
	return result, err
}

func (m *Manager) BeforeResponse(ctx context.Context) context.Context {
	runs := m.runs()
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].BeforeResponse != nil {
			ctx = runs[i].BeforeResponse(ctx)
		}
	}
	return ctx
}

func (m *Manager) SendEventTransformInput(ctx context.Context, events []event.Event) []event.Event {
	for _, s := range m.sends() {
		if s.TransformInput != nil {
			events = s.TransformInput(ctx, events)
		}
	}
	return events
}

func (m *Manager) SendEventTransformOutput(ctx context.Context, ids []string, err error) ([]string, error) {
	sends := m.sends()
	for i := len(sends) - 1; i >= 0; i-- {
		if sends[i].TransformOutput != nil {
			ids, err = sends[i].TransformOutput(ctx, ids, err)
		}
	}
	return ids, err
}
