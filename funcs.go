package inngestgo

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/gosimple/slug"
	"github.com/inngest/inngestgo/internal/fn"
	"github.com/inngest/inngestgo/internal/middleware"
)

// ConcurrencyLimit bounds how many runs of a function may execute at once,
// optionally scoped to a key derived from the triggering event.
type ConcurrencyLimit struct {
	Limit int
	// Key is an optional expression evaluated against the event, scoping
	// the limit per distinct key value rather than globally.
	Key *string
	// Scope controls whether Limit applies per-function, per-environment,
	// or per-account. Defaults to per-function.
	Scope string
}

// RateLimit throttles how often a function may run, dropping runs beyond
// the limit rather than queueing them (unlike Throttle, which queues).
type RateLimit struct {
	Limit  int
	Period time.Duration
	Key    *string
}

// Throttle queues runs beyond Limit instead of dropping them.
type Throttle struct {
	Limit  int
	Period time.Duration
	Burst  int
	Key    *string
}

// Debounce delays starting a run until Period has passed without a new
// matching event arriving, coalescing bursts into a single run.
type Debounce struct {
	Period time.Duration
	Key    *string
}

// RetryPolicy controls how many times a failed run is retried before it's
// considered permanently failed.
type RetryPolicy struct {
	Attempts int
}

// BatchEvents configures batch-triggered invocation: the function receives
// up to MaxSize events collected over Timeout, instead of one event per
// run.
type BatchEvents struct {
	MaxSize int
	Timeout time.Duration
	Key     *string
}

// FunctionOpts configures a function registered via CreateFunction.
type FunctionOpts struct {
	Name string
	// ID is an optional function ID. If unset, it's derived by slugging
	// Name.
	ID *string

	Concurrency []ConcurrencyLimit
	RateLimit   *RateLimit
	Throttle    *Throttle
	Debounce    *Debounce
	Retries     *RetryPolicy
	BatchEvents *BatchEvents
	Timeouts    *fn.Timeouts

	// Idempotency is an optional expression used to deduplicate runs.
	Idempotency *string

	// OnFailure runs (as a separate invocation) after a function
	// exhausts its retries.
	OnFailure any

	// Middleware lists function-scoped middleware, run in addition to any
	// client-level middleware.
	Middleware []middleware.Middleware
}

// Trigger describes what starts a function: an event name (optionally
// gated by an expression) or a cron schedule.
type Trigger = fn.Trigger

// EventTrigger triggers a function whenever a matching event is received.
func EventTrigger(name string, expression *string) Trigger {
	return Trigger{Event: name, Expression: expression}
}

// CronTrigger triggers a function on the given cron schedule.
func CronTrigger(schedule string) Trigger {
	return Trigger{Cron: schedule}
}

// SDKFunction is a user-defined function invoked from events or a
// schedule, registered with a handler via CreateFunction.
type SDKFunction[T any] func(ctx context.Context, input Input[T]) (any, error)

// ServableFunction is a function that can be served by a Handler, created
// via CreateFunction.
type ServableFunction interface {
	fn.ServableFunction
	Config() FunctionOpts
	Triggers() []Trigger
}

// CreateFunction registers f with c, triggered by trigger(s), as a durable
// function. T is the event type the function expects; if multiple triggers
// are given, every event still unmarshals into T.
func CreateFunction[T any](
	c Client,
	fc FunctionOpts,
	trigger Trigger,
	f SDKFunction[T],
	extra ...Trigger,
) (ServableFunction, error) {
	sf := servableFunc{
		fc:       fc,
		triggers: append([]Trigger{trigger}, extra...),
		f:        f,
		appID:    c.AppID(),
	}

	reg, ok := c.(functionRegistry)
	if !ok {
		return nil, fmt.Errorf("client does not support function registration")
	}
	if err := reg.addFunction(sf); err != nil {
		return nil, err
	}

	return sf, nil
}

// functionRegistry is implemented by apiClient, letting CreateFunction
// register a function against the client that will serve it without
// exposing the registration list on the public Client interface.
type functionRegistry interface {
	addFunction(f ServableFunction) error
}

// Input is the input data passed to your function: the triggering event(s)
// and call context.
type Input[T any] struct {
	Event    T        `json:"event"`
	Events   []T      `json:"events"`
	InputCtx InputCtx `json:"ctx"`
}

type InputCtx struct {
	Env        string `json:"env"`
	FunctionID string `json:"fn_id"`
	RunID      string `json:"run_id"`
	StepID     string `json:"step_id"`
	Attempt    int    `json:"attempt"`
}

type servableFunc struct {
	fc       FunctionOpts
	triggers []Trigger
	f        any

	appID string
}

func (s servableFunc) Config() FunctionOpts { return s.fc }

func (s servableFunc) AppID() string { return s.appID }

func (s servableFunc) ID() string {
	if s.fc.ID == nil {
		return slug.Make(s.fc.Name)
	}
	return *s.fc.ID
}

func (s servableFunc) Name() string { return s.fc.Name }

func (s servableFunc) Triggers() []Trigger { return s.triggers }

func (s servableFunc) ZeroEvent() any {
	// Grab the concrete type parameter from the generic SDKFunction value
	// via reflection, so a handler can construct and unmarshal into it
	// without knowing T at compile time.
	fVal := reflect.ValueOf(s.f)
	inputVal := reflect.New(fVal.Type().In(1)).Elem()
	return reflect.New(inputVal.FieldByName("Event").Type()).Elem().Interface()
}

func (s servableFunc) Func() any { return s.f }
