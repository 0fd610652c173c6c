package fn

// Trigger describes what starts a function run: either a named event, or a
// cron schedule (exactly one of the two is populated).
type Trigger struct {
	Event string `json:"event,omitempty"`
	// Expression is an optional CEL expression that must evaluate truthy
	// against the triggering event for this function to run.
	Expression *string `json:"expression,omitempty"`

	Cron string `json:"cron,omitempty"`
}

// ServableFunction is the subset of a registered function's configuration
// that other packages (eg. step, for Invoke) need to reference it without
// importing the root package and creating an import cycle.
type ServableFunction interface {
	// AppID returns the client/app ID this function is registered under.
	AppID() string
	// ID returns the function's slugged ID, without the app ID prefix.
	ID() string
	// Name returns the function's human-readable name.
	Name() string
	// Triggers returns every trigger that starts this function.
	Triggers() []Trigger
	// ZeroEvent returns a zero-valued instance of the event type this
	// function expects, used to construct a typed Input via reflection.
	ZeroEvent() any
	// Func returns the underlying SDKFunction value, untyped since
	// functions in a handler have heterogeneous type parameters.
	Func() any
}
