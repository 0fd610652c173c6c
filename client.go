package inngestgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"sync"

	"github.com/inngest/inngestgo/internal"
	"github.com/inngest/inngestgo/internal/event"
	"github.com/inngest/inngestgo/internal/middleware"
)

// Ptr returns a pointer to v, for inline construction of optional fields of
// any type.
func Ptr[T any](v T) *T { return &v }

// DefaultClient is a package-level client some tests and simple programs
// construct once and reuse; it's never assumed by the SDK itself.
var DefaultClient Client

// ClientOpts configures a Client.
type ClientOpts struct {
	// AppID uniquely identifies this application to Inngest. Required.
	AppID string

	// EventKey authenticates event sends. Falls back to the
	// INNGEST_EVENT_KEY environment variable, then "NO_EVENT_KEY_SET" in
	// Dev mode.
	EventKey *string

	// EventURL overrides the base URL events are sent to.
	EventURL *string

	// APIBaseURL overrides the base URL used for registration and API
	// calls.
	APIBaseURL *string

	// SigningKey authenticates inbound requests from Inngest and signs
	// outbound registration/API requests.
	SigningKey *string

	// SigningKeyFallback is used to validate/sign requests if SigningKey
	// fails, supporting zero-downtime key rotation.
	SigningKeyFallback *string

	// Env sets the branch/preview environment name this client targets.
	Env *string

	// Dev forces (true) or disables (false) dev mode, overriding the
	// INNGEST_DEV environment variable. Leave nil to use the environment.
	Dev *bool

	// InstanceID uniquely identifies this running instance of the app, eg.
	// for observability when multiple instances serve the same functions.
	InstanceID *string

	// AllowInBandSync opts into in-band (synchronous) registration
	// responses, when the orchestrator supports them.
	AllowInBandSync *bool

	// Middleware lists client-scoped middleware, run for every function
	// served by this client in addition to any function-scoped middleware.
	Middleware []middleware.Middleware

	// Logger receives structured logs from the SDK. Defaults to
	// slog.Default() if nil.
	Logger *slog.Logger
}

// Client sends events to Inngest and serves registered functions over
// HTTP.
type Client interface {
	// AppID returns the app ID this client was configured with.
	AppID() string

	// Send sends a single event, returning its assigned ID.
	Send(ctx context.Context, evt any) (string, error)

	// SendMany sends a batch of events, returning their assigned IDs in
	// the same order.
	SendMany(ctx context.Context, evts []any) ([]string, error)

	// GetEventKey returns the event key this client sends with.
	GetEventKey() string

	// Serve returns an http.Handler implementing the three-verb sync
	// protocol (GET introspect, PUT register, POST run) for every function
	// registered against this client.
	Serve() http.Handler

	// SetOptions updates selected config at runtime (used by tests that
	// need to point a pre-built client at a different event endpoint).
	SetOptions(opts ClientOpts) error
}

// NewClient constructs a Client from opts.
func NewClient(opts ClientOpts) (Client, error) {
	if opts.AppID == "" {
		return nil, fmt.Errorf("an AppID is required to create a client")
	}

	c := &apiClient{ClientOpts: opts}
	return c, nil
}

type apiClient struct {
	ClientOpts

	mu        sync.Mutex
	functions []ServableFunction
}

func (a *apiClient) AppID() string { return a.ClientOpts.AppID }

func (a *apiClient) SetOptions(opts ClientOpts) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ClientOpts = opts
	return nil
}

func (a *apiClient) addFunction(f ServableFunction) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.functions {
		if existing.ID() == f.ID() {
			return fmt.Errorf("a function with ID %q is already registered", f.ID())
		}
	}
	a.functions = append(a.functions, f)
	return nil
}

func (a *apiClient) funcs() []ServableFunction {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]ServableFunction, len(a.functions))
	copy(out, a.functions)
	return out
}

// GetEventKey returns, in priority order: an explicit ClientOpts.EventKey,
// the INNGEST_EVENT_KEY environment variable, or (in Dev mode only) the
// sentinel "NO_EVENT_KEY_SET" the Dev Server accepts unauthenticated.
func (a *apiClient) GetEventKey() string {
	if a.ClientOpts.EventKey != nil {
		return *a.ClientOpts.EventKey
	}
	if key := os.Getenv("INNGEST_EVENT_KEY"); key != "" {
		return key
	}
	if a.isDev() {
		return "NO_EVENT_KEY_SET"
	}
	return ""
}

func (a *apiClient) logger() *slog.Logger {
	if a.ClientOpts.Logger != nil {
		return a.ClientOpts.Logger
	}
	return slog.Default()
}

func (a *apiClient) isDev() bool {
	if a.ClientOpts.Dev != nil {
		return *a.ClientOpts.Dev
	}
	return IsDev()
}

func (a *apiClient) eventURL() string {
	if a.ClientOpts.EventURL != nil {
		return *a.ClientOpts.EventURL
	}
	if a.isDev() {
		return DevServerURL()
	}
	return eventAPIBaseURL()
}

func (a *apiClient) signingKey() string {
	if a.ClientOpts.SigningKey != nil {
		return *a.ClientOpts.SigningKey
	}
	return os.Getenv("INNGEST_SIGNING_KEY")
}

func (a *apiClient) signingKeyFallback() string {
	if a.ClientOpts.SigningKeyFallback != nil {
		return *a.ClientOpts.SigningKeyFallback
	}
	return os.Getenv("INNGEST_SIGNING_KEY_FALLBACK")
}

// allowInBandSync reports whether this client accepts in-band registration
// requests (spec §4.5), preferring an explicit ClientOpts override over the
// INNGEST_ALLOW_IN_BAND_SYNC environment variable.
func (a *apiClient) allowInBandSync() bool {
	if a.ClientOpts.AllowInBandSync != nil {
		return *a.ClientOpts.AllowInBandSync
	}
	return allowInBandSync()
}

// Send sends a single event.
func (a *apiClient) Send(ctx context.Context, evt any) (string, error) {
	ids, err := a.SendMany(ctx, []any{evt})
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// SendMany sends a batch of events in a single request to the event API
// (or the Dev Server, in dev mode).
func (a *apiClient) SendMany(ctx context.Context, evts []any) ([]string, error) {
	payload := make([]map[string]any, len(evts))
	for i, e := range evts {
		normalized, err := normalizeEvent(e)
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", i, err)
		}
		payload[i] = normalized
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("error marshalling events: %w", err)
	}

	key := a.GetEventKey()
	u, err := url.Parse(a.eventURL())
	if err != nil {
		return nil, fmt.Errorf("invalid event URL: %w", err)
	}
	u.Path = fmt.Sprintf("/e/%s", key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	SetBasicRequestHeaders(req)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending events: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading event API response: %w", err)
	}
	if resp.StatusCode > 299 {
		return nil, fmt.Errorf("event API returned status %d: %s", resp.StatusCode, respBody)
	}

	var parsed struct {
		IDs    []string `json:"ids"`
		Status int      `json:"status"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("error unmarshalling event API response: %w", err)
	}

	return parsed.IDs, nil
}

// normalizeEvent converts an Event, a GenericEvent[T], or a bare map into
// the wire map representation the event API expects, assigning a random ID
// when none is set and validating the name via event.Event.Validate.
func normalizeEvent(evt any) (map[string]any, error) {
	var e event.Event

	switch v := evt.(type) {
	case event.Event:
		e = v
	case map[string]any:
		byt, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(byt, &e); err != nil {
			return nil, err
		}
	default:
		// GenericEvent[T] and arbitrary structs: round-trip through JSON to
		// land on the common wire shape.
		byt, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(byt, &e); err != nil {
			return nil, err
		}
	}

	if e.ID == nil {
		e.ID = StrPtr(event.NewID())
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	return e.Map(), nil
}

// Serve returns an http.Handler implementing the sync protocol for every
// function registered against this client.
func (a *apiClient) Serve() http.Handler {
	return newHandler(a)
}

// eventSenderAdapter lets step.Send/SendMany reach this client's Send
// methods via the internal package's untyped eventSender interface,
// without internal importing the root package.
type eventSenderAdapter struct{ c *apiClient }

func (e eventSenderAdapter) Send(ctx context.Context, evt any) (string, error) {
	return e.c.Send(ctx, evt)
}

func (e eventSenderAdapter) SendMany(ctx context.Context, evts []any) ([]string, error) {
	return e.c.SendMany(ctx, evts)
}

func contextWithEventSender(ctx context.Context, c *apiClient) context.Context {
	return internal.ContextWithEventSender(ctx, eventSenderAdapter{c: c})
}
