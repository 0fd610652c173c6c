package inngestgo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"time"

	"github.com/inngest/inngestgo/internal/checkpoint"
	"github.com/inngest/inngestgo/internal/event"
	"github.com/inngest/inngestgo/internal/middleware"
	"github.com/inngest/inngestgo/internal/publicerr"
	"github.com/inngest/inngestgo/internal/sdkrequest"
	"github.com/inngest/inngestgo/op"
	"github.com/inngest/inngestgo/step"
)

// DefaultMaxBodySize bounds how much of an incoming invoke request body is
// read (100MB).
var DefaultMaxBodySize = 1024 * 1024 * 100

// schemaVersion identifies the introspection payload's field set.
const schemaVersion = "2024-05-24"

var capabilities = Capabilities{TrustProbe: "v1", InBandSync: "v1"}

// newHandler returns the http.Handler that implements the GET/PUT/POST sync
// protocol for every function registered against c.
func newHandler(c *apiClient) http.Handler {
	return &handler{c: c}
}

type handler struct {
	c *apiClient
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.c.logger().Debug("received http request", "method", r.Method)
	SetBasicResponseHeaders(w)

	switch r.Method {
	case http.MethodGet:
		if err := h.introspect(w, r); err != nil {
			_ = publicerr.WriteHTTP(w, err)
		}
	case http.MethodPost:
		if r.URL.Query().Get("probe") == "trust" {
			h.trust(r.Context(), w, r)
			return
		}
		if err := h.invoke(w, r); err != nil {
			_ = publicerr.WriteHTTP(w, err)
		}
	case http.MethodPut:
		if err := h.register(w, r); err != nil {
			h.c.logger().Error("error registering functions", "error", err.Error())
			_ = publicerr.WriteHTTP(w, err)
		}
	}
}

// register self-registers the client's functions with Inngest, upserting
// every function's config so it can immediately be triggered by incoming
// events or schedules. It dispatches to the in-band or out-of-band sync
// protocol depending on the incoming request (spec §4.5).
func (h *handler) register(w http.ResponseWriter, r *http.Request) error {
	if r.Header.Get(HeaderKeySyncKind) == SyncKindInBand && h.c.allowInBandSync() {
		return h.registerInBand(w, r)
	}
	return h.registerOutOfBand(w, r)
}

// buildFunctionCatalog translates every registered function into its wire
// representation, using stepURL to build each function's single runtime
// endpoint. Out-of-band sync builds URLs from the incoming request; in-band
// sync builds them from the URL the orchestrator supplied in its PUT body.
func (h *handler) buildFunctionCatalog(stepURL func(fnID string) string) []SDKFunction {
	var functions []SDKFunction

	for _, fn := range h.c.funcs() {
		cfg := fn.Config()

		var retries *StepRetries
		if cfg.Retries != nil {
			retries = &StepRetries{Attempts: cfg.Retries.Attempts}
		}

		f := SDKFunction{
			Name:        fn.Name(),
			Slug:        fn.AppID() + "-" + fn.ID(),
			Idempotency: cfg.Idempotency,
			RateLimit:   cfg.RateLimit,
			Throttle:    cfg.Throttle,
			Debounce:    cfg.Debounce,
			Concurrency: cfg.Concurrency,
			Steps: map[string]SDKStep{
				"step": {
					ID:      "step",
					Name:    fn.Name(),
					Retries: retries,
					Runtime: map[string]any{"url": stepURL(fn.ID())},
				},
			},
		}

		if cfg.Timeouts != nil {
			byt, _ := json.Marshal(cfg.Timeouts)
			var timeouts map[string]string
			_ = json.Unmarshal(byt, &timeouts)
			f.Timeouts = timeouts
		}

		if cfg.BatchEvents != nil {
			f.EventBatch = map[string]any{
				"maxSize": cfg.BatchEvents.MaxSize,
				"timeout": cfg.BatchEvents.Timeout.String(),
				"key":     cfg.BatchEvents.Key,
			}
		}

		for _, trigger := range fn.Triggers() {
			if trigger.Event != "" {
				f.Triggers = append(f.Triggers, SDKTrigger{Event: trigger.Event, Expression: trigger.Expression})
			} else {
				f.Triggers = append(f.Triggers, SDKTrigger{Cron: trigger.Cron})
			}
		}

		functions = append(functions, f)
	}

	return functions
}

// buildStepURL builds a function's runtime URL from an arbitrary base,
// used by in-band sync where the base comes from the request body rather
// than the incoming *http.Request.
func buildStepURL(base, fnID string) string {
	u, err := url.Parse(base)
	if err != nil {
		u = &url.URL{}
	}
	values := u.Query()
	values.Set("fnId", fnID)
	values.Set("step", "step")
	u.RawQuery = values.Encode()
	return u.String()
}

// envValue returns the configured branch/preview environment name, nil if
// unset (ClientOpts.Env takes priority over INNGEST_ENV/INNGEST_BRANCH).
func (h *handler) envValue() *string {
	if h.c.ClientOpts.Env != nil {
		if *h.c.ClientOpts.Env == "" {
			return nil
		}
		return h.c.ClientOpts.Env
	}
	if v := branchEnv(); v != "" {
		return &v
	}
	return nil
}

// apiOrigin returns the orchestrator API origin this client targets.
func (h *handler) apiOrigin() string {
	if h.c.ClientOpts.APIBaseURL != nil {
		return *h.c.ClientOpts.APIBaseURL
	}
	if h.c.isDev() {
		return DevServerURL()
	}
	return defaultAPIOrigin
}

// registerOutOfBand performs the legacy sync protocol: the handler POSTs
// its function catalog to the orchestrator's registration endpoint and
// forwards the result.
func (h *handler) registerOutOfBand(w http.ResponseWriter, r *http.Request) error {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	qp := r.URL.Query()
	syncID := qp.Get("deployId")
	qp.Del("deployId")
	r.URL.RawQuery = qp.Encode()

	fullURL := fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.String())

	env := ""
	if e := h.envValue(); e != nil {
		env = *e
	}

	config := RegisterRequest{
		URL:        fullURL,
		V:          "1",
		DeployType: "ping",
		SDK:        HeaderValueSDK,
		AppName:    h.c.AppID(),
		Headers: Headers{
			Env:      env,
			Platform: detectPlatform(),
		},
		Capabilities: capabilities,
	}

	config.Functions = h.buildFunctionCatalog(func(fnID string) string {
		return h.functionURL(r, fnID).String()
	})

	hash, err := hashCanonicalJSON(config)
	if err != nil {
		return fmt.Errorf("error hashing registration payload: %w", err)
	}
	config.Hash = hash

	registerURL := defaultRegisterURL
	if h.c.isDev() {
		registerURL = fmt.Sprintf("%s/fn/register", DevServerURL())
	}
	if h.c.ClientOpts.APIBaseURL != nil {
		registerURL = fmt.Sprintf("%s/fn/register", *h.c.ClientOpts.APIBaseURL)
	}

	createRequest := func() (*http.Request, error) {
		byt, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("error marshalling function config: %w", err)
		}

		req, err := http.NewRequest(http.MethodPost, registerURL, bytes.NewReader(byt))
		if err != nil {
			return nil, fmt.Errorf("error creating registration request: %w", err)
		}
		if syncID != "" {
			rqp := req.URL.Query()
			rqp.Set("deployId", syncID)
			req.URL.RawQuery = rqp.Encode()
		}
		if r.Header.Get(HeaderKeyServerKind) != "" {
			req.Header.Set(HeaderKeyExpectedServerKind, r.Header.Get(HeaderKeyServerKind))
		}
		if env != "" {
			req.Header.Add(HeaderKeyEnv, env)
		}
		SetBasicRequestHeaders(req)
		return req, nil
	}

	resp, err := fetchWithAuthFallback(createRequest, h.c.signingKey(), h.c.signingKeyFallback())
	if err != nil {
		return fmt.Errorf("error performing registration request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode > 299 {
		byt, _ := io.ReadAll(resp.Body)
		var body map[string]any
		if err := json.Unmarshal(byt, &body); err != nil {
			return fmt.Errorf("error reading register response: %w\n\n%s", err, byt)
		}
		return fmt.Errorf("error registering functions: %v", body["error"])
	}
	return nil
}

// inBandSynchronizeRequest is the PUT body the orchestrator sends when
// requesting an in-band sync: just its own URL, the base every function's
// runtime endpoint is built from.
type inBandSynchronizeRequest struct {
	URL string `json:"url"`
}

// inBandSynchronizeResponse is returned directly (no follow-up POST) in
// response to an in-band sync request.
type inBandSynchronizeResponse struct {
	AppID       string        `json:"app_id"`
	Env         *string       `json:"env"`
	Functions   []SDKFunction `json:"functions"`
	Inspection  any           `json:"inspection"`
	SDKAuthor   string        `json:"sdk_author"`
	SDKLanguage string        `json:"sdk_language"`
	SDKVersion  string        `json:"sdk_version"`
	URL         string        `json:"url"`
}

// registerInBand performs the in-band sync protocol (spec §4.5/§6): rather
// than POSTing its catalog out-of-band, the handler validates the request's
// signature and responds with the catalog plus an inspection payload
// directly in the PUT response.
func (h *handler) registerInBand(w http.ResponseWriter, r *http.Request) error {
	defer func() { _ = r.Body.Close() }()

	byt, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(DefaultMaxBodySize)))
	if err != nil {
		return publicerr.Error{Message: "error reading request", Status: 500}
	}

	if !h.c.isDev() {
		sig := r.Header.Get(HeaderKeySignature)
		if sig == "" {
			return publicerr.Error{Message: fmt.Sprintf("missing %s header", HeaderKeySignature), Status: 401}
		}
		if valid, _, verr := ValidateRequestSignature(r.Context(), sig, h.c.signingKey(), h.c.signingKeyFallback(), byt); verr != nil || !valid {
			return publicerr.Error{Message: "error validating signature", Status: 401}
		}
	}

	var body inBandSynchronizeRequest
	if err := json.Unmarshal(byt, &body); err != nil {
		return publicerr.Error{Message: "malformed input", Status: 400}
	}

	functions := h.buildFunctionCatalog(func(fnID string) string {
		return buildStepURL(body.URL, fnID)
	})

	inspection, err := h.buildIntrospection(r, byt)
	if err != nil {
		return fmt.Errorf("error building inspection payload: %w", err)
	}

	resp := inBandSynchronizeResponse{
		AppID:       h.c.AppID(),
		Env:         h.envValue(),
		Functions:   functions,
		Inspection:  inspection,
		SDKAuthor:   SDKAuthor,
		SDKLanguage: SDKLanguage,
		SDKVersion:  SDKVersion,
		URL:         body.URL,
	}

	w.Header().Set(HeaderKeySyncKind, SyncKindInBand)
	w.Header().Set(HeaderKeyContentType, "application/json")
	w.WriteHeader(200)
	return json.NewEncoder(w).Encode(resp)
}

// resolveFromAPI populates request.Steps/Events from the orchestrator's API
// when the request set use_api, signalling its inline memo was dropped for
// exceeding the protocol's body size limit.
func (h *handler) resolveFromAPI(ctx context.Context, request *sdkrequest.Request) error {
	baseURL := defaultAPIOrigin
	if h.c.ClientOpts.APIBaseURL != nil {
		baseURL = *h.c.ClientOpts.APIBaseURL
	} else if h.c.isDev() {
		baseURL = DevServerURL()
	}

	client := checkpoint.NewClient(h.c.signingKey(), h.c.signingKeyFallback())
	client.SetBaseURL(baseURL)

	steps, err := client.GetSteps(ctx, request.CallCtx.RunID)
	if err != nil {
		return fmt.Errorf("error fetching steps: %w", err)
	}
	request.Steps = steps

	if len(request.Events) == 0 && len(request.Event) == 0 {
		events, err := client.GetEvents(ctx, request.CallCtx.RunID)
		if err != nil {
			return fmt.Errorf("error fetching events: %w", err)
		}
		if len(events) > 0 {
			request.Event = events[0]
			request.Events = events
		}
	}

	return nil
}

func (h *handler) functionURL(r *http.Request, fnID string) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	u, _ := url.Parse(fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.Path))
	values := u.Query()
	values.Set("fnId", fnID)
	values.Set("step", "step")
	u.RawQuery = values.Encode()
	return u
}

// StreamResponse wraps an invoke result when streaming mode is used to keep
// slow connections alive while a function runs.
type StreamResponse struct {
	StatusCode int               `json:"status"`
	Body       any               `json:"body"`
	RetryAt    *time.Time        `json:"retryAt"`
	NoRetry    bool              `json:"noRetry"`
	Headers    map[string]string `json:"headers"`
}

func (h *handler) invoke(w http.ResponseWriter, r *http.Request) error {
	defer func() { _ = r.Body.Close() }()

	var sig string
	if !h.c.isDev() {
		if sig = r.Header.Get(HeaderKeySignature); sig == "" {
			return publicerr.Error{Message: "unauthorized", Status: 401}
		}
	}

	byt, err := io.ReadAll(http.MaxBytesReader(w, r.Body, int64(DefaultMaxBodySize)))
	if err != nil {
		h.c.logger().Error("error reading function request", "error", err)
		return publicerr.Error{Message: "error reading request", Status: 500}
	}

	if valid, _, err := ValidateSignature(r.Context(), sig, h.c.signingKey(), h.c.signingKeyFallback(), byt); !valid {
		h.c.logger().Error("unauthorized inngest invoke request", "error", err)
		return publicerr.Error{Message: "unauthorized", Status: 401}
	}

	fnID := r.URL.Query().Get("fnId")

	request := &sdkrequest.Request{}
	if err := json.Unmarshal(byt, request); err != nil {
		h.c.logger().Error("error decoding function request", "error", err)
		return publicerr.Error{Message: "malformed input", Status: 400}
	}
	request.RequestedRunStep = r.URL.Query().Get("stepId")

	var fn ServableFunction
	for _, f := range h.c.funcs() {
		if f.ID() == fnID {
			fn = f
			break
		}
	}
	if fn == nil {
		return publicerr.Error{Message: fmt.Sprintf("function not found: %s", fnID), Status: 410}
	}

	if request.CallCtx.UseAPI {
		if err := h.resolveFromAPI(r.Context(), request); err != nil {
			h.c.logger().Error("error fetching run state from API", "error", err)
			return publicerr.Error{Message: "error fetching run state", Status: 500}
		}
	}

	l := h.c.logger().With("fn", fnID, "call_ctx", request.CallCtx)
	l.Debug("calling function")

	result := h.invokeFunction(r.Context(), fn, request)
	resp, ops, err := result.Response, result.Ops, result.Err

	noRetry := IsNoRetryError(err)
	retryAt := GetRetryAtTime(err)
	if len(ops) == 1 && ops[0].Op == op.Run && ops[0].Error != nil {
		err = nil
	}
	if IsStepError(err) {
		err = fmt.Errorf("unhandled step error: %w", err)
		noRetry = true
	}

	if noRetry {
		w.Header().Add(HeaderKeyNoRetry, "true")
	}
	if retryAt != nil {
		w.Header().Add(HeaderKeyRetryAfter, retryAt.Format(time.RFC3339))
	}

	if err != nil {
		l.Error("error calling function", "error", err)
		return publicerr.Error{Message: fmt.Sprintf("error calling function: %s", err.Error()), Status: 500}
	}

	if len(ops) > 0 {
		w.WriteHeader(206)
		return json.NewEncoder(w).Encode(ops)
	}

	// The function ran to completion: run the output side of the onion
	// model before the result is serialized and sent back.
	outCtx := result.Middleware.AfterExecution(result.Context)
	resp, err = result.Middleware.TransformOutput(outCtx, resp, err)
	if err != nil {
		l.Error("error calling function", "error", err)
		return publicerr.Error{Message: fmt.Sprintf("error calling function: %s", err.Error()), Status: 500}
	}
	result.Middleware.BeforeResponse(outCtx)

	return json.NewEncoder(w).Encode(resp)
}

// invokeResult carries everything invoke() needs to finish the output side
// of the middleware onion model after the function body has returned.
type invokeResult struct {
	Response   any
	Ops        []op.Op
	Err        error
	Middleware *middleware.Manager
	Context    context.Context
}

// invokeFunction calls sf with the data decoded from req, recovering the
// step.ControlHijack panic a suspended step uses to unwind the call stack.
func (h *handler) invokeFunction(ctx context.Context, sf ServableFunction, req *sdkrequest.Request) invokeResult {
	mw := h.middlewareFor(sf)

	if sf.Func() == nil {
		return invokeResult{Err: fmt.Errorf("no function defined"), Middleware: mw, Context: ctx}
	}

	fCtx, cancel := context.WithCancel(ctx)

	mgr := sdkrequest.NewManager(sdkrequest.Opts{
		FunctionID: sf.AppID() + "-" + sf.ID(),
		Middleware: mw,
		Cancel:     cancel,
		Request:    req,
		SigningKey: h.c.signingKey(),
		Mode:       sdkrequest.StepModeYield,
	})
	fCtx = sdkrequest.SetManager(fCtx, mgr)
	fCtx = contextWithEventSender(fCtx, h.c)

	fCtx = mw.TransformInput(fCtx, decodeEvents(req), mgr.MiddlewareCallCtx())
	fCtx = mw.BeforeMemoization(fCtx)
	mgr.SetContext(fCtx)

	fVal := reflect.ValueOf(sf.Func())
	inputVal := reflect.New(fVal.Type().In(1)).Elem()

	if err := populateInput(inputVal, sf.ZeroEvent(), req); err != nil {
		return invokeResult{Err: err, Middleware: mw, Context: mgr.Context()}
	}

	inputVal.FieldByName("InputCtx").Set(reflect.ValueOf(InputCtx{
		Env:        req.CallCtx.Env,
		FunctionID: req.CallCtx.FunctionID,
		RunID:      req.CallCtx.RunID,
		StepID:     req.CallCtx.StepID,
		Attempt:    req.CallCtx.Attempt,
	}))

	var (
		res       []reflect.Value
		panickErr error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(step.ControlHijack); ok {
					return
				}
				panickErr = fmt.Errorf("function panicked: %v", r)
			}
		}()
		res = fVal.Call([]reflect.Value{reflect.ValueOf(fCtx), inputVal})
	}()

	// A function that never calls a step tool still needs to pass through
	// the memoization/execution boundary exactly once.
	finalCtx := mgr.EnsureExecuting(mgr.Context())
	mgr.SetContext(finalCtx)

	var err error
	if panickErr != nil {
		err = panickErr
	} else if mgr.Err() != nil {
		err = mgr.Err()
	} else if res != nil && !res[1].IsNil() {
		err = res[1].Interface().(error)
	}

	var response any
	if res != nil {
		response = res[0].Interface()
	}

	return invokeResult{Response: response, Ops: mgr.Ops(), Err: err, Middleware: mw, Context: mgr.Context()}
}

// decodeEvents unmarshals the request's raw event JSON into the wire Event
// type, for TransformInput hooks that need typed access regardless of
// whether the function itself declared a concrete event type.
func decodeEvents(req *sdkrequest.Request) []event.Event {
	events := make([]event.Event, 0, len(req.Events))
	for _, raw := range req.Events {
		var e event.Event
		if err := json.Unmarshal(raw, &e); err == nil {
			events = append(events, e)
		}
	}
	if len(events) == 0 && len(req.Event) > 0 {
		var e event.Event
		if err := json.Unmarshal(req.Event, &e); err == nil {
			events = append(events, e)
		}
	}
	return events
}

// middlewareFor combines client-level and function-level middleware into a
// single manager for one invocation, client middleware registered first.
func (h *handler) middlewareFor(sf ServableFunction) *middleware.Manager {
	mw := middleware.New()
	mw.Add(h.c.ClientOpts.Middleware...)
	mw.Add(sf.Config().Middleware...)
	return mw
}

// populateInput fills in inputVal's Event/Events fields by unmarshalling
// req's raw event JSON either into zeroEvent's concrete type (when the
// function declared one) or into a generic map.
func populateInput(inputVal reflect.Value, zeroEvent any, req *sdkrequest.Request) error {
	if zeroEvent != nil {
		eventType := reflect.TypeOf(zeroEvent)

		evtPtr := reflect.New(eventType).Interface()
		if err := json.Unmarshal(req.Event, evtPtr); err != nil {
			return fmt.Errorf("error unmarshalling event for function: %w", err)
		}
		inputVal.FieldByName("Event").Set(reflect.ValueOf(evtPtr).Elem())

		sliceType := reflect.SliceOf(eventType)
		evtList := reflect.MakeSlice(sliceType, 0, len(req.Events))
		for _, raw := range req.Events {
			newEvent := reflect.New(eventType).Interface()
			if err := json.Unmarshal(raw, newEvent); err != nil {
				return fmt.Errorf("error unmarshalling event in event list: %w", err)
			}
			evtList = reflect.Append(evtList, reflect.ValueOf(newEvent).Elem())
		}
		inputVal.FieldByName("Events").Set(evtList)
		return nil
	}

	var val map[string]any
	if err := json.Unmarshal(req.Event, &val); err != nil {
		return fmt.Errorf("error unmarshalling event for function: %w", err)
	}
	inputVal.FieldByName("Event").Set(reflect.ValueOf(val))

	events := make([]any, len(req.Events))
	for i, raw := range req.Events {
		var v map[string]any
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("error unmarshalling event in event list: %w", err)
		}
		events[i] = v
	}
	inputVal.FieldByName("Events").Set(reflect.ValueOf(events))
	return nil
}

// insecureIntrospection is the field set returned to any caller, signed or
// not: nothing here reveals configuration an attacker could use.
type insecureIntrospection struct {
	AuthenticationSucceeded *bool  `json:"authentication_succeeded"`
	FunctionCount           int    `json:"function_count"`
	HasEventKey             bool   `json:"has_event_key"`
	HasSigningKey           bool   `json:"has_signing_key"`
	HasSigningKeyFallback   bool   `json:"has_signing_key_fallback"`
	Mode                    string `json:"mode"`
	SchemaVersion           string `json:"schema_version"`
}

// secureIntrospection adds the fields only returned once the caller's
// signature has been validated.
type secureIntrospection struct {
	insecureIntrospection
	APIOrigin              string       `json:"api_origin"`
	AppID                  string       `json:"app_id"`
	Capabilities           Capabilities `json:"capabilities"`
	Env                    *string      `json:"env"`
	EventAPIOrigin         string       `json:"event_api_origin"`
	EventKeyHash           *string      `json:"event_key_hash"`
	Framework              string       `json:"framework"`
	SDKLanguage            string       `json:"sdk_language"`
	SDKVersion             string       `json:"sdk_version"`
	ServeOrigin            *string      `json:"serve_origin"`
	ServePath              *string      `json:"serve_path"`
	SigningKeyFallbackHash *string      `json:"signing_key_fallback_hash"`
	SigningKeyHash         *string      `json:"signing_key_hash"`
}

// buildIntrospection builds the introspection payload for r, validating its
// signature against body (the exact bytes the caller signed). Absent any
// X-Inngest-Signature header, AuthenticationSucceeded is left nil (no
// signature was attempted at all) rather than false (one was attempted and
// failed). A present signature is checked in dev and cloud mode alike; with
// no signing key configured, ValidateSignature accepts any signature.
func (h *handler) buildIntrospection(r *http.Request, body []byte) (any, error) {
	mode := "cloud"
	if h.c.isDev() {
		mode = "dev"
	}

	sig := r.Header.Get(HeaderKeySignature)
	var authSucceeded *bool
	if sig != "" {
		valid, _, _ := ValidateSignature(r.Context(), sig, h.c.signingKey(), h.c.signingKeyFallback(), body)
		authSucceeded = &valid
	}

	base := insecureIntrospection{
		AuthenticationSucceeded: authSucceeded,
		FunctionCount:           len(h.c.funcs()),
		HasEventKey:             h.c.GetEventKey() != "",
		HasSigningKey:           h.c.signingKey() != "",
		HasSigningKeyFallback:   h.c.signingKeyFallback() != "",
		Mode:                    mode,
		SchemaVersion:           schemaVersion,
	}

	if authSucceeded == nil || !*authSucceeded {
		return base, nil
	}

	var signingKeyHash, signingKeyFallbackHash *string
	if h.c.signingKey() != "" {
		key, err := hashedSigningKey([]byte(h.c.signingKey()))
		if err != nil {
			return nil, fmt.Errorf("error hashing signing key: %w", err)
		}
		hash := string(key)
		signingKeyHash = &hash
	}
	if h.c.signingKeyFallback() != "" {
		key, err := hashedSigningKey([]byte(h.c.signingKeyFallback()))
		if err != nil {
			return nil, fmt.Errorf("error hashing signing key fallback: %w", err)
		}
		hash := string(key)
		signingKeyFallbackHash = &hash
	}

	var eventKeyHash *string
	if ek := h.c.GetEventKey(); ek != "" {
		key, err := hashedSigningKey([]byte(ek))
		if err != nil {
			return nil, fmt.Errorf("error hashing event key: %w", err)
		}
		hash := string(key)
		eventKeyHash = &hash
	}

	var serveOriginPtr, servePathPtr *string
	if v := serveOrigin(); v != "" {
		serveOriginPtr = &v
	}
	if v := servePath(); v != "" {
		servePathPtr = &v
	}

	return secureIntrospection{
		insecureIntrospection:  base,
		APIOrigin:              h.apiOrigin(),
		AppID:                  h.c.AppID(),
		Capabilities:           capabilities,
		Env:                    h.envValue(),
		EventAPIOrigin:         eventAPIBaseURL(),
		EventKeyHash:           eventKeyHash,
		Framework:              "",
		SDKLanguage:            SDKLanguage,
		SDKVersion:             SDKVersion,
		ServeOrigin:            serveOriginPtr,
		ServePath:              servePathPtr,
		SigningKeyFallbackHash: signingKeyFallbackHash,
		SigningKeyHash:         signingKeyHash,
	}, nil
}

func (h *handler) introspect(w http.ResponseWriter, r *http.Request) error {
	defer func() { _ = r.Body.Close() }()

	payload, err := h.buildIntrospection(r, []byte{})
	if err != nil {
		return err
	}

	w.Header().Set(HeaderKeyContentType, "application/json")
	return json.NewEncoder(w).Encode(payload)
}

type trustProbeResponse struct {
	Error *string `json:"error,omitempty"`
}

func (h *handler) trust(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	w.Header().Add(HeaderKeyContentType, "application/json")

	sig := r.Header.Get(HeaderKeySignature)
	if sig == "" {
		_ = publicerr.WriteHTTP(w, publicerr.Error{Message: fmt.Sprintf("missing %s header", HeaderKeySignature), Status: 401})
		return
	}

	valid, key, err := ValidateSignature(ctx, sig, h.c.signingKey(), h.c.signingKeyFallback(), []byte{})
	if err != nil {
		_ = publicerr.WriteHTTP(w, publicerr.Error{Message: fmt.Sprintf("error validating signature: %s", err)})
		return
	}
	if !valid {
		_ = publicerr.WriteHTTP(w, publicerr.Error{Message: "invalid signature", Status: 401})
		return
	}

	byt, err := json.Marshal(trustProbeResponse{})
	if err != nil {
		_ = publicerr.WriteHTTP(w, err)
		return
	}

	w.Header().Add(HeaderKeySignature, Sign(ctx, time.Now(), []byte(key), byt))
	w.WriteHeader(200)
	if _, err := w.Write(byt); err != nil {
		h.c.logger().Error("error writing trust probe response", "error", err)
	}
}
