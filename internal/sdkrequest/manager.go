package sdkrequest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/inngest/inngestgo/internal/middleware"
	"github.com/inngest/inngestgo/op"
)

type requestCtxKeyType struct{}

var requestCtxKey = requestCtxKeyType{}

// StepMode controls how a Manager reacts when a step's memoized data isn't
// found in the incoming request.
type StepMode int

const (
	// StepModeYield is the default: an unmemoized step is merely planned
	// (or, if it's its own requested run step, executed) and the call
	// unwinds the function goroutine via step.ControlHijack so the
	// engine can respond with whatever ops have been buffered so far.
	StepModeYield StepMode = iota
	// StepModeBackground runs Run steps inline on first encounter, without
	// waiting for the orchestrator to request them; the call still unwinds
	// via step.ControlHijack afterwards. Used by tests that want to exercise
	// step bodies synchronously.
	StepModeBackground
)

// Manager is responsible for the bookkeeping of a single function
// invocation: tracking step identity/position, the memo of already-run
// steps, buffered new ops, and the invocation's terminal error.
type Manager interface {
	// Cancel ends the context, preventing any further tools from running
	// once a step has decided the response.
	Cancel()
	// Request returns the incoming executor request.
	Request() *Request
	// Err returns the error generated by step code, if a step errored.
	Err() error
	// SetErr sets the invocation's error.
	SetErr(err error)
	// AppendOp pushes a new op onto the stack for this invocation's
	// response. These represent steps not previously memoized.
	AppendOp(o op.Op)
	// Ops returns every op appended so far.
	Ops() []op.Op
	// Step returns memoized step data for the given unhashed op, if
	// present in the incoming request, along with the context callers
	// should use from this point on: BeforeExecution middleware may have
	// returned a context carrying its own additions, and this is how those
	// additions reach the step tooling that triggered it.
	Step(ctx context.Context, u op.Unhashed) (context.Context, json.RawMessage, bool)
	// Context returns the most recently observed context for this
	// invocation, reflecting any additions BeforeExecution applied. Used by
	// the handler to carry those additions into AfterExecution,
	// TransformOutput and BeforeResponse once the function body has
	// returned (or hijacked control), since panics unwind past the
	// context value a step tool held locally.
	Context() context.Context
	// SetContext updates the tracked context returned by Context. The
	// handler calls this once up front with TransformInput's result, so
	// that context is still visible even if the function never calls a
	// step (Step would otherwise be the only thing that updates it).
	SetContext(ctx context.Context)
	// EnsureExecuting fires AfterMemoization then BeforeExecution if no
	// step call has already triggered them this invocation, so a function
	// that returns without ever calling a step tool still passes through
	// the memoization/execution boundary exactly once.
	EnsureExecuting(ctx context.Context) context.Context
	// ReplayedStep reports whether the given hashed step ID has already
	// been read back via Step during this invocation.
	ReplayedStep(hashedID string) bool
	// NewOp builds an op.Unhashed for a step call site, assigning it the
	// next position counter for that user-supplied id.
	NewOp(code op.Code, id string, opts map[string]any) op.Unhashed
	// SigningKey returns the signing key used for this request, letting
	// steps that need to call back out (eg. the API-backed checkpoint
	// client) authenticate.
	SigningKey() string
	// Mode reports the manager's step execution mode.
	Mode() StepMode
	// MiddlewareCallCtx exposes read-only invocation details to middleware.
	MiddlewareCallCtx() middleware.CallContext
}

// Opts configures a new Manager.
type Opts struct {
	FunctionID string
	Middleware *middleware.Manager
	Cancel     context.CancelFunc
	Request    *Request
	SigningKey string
	Mode       StepMode
}

// NewManager returns a Manager for the incoming executor request. Step
// tooling requires one to be present on the context (see SetManager).
func NewManager(o Opts) Manager {
	unseen := make(map[string]struct{}, len(o.Request.Steps))
	for k := range o.Request.Steps {
		unseen[k] = struct{}{}
	}

	mw := o.Middleware
	if mw == nil {
		mw = middleware.New()
	}

	return &requestCtxManager{
		fnID:       o.FunctionID,
		cancel:     o.Cancel,
		request:    o.Request,
		indexes:    map[string]int{},
		l:          &sync.RWMutex{},
		signingKey: o.SigningKey,
		seen:       map[string]struct{}{},
		seenLock:   &sync.RWMutex{},
		unseen:     unseen,
		mw:         mw,
		mode:       o.Mode,
		ctx:           context.Background(),
		ctxLock:       &sync.RWMutex{},
		executingLock: &sync.Mutex{},
	}
}

// SetManager stores a Manager on the context for step tooling to retrieve.
func SetManager(ctx context.Context, m Manager) context.Context {
	return context.WithValue(ctx, requestCtxKey, m)
}

// ManagerFromContext retrieves the Manager stored by SetManager, if any.
func ManagerFromContext(ctx context.Context) (Manager, bool) {
	m, ok := ctx.Value(requestCtxKey).(Manager)
	return m, ok
}

type requestCtxManager struct {
	fnID string
	// signingKey authenticates any out-of-band calls a step needs to make
	// (eg. the API-backed checkpoint client).
	signingKey string
	// cancel ends the context and prevents any other tools from running.
	cancel func()
	// err stores the error from any step ran, or the function body itself.
	err error
	// ops buffers the ops produced by this invocation, in call order.
	ops []op.Op
	// request is the incoming, already-decoded request.
	request *Request
	// indexes tracks, per user-supplied step id, how many times that id
	// has been used so far this invocation (see op.Unhashed.Pos).
	indexes map[string]int
	l       *sync.RWMutex

	// seen holds every hashed step id read back via Step this invocation.
	seen     map[string]struct{}
	seenLock *sync.RWMutex

	// unseen holds hashed step ids present in the request's memo that
	// haven't yet been read back. Once it's empty, every memoized step has
	// been replayed and any further step is "new code".
	unseen map[string]struct{}

	mw   *middleware.Manager
	mode StepMode

	// ctx is the most recently observed invocation context, updated every
	// time a step runs so that hooks invoked after the function body
	// returns (AfterExecution, TransformOutput, BeforeResponse) see
	// whatever additions BeforeExecution applied.
	ctx     context.Context
	ctxLock *sync.RWMutex

	// executing tracks whether AfterMemoization/BeforeExecution have fired
	// yet this invocation, so they run exactly once regardless of whether
	// a step call or the post-call fallback triggers them.
	executing     bool
	executingLock *sync.Mutex
}

func (r *requestCtxManager) SigningKey() string { return r.signingKey }

func (r *requestCtxManager) Mode() StepMode { return r.mode }

func (r *requestCtxManager) Cancel() { r.cancel() }

func (r *requestCtxManager) Request() *Request { return r.request }

func (r *requestCtxManager) SetErr(err error) { r.err = err }

func (r *requestCtxManager) Err() error { return r.err }

func (r *requestCtxManager) AppendOp(o op.Op) {
	r.l.Lock()
	defer r.l.Unlock()
	r.ops = append(r.ops, o)
}

func (r *requestCtxManager) Ops() []op.Op {
	r.l.RLock()
	defer r.l.RUnlock()
	out := make([]op.Op, len(r.ops))
	copy(out, r.ops)
	return out
}

func (r *requestCtxManager) MiddlewareCallCtx() middleware.CallContext {
	return middleware.CallContext{
		FunctionID: r.fnID,
		Env:        r.request.CallCtx.Env,
		RunID:      r.request.CallCtx.RunID,
		Attempt:    r.request.CallCtx.Attempt,
	}
}

// Step looks up memoized data for an unhashed op, hashing it first. The
// first time we exhaust the incoming memo (every previously-seen step has
// been read back), we fire the BeforeExecution middleware hook: everything
// after this point in the function is "new code" running for the first
// time this attempt. BeforeExecution's returned context (which may carry
// its own additions) is what callers should use from here on, and is also
// remembered on the manager so it survives the step.ControlHijack unwind.
func (r *requestCtxManager) Step(ctx context.Context, u op.Unhashed) (context.Context, json.RawMessage, bool) {
	hash := u.MustHash()

	r.l.Lock()
	delete(r.unseen, hash)
	exhausted := len(r.unseen) == 0
	r.l.Unlock()

	if exhausted {
		ctx = r.markExecuting(ctx)
	}
	r.SetContext(ctx)

	val, ok := r.request.Steps[hash]
	if ok {
		r.seenLock.Lock()
		r.seen[hash] = struct{}{}
		r.seenLock.Unlock()
	}
	return ctx, val, ok
}

// markExecuting fires AfterMemoization then BeforeExecution exactly once
// per invocation, marking the transition from replaying memoized steps to
// running new code.
func (r *requestCtxManager) markExecuting(ctx context.Context) context.Context {
	r.executingLock.Lock()
	defer r.executingLock.Unlock()
	if r.executing {
		return ctx
	}
	r.executing = true
	ctx = r.mw.AfterMemoization(ctx)
	ctx = r.mw.BeforeExecution(ctx)
	return ctx
}

func (r *requestCtxManager) EnsureExecuting(ctx context.Context) context.Context {
	return r.markExecuting(ctx)
}

func (r *requestCtxManager) Context() context.Context {
	r.ctxLock.RLock()
	defer r.ctxLock.RUnlock()
	return r.ctx
}

func (r *requestCtxManager) SetContext(ctx context.Context) {
	r.ctxLock.Lock()
	r.ctx = ctx
	r.ctxLock.Unlock()
}

func (r *requestCtxManager) ReplayedStep(hashedID string) bool {
	r.seenLock.RLock()
	defer r.seenLock.RUnlock()
	_, ok := r.seen[hashedID]
	return ok
}

func (r *requestCtxManager) NewOp(code op.Code, id string, opts map[string]any) op.Unhashed {
	r.l.Lock()
	defer r.l.Unlock()

	n := r.indexes[id]
	r.indexes[id] = n + 1

	return op.Unhashed{
		ID:   id,
		Op:   code,
		Opts: opts,
		Pos:  uint(n),
	}
}
