// Package op implements the canonical representation of a step operation:
// its identity, kind, options, data and error, plus the hashing rules that
// give every step call a stable, replay-safe identity (spec §4.1).
package op

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Code identifies the kind of action an Op asks the orchestrator to take.
type Code string

const (
	// Planned marks a run/sendEvent/ai.wrap step that has been discovered
	// but not yet executed; the orchestrator must call back with a
	// matching step id before it runs.
	Planned Code = "StepPlanned"
	// Run marks a memo entry for a step that has already run and carries
	// Data or Error.
	Run Code = "StepRun"
	// Sleep parks the run until a duration or timestamp elapses.
	Sleep Code = "Sleep"
	// WaitForEvent parks the run until a matching event arrives or a
	// timeout elapses.
	WaitForEvent Code = "WaitForEvent"
	// InvokeFunction asks the orchestrator to invoke another function and
	// return its result.
	InvokeFunction Code = "InvokeFunction"
	// AIGateway proxies an AI inference request through the orchestrator.
	AIGateway Code = "AiGateway"
	// Gateway proxies a generic HTTP fetch through the orchestrator.
	Gateway Code = "Gateway"
)

// SerializedError is the wire shape of an error crossing the HTTP boundary,
// used both in step memo entries and in function-rejected responses.
type SerializedError struct {
	Name    string           `json:"name"`
	Message string           `json:"message"`
	Stack   string           `json:"stack,omitempty"`
	Cause   *SerializedError `json:"cause,omitempty"`

	// Serialized always marshals true, letting the orchestrator tell a
	// serialized error apart from an arbitrary JSON object.
	Serialized bool `json:"__serialized"`
}

// Op is a value object describing a single request from user code to the
// orchestrator. Once emitted it is never mutated.
type Op struct {
	// ID carries the hashed step identity (see Unhashed.Hash). The raw,
	// user-supplied step id travels in DisplayName/Name instead.
	ID          string           `json:"id"`
	DisplayName string           `json:"displayName,omitempty"`
	Name        string           `json:"name,omitempty"`
	Op          Code             `json:"op"`
	Opts        any              `json:"opts,omitempty"`
	Data        json.RawMessage  `json:"data,omitempty"`
	Error       *SerializedError `json:"error,omitempty"`
}

// Unhashed is the pre-hash representation of a step call: everything known
// about the call site before it's given an identity.
type Unhashed struct {
	// ID is the user-supplied step id (or the "id" field of {id, name}).
	ID string
	// DisplayName is the optional human-readable label, defaulting to ID.
	DisplayName string
	Op          Code
	Opts        map[string]any
	// Pos is the monotonically-incrementing position counter: it starts
	// at 0 at the beginning of every run and increments on every tool
	// call, guaranteeing that reusing the same user id at different call
	// sites still yields a unique hash (spec §4.2).
	Pos uint
}

// canonical is the shape that's hashed: {pos, op, name, opts}. data and
// error never participate in the hash.
type canonical struct {
	Pos  uint           `json:"pos"`
	Op   Code           `json:"op"`
	Name string         `json:"name"`
	Opts map[string]any `json:"opts"`
}

// Hash computes the stable identity of a step call: sha1 of the canonical
// (key-sorted) JSON encoding of {pos, op, name, opts}. Canonicalization uses
// RFC 8785 JSON Canonicalization via gowebpki/jcs, matching the signing
// path's canonical serializer (spec §9: "any deviation breaks signature
// verification").
func (u Unhashed) Hash() (string, error) {
	byt, err := json.Marshal(canonical{
		Pos:  u.Pos,
		Op:   u.Op,
		Name: u.ID,
		Opts: u.Opts,
	})
	if err != nil {
		return "", fmt.Errorf("error marshalling op for hashing: %w", err)
	}

	canon, err := jcs.Transform(byt)
	if err != nil {
		return "", fmt.Errorf("error canonicalizing op: %w", err)
	}

	sum := sha1.Sum(canon)
	return hex.EncodeToString(sum[:]), nil
}

// MustHash calls Hash, panicking on failure. Hashing a well-formed Unhashed
// (built exclusively through a manager's NewOp) never fails in practice; the
// panic only guards against a future caller constructing one by hand with a
// non-JSON-marshalable Opts value.
func (u Unhashed) MustHash() string {
	h, err := u.Hash()
	if err != nil {
		panic(fmt.Errorf("error hashing op: %w", err))
	}
	return h
}

// Planned builds the placeholder Op sent while a run/sendEvent/ai.wrap step
// is discovered but not yet executed.
func (u Unhashed) Planned() Op {
	return Op{
		ID:          u.MustHash(),
		DisplayName: u.ID,
		Name:        u.ID,
		Op:          Planned,
	}
}
