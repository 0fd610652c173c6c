package sdkrequest

import "encoding/json"

// CallCtx mirrors the "ctx" field of an incoming step-run request: details
// about the run that aren't part of the triggering event(s).
type CallCtx struct {
	Env                       string `json:"env"`
	FunctionID                string `json:"fn_id"`
	RunID                     string `json:"run_id"`
	StepID                    string `json:"step_id"`
	Attempt                   int    `json:"attempt"`
	DisableImmediateExecution bool   `json:"disable_immediate_execution,omitempty"`
	UseAPI                    bool   `json:"use_api,omitempty"`
}

// Request is the deserialized POST body the orchestrator sends to invoke
// (or resume) a function run (spec §6: "POST — run a step").
type Request struct {
	Events  []json.RawMessage          `json:"events"`
	Event   json.RawMessage            `json:"event"`
	Steps   map[string]json.RawMessage `json:"steps"`
	CallCtx CallCtx                    `json:"ctx"`

	// RequestedRunStep, when non-empty, names the single hashed step id the
	// orchestrator wants executed inline this invocation (the "?stepId="
	// query parameter of spec §4.3's two-phase protocol).
	RequestedRunStep string `json:"-"`
}
