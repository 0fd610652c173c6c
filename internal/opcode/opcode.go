// Package opcode defines the wire shape of a single step result as reported
// to the orchestrator's async checkpoint endpoint, independent of the op
// package's richer in-process Op (so the checkpoint client can be vendored
// without pulling in hashing/canonicalization concerns it doesn't need).
package opcode

import "github.com/inngest/inngestgo/op"

// Step is a single completed (or failed) step queued for checkpointing.
type Step struct {
	Op op.Code `json:"op"`
	ID string  `json:"id"`
}
