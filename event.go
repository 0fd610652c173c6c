package inngestgo

import (
	"github.com/inngest/inngestgo/internal/event"
)

// Event represents a triggering event sent to or received from Inngest. See
// internal/event.Event for field documentation.
type Event = event.Event

// GenericEvent is a type-safe wrapper around Event, letting callers declare
// the shape of an event's data up front instead of working with a bare
// map[string]any.
type GenericEvent[DATA any] struct {
	// ID is an optional event ID used for deduplication.
	ID *string `json:"id,omitempty"`

	// Name represents the name of the event, eg. "api/account.created".
	Name string `json:"name"`

	// Data is the typed data belonging to the event.
	Data DATA `json:"data"`

	// User is a key-value map of data belonging to the user that authored
	// the event.
	User any `json:"user,omitempty"`

	// Timestamp is the time the event occurred at *millisecond* precision.
	Timestamp int64 `json:"ts,omitempty"`

	// Version represents the event's version.
	Version string `json:"v,omitempty"`
}

// StrPtr returns a pointer to s, for inline construction of optional string
// fields (eg. ClientOpts.EventKey, Event.ID).
func StrPtr(s string) *string { return &s }

// IntPtr returns a pointer to i, for inline construction of optional int
// fields (eg. FunctionOpts.Retries).
func IntPtr(i int) *int { return &i }

// BoolPtr returns a pointer to b, for inline construction of optional bool
// fields.
func BoolPtr(b bool) *bool { return &b }
