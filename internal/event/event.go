// Package event defines the wire representation of an Inngest event, the
// unit of data that triggers function runs.
package event

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"
)

// Event represents a triggering event sent to or received from Inngest.
//
// See spec §3: {name, data, user?, ts?, id?, v?}.
type Event struct {
	// ID is an optional event ID used for deduplication.  If unset when
	// sending, one is generated.
	ID *string `json:"id,omitempty"`

	// Name represents the name of the event.  We recommend the following
	// simple format: "noun.action".  For example, "signup.new",
	// "payment.succeeded", "email.sent", "post.viewed".
	Name string `json:"name"`

	// Data is a key-value map of data belonging to the event.
	Data map[string]any `json:"data"`

	// User is a key-value map of data belonging to the user that authored
	// the event.
	User any `json:"user,omitempty"`

	// Timestamp is the time the event occurred at *millisecond* precision.
	// Defaults to the time the event is received if left blank.
	Timestamp int64 `json:"ts,omitempty"`

	// Version represents the event's version, allowing the shape of Data
	// to change over time without renaming the event.
	Version string `json:"v,omitempty"`
}

// Validate returns an error if the event is not well formed, and fills in
// zero values (eg. an empty Data map) that downstream marshalling assumes
// are present.
func (e *Event) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("event name must be present")
	}
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	return nil
}

// Map returns the event as a generic map, ready for JSON-ification before
// being sent to the event API.
func (e Event) Map() map[string]any {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	if e.User == nil {
		e.User = make(map[string]any)
	}

	data := map[string]any{
		"name": e.Name,
		"data": e.Data,
		"user": e.User,
		// Cast to float64 as the wire representation has no notion of
		// integers; marshalling and unmarshalling otherwise round-trips
		// inconsistently.
		"ts": float64(e.Timestamp),
	}
	if e.Version != "" {
		data["v"] = e.Version
	}
	if e.ID != nil {
		data["id"] = *e.ID
	}

	return data
}

// NewID returns a new random event ID, used when sending events that don't
// specify one explicitly.
func NewID() string {
	return uuid.NewString()
}

// ValidateEventDataType ensures that event data is a JSON-object-shaped
// value: a map, a struct, or a pointer to either.  Scalars, slices, and
// functions are rejected, as they can't round-trip through the "data" field
// of an event without losing their shape.
func ValidateEventDataType(data any) error {
	if data == nil {
		return nil
	}

	v := reflect.ValueOf(data)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map, reflect.Struct:
		return nil
	default:
		return fmt.Errorf("event data must be a map or struct, got %s", v.Kind())
	}
}
