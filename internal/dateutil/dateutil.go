// Package dateutil parses timestamps in any of the common RFC formats, used
// by step.SleepUntil when given a string deadline instead of a time.Time.
package dateutil

import "time"

// formats lists every layout attempted, in order, by Parse.
var formats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822,
	time.RFC822Z,
	time.RFC850,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
	time.Stamp,
	time.StampMilli,
	"2006-01-02",
}

// Parse attempts to parse s using each supported layout, returning the
// first successful match in UTC. If no layout matches, Parse returns the
// zero time and a non-nil error.
func Parse(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range formats {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
