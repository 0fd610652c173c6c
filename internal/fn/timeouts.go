package fn

import (
	"encoding/json"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// Timeouts bounds how long a function run may wait before starting, and
// how long it may run once started, both optional.
type Timeouts struct {
	Start  *time.Duration
	Finish *time.Duration
}

// MarshalJSON encodes only the populated bounds, each formatted as a
// duration string (eg. "1s", "1d"), with keys in alphabetical order — the
// standard library sorts map keys, so building a map and marshalling it
// gives us that order for free.
func (t Timeouts) MarshalJSON() ([]byte, error) {
	m := map[string]string{}
	if t.Start != nil {
		m["start"] = str2duration.String(*t.Start)
	}
	if t.Finish != nil {
		m["finish"] = str2duration.String(*t.Finish)
	}
	return json.Marshal(m)
}
