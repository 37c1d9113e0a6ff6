package spine

import (
	"fmt"
	"time"
)

// parseTimestamp accepts either the layout Append writes or plain
// RFC3339, since Go's encoding/json renders time.Time as RFC3339Nano
// when an event field round-trips through the default json tag-less
// marshaling path used by encode/decode.
func parseTimestamp(raw string) (time.Time, error) {
	for _, layout := range []string{rfc3339Offset, time.RFC3339Nano, time.RFC3339} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp format: %q", raw)
}
