package diarizer

import "encoding/json"

// unmarshalJSON decodes a single worker protocol event payload. It is
// a thin wrapper so callers don't import encoding/json directly and so
// a future switch to a stricter decoder (DisallowUnknownFields) is a
// one-line change.
func unmarshalJSON(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}
