package transcriber

import "encoding/json"

// unmarshalJSON decodes a single worker protocol event payload.
func unmarshalJSON(raw json.RawMessage, v interface{}) error {
	return json.Unmarshal(raw, v)
}
