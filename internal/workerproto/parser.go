// Package workerproto is the small state-machine line parser shared by
// the diarizer and transcriber worker protocols, §6 and §9 ("Subprocess
// line parsing → small state-machine parsers"). It recognizes two wire
// shapes on a worker's output:
//
//	[TAG] rest of line
//	{"type": "...", ...}            (JSON-per-line)
//
// Both are accepted during the same session; a line matching neither is
// reported as Unknown so callers can log it without guessing its
// meaning.
package workerproto

import (
	"encoding/json"
	"strings"
)

// Kind identifies which of the two accepted shapes a line took.
type Kind int

const (
	KindUnknown Kind = iota
	KindTag
	KindJSON
)

// Line is the parsed result of a single worker output line.
type Line struct {
	Kind Kind
	// Tag fields, populated when Kind == KindTag.
	Tag     string
	Rest    string
	// JSON fields, populated when Kind == KindJSON.
	Type    string
	Raw     json.RawMessage
}

// Parse classifies and decomposes a single line of worker output.
func Parse(line string) Line {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return Line{Kind: KindUnknown}
	}

	if strings.HasPrefix(trimmed, "[") {
		if end := strings.Index(trimmed, "]"); end > 0 {
			tag := trimmed[1:end]
			rest := strings.TrimSpace(trimmed[end+1:])
			return Line{Kind: KindTag, Tag: tag, Rest: rest}
		}
	}

	if strings.HasPrefix(trimmed, "{") {
		var envelope struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal([]byte(trimmed), &envelope); err == nil && envelope.Type != "" {
			return Line{Kind: KindJSON, Type: envelope.Type, Raw: json.RawMessage(trimmed)}
		}
	}

	return Line{Kind: KindUnknown}
}

// TagFields splits a "[PROGRESS] diarize 42 loading model" style rest
// into fields split on single spaces, capping at maxFields so a trailing
// free-text message field keeps embedded spaces.
func TagFields(rest string, maxFields int) []string {
	return strings.SplitN(rest, " ", maxFields)
}
