package workerproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseTagLine(t *testing.T) {
	l := Parse("[PROGRESS] diarize 42 loading model")
	require.Equal(t, KindTag, l.Kind)
	require.Equal(t, "PROGRESS", l.Tag)
	require.Equal(t, "diarize 42 loading model", l.Rest)
}

func TestParseJSONLine(t *testing.T) {
	l := Parse(`{"type":"segment","speaker_id":"SPEAKER_0"}`)
	require.Equal(t, KindJSON, l.Kind)
	require.Equal(t, "segment", l.Type)
}

func TestParseUnknownLine(t *testing.T) {
	l := Parse("garbage output that matches neither shape")
	require.Equal(t, KindUnknown, l.Kind)
}

func TestParseEmptyLine(t *testing.T) {
	require.Equal(t, KindUnknown, Parse("   ").Kind)
}

func TestTagFieldsCapsTrailingMessage(t *testing.T) {
	fields := TagFields("diarize 42 loading acoustic model", 3)
	require.Equal(t, []string{"diarize", "42", "loading acoustic model"}, fields)
}
