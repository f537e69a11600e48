package httpapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSpecParsesAndValidatesBundledDocument(t *testing.T) {
	doc, err := LoadSpec()
	require.NoError(t, err)
	require.NotNil(t, doc)
	require.Contains(t, doc.Paths.Map(), "/meetings/{meetingID}/recording")
}
