package recordings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyTooSmallIsWriting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 10), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, StateWriting, Classify(path, info, DefaultFinalizeConfig()))
}

func TestClassifyLargeEnoughIsFinished(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rec.wav")
	require.NoError(t, os.WriteFile(path, make([]byte, 1024), 0o644))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, StateFinished, Classify(path, info, DefaultFinalizeConfig()))
}
