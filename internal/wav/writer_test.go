package wav

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCanonicalHeaderThenSanitizeRepairsSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rec.wav")
	f, err := WriteCanonicalHeader(path, 16000, 1, 16)
	require.NoError(t, err)

	payload := make([]byte, 3200) // 0.1s of 16kHz mono s16le
	_, err = f.Write(payload)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	info, err := Sanitize(path)
	require.NoError(t, err)
	require.True(t, info.Repaired)
	require.Equal(t, uint32(len(payload)), info.ActualDataSize)

	st, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(44+len(payload)), st.Size())
}
