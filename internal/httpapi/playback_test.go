package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/health"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/stretchr/testify/require"
)

// newPlaybackTestServer is like newTestServer but exposes the server's
// recordings root so tests can place fixture recordings underneath it;
// handlePlayback re-confines every stored path against that root.
func newPlaybackTestServer(t *testing.T) (*Server, *store.Store, string) {
	t.Helper()
	recDir := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), "test.sqlite")
	st, err := store.Open(context.Background(), dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(fakeOrchestrator{}, st, health.NewManager("test"), config.APIConfig{}, recDir)
	return srv, st, recDir
}

func writeTestRecording(t *testing.T, recDir string, size int) string {
	t.Helper()
	path := filepath.Join(recDir, "m.wav")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestHandlePlaybackFullFile(t *testing.T) {
	srv, st, recDir := newPlaybackTestServer(t)
	path := writeTestRecording(t, recDir, 2_000_000)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingStopped, AudioFilePath: path})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings/m1/recording", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "2000000", w.Header().Get("Content-Length"))
	require.Equal(t, "bytes", w.Header().Get("Accept-Ranges"))
}

func TestHandlePlaybackRangeRequest(t *testing.T) {
	srv, st, recDir := newPlaybackTestServer(t)
	path := writeTestRecording(t, recDir, 2_000_000)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingStopped, AudioFilePath: path})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings/m1/recording", nil)
	r.Header.Set("Range", "bytes=1000000-")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusPartialContent, w.Code)
	require.Equal(t, "bytes 1000000-1999999/2000000", w.Header().Get("Content-Range"))
	require.Equal(t, "1000000", w.Header().Get("Content-Length"))
	require.Len(t, w.Body.Bytes(), 1_000_000)
}

func TestHandlePlaybackRangeBeyondSizeReturns416(t *testing.T) {
	srv, st, recDir := newPlaybackTestServer(t)
	path := writeTestRecording(t, recDir, 2_000_000)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingStopped, AudioFilePath: path})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings/m1/recording", nil)
	r.Header.Set("Range", "bytes=2000000-")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusRequestedRangeNotSatisfiable, w.Code)
	require.Equal(t, "bytes */2000000", w.Header().Get("Content-Range"))
}

func TestParseRangeHeaderRejectsMultiRange(t *testing.T) {
	_, err := parseRangeHeader("bytes=0-100,200-300", 1000)
	require.ErrorIs(t, err, errMultiRange)
}

func TestHandlePlaybackRejectsPathOutsideRecordingsRoot(t *testing.T) {
	srv, st, _ := newPlaybackTestServer(t)
	outside := filepath.Join(t.TempDir(), "secret.wav")
	require.NoError(t, os.WriteFile(outside, []byte("not a recording"), 0o600))
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingStopped, AudioFilePath: outside})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings/m1/recording", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusNotFound, w.Code)
}
