package httpapi

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/health"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/stretchr/testify/require"
)

func newSQLiteTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// capturingOrchestrator records the actor passed to
// AcknowledgeTranscriptionOnly so tests can assert on it.
type capturingOrchestrator struct {
	fakeOrchestrator
	gotActor string
}

func (c *capturingOrchestrator) AcknowledgeTranscriptionOnly(ctx context.Context, meetingID, actor string) error {
	c.gotActor = actor
	return nil
}

func TestHandleAcknowledgeTranscriptionOnlyUsesBodyActorWhenUnauthenticated(t *testing.T) {
	st := newSQLiteTestStore(t)
	orch := &capturingOrchestrator{}
	srv := NewServer(orch, st, health.NewManager("test"), config.APIConfig{}, t.TempDir())

	body := bytes.NewBufferString(`{"actor":"alice"}`)
	r := httptest.NewRequest(http.MethodPost, "/meetings/m1/acknowledge-transcription-only", body)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Equal(t, "alice", orch.gotActor)
}

func TestHandleAcknowledgeTranscriptionOnlyPrefersAuthenticatedPrincipalOverBodyActor(t *testing.T) {
	st := newSQLiteTestStore(t)
	orch := &capturingOrchestrator{}
	srv := NewServer(orch, st, health.NewManager("test"), config.APIConfig{Token: "secret-token"}, t.TempDir())

	body := bytes.NewBufferString(`{"actor":"alice"}`)
	r := httptest.NewRequest(http.MethodPost, "/meetings/m1/acknowledge-transcription-only", body)
	r.Header.Set("Authorization", "Bearer secret-token")
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.NotEqual(t, "alice", orch.gotActor)
	require.NotEmpty(t, orch.gotActor)
}
