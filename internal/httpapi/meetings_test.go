package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/meetinglens/transcriptd/internal/config"
	"github.com/meetinglens/transcriptd/internal/health"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/orchestrator"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/stretchr/testify/require"
)

type fakeOrchestrator struct{}

func (fakeOrchestrator) Start(ctx context.Context, title string) (string, error) { return "", nil }
func (fakeOrchestrator) FeedAudio(meetingID string, pcm []byte) error            { return nil }
func (fakeOrchestrator) Pause(ctx context.Context, meetingID string) error       { return nil }
func (fakeOrchestrator) Resume(ctx context.Context, meetingID string) error      { return nil }
func (fakeOrchestrator) AcknowledgeTranscriptionOnly(ctx context.Context, meetingID, actor string) error {
	return nil
}
func (fakeOrchestrator) Stop(ctx context.Context, meetingID string) (orchestrator.Summary, error) {
	return orchestrator.Summary{}, nil
}

func newTestServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	st, err := store.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	srv := NewServer(fakeOrchestrator{}, st, health.NewManager("test"), config.APIConfig{}, t.TempDir())
	return srv, st
}

func TestHandleListAndGetMeeting(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Title: "standup", StartedAt: 1000, Status: model.MeetingRecording})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var list []meetingDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "m1", list[0].ID)

	r = httptest.NewRequest(http.MethodGet, "/meetings/m1", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/meetings/does-not-exist", nil)
	w = httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleGetTranscriptOrdersByStart(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)
	_, err = st.CreateBatch(ctx, []model.TranscriptRow{
		{MeetingID: "m1", SpeakerID: "SPEAKER_1", Text: "second", StartMS: 5000, EndMS: 6000, IsFinal: true},
		{MeetingID: "m1", SpeakerID: "SPEAKER_0", Text: "first", StartMS: 0, EndMS: 1000, IsFinal: true},
	})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/meetings/m1/transcript", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var rows []transcriptRowDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	require.Equal(t, "first", rows[0].Text)
	require.Equal(t, "second", rows[1].Text)
}

func TestHandleSearchRequiresQuery(t *testing.T) {
	srv, _ := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/search", nil)
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, r)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleGetNotesTasksFailures(t *testing.T) {
	srv, st := newTestServer(t)
	ctx := context.Background()
	_, err := st.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)
	_, err = st.CreateNote(ctx, model.InsightNote{MeetingID: "m1", Kind: model.InsightSummary, Body: "recap", Status: model.InsightLive})
	require.NoError(t, err)
	_, err = st.CreateTask(ctx, model.Task{MeetingID: "m1", Title: "follow up", Priority: model.PriorityMedium, Status: model.TaskOpen})
	require.NoError(t, err)
	_, err = st.CreateFailureEvent(ctx, model.FailureEvent{MeetingID: "m1", Kind: model.FailureWorkerCrashed, Message: "boom"})
	require.NoError(t, err)

	for _, path := range []string{"/meetings/m1/notes", "/meetings/m1/tasks", "/meetings/m1/failures"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		srv.Router().ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code, path)
	}
}
