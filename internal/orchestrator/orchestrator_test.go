package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/meetinglens/transcriptd/internal/aligner"
	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/monitor"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/stretchr/testify/require"
)

// fakeStore implements Store in memory so session-level alignment and
// persistence logic can be exercised without a real database or any
// subprocess worker, mirroring the fakes used by internal/insight and
// internal/monitor's own tests.
type fakeStore struct {
	rows          []model.TranscriptRow
	speakers      map[model.SpeakerID]model.Speaker
	relabelCalls  int
	failureEvents []model.FailureEvent
	settings      map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{speakers: make(map[model.SpeakerID]model.Speaker), settings: make(map[string]string)}
}

func (s *fakeStore) CreateMeeting(ctx context.Context, m model.Meeting) (string, error) { return m.ID, nil }
func (s *fakeStore) UpdateMeetingStatus(ctx context.Context, id string, status model.MeetingStatus) error {
	return nil
}
func (s *fakeStore) SetMeetingAudioFilePath(ctx context.Context, id, path string) error { return nil }
func (s *fakeStore) SetMeetingEnded(ctx context.Context, id string, endedAt int64) error { return nil }
func (s *fakeStore) CreateRecording(ctx context.Context, r model.Recording) (string, error) {
	return "rec-1", nil
}
func (s *fakeStore) ResolveSpeaker(ctx context.Context, meetingID string, sessionSpeakerID model.SpeakerID) (model.Speaker, error) {
	if sp, ok := s.speakers[sessionSpeakerID]; ok {
		return sp, nil
	}
	sp := model.Speaker{ID: "speaker-" + string(sessionSpeakerID), DisplayName: string(sessionSpeakerID)}
	s.speakers[sessionSpeakerID] = sp
	return sp, nil
}
func (s *fakeStore) Create(ctx context.Context, row model.TranscriptRow, opts store.CreateOptions) (string, error) {
	return "", nil
}
func (s *fakeStore) CreateBatch(ctx context.Context, rows []model.TranscriptRow) ([]string, error) {
	ids := make([]string, len(rows))
	for i, r := range rows {
		r.ID = "row-" + string(rune('a'+len(s.rows)))
		s.rows = append(s.rows, r)
		ids[i] = r.ID
	}
	return ids, nil
}
func (s *fakeStore) RelabelSpeakerInRange(ctx context.Context, meetingID string, startMS, endMS int64, speakerID model.SpeakerID) (int64, error) {
	s.relabelCalls++
	var n int64
	for i, r := range s.rows {
		if r.StartMS < endMS && r.EndMS > startMS {
			s.rows[i].SpeakerID = speakerID
			n++
		}
	}
	return n, nil
}
func (s *fakeStore) CreateFailureEvent(ctx context.Context, ev model.FailureEvent) (string, error) {
	s.failureEvents = append(s.failureEvents, ev)
	return "ev-1", nil
}
func (s *fakeStore) GetByMeetingPaginated(ctx context.Context, meetingID string, limit, offset int) ([]model.TranscriptRow, error) {
	return s.rows, nil
}
func (s *fakeStore) DeleteByMeeting(ctx context.Context, meetingID string) error {
	s.rows = nil
	return nil
}
func (s *fakeStore) SetSetting(ctx context.Context, key, value string) error {
	s.settings[key] = value
	return nil
}
func (s *fakeStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	v, ok := s.settings[key]
	return v, ok, nil
}
func (s *fakeStore) CreateNote(ctx context.Context, n model.InsightNote) (string, error) {
	return "note-1", nil
}
func (s *fakeStore) GetNotesByMeeting(ctx context.Context, meetingID string, kind model.InsightKind) ([]model.InsightNote, error) {
	return nil, nil
}
func (s *fakeStore) DeleteLiveNotesByKind(ctx context.Context, meetingID string, kind model.InsightKind) error {
	return nil
}
func (s *fakeStore) UpdateNoteEvidenceRange(ctx context.Context, id string, startMS, endMS int64) error {
	return nil
}
func (s *fakeStore) CreateTask(ctx context.Context, t model.Task) (string, error) { return "task-1", nil }

// fakeBus is a minimal bus.Bus that records publishes; Subscribe is
// unused by these tests since they drive session handlers directly.
type fakeBus struct {
	published []bus.Message
}

func (b *fakeBus) Publish(ctx context.Context, topic string, msg bus.Message) error {
	b.published = append(b.published, msg)
	return nil
}
func (b *fakeBus) Subscribe(ctx context.Context, topic string) (bus.Subscriber, error) {
	return nil, nil
}

func newTestSession(t *testing.T, meetingID string, st Store) *session {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "rec-*.wav")
	require.NoError(t, err)
	sess := newSession(meetingID, filepath.Join(t.TempDir(), "rec.wav"), f, time.Now())
	sess.aligner = aligner.New(meetingID, aligner.DefaultConfig())
	sess.monitor = monitor.New(meetingID, monitor.DefaultConfig(), st, noopNotifier{})
	sess.setState(model.SessionRecording)
	return sess
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, n monitor.Notification) {}

// fakeMonitor implements sessionMonitor with a directly settable vetoed
// flag, so the transcription-only bypass path can be tested without
// driving a real monitor.Monitor through its bus subscription.
type fakeMonitor struct {
	vetoed bool
}

func (m *fakeMonitor) State() model.HealthState { return model.HealthHealthy }
func (m *fakeMonitor) Vetoed() bool             { return m.vetoed }
func (m *fakeMonitor) NeedsRecovery() bool      { return false }
func (m *fakeMonitor) Run(ctx context.Context, diarizerSub, alignmentSub bus.Subscriber) {}

// TestTwoSpeakerCleanRunAttributesRows models scenario S1: a clean
// two-speaker session where diarizer segments arrive before each
// transcriber final segment so every row attributes directly.
func TestTwoSpeakerCleanRunAttributesRows(t *testing.T) {
	st := newFakeStore()
	b := &fakeBus{}
	sess := newTestSession(t, "m1", st)
	ctx := context.Background()

	sess.handleDiarizerMsg(ctx, st, b, bus.DiarizerSegmentMsg{
		MeetingID: "m1", SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 5000, Confidence: 0.9,
	})
	sess.handleDiarizerMsg(ctx, st, b, bus.DiarizerSegmentMsg{
		MeetingID: "m1", SpeakerID: "SPEAKER_1", StartMS: 5000, EndMS: 10000, Confidence: 0.9,
	})

	sess.handleTranscriberMsg(ctx, st, bus.TranscriberSegmentMsg{
		MeetingID: "m1", Text: "hello there", StartMS: 0, EndMS: 2000, Confidence: 0.95, IsFinal: true,
	})
	sess.handleTranscriberMsg(ctx, st, bus.TranscriberSegmentMsg{
		MeetingID: "m1", Text: "hi back", StartMS: 5200, EndMS: 7000, Confidence: 0.95, IsFinal: true,
	})

	require.Len(t, st.rows, 2)
	require.Equal(t, model.SpeakerID("SPEAKER_0"), st.rows[0].SpeakerID)
	require.Equal(t, model.SpeakerID("SPEAKER_1"), st.rows[1].SpeakerID)
	require.Len(t, st.speakers, 2)
	require.NotEmpty(t, b.published)
}

// TestRetroactiveCorrectionRelabelsPersistedRows models scenario S2: a
// diarizer correction arriving after a row already persisted under the
// original speaker must relabel that row in place rather than
// duplicating it.
func TestRetroactiveCorrectionRelabelsPersistedRows(t *testing.T) {
	st := newFakeStore()
	b := &fakeBus{}
	sess := newTestSession(t, "m1", st)
	ctx := context.Background()

	sess.handleDiarizerMsg(ctx, st, b, bus.DiarizerSegmentMsg{
		MeetingID: "m1", SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 5000, Confidence: 0.9,
	})
	sess.handleTranscriberMsg(ctx, st, bus.TranscriberSegmentMsg{
		MeetingID: "m1", Text: "hello there", StartMS: 0, EndMS: 2000, Confidence: 0.95, IsFinal: true,
	})
	require.Len(t, st.rows, 1)
	require.Equal(t, model.SpeakerID("SPEAKER_0"), st.rows[0].SpeakerID)

	sess.handleDiarizerMsg(ctx, st, b, bus.DiarizerCorrectionMsg{
		MeetingID: "m1", StartMS: 0, EndMS: 2000, NewSpeakerID: "SPEAKER_2",
	})

	require.Equal(t, 1, st.relabelCalls)
	require.Len(t, st.rows, 1)
	require.Equal(t, model.SpeakerID("SPEAKER_2"), st.rows[0].SpeakerID)
}

// TestTranscriptionOnlyBypassUsesUnknownSpeaker models the vetoed +
// acknowledged path, §4.7: a final segment must still persist, stamped
// with the unknown-speaker sentinel, never dropped.
func TestTranscriptionOnlyBypassUsesUnknownSpeaker(t *testing.T) {
	st := newFakeStore()
	sess := newTestSession(t, "m1", st)
	fm := &fakeMonitor{vetoed: true}
	sess.monitor = fm
	ctx := context.Background()

	sess.handleTranscriberMsg(ctx, st, bus.TranscriberSegmentMsg{
		MeetingID: "m1", Text: "dropped", StartMS: 0, EndMS: 1000, Confidence: 0.8, IsFinal: true,
	})
	require.Empty(t, st.rows, "unacknowledged vetoed session must not persist rows")

	sess.setTranscriptionOnlyAck(true)
	sess.handleTranscriberMsg(ctx, st, bus.TranscriberSegmentMsg{
		MeetingID: "m1", Text: "kept", StartMS: 1000, EndMS: 2000, Confidence: 0.8, IsFinal: true,
	})
	require.Len(t, st.rows, 1)
	require.Equal(t, model.UnknownSpeakerID, st.rows[0].SpeakerID)
}

// TestSeedTranscriptionOnlyAckHonorsOncePerInstallSetting models §7's
// "acknowledged once per install" guarantee: a session started after
// the setting was durably recorded by an earlier session must not
// require re-acknowledgement.
func TestSeedTranscriptionOnlyAckHonorsOncePerInstallSetting(t *testing.T) {
	st := newFakeStore()
	o := &Orchestrator{store: st}
	ctx := context.Background()

	sess := newTestSession(t, "m1", st)
	o.seedTranscriptionOnlyAck(ctx, sess)
	require.False(t, sess.transcriptionOnlyAcked(), "unset setting must not pre-seed the ack")

	require.NoError(t, st.SetSetting(ctx, transcriptionOnlyAckSettingKey, "true"))

	sess2 := newTestSession(t, "m2", st)
	o.seedTranscriptionOnlyAck(ctx, sess2)
	require.True(t, sess2.transcriptionOnlyAcked(), "a setting recorded by an earlier session must seed later sessions")
}
