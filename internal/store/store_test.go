package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.sqlite")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreateRejectsMissingSpeakerID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)

	_, err = s.Create(ctx, model.TranscriptRow{MeetingID: "m1", Text: "hi", StartMS: 0, EndMS: 1000}, CreateOptions{})
	require.ErrorIs(t, err, ErrMissingSpeakerID)
}

func TestGetByMeetingPaginatedOrdersByStart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)

	_, err = s.CreateBatch(ctx, []model.TranscriptRow{
		{MeetingID: "m1", SpeakerID: "SPEAKER_1", Text: "second", StartMS: 5000, EndMS: 6000, IsFinal: true},
		{MeetingID: "m1", SpeakerID: "SPEAKER_0", Text: "first", StartMS: 0, EndMS: 1000, IsFinal: true},
	})
	require.NoError(t, err)

	rows, err := s.GetByMeetingPaginated(ctx, "m1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "first", rows[0].Text)
	require.Equal(t, "second", rows[1].Text)
}

func TestCreateBatchAtomicOnFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)

	rows := []model.TranscriptRow{
		{MeetingID: "m1", SpeakerID: "SPEAKER_0", Text: "ok", StartMS: 0, EndMS: 1000},
		{MeetingID: "m1", SpeakerID: "", Text: "missing speaker", StartMS: 1000, EndMS: 2000},
	}
	_, err = s.CreateBatch(ctx, rows)
	require.ErrorIs(t, err, ErrMissingSpeakerID)

	n, err := s.CountByMeeting(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, 0, n, "a failed batch must leave no partial rows")
}

func TestSearchInMeetingFindsText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)
	_, err = s.Create(ctx, model.TranscriptRow{MeetingID: "m1", SpeakerID: "SPEAKER_0", Text: "let's discuss the roadmap", StartMS: 0, EndMS: 1000, IsFinal: true}, CreateOptions{})
	require.NoError(t, err)

	rows, err := s.SearchInMeeting(ctx, "m1", "roadmap")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestRelabelSpeakerInRangeUpdatesInPlace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)
	id, err := s.Create(ctx, model.TranscriptRow{MeetingID: "m1", SpeakerID: "SPEAKER_0", Text: "hello", StartMS: 18000, EndMS: 22000, IsFinal: true}, CreateOptions{})
	require.NoError(t, err)

	n, err := s.RelabelSpeakerInRange(ctx, "m1", 18000, 22000, "SPEAKER_1")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	rows, err := s.GetByMeetingPaginated(ctx, "m1", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, id, rows[0].ID)
	require.Equal(t, model.SpeakerID("SPEAKER_1"), rows[0].SpeakerID)
}

func TestResolveSpeakerStableAcrossCalls(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.CreateMeeting(ctx, model.Meeting{ID: "m1", Status: model.MeetingRecording})
	require.NoError(t, err)

	sp1, err := s.ResolveSpeaker(ctx, "m1", "SPEAKER_0")
	require.NoError(t, err)
	sp2, err := s.ResolveSpeaker(ctx, "m1", "SPEAKER_0")
	require.NoError(t, err)
	require.Equal(t, sp1.ID, sp2.ID)
}
