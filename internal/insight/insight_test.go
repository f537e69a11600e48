package insight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	notes   []model.InsightNote
	nextID  int
	tasks   []model.Task
	updated map[string][2]int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{updated: make(map[string][2]int64)}
}

func (s *fakeStore) CreateNote(ctx context.Context, n model.InsightNote) (string, error) {
	s.nextID++
	id := string(rune('a' + s.nextID))
	n.ID = id
	s.notes = append(s.notes, n)
	return id, nil
}

func (s *fakeStore) GetNotesByMeeting(ctx context.Context, meetingID string, kind model.InsightKind) ([]model.InsightNote, error) {
	var out []model.InsightNote
	for _, n := range s.notes {
		if n.MeetingID == meetingID && n.Kind == kind {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) DeleteLiveNotesByKind(ctx context.Context, meetingID string, kind model.InsightKind) error {
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.MeetingID == meetingID && n.Kind == kind && n.Status == model.InsightLive {
			continue
		}
		kept = append(kept, n)
	}
	s.notes = kept
	return nil
}

func (s *fakeStore) UpdateNoteEvidenceRange(ctx context.Context, id string, startMS, endMS int64) error {
	s.updated[id] = [2]int64{startMS, endMS}
	return nil
}

func (s *fakeStore) CreateTask(ctx context.Context, t model.Task) (string, error) {
	s.tasks = append(s.tasks, t)
	return "task-1", nil
}

type fakeExtractor struct {
	candidates []Candidate
	subject    string
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, subject string) ([]Candidate, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func (f *fakeExtractor) DetectSubject(ctx context.Context, text string) (string, error) {
	return f.subject, nil
}

func TestShouldFlushOnMinChars(t *testing.T) {
	e := New("m1", Config{MinChars: 10, MaxBatchWait: time.Hour}, &fakeExtractor{}, newFakeStore())
	require.False(t, e.ShouldFlush(time.Now()))
	e.ObserveRow(model.TranscriptRow{Text: "this is definitely more than ten chars"})
	require.True(t, e.ShouldFlush(time.Now()))
}

func TestShouldFlushOnMaxWait(t *testing.T) {
	e := New("m1", Config{MinChars: 10000, MaxBatchWait: 10 * time.Millisecond}, &fakeExtractor{}, newFakeStore())
	e.ObserveRow(model.TranscriptRow{Text: "short"})
	require.False(t, e.ShouldFlush(time.Now()))
	require.True(t, e.ShouldFlush(time.Now().Add(20*time.Millisecond)))
}

func TestFlushBackpressureSkipsWhileInFlight(t *testing.T) {
	e := New("m1", DefaultConfig(), &fakeExtractor{}, newFakeStore())
	e.inFlight = true
	require.False(t, e.ShouldFlush(time.Now()))
}

// TestFlushDedupMergesSimilarCandidates exercises the Jaccard dedup
// path: a second near-identical candidate of the same kind merges into
// the first's note instead of creating a new one.
func TestFlushDedupMergesSimilarCandidates(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{candidates: []Candidate{
		{Kind: model.InsightDecision, Body: "we will ship the release on friday", Confidence: 0.9, EvidenceStart: 0, EvidenceEnd: 1000},
	}}
	e := New("m1", Config{Strictness: StrictnessLoose}, ex, store)
	e.ObserveRow(model.TranscriptRow{Text: "placeholder text for the batch buffer"})
	require.NoError(t, e.Flush(context.Background(), true))
	require.Len(t, store.notes, 1)

	ex.candidates = []Candidate{
		{Kind: model.InsightDecision, Body: "we will ship the release on friday afternoon", Confidence: 0.9, EvidenceStart: 1000, EvidenceEnd: 2000},
	}
	e.ObserveRow(model.TranscriptRow{Text: "more placeholder text"})
	require.NoError(t, e.Flush(context.Background(), true))

	require.Len(t, store.notes, 1, "near-duplicate candidate should merge rather than create a second note")
	require.Contains(t, store.updated, store.notes[0].ID)
}

func TestFlushPromotesActionItemToTask(t *testing.T) {
	store := newFakeStore()
	ex := &fakeExtractor{candidates: []Candidate{
		{Kind: model.InsightActionItem, Body: "file the expense report", Confidence: 0.9, Assignee: "Dana"},
		{Kind: model.InsightActionItem, Body: "maybe look into this sometime", Confidence: 0.2},
	}}
	e := New("m1", Config{Strictness: StrictnessLoose}, ex, store)
	e.ObserveRow(model.TranscriptRow{Text: "batch text"})
	require.NoError(t, e.Flush(context.Background(), true))

	require.Len(t, store.notes, 2)
	require.Len(t, store.tasks, 1, "only the high-confidence action item should become a Task")
	require.Equal(t, "Dana", store.tasks[0].Assignee)
}

func TestFlushNoopWhenEmptyAndNotForced(t *testing.T) {
	ex := &fakeExtractor{}
	e := New("m1", DefaultConfig(), ex, newFakeStore())
	require.NoError(t, e.Flush(context.Background(), false))
	require.Equal(t, 0, ex.calls)
}

// TestFinalizePartialSuccess models scenario S4: one section's LLM call
// fails while the others succeed, and the finalization pass reports
// partial success rather than aborting outright.
func TestFinalizePartialSuccess(t *testing.T) {
	store := newFakeStore()
	ex := &flakyExtractor{failOn: model.InsightSentiment}
	e := New("m1", Config{Strictness: StrictnessLoose}, ex, store)

	result := e.Finalize(context.Background(), "a full session transcript")

	require.False(t, result.Success)
	require.True(t, result.PartialSuccess)
	require.Equal(t, len(model.AllInsightKinds)-1, result.SectionsCompleted)
	require.Equal(t, 1, result.SectionsFailed)

	var sawFailure bool
	for _, s := range result.Sections {
		if s.Kind == model.InsightSentiment {
			require.False(t, s.OK)
			require.NotEmpty(t, s.Error)
			sawFailure = true
		}
	}
	require.True(t, sawFailure)
}

// flakyExtractor fails the one Extract call corresponding to failOn's
// position in model.AllInsightKinds, simulating a provider outage that
// affects a single section of an orchestrated finalization pass.
type flakyExtractor struct {
	failOn model.InsightKind
	calls  int
}

var errSectionProviderDown = errors.New("provider unavailable")

func (f *flakyExtractor) Extract(ctx context.Context, text string, subject string) ([]Candidate, error) {
	kind := model.AllInsightKinds[f.calls]
	f.calls++
	if kind == f.failOn {
		return nil, errSectionProviderDown
	}
	return []Candidate{{Kind: kind, Body: "text for " + string(kind), Confidence: 0.8}}, nil
}

func (f *flakyExtractor) DetectSubject(ctx context.Context, text string) (string, error) {
	return "", nil
}
