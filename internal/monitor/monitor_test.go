package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type fakeStore struct {
	events []model.FailureEvent
}

func (s *fakeStore) CreateFailureEvent(ctx context.Context, ev model.FailureEvent) (string, error) {
	s.events = append(s.events, ev)
	return "ev-1", nil
}

type fakeNotifier struct {
	notifications []Notification
}

func (n *fakeNotifier) Notify(ctx context.Context, note Notification) {
	n.notifications = append(n.notifications, note)
}

func newTestMonitor(meetingID string, clk *fakeClock, store Store, notifier Notifier) *Monitor {
	m := New(meetingID, DefaultConfig(), store, notifier)
	m.clock = clk
	return m
}

func TestErrorTriggersUnavailableAndVeto(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	store := &fakeStore{}
	notifier := &fakeNotifier{}
	m := newTestMonitor("m1", clk, store, notifier)

	m.onError(context.Background(), model.FailureWorkerCrashed, "boom")

	require.Equal(t, model.HealthUnavailable, m.State())
	require.True(t, m.Vetoed())
	require.Len(t, store.events, 1)
	require.Equal(t, model.FailureWorkerCrashed, store.events[0].Kind)
	require.Len(t, notifier.notifications, 1)
	require.NotEmpty(t, notifier.notifications[0].Remediation)
}

func TestNoSegmentForTimeoutDegrades(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	m := newTestMonitor("m1", clk, &fakeStore{}, &fakeNotifier{})

	m.handleDiarizerMsg(context.Background(), bus.DiarizerReadyMsg{MeetingID: "m1"})
	require.Equal(t, model.HealthHealthy, m.State())

	clk.now = clk.now.Add(DefaultNoSegmentTimeout + time.Second)
	m.checkIdleTimeout(context.Background())

	require.Equal(t, model.HealthDegraded, m.State())
}

func TestSingleSpeakerWithConcurrentCuesDegrades(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	m := newTestMonitor("m1", clk, &fakeStore{}, &fakeNotifier{})

	m.handleDiarizerMsg(context.Background(), bus.DiarizerReadyMsg{MeetingID: "m1"})
	m.observeSegment(bus.DiarizerSegmentMsg{
		MeetingID:           "m1",
		SpeakerID:           "SPEAKER_0",
		OverlappingSpeakers: []model.SpeakerID{"SPEAKER_1"},
	})
	require.Equal(t, model.HealthHealthy, m.State())

	clk.now = clk.now.Add(DefaultSingleSpeakerWindow + time.Minute)
	m.observeSegment(bus.DiarizerSegmentMsg{
		MeetingID:           "m1",
		SpeakerID:           "SPEAKER_0",
		OverlappingSpeakers: []model.SpeakerID{"SPEAKER_1"},
	})

	require.Equal(t, model.HealthDegraded, m.State())
}

func TestMultipleSpeakersNeverTriggersSingleSpeakerRule(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	m := newTestMonitor("m1", clk, &fakeStore{}, &fakeNotifier{})

	m.handleDiarizerMsg(context.Background(), bus.DiarizerReadyMsg{MeetingID: "m1"})
	m.observeSegment(bus.DiarizerSegmentMsg{MeetingID: "m1", SpeakerID: "SPEAKER_0"})
	m.observeSegment(bus.DiarizerSegmentMsg{MeetingID: "m1", SpeakerID: "SPEAKER_1"})

	clk.now = clk.now.Add(DefaultSingleSpeakerWindow + time.Minute)
	m.observeSegment(bus.DiarizerSegmentMsg{MeetingID: "m1", SpeakerID: "SPEAKER_0"})

	require.Equal(t, model.HealthHealthy, m.State())
}

func TestNeedsRecoveryReflectsFinalState(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	m := newTestMonitor("m1", clk, &fakeStore{}, &fakeNotifier{})
	require.False(t, m.NeedsRecovery())

	m.onError(context.Background(), model.FailureWorkerCrashed, "boom")
	require.True(t, m.NeedsRecovery())
}

func TestIgnoresOtherMeetingEvents(t *testing.T) {
	clk := &fakeClock{now: time.Now()}
	m := newTestMonitor("m1", clk, &fakeStore{}, &fakeNotifier{})
	m.handleDiarizerMsg(context.Background(), bus.DiarizerErrorMsg{MeetingID: "other", Kind: model.FailureWorkerCrashed})
	require.Equal(t, model.HealthHealthy, m.State())
	require.False(t, m.Vetoed())
}
