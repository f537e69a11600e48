package transcriber

import (
	"context"
	"testing"

	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/stretchr/testify/require"
)

// fakeBus is a minimal bus.Bus that records every publish, mirroring the
// fake used by internal/orchestrator's and internal/diarizer's own
// tests.
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

func newTestTranscriber(b bus.Bus) *Transcriber {
	return New("m1", DefaultConfig("transcriber-worker"), b)
}

func TestHandleLineReadyEvent(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	tr.handleLine(ctx, "stdout", `{"type":"ready"}`)

	require.Equal(t, StateReady, tr.State())
	require.Len(t, b.published, 1)
	require.Equal(t, bus.TranscriberReadyMsg{MeetingID: "m1"}, b.published[0])
}

func TestHandleLineSegmentEventPartial(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	tr.handleLine(ctx, "stdout", `{"type":"segment","text":"hello the","start_ms":0,"end_ms":900,"confidence":0.6,"is_final":false}`)

	require.Len(t, b.published, 1)
	msg, ok := b.published[0].(bus.TranscriberSegmentMsg)
	require.True(t, ok)
	require.Equal(t, "m1", msg.MeetingID)
	require.Equal(t, "hello the", msg.Text)
	require.Equal(t, int64(0), msg.StartMS)
	require.Equal(t, int64(900), msg.EndMS)
	require.InDelta(t, 0.6, msg.Confidence, 0.0001)
	require.False(t, msg.IsFinal)
}

func TestHandleLineSegmentEventFinal(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	tr.handleLine(ctx, "stdout", `{"type":"segment","text":"hello there","start_ms":0,"end_ms":2000,"confidence":0.95,"is_final":true}`)

	require.Len(t, b.published, 1)
	msg, ok := b.published[0].(bus.TranscriberSegmentMsg)
	require.True(t, ok)
	require.Equal(t, "hello there", msg.Text)
	require.True(t, msg.IsFinal)
}

func TestHandleLineSegmentEventMalformedJSONLogsAndSkips(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	require.NotPanics(t, func() {
		tr.handleLine(ctx, "stdout", `{"type":"segment","start_ms":"not-a-number"}`)
	})
	require.Empty(t, b.published)
}

func TestHandleLineTagIsLoggedOnlyNoPublish(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	tr.handleLine(ctx, "stderr", "[PROGRESS] transcribe loading model")

	require.Empty(t, b.published)
	require.Equal(t, StateUninit, tr.State())
}

func TestHandleLineUnknownShapeIsNoOp(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)
	ctx := context.Background()

	tr.handleLine(ctx, "stdout", "garbage output that matches neither shape")

	require.Empty(t, b.published)
}

func TestForceResetRequiresRunningWorker(t *testing.T) {
	b := &fakeBus{}
	tr := newTestTranscriber(b)

	err := tr.ForceReset()
	require.ErrorIs(t, err, ErrForceResetUnsupported)
}
