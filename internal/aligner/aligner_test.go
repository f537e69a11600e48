package aligner

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/stretchr/testify/require"
)

// TestTwoSpeakerCleanRun implements spec scenario S1: turns
// {A:[0,20], B:[20,40], A:[40,60]} (seconds), one final transcriber
// segment per 5s window, expecting 12 alternating rows A/A/A/A/B/B/B/B/A/A/A/A.
func TestTwoSpeakerCleanRun(t *testing.T) {
	a := New("m1", DefaultConfig())
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 20000, Confidence: 0.9})
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_1", StartMS: 20000, EndMS: 40000, Confidence: 0.9})
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 40000, EndMS: 60000, Confidence: 0.9})

	var speakers []model.SpeakerID
	for w := int64(0); w < 60000; w += 5000 {
		rows := a.AlignFinal("hello", w, w+5000, 0.95)
		for _, r := range rows {
			speakers = append(speakers, r.SpeakerID)
		}
	}

	require.Len(t, speakers, 12)
	expected := []model.SpeakerID{
		"SPEAKER_0", "SPEAKER_0", "SPEAKER_0", "SPEAKER_0",
		"SPEAKER_1", "SPEAKER_1", "SPEAKER_1", "SPEAKER_1",
		"SPEAKER_0", "SPEAKER_0", "SPEAKER_0", "SPEAKER_0",
	}
	if diff := cmp.Diff(expected, speakers); diff != "" {
		t.Errorf("speaker attribution mismatch (-want +got):\n%s", diff)
	}
}

func TestZeroLengthTranscriptDropped(t *testing.T) {
	a := New("m1", DefaultConfig())
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 1000, Confidence: 1})
	rows := a.AlignFinal("", 500, 500, 0.9)
	require.Nil(t, rows)
}

func TestNoCoverageBecomesPending(t *testing.T) {
	a := New("m1", DefaultConfig())
	rows := a.AlignFinal("no diarization yet", 0, 1000, 0.9)
	require.Nil(t, rows)
	require.Len(t, a.Pending(), 1)

	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 1000, Confidence: 0.9})
	rows = a.Reevaluate()
	require.Len(t, rows, 1)
	require.Equal(t, model.SpeakerID("SPEAKER_0"), rows[0].SpeakerID)
	require.Empty(t, a.Pending())
}

func TestSnapWithinToleranceAbsorbsSmallGap(t *testing.T) {
	a := New("m1", DefaultConfig())
	// Diarizer segment covers [0, 4970] of a [0, 5000] transcript window —
	// a 30ms gap, under the 50ms snap tolerance.
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 4970, Confidence: 0.9})
	rows := a.AlignFinal("short gap", 0, 5000, 0.9)
	require.Len(t, rows, 1)
	require.Equal(t, model.SpeakerID("SPEAKER_0"), rows[0].SpeakerID)
}

func TestSplitOnSpeakerBoundary(t *testing.T) {
	a := New("m1", DefaultConfig())
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 2500, Confidence: 0.9})
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_1", StartMS: 2500, EndMS: 5000, Confidence: 0.9})
	rows := a.AlignFinal("half and half text here", 0, 5000, 0.9)
	require.Len(t, rows, 2)
	require.Equal(t, model.SpeakerID("SPEAKER_0"), rows[0].SpeakerID)
	require.Equal(t, model.SpeakerID("SPEAKER_1"), rows[1].SpeakerID)
}

func TestRetroactiveCorrectionRelabelsInPlace(t *testing.T) {
	a := New("m1", DefaultConfig())
	a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 15000, EndMS: 25000, Confidence: 0.9})
	a.ApplyCorrection(18000, 22000, "SPEAKER_1")

	rows := a.AlignFinal("overlaps the corrected range", 18000, 22000, 0.9)
	require.Len(t, rows, 1)
	require.Equal(t, model.SpeakerID("SPEAKER_1"), rows[0].SpeakerID)
}

// TestAlignmentIdempotence verifies property 5: replaying the same
// events in the same order yields the same rows.
func TestAlignmentIdempotence(t *testing.T) {
	build := func() []model.TranscriptRow {
		a := New("m1", DefaultConfig())
		a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_0", StartMS: 0, EndMS: 20000, Confidence: 0.9})
		a.AddDiarizationSegment(model.DiarizationSegment{SpeakerID: "SPEAKER_1", StartMS: 20000, EndMS: 40000, Confidence: 0.9})
		var rows []model.TranscriptRow
		for w := int64(0); w < 40000; w += 5000 {
			rows = append(rows, a.AlignFinal("hello", w, w+5000, 0.95)...)
		}
		return rows
	}
	require.Equal(t, build(), build())
}
