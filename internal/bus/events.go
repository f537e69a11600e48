package bus

import "github.com/meetinglens/transcriptd/internal/model"

// DiarizerSegmentMsg carries a finalized diarization segment, §4.3.
type DiarizerSegmentMsg struct {
	MeetingID           string
	SpeakerID           model.SpeakerID
	StartMS             int64
	EndMS               int64
	Confidence          float64
	OverlappingSpeakers []model.SpeakerID
}

func (DiarizerSegmentMsg) isMessage() {}

// DiarizerCorrectionMsg is a retroactive re-label, §4.3.
type DiarizerCorrectionMsg struct {
	MeetingID    string
	StartMS      int64
	EndMS        int64
	NewSpeakerID model.SpeakerID
}

func (DiarizerCorrectionMsg) isMessage() {}

// DiarizerReadyMsg marks backend initialization complete, §4.3.
type DiarizerReadyMsg struct {
	MeetingID string
}

func (DiarizerReadyMsg) isMessage() {}

// DiarizerStatsMsg is the periodic stats event, §4.3.
type DiarizerStatsMsg struct {
	MeetingID          string
	PerSpeakerTotalMS  map[model.SpeakerID]int64
	SegmentCount       int
}

func (DiarizerStatsMsg) isMessage() {}

// DiarizerErrorMsg is the terminal error event, §4.3 / §7.
type DiarizerErrorMsg struct {
	MeetingID string
	Kind      model.FailureKind
	Message   string
}

func (DiarizerErrorMsg) isMessage() {}

// TranscriberReadyMsg marks transcriber backend initialization
// complete, §4.4.
type TranscriberReadyMsg struct {
	MeetingID string
}

func (TranscriberReadyMsg) isMessage() {}

// TranscriberSegmentMsg carries a partial or final transcript segment,
// §4.4. The transcriber never attaches a speaker field.
type TranscriberSegmentMsg struct {
	MeetingID  string
	Text       string
	StartMS    int64
	EndMS      int64
	Confidence float64
	IsFinal    bool
}

func (TranscriberSegmentMsg) isMessage() {}

// AlignmentCoverageMsg reports C5's running coverage fraction, consumed
// by C7 to detect degraded alignment, §4.7.
type AlignmentCoverageMsg struct {
	MeetingID      string
	CoverageFrac   float64
	PendingCount   int
}

func (AlignmentCoverageMsg) isMessage() {}

// SessionStateMsg announces an orchestrator state transition, §4.10.
type SessionStateMsg struct {
	MeetingID string
	State     model.SessionState
}

func (SessionStateMsg) isMessage() {}

// FailureEventMsg mirrors a persisted FailureEvent so UI adapters and the
// monitor's own remediation logic can react without polling the store.
type FailureEventMsg struct {
	MeetingID string
	Kind      model.FailureKind
	Message   string
}

func (FailureEventMsg) isMessage() {}
