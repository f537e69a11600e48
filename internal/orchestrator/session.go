package orchestrator

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/meetinglens/transcriptd/internal/aligner"
	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/diarizer"
	"github.com/meetinglens/transcriptd/internal/insight"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/transcriber"
)

// sessionMonitor is the subset of *monitor.Monitor the session's event
// pump needs, narrowed so tests can fake the health state machine
// without driving it through a real bus subscription.
type sessionMonitor interface {
	State() model.HealthState
	Vetoed() bool
	NeedsRecovery() bool
	Run(ctx context.Context, diarizerSub, alignmentSub bus.Subscriber)
}

// session holds one meeting's live component instances and the
// exclusive-access state §5 reserves for the orchestrator: the
// per-session speaker map (seenSpeakers) and the aligner's pending
// buffer (owned entirely by the aligner itself, reachable only through
// this session's run loop).
type session struct {
	meetingID string
	startedAt time.Time
	recPath   string
	recFile   *os.File

	diarizer    *diarizer.Diarizer
	transcriber *transcriber.Transcriber
	aligner     *aligner.Aligner
	monitor     sessionMonitor
	insight     *insight.Engine

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu                   sync.Mutex
	state                model.SessionState
	transcriptionOnlyAck bool
	seenSpeakers         map[model.SpeakerID]bool
}

func newSession(meetingID, recPath string, recFile *os.File, startedAt time.Time) *session {
	return &session{
		meetingID:    meetingID,
		startedAt:    startedAt,
		recPath:      recPath,
		recFile:      recFile,
		state:        model.SessionPreparing,
		seenSpeakers: make(map[model.SpeakerID]bool),
	}
}

func (s *session) State() model.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *session) setState(v model.SessionState) {
	s.mu.Lock()
	s.state = v
	s.mu.Unlock()
}

func (s *session) setTranscriptionOnlyAck(v bool) {
	s.mu.Lock()
	s.transcriptionOnlyAck = v
	s.mu.Unlock()
}

func (s *session) transcriptionOnlyAcked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcriptionOnlyAck
}

// run is the session's event pump: it is the only goroutine that calls
// into the aligner or mutates seenSpeakers, satisfying §5's
// single-writer rule without extra locking on those components.
func (s *session) run(ctx context.Context, st Store, b bus.Bus, diarSub, transSub bus.Subscriber) {
	defer diarSub.Close()
	defer transSub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-diarSub.C():
			if !ok {
				return
			}
			s.handleDiarizerMsg(ctx, st, b, msg)
		case msg, ok := <-transSub.C():
			if !ok {
				return
			}
			s.handleTranscriberMsg(ctx, st, msg)
		}
	}
}

func (s *session) handleDiarizerMsg(ctx context.Context, st Store, b bus.Bus, msg bus.Message) {
	switch m := msg.(type) {
	case bus.DiarizerSegmentMsg:
		if m.MeetingID != s.meetingID {
			return
		}
		s.aligner.AddDiarizationSegment(model.DiarizationSegment{
			SpeakerID:           m.SpeakerID,
			StartMS:             m.StartMS,
			EndMS:               m.EndMS,
			Confidence:          m.Confidence,
			OverlappingSpeakers: m.OverlappingSpeakers,
		})
		s.persistRows(ctx, st, s.aligner.Reevaluate())
		s.publishCoverage(ctx, b, m.EndMS)

	case bus.DiarizerCorrectionMsg:
		if m.MeetingID != s.meetingID {
			return
		}
		s.aligner.ApplyCorrection(m.StartMS, m.EndMS, m.NewSpeakerID)
		if _, err := st.RelabelSpeakerInRange(ctx, s.meetingID, m.StartMS, m.EndMS, m.NewSpeakerID); err != nil {
			log.L().Error().Str("component", "orchestrator").Str("meeting_id", s.meetingID).Err(err).Msg("relabel persisted rows failed")
		}
		s.persistRows(ctx, st, s.aligner.Reevaluate())
		s.publishCoverage(ctx, b, m.EndMS)
	}
}

func (s *session) handleTranscriberMsg(ctx context.Context, st Store, msg bus.Message) {
	m, ok := msg.(bus.TranscriberSegmentMsg)
	if !ok || m.MeetingID != s.meetingID || !m.IsFinal {
		return
	}

	if s.monitor.Vetoed() {
		if !s.transcriptionOnlyAcked() {
			log.L().Warn().Str("component", "orchestrator").Str("meeting_id", s.meetingID).Msg("dropping final segment: diarization unavailable and not acknowledged")
			return
		}
		row := model.TranscriptRow{
			MeetingID:  s.meetingID,
			SpeakerID:  model.UnknownSpeakerID,
			Text:       m.Text,
			StartMS:    m.StartMS,
			EndMS:      m.EndMS,
			Confidence: m.Confidence,
			IsFinal:    true,
		}
		s.persistRows(ctx, st, []model.TranscriptRow{row})
		return
	}

	rows := s.aligner.AlignFinal(m.Text, m.StartMS, m.EndMS, m.Confidence)
	s.persistRows(ctx, st, rows)
}

func (s *session) publishCoverage(ctx context.Context, b bus.Bus, upToMS int64) {
	frac := s.aligner.CoverageFraction(0, upToMS)
	_ = b.Publish(ctx, bus.TopicAlignment, bus.AlignmentCoverageMsg{
		MeetingID:    s.meetingID,
		CoverageFrac: frac,
		PendingCount: len(s.aligner.Pending()),
	})
}

// persistRows writes finalized rows in a single batch (§8 property 6),
// lazily resolving each newly-seen SpeakerID to a durable Speaker (§3's
// "created lazily" rule — performed here, not in the aligner, since the
// aligner holds no store access), and forwards the text into the live
// insight engine when one is attached.
func (s *session) persistRows(ctx context.Context, st Store, rows []model.TranscriptRow) {
	if len(rows) == 0 {
		return
	}
	for _, row := range rows {
		s.resolveSpeakerOnce(ctx, st, row.SpeakerID)
	}
	if _, err := st.CreateBatch(ctx, rows); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", s.meetingID).Err(err).Msg("persist transcript batch failed")
		return
	}
	if s.insight != nil {
		for _, row := range rows {
			s.insight.ObserveRow(row)
		}
	}
}

func (s *session) resolveSpeakerOnce(ctx context.Context, st Store, speakerID model.SpeakerID) {
	if speakerID == "" || speakerID == model.UnknownSpeakerID {
		return
	}
	s.mu.Lock()
	already := s.seenSpeakers[speakerID]
	s.seenSpeakers[speakerID] = true
	s.mu.Unlock()
	if already {
		return
	}
	if _, err := st.ResolveSpeaker(ctx, s.meetingID, speakerID); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", s.meetingID).Str("speaker_id", string(speakerID)).Err(err).Msg("resolve speaker failed")
	}
}
