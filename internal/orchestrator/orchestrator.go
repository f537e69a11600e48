// Package orchestrator implements the Session Orchestrator (C10): it
// owns the per-meeting state machine, wires the diarizer, transcriber,
// aligner, live insight engine, and failure monitor together, and is
// the sole writer of the per-session speaker map and alignment buffer,
// §4.10/§5.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/aligner"
	"github.com/meetinglens/transcriptd/internal/audit"
	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/diarizer"
	"github.com/meetinglens/transcriptd/internal/insight"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/monitor"
	"github.com/meetinglens/transcriptd/internal/recordings"
	"github.com/meetinglens/transcriptd/internal/store"
	"github.com/meetinglens/transcriptd/internal/telemetry"
	"github.com/meetinglens/transcriptd/internal/transcriber"
	"github.com/meetinglens/transcriptd/internal/wav"
)

// Store is the subset of internal/store.Store the orchestrator needs.
// *store.Store satisfies it structurally.
type Store interface {
	CreateMeeting(ctx context.Context, m model.Meeting) (string, error)
	UpdateMeetingStatus(ctx context.Context, id string, status model.MeetingStatus) error
	SetMeetingAudioFilePath(ctx context.Context, id, path string) error
	SetMeetingEnded(ctx context.Context, id string, endedAt int64) error
	CreateRecording(ctx context.Context, r model.Recording) (string, error)
	ResolveSpeaker(ctx context.Context, meetingID string, sessionSpeakerID model.SpeakerID) (model.Speaker, error)
	Create(ctx context.Context, row model.TranscriptRow, opts store.CreateOptions) (string, error)
	CreateBatch(ctx context.Context, rows []model.TranscriptRow) ([]string, error)
	RelabelSpeakerInRange(ctx context.Context, meetingID string, startMS, endMS int64, speakerID model.SpeakerID) (int64, error)
	CreateFailureEvent(ctx context.Context, ev model.FailureEvent) (string, error)
	GetByMeetingPaginated(ctx context.Context, meetingID string, limit, offset int) ([]model.TranscriptRow, error)
	DeleteByMeeting(ctx context.Context, meetingID string) error
	SetSetting(ctx context.Context, key, value string) error
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)

	// Insight engine persistence, re-declared here (rather than
	// embedding insight.Store) so orchestrator.Store stays the single
	// narrow contract the package depends on, per §5.
	CreateNote(ctx context.Context, n model.InsightNote) (string, error)
	GetNotesByMeeting(ctx context.Context, meetingID string, kind model.InsightKind) ([]model.InsightNote, error)
	DeleteLiveNotesByKind(ctx context.Context, meetingID string, kind model.InsightKind) error
	UpdateNoteEvidenceRange(ctx context.Context, id string, startMS, endMS int64) error
	CreateTask(ctx context.Context, t model.Task) (string, error)
}

// Config parameterizes every component the orchestrator wires, §6.
type Config struct {
	RecordingsDir  string
	Diarizer       diarizer.Config
	Transcriber    transcriber.Config
	Aligner        aligner.Config
	Insight        insight.Config
	Monitor        monitor.Config
	InsightEnabled bool
}

// Summary is start(meeting_id)'s stop() return value, §4.10.
type Summary struct {
	MeetingID       string
	DurationMS      int64
	AudioFilePath   string
	NotesPersisted  int
	TasksCreated    int
	DiarizationState model.HealthState
}

// Orchestrator owns every active session. One process runs one
// Orchestrator; sessions are independent of each other.
type Orchestrator struct {
	store     Store
	bus       bus.Bus
	audit     *audit.Logger
	extractor insight.Extractor
	cfg       Config

	mu       sync.Mutex
	sessions map[string]*session
}

// New constructs an Orchestrator. extractor may be nil, in which case
// InsightEnabled is forced off regardless of cfg.
func New(st Store, b bus.Bus, auditLogger *audit.Logger, extractor insight.Extractor, cfg Config) *Orchestrator {
	if auditLogger == nil {
		auditLogger = audit.NewLogger()
	}
	return &Orchestrator{
		store:     st,
		bus:       b,
		audit:     auditLogger,
		extractor: extractor,
		cfg:       cfg,
		sessions:  make(map[string]*session),
	}
}

// transcriptionOnlyAckSettingKey is the settings-table key the
// transcription-only opt-in is durably recorded under, §7: "acknowledged
// once per install and recorded in settings."
const transcriptionOnlyAckSettingKey = "transcription_only_ack"

// sessionNotFoundError is returned by any per-session operation given an
// unknown meeting id.
type sessionNotFoundError struct{ meetingID string }

func (e sessionNotFoundError) Error() string {
	return fmt.Sprintf("orchestrator: no active session for meeting %q", e.meetingID)
}

// Start begins a new recording session for a meeting titled title,
// §4.10: creates the session's working directory, the Meeting row,
// starts C2-managed C3/C4, the aligner, the monitor, and — if opted
// in — the live insight engine.
func (o *Orchestrator) Start(ctx context.Context, title string) (string, error) {
	ctx, span := telemetry.Tracer("orchestrator").Start(ctx, "orchestrator.Start")
	defer span.End()

	meetingID := uuid.NewString()
	now := time.Now()
	span.SetAttributes(telemetry.SessionAttributes(meetingID, string(model.MeetingRecording), 0)...)

	sessionDir := filepath.Join(o.cfg.RecordingsDir, meetingID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		return "", fmt.Errorf("orchestrator: prepare working directory: %w", err)
	}

	if _, err := o.store.CreateMeeting(ctx, model.Meeting{
		ID:        meetingID,
		Title:     title,
		StartedAt: now.UnixMilli(),
		Status:    model.MeetingRecording,
	}); err != nil {
		return "", fmt.Errorf("orchestrator: create meeting: %w", err)
	}

	recPath := filepath.Join(sessionDir, fmt.Sprintf("%d.wav", now.Unix()))
	recFile, err := wav.WriteCanonicalHeader(recPath, 16000, 1, 16)
	if err != nil {
		return "", fmt.Errorf("orchestrator: open recording file: %w", err)
	}

	sess := newSession(meetingID, recPath, recFile, now)
	o.seedTranscriptionOnlyAck(ctx, sess)

	diarCfg := o.cfg.Diarizer
	transCfg := o.cfg.Transcriber
	sess.diarizer = diarizer.New(meetingID, diarCfg, o.bus)
	sess.transcriber = transcriber.New(meetingID, transCfg, o.bus)
	sess.aligner = aligner.New(meetingID, o.cfg.Aligner)
	sess.monitor = monitor.New(meetingID, o.cfg.Monitor, o.store, &busNotifier{b: o.bus})

	if o.cfg.InsightEnabled && o.extractor != nil {
		sess.insight = insight.New(meetingID, o.cfg.Insight, o.extractor, o.store)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	if err := sess.diarizer.Start(runCtx); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("diarizer failed to start")
	}
	if err := sess.transcriber.Start(runCtx); err != nil {
		cancel()
		_ = o.store.UpdateMeetingStatus(ctx, meetingID, model.MeetingFailed)
		return "", fmt.Errorf("orchestrator: start transcriber: %w", err)
	}

	diarSub, err := o.bus.Subscribe(runCtx, bus.TopicDiarizer)
	if err != nil {
		cancel()
		return "", fmt.Errorf("orchestrator: subscribe diarizer topic: %w", err)
	}
	transSub, err := o.bus.Subscribe(runCtx, bus.TopicTranscriber)
	if err != nil {
		cancel()
		return "", fmt.Errorf("orchestrator: subscribe transcriber topic: %w", err)
	}
	monDiarSub, err := o.bus.Subscribe(runCtx, bus.TopicDiarizer)
	if err != nil {
		cancel()
		return "", fmt.Errorf("orchestrator: subscribe monitor diarizer topic: %w", err)
	}
	monAlignSub, err := o.bus.Subscribe(runCtx, bus.TopicAlignment)
	if err != nil {
		cancel()
		return "", fmt.Errorf("orchestrator: subscribe monitor alignment topic: %w", err)
	}

	sess.wg.Add(2)
	go func() {
		defer sess.wg.Done()
		sess.run(runCtx, o.store, o.bus, diarSub, transSub)
	}()
	go func() {
		defer sess.wg.Done()
		defer monDiarSub.Close()
		defer monAlignSub.Close()
		sess.monitor.Run(runCtx, monDiarSub, monAlignSub)
	}()

	sess.setState(model.SessionRecording)
	_ = o.bus.Publish(ctx, bus.TopicSession, bus.SessionStateMsg{MeetingID: meetingID, State: model.SessionRecording})
	o.audit.SessionStart(meetingID)

	o.mu.Lock()
	o.sessions[meetingID] = sess
	o.mu.Unlock()

	return meetingID, nil
}

// FeedAudio forwards a PCM chunk to both C3 and C4 and appends it to
// the session's recording file. It is a no-op while paused.
func (o *Orchestrator) FeedAudio(meetingID string, pcm []byte) error {
	sess, err := o.get(meetingID)
	if err != nil {
		return err
	}
	if sess.State() != model.SessionRecording {
		return nil
	}
	if _, err := sess.recFile.Write(pcm); err != nil {
		return fmt.Errorf("orchestrator: write recording: %w", err)
	}
	if err := sess.diarizer.Feed(pcm); err != nil {
		return fmt.Errorf("orchestrator: feed diarizer: %w", err)
	}
	if err := sess.transcriber.Feed(pcm); err != nil {
		return fmt.Errorf("orchestrator: feed transcriber: %w", err)
	}
	return nil
}

// Pause/Resume model the Recording <-> Paused half of the state
// machine, §4.10.
func (o *Orchestrator) Pause(ctx context.Context, meetingID string) error {
	sess, err := o.get(meetingID)
	if err != nil {
		return err
	}
	sess.setState(model.SessionPaused)
	sess.diarizer.Pause()
	sess.transcriber.Pause()
	_ = o.bus.Publish(ctx, bus.TopicSession, bus.SessionStateMsg{MeetingID: meetingID, State: model.SessionPaused})
	return nil
}

func (o *Orchestrator) Resume(ctx context.Context, meetingID string) error {
	sess, err := o.get(meetingID)
	if err != nil {
		return err
	}
	sess.setState(model.SessionRecording)
	sess.diarizer.Resume()
	sess.transcriber.Resume()
	_ = o.bus.Publish(ctx, bus.TopicSession, bus.SessionStateMsg{MeetingID: meetingID, State: model.SessionRecording})
	return nil
}

// AcknowledgeTranscriptionOnly records the operator's explicit opt-in
// to continue a vetoed session without speaker attribution, §4.7.
func (o *Orchestrator) AcknowledgeTranscriptionOnly(ctx context.Context, meetingID, actor string) error {
	sess, err := o.get(meetingID)
	if err != nil {
		return err
	}
	sess.setTranscriptionOnlyAck(true)
	if err := o.store.SetSetting(ctx, transcriptionOnlyAckSettingKey, "true"); err != nil {
		return err
	}
	o.audit.TranscriptionOnlyAck(meetingID, actor)
	return nil
}

// Stop ends a recording session, §4.10: it stops C3/C4, cancels the
// event pump, repairs and finalizes the WAV file, runs the orchestrated
// insight finalization pass, schedules post-recording recovery if the
// monitor never fully recovered, and returns the session summary.
func (o *Orchestrator) Stop(ctx context.Context, meetingID string) (Summary, error) {
	ctx, span := telemetry.Tracer("orchestrator").Start(ctx, "orchestrator.Stop")
	defer span.End()
	span.SetAttributes(telemetry.SessionAttributes(meetingID, string(model.SessionFinalizing), 0)...)

	sess, err := o.get(meetingID)
	if err != nil {
		return Summary{}, err
	}

	sess.setState(model.SessionFinalizing)
	_ = o.bus.Publish(ctx, bus.TopicSession, bus.SessionStateMsg{MeetingID: meetingID, State: model.SessionFinalizing})

	_ = sess.diarizer.Stop(ctx)
	_ = sess.transcriber.Stop(ctx)
	sess.cancel()
	sess.wg.Wait()

	if err := sess.recFile.Close(); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("close recording file failed")
	}

	audioPath := sess.recPath
	if info, statErr := os.Stat(sess.recPath); statErr == nil {
		if recordings.Classify(sess.recPath, info, recordings.DefaultFinalizeConfig()) == recordings.StateFinished {
			if _, err := wav.Sanitize(sess.recPath); err != nil {
				log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("sanitize recording failed")
			}
		}
	}

	endedAt := time.Now()
	durationMS := endedAt.Sub(sess.startedAt).Milliseconds()

	if err := o.store.SetMeetingAudioFilePath(ctx, meetingID, audioPath); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("persist audio file path failed")
	}
	if err := o.store.SetMeetingEnded(ctx, meetingID, endedAt.UnixMilli()); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("persist meeting end failed")
	}
	if err := o.store.UpdateMeetingStatus(ctx, meetingID, model.MeetingStopped); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("persist meeting status failed")
	}
	if _, err := o.store.CreateRecording(ctx, model.Recording{
		MeetingID: meetingID,
		FilePath:  audioPath,
		StartTime: sess.startedAt.UnixMilli(),
		EndTime:   endedAt.UnixMilli(),
	}); err != nil {
		log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("persist recording row failed")
	}

	if sess.insight != nil {
		rows, err := o.store.GetByMeetingPaginated(ctx, meetingID, 1_000_000, 0)
		if err != nil {
			log.L().Error().Str("component", "orchestrator").Str("meeting_id", meetingID).Err(err).Msg("fetch transcript for finalization failed")
		} else {
			var full strings.Builder
			for i, row := range rows {
				if i > 0 {
					full.WriteByte(' ')
				}
				full.WriteString(row.Text)
			}
			result := sess.insight.Finalize(ctx, full.String())
			if result.PartialSuccess {
				log.L().Warn().Str("component", "orchestrator").Str("meeting_id", meetingID).
					Int("completed", result.SectionsCompleted).Int("failed", result.SectionsFailed).
					Msg("insight finalization partially succeeded")
			}
		}
	}

	if sess.monitor.NeedsRecovery() {
		o.scheduleRecovery(meetingID, sess.recPath, o.cfg.Diarizer)
	}

	notesPersisted, tasksCreated := 0, 0
	if sess.insight != nil {
		notesPersisted = sess.insight.NotesPersisted()
		tasksCreated = sess.insight.TasksCreated()
	}

	sess.setState(model.SessionStopped)
	_ = o.bus.Publish(ctx, bus.TopicSession, bus.SessionStateMsg{MeetingID: meetingID, State: model.SessionStopped})
	o.audit.SessionStop(meetingID, durationMS, notesPersisted, tasksCreated)

	o.mu.Lock()
	delete(o.sessions, meetingID)
	o.mu.Unlock()

	return Summary{
		MeetingID:        meetingID,
		DurationMS:       durationMS,
		AudioFilePath:    audioPath,
		NotesPersisted:   notesPersisted,
		TasksCreated:     tasksCreated,
		DiarizationState: sess.monitor.State(),
	}, nil
}

// seedTranscriptionOnlyAck pre-seeds a new session's acknowledgement
// flag from the durably recorded settings value, §7: the opt-in is
// "acknowledged once per install," so a later session must not require
// re-acknowledgement once it has been recorded for this install.
func (o *Orchestrator) seedTranscriptionOnlyAck(ctx context.Context, sess *session) {
	val, ok, err := o.store.GetSetting(ctx, transcriptionOnlyAckSettingKey)
	if err != nil {
		log.L().Warn().Str("component", "orchestrator").Err(err).Msg("read transcription-only ack setting failed")
		return
	}
	if ok && val == "true" {
		sess.setTranscriptionOnlyAck(true)
	}
}

func (o *Orchestrator) get(meetingID string) (*session, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	sess, ok := o.sessions[meetingID]
	if !ok {
		return nil, sessionNotFoundError{meetingID: meetingID}
	}
	return sess, nil
}

// busNotifier adapts the bus into monitor.Notifier by publishing
// FailureEventMsg for UI adapters and logging the remediation text.
type busNotifier struct{ b bus.Bus }

func (n *busNotifier) Notify(ctx context.Context, note monitor.Notification) {
	_ = n.b.Publish(ctx, bus.TopicFailure, bus.FailureEventMsg{
		MeetingID: note.MeetingID,
		Kind:      note.Kind,
		Message:   note.Message,
	})
	log.L().Warn().Str("component", "orchestrator").Str("meeting_id", note.MeetingID).
		Str("kind", string(note.Kind)).Str("remediation", note.Remediation).Msg(note.Message)
}
