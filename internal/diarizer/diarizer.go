// Package diarizer implements the Streaming Diarizer (C3): it drives a
// worker subprocess that consumes 16 kHz mono PCM and emits speaker
// segments plus retroactive re-labelings on a monotonic timeline, §4.3.
package diarizer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
	"github.com/meetinglens/transcriptd/internal/worker"
	"github.com/meetinglens/transcriptd/internal/workerproto"
)

// State is C3's lifecycle, §4.3.
type State int

const (
	StateUninit State = iota
	StateInitializing
	StateReady
	StateRunning
	StatePaused
	StateStopping
	StateStopped
	StateFailed
)

// Config parameterizes clustering and the worker invocation, §6.
type Config struct {
	Exe                 string
	Args                []string
	ModelToken          string
	MinSpeakers         int
	MaxSpeakers         int
	SimilarityThreshold float64 // lower => more distinct speakers
	StopGrace           time.Duration
}

// DefaultSimilarityThreshold resolves the open question in §9: the
// donor carried three different defaults (0.30 streaming, 0.35 batch,
// 0.4 in comments). This package is streaming-only, so it adopts 0.30 —
// see DESIGN.md for the full rationale.
const DefaultSimilarityThreshold = 0.30

// DefaultConfig returns streaming clustering defaults per §4.3/§6.
func DefaultConfig(exe string) Config {
	return Config{
		Exe:                 exe,
		MinSpeakers:         2,
		MaxSpeakers:         10,
		SimilarityThreshold: DefaultSimilarityThreshold,
		StopGrace:           5 * time.Second,
	}
}

// Diarizer owns one worker subprocess for one meeting session.
type Diarizer struct {
	meetingID string
	cfg       Config
	sup       *worker.Supervisor
	bus       bus.Bus

	mu    sync.Mutex
	state State
}

// New constructs a Diarizer for meetingID; it does not start the worker.
func New(meetingID string, cfg Config, b bus.Bus) *Diarizer {
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 5 * time.Second
	}
	return &Diarizer{
		meetingID: meetingID,
		cfg:       cfg,
		sup:       worker.New("diarizer"),
		bus:       b,
		state:     StateUninit,
	}
}

// State returns the diarizer's current lifecycle state.
func (d *Diarizer) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Diarizer) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Start launches the worker subprocess and begins streaming its protocol
// lines onto the bus under bus.TopicDiarizer.
func (d *Diarizer) Start(ctx context.Context) error {
	d.setState(StateInitializing)

	env := []string{"PYTHONUNBUFFERED=1"}
	if d.cfg.ModelToken != "" {
		env = append(env, "HF_TOKEN="+d.cfg.ModelToken)
	}

	err := d.sup.Start(ctx, worker.Spec{
		Exe:  d.cfg.Exe,
		Args: d.cfg.Args,
		Env:  env,
		OnLine: func(source, line string) {
			d.handleLine(ctx, source, line)
		},
	})
	if err != nil {
		d.setState(StateFailed)
		return fmt.Errorf("diarizer: start worker: %w", err)
	}
	d.setState(StateRunning)
	go d.watchExit(ctx)
	return nil
}

// watchExit awaits the worker subprocess's exit and surfaces an
// unexpected crash as a terminal error, §7's "Runtime worker: crashed"
// kind. A process terminated through Stop/Cancel classifies as
// worker.ExitCancelled, not worker.ExitFailed, so a deliberate shutdown
// never produces a spurious crash notification.
func (d *Diarizer) watchExit(ctx context.Context) {
	res := d.sup.Wait()
	if res.Kind != worker.ExitFailed {
		return
	}
	msg := fmt.Sprintf("worker process exited unexpectedly (code %d)", res.Code)
	if res.TailOfStderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, res.TailOfStderr)
	}
	d.emitError(ctx, model.FailureWorkerCrashed, msg)
}

// Feed writes a PCM chunk (16 kHz mono s16le) to the worker's stdin.
// Feed is a no-op while paused, per §4.3's Running <-> Paused cycle.
func (d *Diarizer) Feed(pcm []byte) error {
	if d.State() == StatePaused {
		return nil
	}
	return d.sup.Send(pcm)
}

// Pause/Resume model the state machine's Running <-> Paused cycle. The
// supervisor keeps the subprocess alive across a pause.
func (d *Diarizer) Pause()  { d.setState(StatePaused) }
func (d *Diarizer) Resume() { d.setState(StateRunning) }

// Stop requests graceful shutdown of the worker and waits for exit.
func (d *Diarizer) Stop(ctx context.Context) error {
	d.setState(StateStopping)
	err := d.sup.Stop(d.cfg.StopGrace)
	d.setState(StateStopped)
	return err
}

// Cancel forcibly terminates the worker without waiting for in-flight
// work to settle.
func (d *Diarizer) Cancel() error {
	return d.sup.Cancel()
}

func (d *Diarizer) handleLine(ctx context.Context, source, line string) {
	parsed := workerproto.Parse(line)
	switch parsed.Kind {
	case workerproto.KindTag:
		d.handleTag(ctx, parsed)
	case workerproto.KindJSON:
		d.handleJSON(ctx, parsed)
	default:
		log.L().Debug().Str("component", "diarizer").Str("source", source).Str("line", line).Msg("unrecognized worker line")
	}
}

func (d *Diarizer) handleTag(ctx context.Context, l workerproto.Line) {
	switch l.Tag {
	case "ERROR":
		fields := workerproto.TagFields(l.Rest, 2)
		msg := ""
		if len(fields) > 1 {
			msg = fields[1]
		}
		d.emitError(ctx, model.FailureWorkerInitFailed, msg)
	case "LICENSE_REQUIRED":
		d.emitError(ctx, model.FailureTokenMissing, l.Rest)
	case "PROGRESS":
		// Forwarded for UI adapters elsewhere; the supervisor layer
		// already logs it, no domain action needed here.
	}
}

func (d *Diarizer) handleJSON(ctx context.Context, l workerproto.Line) {
	switch l.Type {
	case "ready":
		d.setState(StateReady)
		_ = d.bus.Publish(ctx, bus.TopicDiarizer, bus.DiarizerReadyMsg{MeetingID: d.meetingID})

	case "segment":
		var payload struct {
			SpeakerID           string   `json:"speaker_id"`
			StartMS             int64    `json:"start_ms"`
			EndMS               int64    `json:"end_ms"`
			Confidence          float64  `json:"confidence"`
			OverlappingSpeakers []string `json:"overlapping_speakers"`
		}
		if err := unmarshalJSON(l.Raw, &payload); err != nil {
			log.L().Warn().Err(err).Str("component", "diarizer").Msg("malformed segment event")
			return
		}
		overlapping := make([]model.SpeakerID, 0, len(payload.OverlappingSpeakers))
		for _, s := range payload.OverlappingSpeakers {
			overlapping = append(overlapping, model.SpeakerID(s))
		}
		_ = d.bus.Publish(ctx, bus.TopicDiarizer, bus.DiarizerSegmentMsg{
			MeetingID:           d.meetingID,
			SpeakerID:           model.SpeakerID(payload.SpeakerID),
			StartMS:             payload.StartMS,
			EndMS:               payload.EndMS,
			Confidence:          payload.Confidence,
			OverlappingSpeakers: overlapping,
		})

	case "correction":
		var payload struct {
			Range struct {
				StartMS int64 `json:"start_ms"`
				EndMS   int64 `json:"end_ms"`
			} `json:"range"`
			NewSpeakerID string `json:"new_speaker_id"`
		}
		if err := unmarshalJSON(l.Raw, &payload); err != nil {
			log.L().Warn().Err(err).Str("component", "diarizer").Msg("malformed correction event")
			return
		}
		_ = d.bus.Publish(ctx, bus.TopicDiarizer, bus.DiarizerCorrectionMsg{
			MeetingID:    d.meetingID,
			StartMS:      payload.Range.StartMS,
			EndMS:        payload.Range.EndMS,
			NewSpeakerID: model.SpeakerID(payload.NewSpeakerID),
		})

	case "stats":
		var payload struct {
			PerSpeakerTotalMS map[string]int64 `json:"per_speaker_total_ms"`
			SegmentCount      int              `json:"segment_count"`
		}
		if err := unmarshalJSON(l.Raw, &payload); err != nil {
			log.L().Warn().Err(err).Str("component", "diarizer").Msg("malformed stats event")
			return
		}
		totals := make(map[model.SpeakerID]int64, len(payload.PerSpeakerTotalMS))
		for k, v := range payload.PerSpeakerTotalMS {
			totals[model.SpeakerID(k)] = v
		}
		_ = d.bus.Publish(ctx, bus.TopicDiarizer, bus.DiarizerStatsMsg{
			MeetingID:         d.meetingID,
			PerSpeakerTotalMS: totals,
			SegmentCount:      payload.SegmentCount,
		})

	case "error":
		var payload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if err := unmarshalJSON(l.Raw, &payload); err != nil {
			d.emitError(ctx, model.FailureWorkerInitFailed, "malformed error event")
			return
		}
		d.emitError(ctx, classifyErrorCode(payload.Code), payload.Message)
	}
}

func classifyErrorCode(code string) model.FailureKind {
	switch code {
	case "MODELS_MISSING":
		return model.FailureModelsMissing
	case "TOKEN_MISSING":
		return model.FailureTokenMissing
	case "INIT_FAILED":
		return model.FailureWorkerInitFailed
	default:
		return model.FailureWorkerCrashed
	}
}

func (d *Diarizer) emitError(ctx context.Context, kind model.FailureKind, msg string) {
	d.setState(StateFailed)
	_ = d.bus.Publish(ctx, bus.TopicDiarizer, bus.DiarizerErrorMsg{
		MeetingID: d.meetingID,
		Kind:      kind,
		Message:   msg,
	})
}
