// Package transcriber implements the Streaming Transcriber (C4): it
// drives a worker subprocess that consumes 16 kHz mono PCM and emits
// partial and final text segments with confidence, §4.4. It never
// attaches a speaker field — speaker identity is C3's job alone.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/worker"
	"github.com/meetinglens/transcriptd/internal/workerproto"
)

// State mirrors the diarizer's lifecycle shape, §4.4.
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

// ModelSize is §6's transcription.model_size option.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// Config parameterizes the worker invocation, §6.
type Config struct {
	Exe        string
	Args       []string
	ModelSize  ModelSize
	Language   string // BCP-47, or "auto"
	StopGrace  time.Duration
}

// DefaultConfig returns streaming transcription defaults.
func DefaultConfig(exe string) Config {
	return Config{
		Exe:       exe,
		ModelSize: ModelBase,
		Language:  "auto",
		StopGrace: 5 * time.Second,
	}
}

var (
	// ErrForceResetUnsupported is returned if ForceReset is called while
	// the transcriber is in any state other than StateRunning.
	ErrForceResetUnsupported = errors.New("transcriber: force reset requires a running worker")
)

// Transcriber owns one worker subprocess for one meeting session.
type Transcriber struct {
	meetingID string
	cfg       Config
	sup       *worker.Supervisor
	bus       bus.Bus

	mu    sync.Mutex
	state State
}

// New constructs a Transcriber for meetingID; it does not start the
// worker.
func New(meetingID string, cfg Config, b bus.Bus) *Transcriber {
	if cfg.StopGrace == 0 {
		cfg.StopGrace = 5 * time.Second
	}
	return &Transcriber{
		meetingID: meetingID,
		cfg:       cfg,
		sup:       worker.New("transcriber"),
		bus:       b,
		state:     StateUninit,
	}
}

// State returns the transcriber's current lifecycle state.
func (t *Transcriber) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transcriber) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Start launches the worker subprocess and begins streaming its
// protocol lines onto the bus under bus.TopicTranscriber.
func (t *Transcriber) Start(ctx context.Context) error {
	t.setState(StateInitializing)

	env := []string{
		"PYTHONUNBUFFERED=1",
		"TRANSCRIBER_MODEL_SIZE=" + string(t.cfg.ModelSize),
		"TRANSCRIBER_LANGUAGE=" + t.cfg.Language,
	}

	err := t.sup.Start(ctx, worker.Spec{
		Exe:  t.cfg.Exe,
		Args: t.cfg.Args,
		Env:  env,
		OnLine: func(source, line string) {
			t.handleLine(ctx, source, line)
		},
	})
	if err != nil {
		t.setState(StateFailed)
		return fmt.Errorf("transcriber: start worker: %w", err)
	}
	t.setState(StateRunning)
	return nil
}

// Feed writes a PCM chunk (16 kHz mono s16le) to the worker's stdin. It
// is a no-op while paused, mirroring the diarizer's pause semantics.
func (t *Transcriber) Feed(pcm []byte) error {
	if t.State() == StatePaused {
		return nil
	}
	return t.sup.Send(pcm)
}

// Pause/Resume model the Running <-> Paused cycle.
func (t *Transcriber) Pause()  { t.setState(StatePaused) }
func (t *Transcriber) Resume() { t.setState(StateRunning) }

// ForceReset asks a stuck transcriber worker to reset its internal
// decode state without restarting the subprocess, §4.4.
func (t *Transcriber) ForceReset() error {
	if t.State() != StateRunning {
		return ErrForceResetUnsupported
	}
	return t.sup.Send([]byte(`{"command":"force_reset"}` + "\n"))
}

// Stop requests graceful shutdown of the worker and waits for exit.
func (t *Transcriber) Stop(ctx context.Context) error {
	t.setState(StateStopping)
	err := t.sup.Stop(t.cfg.StopGrace)
	t.setState(StateStopped)
	return err
}

// Cancel forcibly terminates the worker.
func (t *Transcriber) Cancel() error {
	return t.sup.Cancel()
}

func (t *Transcriber) handleLine(ctx context.Context, source, line string) {
	parsed := workerproto.Parse(line)
	switch parsed.Kind {
	case workerproto.KindTag:
		// Progress/license lines are logged; the transcriber has no
		// terminal failure path distinct from the worker exit code,
		// unlike the diarizer (§4.4 defines no error event).
		log.L().Debug().Str("component", "transcriber").Str("source", source).Str("tag", parsed.Tag).Str("rest", parsed.Rest).Msg("worker progress")
	case workerproto.KindJSON:
		t.handleJSON(ctx, parsed)
	default:
		log.L().Debug().Str("component", "transcriber").Str("source", source).Str("line", line).Msg("unrecognized worker line")
	}
}

func (t *Transcriber) handleJSON(ctx context.Context, l workerproto.Line) {
	switch l.Type {
	case "ready":
		t.setState(StateReady)
		_ = t.bus.Publish(ctx, bus.TopicTranscriber, bus.TranscriberReadyMsg{MeetingID: t.meetingID})

	case "segment":
		var payload struct {
			Text       string  `json:"text"`
			StartMS    int64   `json:"start_ms"`
			EndMS      int64   `json:"end_ms"`
			Confidence float64 `json:"confidence"`
			IsFinal    bool    `json:"is_final"`
		}
		if err := unmarshalJSON(l.Raw, &payload); err != nil {
			log.L().Warn().Err(err).Str("component", "transcriber").Msg("malformed segment event")
			return
		}
		_ = t.bus.Publish(ctx, bus.TopicTranscriber, bus.TranscriberSegmentMsg{
			MeetingID:  t.meetingID,
			Text:       payload.Text,
			StartMS:    payload.StartMS,
			EndMS:      payload.EndMS,
			Confidence: payload.Confidence,
			IsFinal:    payload.IsFinal,
		})
	}
}
