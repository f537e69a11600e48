// Package monitor implements the Failure/Health Monitor (C7): it
// subscribes to the diarizer's protocol and the aligner's coverage
// stats, maintains a rolling per-meeting health state, and enforces
// the rules that prevent a transcript from silently degrading into a
// single-speaker fallback, §4.7.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/meetinglens/transcriptd/internal/bus"
	"github.com/meetinglens/transcriptd/internal/log"
	"github.com/meetinglens/transcriptd/internal/model"
)

// DefaultNoSegmentTimeout is §4.7's N: no finalized segment for this
// long after ready triggers degraded.
const DefaultNoSegmentTimeout = 60 * time.Second

// DefaultSingleSpeakerWindow is §4.7's M: how long only one speaker may
// be observed, in a meeting with concurrent speech cues, before the
// monitor calls it degraded rather than healthy. The spec leaves M
// unspecified; 10 minutes is chosen as a conservative default — long
// enough that a genuinely one-person meeting isn't flagged, short
// enough to catch a stuck diarizer within a typical standup. Recorded
// as an Open Question decision in DESIGN.md.
const DefaultSingleSpeakerWindow = 10 * time.Minute

// Store is the subset of internal/store.Store the monitor needs.
type Store interface {
	CreateFailureEvent(ctx context.Context, ev model.FailureEvent) (string, error)
}

// Notifier receives user-facing failure notifications with remediation
// steps tied to the error code, §4.7.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Notification is what the monitor hands to a Notifier.
type Notification struct {
	MeetingID   string
	Kind        model.FailureKind
	Message     string
	Remediation string
}

// Config parameterizes the monitor's timing rules, §6.
type Config struct {
	NoSegmentTimeout    time.Duration
	SingleSpeakerWindow time.Duration
}

// DefaultConfig returns §4.7's defaults.
func DefaultConfig() Config {
	return Config{
		NoSegmentTimeout:    DefaultNoSegmentTimeout,
		SingleSpeakerWindow: DefaultSingleSpeakerWindow,
	}
}

// clock is overridden in tests so time-based rules don't need real sleeps.
type clock interface{ Now() time.Time }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Monitor tracks one meeting's rolling health state. Safe for
// concurrent use.
type Monitor struct {
	meetingID string
	cfg       Config
	store     Store
	notifier  Notifier
	clock     clock

	mu                  sync.Mutex
	state               model.HealthState
	initialized         bool
	readyAt             time.Time
	lastSegmentAt       time.Time
	firstSpeaker        model.SpeakerID
	singleSpeakerSince  time.Time
	sawMultipleSpeakers bool
	sawConcurrentCues   bool
	vetoed              bool
	needsRecovery       bool
	lastError           *model.FailureEvent
}

// New constructs a Monitor for one meeting, starting healthy.
func New(meetingID string, cfg Config, store Store, notifier Notifier) *Monitor {
	if cfg.NoSegmentTimeout <= 0 {
		cfg.NoSegmentTimeout = DefaultNoSegmentTimeout
	}
	if cfg.SingleSpeakerWindow <= 0 {
		cfg.SingleSpeakerWindow = DefaultSingleSpeakerWindow
	}
	return &Monitor{
		meetingID: meetingID,
		cfg:       cfg,
		store:     store,
		notifier:  notifier,
		clock:     realClock{},
		state:     model.HealthHealthy,
	}
}

// State returns the current rolling health state.
func (m *Monitor) State() model.HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Vetoed reports whether C3 errored and transcript row creation must
// be refused pending an explicit transcription-only acknowledgement,
// §4.7.
func (m *Monitor) Vetoed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.vetoed
}

// NeedsRecovery reports whether the session ended in a degraded or
// unavailable state and a post-recording recovery job should be
// scheduled, §4.7.
func (m *Monitor) NeedsRecovery() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state != model.HealthHealthy
}

// Run consumes bus events for this meeting until ctx is done. It
// filters for this meeting's MeetingID, since topics are shared across
// concurrent sessions.
func (m *Monitor) Run(ctx context.Context, diarizerSub, alignmentSub bus.Subscriber) {
	ticker := time.NewTicker(m.cfg.NoSegmentTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-diarizerSub.C():
			if !ok {
				return
			}
			m.handleDiarizerMsg(ctx, msg)
		case msg, ok := <-alignmentSub.C():
			if !ok {
				return
			}
			m.handleAlignmentMsg(msg)
		case <-ticker.C:
			m.checkIdleTimeout(ctx)
		}
	}
}

func (m *Monitor) handleDiarizerMsg(ctx context.Context, msg bus.Message) {
	switch ev := msg.(type) {
	case bus.DiarizerReadyMsg:
		if ev.MeetingID != m.meetingID {
			return
		}
		m.mu.Lock()
		m.initialized = true
		m.readyAt = m.clock.Now()
		m.lastSegmentAt = m.readyAt
		m.mu.Unlock()
	case bus.DiarizerSegmentMsg:
		if ev.MeetingID != m.meetingID {
			return
		}
		m.observeSegment(ev)
	case bus.DiarizerErrorMsg:
		if ev.MeetingID != m.meetingID {
			return
		}
		m.onError(ctx, ev.Kind, ev.Message)
	}
}

func (m *Monitor) handleAlignmentMsg(msg bus.Message) {
	ev, ok := msg.(bus.AlignmentCoverageMsg)
	if !ok || ev.MeetingID != m.meetingID {
		return
	}
	// Low coverage with a healthy diarizer is surfaced via metrics, not
	// a direct health transition — §4.7's rules hinge on segment rate
	// and speaker count, not coverage fraction directly.
}

func (m *Monitor) observeSegment(ev bus.DiarizerSegmentMsg) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	m.lastSegmentAt = now
	if len(ev.OverlappingSpeakers) > 0 {
		m.sawConcurrentCues = true
	}

	if m.firstSpeaker == "" {
		m.firstSpeaker = ev.SpeakerID
		m.singleSpeakerSince = now
	} else if ev.SpeakerID != m.firstSpeaker {
		m.sawMultipleSpeakers = true
	}

	m.reconcileState()
}

// checkIdleTimeout applies §4.7's no-segment-for-N-seconds rule.
func (m *Monitor) checkIdleTimeout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.initialized || m.state == model.HealthUnavailable {
		return
	}
	if m.clock.Now().Sub(m.lastSegmentAt) >= m.cfg.NoSegmentTimeout {
		m.state = model.HealthDegraded
	}
	m.reconcileState()
}

// reconcileState applies the single-speaker-with-concurrent-cues rule.
// Caller must hold m.mu.
func (m *Monitor) reconcileState() {
	if m.state == model.HealthUnavailable {
		return
	}
	if !m.sawMultipleSpeakers && m.sawConcurrentCues &&
		m.clock.Now().Sub(m.singleSpeakerSince) > m.cfg.SingleSpeakerWindow {
		m.state = model.HealthDegraded
		return
	}
	if m.state == model.HealthDegraded {
		return // once degraded, only a fresh error can worsen or an explicit reset can heal it
	}
	m.state = model.HealthHealthy
}

func (m *Monitor) onError(ctx context.Context, kind model.FailureKind, message string) {
	m.mu.Lock()
	m.state = model.HealthUnavailable
	m.vetoed = true
	ev := model.FailureEvent{
		Kind:        kind,
		MeetingID:   m.meetingID,
		Message:     message,
		TimestampMS: m.clock.Now().UnixMilli(),
	}
	m.lastError = &ev
	m.mu.Unlock()

	if m.store != nil {
		if _, err := m.store.CreateFailureEvent(ctx, ev); err != nil {
			log.L().Error().Str("component", "monitor").Str("meeting_id", m.meetingID).Err(err).Msg("failed to persist failure event")
		}
	}
	if m.notifier != nil {
		m.notifier.Notify(ctx, Notification{
			MeetingID:   m.meetingID,
			Kind:        kind,
			Message:     message,
			Remediation: remediationFor(kind),
		})
	}
}
