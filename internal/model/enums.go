// Package model holds the shared value types that flow between the
// transcript pipeline's components: session/meeting state machines,
// reason codes attached to failures, and the string-typed identifiers
// components pass each other instead of bare strings.
package model

import "time"

// MeetingStatus is the lifecycle state of a Meeting row.
type MeetingStatus string

const (
	MeetingScheduled MeetingStatus = "scheduled"
	MeetingRecording MeetingStatus = "recording"
	MeetingStopped   MeetingStatus = "stopped"
	MeetingFailed    MeetingStatus = "failed"
)

// SessionState is the orchestrator's (C10) state machine, §4.10.
type SessionState string

const (
	SessionIdle       SessionState = "idle"
	SessionPreparing  SessionState = "preparing"
	SessionRecording  SessionState = "recording"
	SessionPaused     SessionState = "paused"
	SessionFinalizing SessionState = "finalizing"
	SessionStopped    SessionState = "stopped"
	SessionFailed     SessionState = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s SessionState) IsTerminal() bool {
	return s == SessionStopped || s == SessionFailed
}

// HealthState is C7's rolling per-meeting health state, §4.7.
type HealthState string

const (
	HealthHealthy     HealthState = "healthy"
	HealthDegraded    HealthState = "degraded"
	HealthUnavailable HealthState = "unavailable"
)

// InsightKind enumerates the six note kinds C8 produces, §3.
type InsightKind string

const (
	InsightSummary    InsightKind = "summary"
	InsightActionItem InsightKind = "action_item"
	InsightDecision   InsightKind = "decision"
	InsightKeyPoint   InsightKind = "key_point"
	InsightTopic      InsightKind = "topic"
	InsightSentiment  InsightKind = "sentiment"
)

// AllInsightKinds is the fixed set the orchestrated finalization pass
// regenerates, §4.8.
var AllInsightKinds = []InsightKind{
	InsightSummary, InsightActionItem, InsightDecision,
	InsightKeyPoint, InsightTopic, InsightSentiment,
}

// InsightStatus distinguishes a live (in-session) note from the
// finalized, canonical one produced on session stop.
type InsightStatus string

const (
	InsightLive      InsightStatus = "live"
	InsightFinalized InsightStatus = "finalized"
)

// TaskPriority mirrors §3's Task.priority domain.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

// TaskStatus mirrors §3's Task.status domain.
type TaskStatus string

const (
	TaskOpen TaskStatus = "open"
	TaskDone TaskStatus = "done"
)

// FailureKind is the closed set of error kinds a FailureEvent may carry,
// drawn from the §7 taxonomy. Kept as a named string type with the
// constants below (not bare strings), per the tagged-union guidance in
// §9; the compiler does not reject other values, since an untyped string
// constant converts to it implicitly.
type FailureKind string

const (
	FailureModelsMissing        FailureKind = "models_missing"
	FailureTokenMissing         FailureKind = "token_missing"
	FailureNativeBinaryMissing  FailureKind = "native_binary_missing"
	FailurePermissionDenied     FailureKind = "permission_denied"
	FailureWorkerInitFailed     FailureKind = "worker_init_failed"
	FailureWorkerCrashed        FailureKind = "worker_crashed"
	FailureWorkerTimedOut       FailureKind = "worker_timed_out"
	FailureWorkerCancelled      FailureKind = "worker_cancelled"
	FailureMissingSpeakerID     FailureKind = "missing_speaker_id"
	FailureInvalidWAVHeader     FailureKind = "invalid_wav_header"
	FailureOverlappingSegments  FailureKind = "overlapping_segments"
	FailureInsufficientCoverage FailureKind = "insufficient_coverage"
	FailureProviderUnreachable  FailureKind = "provider_unreachable"
	FailureProviderRateLimited  FailureKind = "provider_rate_limited"
	FailureProviderInvalid      FailureKind = "provider_invalid_request"
	FailureProviderBadSchema    FailureKind = "provider_response_schema"
	FailureDBBusy               FailureKind = "db_busy"
	FailureDBConstraint         FailureKind = "db_constraint_violation"
	FailureDiskFull              FailureKind = "disk_full"
)

// SpeakerID is the diarizer's session-local, session-stable identity
// token ("SPEAKER_0", ...). It is never derived from text.
type SpeakerID string

// UnknownSpeakerID is the sentinel used for rows created in an
// acknowledged transcription-only session, §4.7. Its semantics are
// documented as "unknown speaker", never as a real person.
const UnknownSpeakerID SpeakerID = "UNKNOWN_SPEAKER"

// ReasonCode augments a FailureKind with machine-checkable detail drawn
// straight from a worker's JSON error event or exit status.
type ReasonCode struct {
	Kind      FailureKind
	Message   string
	Timestamp time.Time
}
