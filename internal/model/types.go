package model

// Meeting is §3's top-level owning entity for a recording session.
type Meeting struct {
	ID            string
	Title         string
	StartedAt     int64 // unix millis
	EndedAt       int64 // zero if still open
	Status        MeetingStatus
	AudioFilePath string
}

// Recording is created once audio capture finalizes, §3.
type Recording struct {
	ID            string
	MeetingID     string
	FilePath      string
	DurationMS    int64
	FileSizeBytes int64
	StartTime     int64
	EndTime       int64
}

// DiarizationSegment is a finalized speaker interval emitted by C3, §3.
// Within one session an identical SpeakerID always denotes the same
// voice identity; corrections re-label ranges rather than deleting them.
type DiarizationSegment struct {
	SpeakerID           SpeakerID
	StartMS             int64
	EndMS               int64
	Confidence          float64
	OverlappingSpeakers []SpeakerID
}

// Speaker is the database-local identity a session-local SpeakerID maps
// onto, created lazily by C5, §3.
type Speaker struct {
	ID          string
	DisplayName string
	IsUser      bool
}

// TranscriptRow is a speaker-attributed transcript line, §3. Every row
// must carry a SpeakerID sourced from C3 (or the UnknownSpeakerID
// sentinel in an acknowledged transcription-only session) — a row with
// neither is refused, never persisted with a blank speaker.
type TranscriptRow struct {
	ID         string
	MeetingID  string
	SpeakerID  SpeakerID
	Text       string
	StartMS    int64
	EndMS      int64
	Confidence float64
	IsFinal    bool
}

// EvidenceRange anchors an InsightNote or Task back to the transcript
// span it was extracted from, §3.
type EvidenceRange struct {
	StartMS int64
	EndMS   int64
}

// InsightNote is one of the six kinds C8 produces, §3.
type InsightNote struct {
	ID            string
	MeetingID     string
	Kind          InsightKind
	Body          string
	EvidenceRange EvidenceRange
	Confidence    float64
	Status        InsightStatus
}

// Task is created only when C8 extracts an action-item above threshold,
// §3. Assignee, DueMS and SourceNoteID are optional.
type Task struct {
	ID            string
	MeetingID     string
	Title         string
	Assignee      string
	Priority      TaskPriority
	Status        TaskStatus
	DueMS         int64
	SourceNoteID  string
}

// FailureEvent is append-only diagnostic history, §3/§7.
type FailureEvent struct {
	ID           string
	Kind         FailureKind
	MeetingID    string
	Message      string
	RawOutput    string
	TimestampMS  int64
	Acknowledged bool
}
