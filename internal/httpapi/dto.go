package httpapi

import "github.com/meetinglens/transcriptd/internal/model"

// The model package carries no JSON tags (its types are shared with the
// store's column-by-column scanners, not wire encoding), so httpapi
// defines its own response shapes and converts into them at the edge.

type meetingDTO struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	StartedAt     int64  `json:"started_at"`
	EndedAt       int64  `json:"ended_at,omitempty"`
	Status        string `json:"status"`
	AudioFilePath string `json:"audio_file_path,omitempty"`
}

func toMeetingDTO(m model.Meeting) meetingDTO {
	return meetingDTO{
		ID:            m.ID,
		Title:         m.Title,
		StartedAt:     m.StartedAt,
		EndedAt:       m.EndedAt,
		Status:        string(m.Status),
		AudioFilePath: m.AudioFilePath,
	}
}

type transcriptRowDTO struct {
	ID         string  `json:"id"`
	MeetingID  string  `json:"meeting_id"`
	SpeakerID  string  `json:"speaker_id"`
	Text       string  `json:"text"`
	StartMS    int64   `json:"start_ms"`
	EndMS      int64   `json:"end_ms"`
	Confidence float64 `json:"confidence"`
	IsFinal    bool    `json:"is_final"`
}

func toTranscriptRowDTO(r model.TranscriptRow) transcriptRowDTO {
	return transcriptRowDTO{
		ID:         r.ID,
		MeetingID:  r.MeetingID,
		SpeakerID:  string(r.SpeakerID),
		Text:       r.Text,
		StartMS:    r.StartMS,
		EndMS:      r.EndMS,
		Confidence: r.Confidence,
		IsFinal:    r.IsFinal,
	}
}

func toTranscriptRowDTOs(rows []model.TranscriptRow) []transcriptRowDTO {
	out := make([]transcriptRowDTO, len(rows))
	for i, r := range rows {
		out[i] = toTranscriptRowDTO(r)
	}
	return out
}

type insightNoteDTO struct {
	ID            string  `json:"id"`
	MeetingID     string  `json:"meeting_id"`
	Kind          string  `json:"kind"`
	Body          string  `json:"body"`
	EvidenceStart int64   `json:"evidence_start_ms"`
	EvidenceEnd   int64   `json:"evidence_end_ms"`
	Confidence    float64 `json:"confidence"`
	Status        string  `json:"status"`
}

func toInsightNoteDTOs(notes []model.InsightNote) []insightNoteDTO {
	out := make([]insightNoteDTO, len(notes))
	for i, n := range notes {
		out[i] = insightNoteDTO{
			ID:            n.ID,
			MeetingID:     n.MeetingID,
			Kind:          string(n.Kind),
			Body:          n.Body,
			EvidenceStart: n.EvidenceRange.StartMS,
			EvidenceEnd:   n.EvidenceRange.EndMS,
			Confidence:    n.Confidence,
			Status:        string(n.Status),
		}
	}
	return out
}

type taskDTO struct {
	ID           string `json:"id"`
	MeetingID    string `json:"meeting_id,omitempty"`
	Title        string `json:"title"`
	Assignee     string `json:"assignee,omitempty"`
	Priority     string `json:"priority"`
	Status       string `json:"status"`
	DueMS        int64  `json:"due_ms,omitempty"`
	SourceNoteID string `json:"source_note_id,omitempty"`
}

func toTaskDTOs(tasks []model.Task) []taskDTO {
	out := make([]taskDTO, len(tasks))
	for i, t := range tasks {
		out[i] = taskDTO{
			ID:           t.ID,
			MeetingID:    t.MeetingID,
			Title:        t.Title,
			Assignee:     t.Assignee,
			Priority:     string(t.Priority),
			Status:       string(t.Status),
			DueMS:        t.DueMS,
			SourceNoteID: t.SourceNoteID,
		}
	}
	return out
}

type failureEventDTO struct {
	ID           string `json:"id"`
	Kind         string `json:"kind"`
	MeetingID    string `json:"meeting_id,omitempty"`
	Message      string `json:"message"`
	TimestampMS  int64  `json:"timestamp_ms"`
	Acknowledged bool   `json:"acknowledged"`
}

func toFailureEventDTOs(evs []model.FailureEvent) []failureEventDTO {
	out := make([]failureEventDTO, len(evs))
	for i, ev := range evs {
		out[i] = failureEventDTO{
			ID:           ev.ID,
			Kind:         string(ev.Kind),
			MeetingID:    ev.MeetingID,
			Message:      ev.Message,
			TimestampMS:  ev.TimestampMS,
			Acknowledged: ev.Acknowledged,
		}
	}
	return out
}

type summaryDTO struct {
	MeetingID        string `json:"meeting_id"`
	DurationMS       int64  `json:"duration_ms"`
	AudioFilePath    string `json:"audio_file_path"`
	NotesPersisted   int    `json:"notes_persisted"`
	TasksCreated     int    `json:"tasks_created"`
	DiarizationState string `json:"diarization_state"`
}
