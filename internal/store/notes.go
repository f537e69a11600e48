package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/model"
)

// CreateNote persists one InsightNote, §3/§4.8.
func (s *Store) CreateNote(ctx context.Context, n model.InsightNote) (string, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_notes (id, meeting_id, kind, body, evidence_start_ms, evidence_end_ms, confidence, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.MeetingID, string(n.Kind), n.Body, n.EvidenceRange.StartMS, n.EvidenceRange.EndMS, n.Confidence, string(n.Status))
	if err != nil {
		return "", fmt.Errorf("store: create note: %w", err)
	}
	return n.ID, nil
}

// GetNotesByMeeting returns every note for meetingID, optionally
// filtered to one kind (pass "" for all kinds).
func (s *Store) GetNotesByMeeting(ctx context.Context, meetingID string, kind model.InsightKind) ([]model.InsightNote, error) {
	query := `SELECT id, meeting_id, kind, body, evidence_start_ms, evidence_end_ms, confidence, status FROM meeting_notes WHERE meeting_id = ?`
	args := []any{meetingID}
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(kind))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: get notes by meeting: %w", err)
	}
	defer rows.Close()

	var out []model.InsightNote
	for rows.Next() {
		var n model.InsightNote
		var k, status string
		if err := rows.Scan(&n.ID, &n.MeetingID, &k, &n.Body, &n.EvidenceRange.StartMS, &n.EvidenceRange.EndMS, &n.Confidence, &status); err != nil {
			return nil, fmt.Errorf("store: scan note: %w", err)
		}
		n.Kind = model.InsightKind(k)
		n.Status = model.InsightStatus(status)
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteLiveNotesByKind removes every live note of kind for meetingID,
// used when the orchestrated finalization pass supersedes live notes,
// §4.8.
func (s *Store) DeleteLiveNotesByKind(ctx context.Context, meetingID string, kind model.InsightKind) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM meeting_notes WHERE meeting_id = ? AND kind = ? AND status = ?`,
		meetingID, string(kind), string(model.InsightLive))
	if err != nil {
		return fmt.Errorf("store: delete live notes: %w", err)
	}
	return nil
}

// UpdateNoteEvidenceRange extends a note's evidence range after a
// duplicate candidate is merged into it, §4.8.
func (s *Store) UpdateNoteEvidenceRange(ctx context.Context, id string, startMS, endMS int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE meeting_notes SET evidence_end_ms = MAX(evidence_end_ms, ?), evidence_start_ms = MIN(evidence_start_ms, ?)
		WHERE id = ?`, endMS, startMS, id)
	if err != nil {
		return fmt.Errorf("store: update note evidence: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateTask persists a Task extracted from an action-item note above
// threshold, §3/§4.8.
func (s *Store) CreateTask(ctx context.Context, t model.Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	var meetingID sql.NullString
	if t.MeetingID != "" {
		meetingID = sql.NullString{String: t.MeetingID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, meeting_id, title, assignee, priority, status, due_ms, source_note_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, meetingID, t.Title, t.Assignee, string(t.Priority), string(t.Status), t.DueMS, t.SourceNoteID)
	if err != nil {
		return "", fmt.Errorf("store: create task: %w", err)
	}
	return t.ID, nil
}

// GetTasksByMeeting returns every Task linked to meetingID.
func (s *Store) GetTasksByMeeting(ctx context.Context, meetingID string) ([]model.Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, title, assignee, priority, status, due_ms, source_note_id
		FROM tasks WHERE meeting_id = ?`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("store: get tasks by meeting: %w", err)
	}
	defer rows.Close()

	var out []model.Task
	for rows.Next() {
		var t model.Task
		var meetingID sql.NullString
		var priority, status string
		if err := rows.Scan(&t.ID, &meetingID, &t.Title, &t.Assignee, &priority, &status, &t.DueMS, &t.SourceNoteID); err != nil {
			return nil, fmt.Errorf("store: scan task: %w", err)
		}
		t.MeetingID = meetingID.String
		t.Priority = model.TaskPriority(priority)
		t.Status = model.TaskStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}
