package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/model"
)

// CreateMeeting persists a new Meeting row, assigning an id if empty.
func (s *Store) CreateMeeting(ctx context.Context, m model.Meeting) (string, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (id, title, started_at, ended_at, status, audio_file_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.StartedAt, m.EndedAt, string(m.Status), m.AudioFilePath)
	if err != nil {
		return "", fmt.Errorf("store: create meeting: %w", err)
	}
	return m.ID, nil
}

// UpdateMeetingStatus advances a Meeting's status. Status must advance
// monotonically except stopped->failed, §3; callers are expected to
// enforce the state machine (internal/orchestrator) before calling this.
func (s *Store) UpdateMeetingStatus(ctx context.Context, id string, status model.MeetingStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE meetings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("store: update meeting status: %w", err)
	}
	return nil
}

// SetMeetingAudioFilePath records the finalized recording's path.
func (s *Store) SetMeetingAudioFilePath(ctx context.Context, id, path string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE meetings SET audio_file_path = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("store: set audio file path: %w", err)
	}
	return nil
}

// SetMeetingEnded records the wall-clock end time.
func (s *Store) SetMeetingEnded(ctx context.Context, id string, endedAt int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE meetings SET ended_at = ? WHERE id = ?`, endedAt, id)
	if err != nil {
		return fmt.Errorf("store: set meeting ended: %w", err)
	}
	return nil
}

// GetMeeting fetches one Meeting by id.
func (s *Store) GetMeeting(ctx context.Context, id string) (model.Meeting, error) {
	var m model.Meeting
	var status string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, started_at, ended_at, status, audio_file_path FROM meetings WHERE id = ?`, id).
		Scan(&m.ID, &m.Title, &m.StartedAt, &m.EndedAt, &status, &m.AudioFilePath)
	if err == sql.ErrNoRows {
		return model.Meeting{}, ErrNotFound
	}
	if err != nil {
		return model.Meeting{}, fmt.Errorf("store: get meeting: %w", err)
	}
	m.Status = model.MeetingStatus(status)
	return m, nil
}

// ListMeetings returns every Meeting ordered newest-first, for the
// control API's meeting list endpoint.
func (s *Store) ListMeetings(ctx context.Context, limit, offset int) ([]model.Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, started_at, ended_at, status, audio_file_path
		FROM meetings ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: list meetings: %w", err)
	}
	defer rows.Close()

	var out []model.Meeting
	for rows.Next() {
		var m model.Meeting
		var status string
		if err := rows.Scan(&m.ID, &m.Title, &m.StartedAt, &m.EndedAt, &status, &m.AudioFilePath); err != nil {
			return nil, fmt.Errorf("store: scan meeting: %w", err)
		}
		m.Status = model.MeetingStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// CreateRecording persists the Recording created when audio capture
// finalizes, §3.
func (s *Store) CreateRecording(ctx context.Context, r model.Recording) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recordings (id, meeting_id, file_path, duration_ms, file_size_bytes, start_time, end_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MeetingID, r.FilePath, r.DurationMS, r.FileSizeBytes, r.StartTime, r.EndTime)
	if err != nil {
		return "", fmt.Errorf("store: create recording: %w", err)
	}
	return r.ID, nil
}

// GetRecordingByMeeting returns the (exactly one, in normal flow)
// Recording owned by meetingID.
func (s *Store) GetRecordingByMeeting(ctx context.Context, meetingID string) (model.Recording, error) {
	var r model.Recording
	err := s.db.QueryRowContext(ctx, `
		SELECT id, meeting_id, file_path, duration_ms, file_size_bytes, start_time, end_time
		FROM recordings WHERE meeting_id = ? ORDER BY start_time DESC LIMIT 1`, meetingID).
		Scan(&r.ID, &r.MeetingID, &r.FilePath, &r.DurationMS, &r.FileSizeBytes, &r.StartTime, &r.EndTime)
	if err == sql.ErrNoRows {
		return model.Recording{}, ErrNotFound
	}
	if err != nil {
		return model.Recording{}, fmt.Errorf("store: get recording: %w", err)
	}
	return r, nil
}
