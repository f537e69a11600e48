package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/model"
)

// ResolveSpeaker maps a session-local diarizer SpeakerID to a durable
// Speaker row, creating one lazily on first sight within meetingID, §3.
// The mapping itself (session-local id -> Speaker.id) lives for the
// session in the orchestrator (§3); this table is the durable record of
// that mapping for later reference (e.g. renaming a speaker after the
// fact).
func (s *Store) ResolveSpeaker(ctx context.Context, meetingID string, sessionSpeakerID model.SpeakerID) (model.Speaker, error) {
	var speakerID string
	err := s.db.QueryRowContext(ctx, `
		SELECT speaker_id FROM meeting_speaker_names WHERE meeting_id = ? AND session_speaker_id = ?`,
		meetingID, string(sessionSpeakerID)).Scan(&speakerID)
	if err == nil {
		return s.GetSpeaker(ctx, speakerID)
	}
	if err != sql.ErrNoRows {
		return model.Speaker{}, fmt.Errorf("store: resolve speaker: %w", err)
	}

	sp := model.Speaker{ID: uuid.NewString(), DisplayName: string(sessionSpeakerID)}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Speaker{}, fmt.Errorf("store: begin resolve speaker: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO speakers (id, display_name, is_user) VALUES (?, ?, 0)`, sp.ID, sp.DisplayName); err != nil {
		return model.Speaker{}, fmt.Errorf("store: create speaker: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meeting_speaker_names (meeting_id, session_speaker_id, speaker_id) VALUES (?, ?, ?)`,
		meetingID, string(sessionSpeakerID), sp.ID); err != nil {
		return model.Speaker{}, fmt.Errorf("store: map speaker: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Speaker{}, fmt.Errorf("store: commit resolve speaker: %w", err)
	}
	return sp, nil
}

// GetSpeaker fetches one Speaker by durable id.
func (s *Store) GetSpeaker(ctx context.Context, id string) (model.Speaker, error) {
	var sp model.Speaker
	err := s.db.QueryRowContext(ctx, `SELECT id, display_name, is_user FROM speakers WHERE id = ?`, id).
		Scan(&sp.ID, &sp.DisplayName, &sp.IsUser)
	if err == sql.ErrNoRows {
		return model.Speaker{}, ErrNotFound
	}
	if err != nil {
		return model.Speaker{}, fmt.Errorf("store: get speaker: %w", err)
	}
	return sp, nil
}

// RenameSpeaker updates a Speaker's display name, shared across every
// meeting that references it, §3.
func (s *Store) RenameSpeaker(ctx context.Context, id, displayName string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE speakers SET display_name = ? WHERE id = ?`, displayName, id)
	if err != nil {
		return fmt.Errorf("store: rename speaker: %w", err)
	}
	return nil
}
