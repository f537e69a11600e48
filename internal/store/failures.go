package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/model"
)

// CreateFailureEvent appends one FailureEvent, §3/§7. The table is
// append-only: FailureEvents are never updated except to flip
// Acknowledged.
func (s *Store) CreateFailureEvent(ctx context.Context, ev model.FailureEvent) (string, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	var meetingID sql.NullString
	if ev.MeetingID != "" {
		meetingID = sql.NullString{String: ev.MeetingID, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO failure_events (id, kind, meeting_id, message, raw_output, timestamp_ms, acknowledged)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Kind), meetingID, ev.Message, ev.RawOutput, ev.TimestampMS, ev.Acknowledged)
	if err != nil {
		return "", fmt.Errorf("store: create failure event: %w", err)
	}
	return ev.ID, nil
}

// AcknowledgeFailureEvent marks a FailureEvent as seen by the user.
func (s *Store) AcknowledgeFailureEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE failure_events SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: acknowledge failure event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetFailureEventsByMeeting returns every FailureEvent for meetingID,
// most recent first.
func (s *Store) GetFailureEventsByMeeting(ctx context.Context, meetingID string) ([]model.FailureEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, meeting_id, message, raw_output, timestamp_ms, acknowledged
		FROM failure_events WHERE meeting_id = ? ORDER BY timestamp_ms DESC`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("store: get failure events: %w", err)
	}
	defer rows.Close()

	var out []model.FailureEvent
	for rows.Next() {
		var ev model.FailureEvent
		var kind string
		var meetingID sql.NullString
		if err := rows.Scan(&ev.ID, &kind, &meetingID, &ev.Message, &ev.RawOutput, &ev.TimestampMS, &ev.Acknowledged); err != nil {
			return nil, fmt.Errorf("store: scan failure event: %w", err)
		}
		ev.Kind = model.FailureKind(kind)
		ev.MeetingID = meetingID.String
		out = append(out, ev)
	}
	return out, rows.Err()
}

// GetSetting reads a value from the settings table, §6. ok is false
// when the key is unset.
func (s *Store) GetSetting(ctx context.Context, key string) (value string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: get setting: %w", err)
	}
	return value, true, nil
}

// SetSetting upserts a settings value, §6 — used to persist the
// once-per-install transcription-only acknowledgement, §7.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("store: set setting: %w", err)
	}
	return nil
}
