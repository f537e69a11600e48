package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/meetinglens/transcriptd/internal/model"
)

// CreateOptions tunes a single Create call; currently only controls
// whether an overlap check runs (the aligner already guarantees
// non-overlap for rows it emits, but replay/recovery paths want the
// check enforced).
type CreateOptions struct {
	CheckOverlap bool
}

// Create persists one TranscriptRow, assigning it an id if empty. It
// fails with ErrMissingSpeakerID when SpeakerID is blank, enforcing
// §3's invariant that every row is speaker-attributed, §4.6.
func (s *Store) Create(ctx context.Context, row model.TranscriptRow, opts CreateOptions) (string, error) {
	if row.SpeakerID == "" {
		return "", ErrMissingSpeakerID
	}
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if opts.CheckOverlap {
		if err := s.checkOverlap(ctx, s.db, row); err != nil {
			return "", err
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcripts (id, meeting_id, speaker_id, text, start_ms, end_ms, confidence, is_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID, row.MeetingID, string(row.SpeakerID), row.Text, row.StartMS, row.EndMS, row.Confidence, row.IsFinal)
	if err != nil {
		return "", fmt.Errorf("store: create transcript row: %w", err)
	}
	return row.ID, nil
}

// CreateBatch persists every row in a single transaction: either all
// rows commit or none do, §4.6/§8 property 6.
func (s *Store) CreateBatch(ctx context.Context, rows []model.TranscriptRow) ([]string, error) {
	for _, r := range rows {
		if r.SpeakerID == "" {
			return nil, ErrMissingSpeakerID
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("store: begin batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ids := make([]string, len(rows))
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcripts (id, meeting_id, speaker_id, text, start_ms, end_ms, confidence, is_final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("store: prepare batch insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		id := row.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, id, row.MeetingID, string(row.SpeakerID), row.Text, row.StartMS, row.EndMS, row.Confidence, row.IsFinal); err != nil {
			return nil, fmt.Errorf("store: batch insert row %d: %w", i, err)
		}
		ids[i] = id
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit batch: %w", err)
	}
	return ids, nil
}

// PromoteToFinal updates a non-final row's text/confidence/speaker in
// place, the only update permitted on an append-only table, §4.6. It is
// also how a post-correction speaker re-label is applied to an
// already-persisted row, §5.
func (s *Store) PromoteToFinal(ctx context.Context, id string, text string, confidence float64, speakerID model.SpeakerID) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transcripts SET text = ?, confidence = ?, speaker_id = ?, is_final = 1
		WHERE id = ?`, text, confidence, string(speakerID), id)
	if err != nil {
		return fmt.Errorf("store: promote row %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RelabelSpeaker updates only the speaker_id of an already-persisted
// row, within a single transaction, §5's correction-applied-in-place
// rule.
func (s *Store) RelabelSpeaker(ctx context.Context, id string, speakerID model.SpeakerID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE transcripts SET speaker_id = ? WHERE id = ?`, string(speakerID), id)
	if err != nil {
		return fmt.Errorf("store: relabel row %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// RelabelSpeakerInRange re-labels every persisted row in meetingID whose
// [start_ms,end_ms] overlaps [startMS,endMS], matching a diarizer
// correction against rows already written, §5.
func (s *Store) RelabelSpeakerInRange(ctx context.Context, meetingID string, startMS, endMS int64, speakerID model.SpeakerID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE transcripts SET speaker_id = ?
		WHERE meeting_id = ? AND start_ms < ? AND end_ms > ?`,
		string(speakerID), meetingID, endMS, startMS)
	if err != nil {
		return 0, fmt.Errorf("store: relabel range: %w", err)
	}
	return res.RowsAffected()
}

// GetByMeetingPaginated returns rows for meetingID ordered by start_ms,
// §4.6/§8 property 3.
func (s *Store) GetByMeetingPaginated(ctx context.Context, meetingID string, limit, offset int) ([]model.TranscriptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, speaker_id, text, start_ms, end_ms, confidence, is_final
		FROM transcripts WHERE meeting_id = ?
		ORDER BY start_ms ASC LIMIT ? OFFSET ?`, meetingID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("store: get by meeting: %w", err)
	}
	defer rows.Close()
	return scanTranscriptRows(rows)
}

// CountByMeeting returns the total row count for meetingID.
func (s *Store) CountByMeeting(ctx context.Context, meetingID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcripts WHERE meeting_id = ?`, meetingID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store: count by meeting: %w", err)
	}
	return n, nil
}

// DeleteByMeeting removes all transcript rows for meetingID (used by
// post-recording recovery before replaying a corrected alignment).
func (s *Store) DeleteByMeeting(ctx context.Context, meetingID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM transcripts WHERE meeting_id = ?`, meetingID)
	if err != nil {
		return fmt.Errorf("store: delete by meeting: %w", err)
	}
	return nil
}

// SearchInMeeting runs a full-text query over one meeting's rows,
// ordered by start_ms, §4.6.
func (s *Store) SearchInMeeting(ctx context.Context, meetingID, ftsQuery string) ([]model.TranscriptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.meeting_id, t.speaker_id, t.text, t.start_ms, t.end_ms, t.confidence, t.is_final
		FROM transcripts t
		JOIN transcripts_fts f ON f.rowid = t.rowid
		WHERE t.meeting_id = ? AND transcripts_fts MATCH ?
		ORDER BY t.start_ms ASC`, meetingID, ftsQuery)
	if err != nil {
		return nil, fmt.Errorf("store: search in meeting: %w", err)
	}
	defer rows.Close()
	return scanTranscriptRows(rows)
}

// SearchAll runs a full-text query across every meeting, ordered by the
// owning meeting's start_ms then row start_ms, §4.6.
func (s *Store) SearchAll(ctx context.Context, ftsQuery string) ([]model.TranscriptRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.meeting_id, t.speaker_id, t.text, t.start_ms, t.end_ms, t.confidence, t.is_final
		FROM transcripts t
		JOIN transcripts_fts f ON f.rowid = t.rowid
		JOIN meetings m ON m.id = t.meeting_id
		WHERE transcripts_fts MATCH ?
		ORDER BY m.started_at ASC, t.start_ms ASC`, ftsQuery)
	if err != nil {
		return nil, fmt.Errorf("store: search all: %w", err)
	}
	defer rows.Close()
	return scanTranscriptRows(rows)
}

func (s *Store) checkOverlap(ctx context.Context, q queryer, row model.TranscriptRow) error {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transcripts
		WHERE meeting_id = ? AND speaker_id = ? AND id != ? AND start_ms < ? AND end_ms > ?`,
		row.MeetingID, string(row.SpeakerID), row.ID, row.EndMS, row.StartMS).Scan(&n)
	if err != nil {
		return fmt.Errorf("store: overlap check: %w", err)
	}
	if n > 0 {
		return ErrOverlappingSegments
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanTranscriptRows(rows *sql.Rows) ([]model.TranscriptRow, error) {
	var out []model.TranscriptRow
	for rows.Next() {
		var r model.TranscriptRow
		var speakerID string
		if err := rows.Scan(&r.ID, &r.MeetingID, &speakerID, &r.Text, &r.StartMS, &r.EndMS, &r.Confidence, &r.IsFinal); err != nil {
			return nil, fmt.Errorf("store: scan transcript row: %w", err)
		}
		r.SpeakerID = model.SpeakerID(speakerID)
		out = append(out, r)
	}
	return out, rows.Err()
}
