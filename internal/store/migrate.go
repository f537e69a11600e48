package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in numeric order; PRAGMA user_version tracks
// the current schema version, §6.
var migrations = []string{
	// 1: core entities
	`
	CREATE TABLE IF NOT EXISTS meetings (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		audio_file_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS recordings (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		file_path TEXT NOT NULL,
		duration_ms INTEGER NOT NULL,
		file_size_bytes INTEGER NOT NULL,
		start_time INTEGER NOT NULL,
		end_time INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_recordings_meeting ON recordings(meeting_id);

	CREATE TABLE IF NOT EXISTS speakers (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		is_user INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS meeting_speaker_names (
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		session_speaker_id TEXT NOT NULL,
		speaker_id TEXT NOT NULL REFERENCES speakers(id),
		PRIMARY KEY (meeting_id, session_speaker_id)
	);

	CREATE TABLE IF NOT EXISTS transcripts (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		speaker_id TEXT NOT NULL,
		text TEXT NOT NULL,
		start_ms INTEGER NOT NULL,
		end_ms INTEGER NOT NULL,
		confidence REAL NOT NULL,
		is_final INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcripts_meeting_start ON transcripts(meeting_id, start_ms);

	CREATE VIRTUAL TABLE IF NOT EXISTS transcripts_fts USING fts5(
		text,
		content='transcripts',
		content_rowid='rowid',
		tokenize='unicode61 remove_diacritics 2'
	);

	CREATE TRIGGER IF NOT EXISTS transcripts_ai AFTER INSERT ON transcripts BEGIN
		INSERT INTO transcripts_fts(rowid, text) VALUES (new.rowid, new.text);
	END;
	CREATE TRIGGER IF NOT EXISTS transcripts_ad AFTER DELETE ON transcripts BEGIN
		INSERT INTO transcripts_fts(transcripts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
	END;
	CREATE TRIGGER IF NOT EXISTS transcripts_au AFTER UPDATE ON transcripts BEGIN
		INSERT INTO transcripts_fts(transcripts_fts, rowid, text) VALUES('delete', old.rowid, old.text);
		INSERT INTO transcripts_fts(rowid, text) VALUES (new.rowid, new.text);
	END;

	CREATE TABLE IF NOT EXISTS meeting_notes (
		id TEXT PRIMARY KEY,
		meeting_id TEXT NOT NULL REFERENCES meetings(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		body TEXT NOT NULL,
		evidence_start_ms INTEGER NOT NULL,
		evidence_end_ms INTEGER NOT NULL,
		confidence REAL NOT NULL,
		status TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notes_meeting_kind ON meeting_notes(meeting_id, kind);

	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		meeting_id TEXT REFERENCES meetings(id) ON DELETE SET NULL,
		title TEXT NOT NULL,
		assignee TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL,
		status TEXT NOT NULL,
		due_ms INTEGER NOT NULL DEFAULT 0,
		source_note_id TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_meeting ON tasks(meeting_id);

	CREATE TABLE IF NOT EXISTS failure_events (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		meeting_id TEXT,
		message TEXT NOT NULL,
		raw_output TEXT NOT NULL DEFAULT '',
		timestamp_ms INTEGER NOT NULL,
		acknowledged INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_failures_meeting ON failure_events(meeting_id);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`,
}

// Migrate applies every migration after the database's current
// user_version, in order, inside one transaction per step.
func Migrate(ctx context.Context, db *sql.DB) error {
	var current int
	if err := db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&current); err != nil {
		return fmt.Errorf("store: read schema_version: %w", err)
	}

	for i := current; i < len(migrations); i++ {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("store: begin migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: apply migration %d: %w", i+1, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("store: set schema_version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("store: commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
