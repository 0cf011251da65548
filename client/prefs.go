package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// PreferenceMirror is a client-local copy of the user's notification
// preferences: which event types are enabled and which lists are muted.
// The background push delivery agent consults it before surfacing a
// notification, because the server filters persistence and push by mute
// state but live room events arrive unfiltered.
type PreferenceMirror struct {
	db *sql.DB
}

const prefsSchema = `
CREATE TABLE IF NOT EXISTS type_prefs (
	event_type TEXT PRIMARY KEY,
	enabled INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS list_mutes (
	list_id TEXT PRIMARY KEY
);
`

// OpenPreferenceMirror opens or creates the local preference database.
func OpenPreferenceMirror(ctx context.Context, path string) (*PreferenceMirror, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open preference database: %w", err)
	}
	if _, err := db.ExecContext(ctx, prefsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize preference schema: %w", err)
	}
	return &PreferenceMirror{db: db}, nil
}

// Close releases the underlying database.
func (m *PreferenceMirror) Close() error {
	return m.db.Close()
}

// SetTypeEnabled records whether an event type should be surfaced.
func (m *PreferenceMirror) SetTypeEnabled(ctx context.Context, eventType string, enabled bool) error {
	const query = `
		INSERT INTO type_prefs (event_type, enabled) VALUES (?, ?)
		ON CONFLICT (event_type) DO UPDATE SET enabled = excluded.enabled`

	val := 0
	if enabled {
		val = 1
	}
	if _, err := m.db.ExecContext(ctx, query, eventType, val); err != nil {
		return fmt.Errorf("failed to save type preference: %w", err)
	}
	return nil
}

// MuteList records a per-list mute.
func (m *PreferenceMirror) MuteList(ctx context.Context, listID uuid.UUID) error {
	const query = `INSERT INTO list_mutes (list_id) VALUES (?) ON CONFLICT DO NOTHING`

	if _, err := m.db.ExecContext(ctx, query, listID.String()); err != nil {
		return fmt.Errorf("failed to mute list: %w", err)
	}
	return nil
}

// UnmuteList removes a per-list mute.
func (m *PreferenceMirror) UnmuteList(ctx context.Context, listID uuid.UUID) error {
	const query = `DELETE FROM list_mutes WHERE list_id = ?`

	if _, err := m.db.ExecContext(ctx, query, listID.String()); err != nil {
		return fmt.Errorf("failed to unmute list: %w", err)
	}
	return nil
}

// Allows reports whether a notification of the given type for the given
// list should be surfaced. Unknown types default to enabled.
func (m *PreferenceMirror) Allows(ctx context.Context, eventType string, listID uuid.UUID) (bool, error) {
	const typeQuery = `SELECT enabled FROM type_prefs WHERE event_type = ?`

	var enabled int
	err := m.db.QueryRowContext(ctx, typeQuery, eventType).Scan(&enabled)
	switch {
	case err == sql.ErrNoRows:
		// no explicit preference, fall through to the mute check
	case err != nil:
		return false, fmt.Errorf("failed to read type preference: %w", err)
	case enabled == 0:
		return false, nil
	}

	const muteQuery = `SELECT 1 FROM list_mutes WHERE list_id = ?`

	var one int
	err = m.db.QueryRowContext(ctx, muteQuery, listID.String()).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return true, nil
	case err != nil:
		return false, fmt.Errorf("failed to read list mute: %w", err)
	}
	return false, nil
}
