package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteVault persists the single current session and its event log.
// It satisfies auth.ReferenceStore and the recovery package's vault
// interface.
type SQLiteVault struct {
	db *sql.DB
}

// NewVault creates a SQLite-backed session vault.
func NewVault(db *sql.DB) *SQLiteVault {
	return &SQLiteVault{db: db}
}

// Current returns the persisted session, or ErrNoSession.
func (v *SQLiteVault) Current(ctx context.Context) (*Session, error) {
	var s Session
	var startTime, lastActivity string

	err := v.db.QueryRowContext(ctx,
		`SELECT id, reference, start_time, last_activity, attempt_count
		 FROM sessions LIMIT 1`,
	).Scan(&s.ID, &s.Reference, &startTime, &lastActivity, &s.AttemptCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("reading current session: %w", err)
	}

	s.StartTime, _ = time.Parse(time.RFC3339, startTime)       //nolint:errcheck // format is controlled
	s.LastActivity, _ = time.Parse(time.RFC3339, lastActivity) //nolint:errcheck // format is controlled
	return &s, nil
}

// SaveReference replaces the current session with a fresh one holding the
// given opaque reference. attempts records how many failed submissions
// preceded the issued reference. At most one session row exists at a time.
func (v *SQLiteVault) SaveReference(ctx context.Context, ref string, attempts int) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning save transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing prior session: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	id := "sess-" + uuid.NewString()[:16]
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, reference, start_time, last_activity, attempt_count)
		 VALUES (?, ?, ?, ?, ?)`,
		id, ref, now, now, attempts,
	); err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	return nil
}

// ClearReference deletes the current session. Its events go with it
// (cascade). Clearing an empty vault is a no-op.
func (v *SQLiteVault) ClearReference(ctx context.Context) error {
	if _, err := v.db.ExecContext(ctx, "DELETE FROM sessions"); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// TouchActivity updates the current session's last-activity timestamp.
// No-op when no session is persisted.
func (v *SQLiteVault) TouchActivity(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := v.db.ExecContext(ctx,
		"UPDATE sessions SET last_activity = ?", now); err != nil {
		return fmt.Errorf("touching session activity: %w", err)
	}
	return nil
}

// RecordEvent appends an event to the current session's ordered log.
// Events arriving while no session exists (for example failed logins
// before any session is issued) are dropped silently — the event log is
// per-session state.
func (v *SQLiteVault) RecordEvent(ctx context.Context, kind, detail string) error {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning event transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var sessionID string
	err = tx.QueryRowContext(ctx, "SELECT id FROM sessions LIMIT 1").Scan(&sessionID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving session for event: %w", err)
	}

	var nextSeq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(seq), 0) + 1 FROM auth_events WHERE session_id = ?",
		sessionID,
	).Scan(&nextSeq); err != nil {
		return fmt.Errorf("computing event sequence: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO auth_events (id, session_id, seq, kind, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		"evt-"+uuid.NewString()[:16], sessionID, nextSeq, kind,
		nullString(detail), time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return tx.Commit()
}

// Events returns a session's event log in sequence order.
func (v *SQLiteVault) Events(ctx context.Context, sessionID string) ([]Event, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT id, session_id, seq, kind, detail, created_at
		 FROM auth_events WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var events []Event
	for rows.Next() {
		var e Event
		var detail sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Seq, &e.Kind, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
		events = append(events, e)
	}
	return events, rows.Err()
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
