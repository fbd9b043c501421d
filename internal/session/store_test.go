package session

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

const testSchema = `
CREATE TABLE sessions (
    id            TEXT PRIMARY KEY,
    reference     TEXT NOT NULL,
    start_time    TEXT NOT NULL,
    last_activity TEXT NOT NULL,
    attempt_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE auth_events (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    detail     TEXT,
    created_at TEXT NOT NULL,
    UNIQUE (session_id, seq)
);
`

func newTestVault(t *testing.T) *SQLiteVault {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup
	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}
	return NewVault(db)
}

func TestVault_EmptyReturnsErrNoSession(t *testing.T) {
	v := newTestVault(t)
	if _, err := v.Current(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Errorf("Current on empty vault = %v, want ErrNoSession", err)
	}
}

func TestVault_SaveAndCurrent(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveReference(ctx, "ref-1", 2); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}

	s, err := v.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if s.Reference != "ref-1" {
		t.Errorf("reference = %q", s.Reference)
	}
	if s.AttemptCount != 2 {
		t.Errorf("attempt count = %d, want 2", s.AttemptCount)
	}
	if s.ID == "" || s.StartTime.IsZero() {
		t.Error("session should carry generated ID and start time")
	}
}

func TestVault_SaveReplacesPriorSession(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveReference(ctx, "ref-1", 0); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}
	first, _ := v.Current(ctx) //nolint:errcheck // just saved
	if err := v.SaveReference(ctx, "ref-2", 0); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}

	s, err := v.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if s.Reference != "ref-2" {
		t.Errorf("reference = %q, want ref-2", s.Reference)
	}
	if s.ID == first.ID {
		t.Error("replacement should mint a new session ID")
	}
}

func TestVault_ClearReference(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	// Clearing an empty vault is fine.
	if err := v.ClearReference(ctx); err != nil {
		t.Errorf("ClearReference on empty vault: %v", err)
	}

	if err := v.SaveReference(ctx, "ref-1", 0); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}
	if err := v.ClearReference(ctx); err != nil {
		t.Fatalf("ClearReference: %v", err)
	}
	if _, err := v.Current(ctx); !errors.Is(err, ErrNoSession) {
		t.Errorf("Current after clear = %v, want ErrNoSession", err)
	}
}

func TestVault_EventsOrderedPerSession(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveReference(ctx, "ref-1", 0); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}

	kinds := []string{"login_succeeded", "refresh", "logout"}
	for _, k := range kinds {
		if err := v.RecordEvent(ctx, k, ""); err != nil {
			t.Fatalf("RecordEvent(%s): %v", k, err)
		}
	}

	s, _ := v.Current(ctx) //nolint:errcheck // just saved
	events, err := v.Events(ctx, s.ID)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(events) != len(kinds) {
		t.Fatalf("got %d events, want %d", len(events), len(kinds))
	}
	for i, e := range events {
		if e.Kind != kinds[i] {
			t.Errorf("event %d kind = %s, want %s", i, e.Kind, kinds[i])
		}
		if e.Seq != i+1 {
			t.Errorf("event %d seq = %d, want %d", i, e.Seq, i+1)
		}
	}
}

func TestVault_RecordEventWithoutSessionIsDropped(t *testing.T) {
	v := newTestVault(t)
	if err := v.RecordEvent(context.Background(), "login_failed", ""); err != nil {
		t.Errorf("RecordEvent without session should be a silent no-op, got %v", err)
	}
}

func TestVault_TouchActivity(t *testing.T) {
	v := newTestVault(t)
	ctx := context.Background()

	if err := v.SaveReference(ctx, "ref-1", 0); err != nil {
		t.Fatalf("SaveReference: %v", err)
	}
	if err := v.TouchActivity(ctx); err != nil {
		t.Errorf("TouchActivity: %v", err)
	}
}
