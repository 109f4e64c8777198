package history

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the light_events schema.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	f, err := os.CreateTemp("", "history-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/20261015_090000_light_events.up.sql")
	if err != nil {
		t.Fatalf("reading migration: %v", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		t.Fatalf("applying migration: %v", err)
	}

	return db
}

func intPtr(v int) *int { return &v }

func TestRecord_GeneratesIDAndTimestamp(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()

	ev := &Event{
		DeviceID: "light-kitchen",
		Address:  "1A.2B.3C",
		Event:    "turnOn",
		Origin:   "ack",
		Level:    intPtr(50),
		Cmd1:     0x11,
		Cmd2:     0x80,
	}
	if err := repo.Record(ctx, ev); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	if ev.ID == "" {
		t.Error("ID not generated")
	}
	if ev.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := repo.Recent(ctx, "light-kitchen", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("Recent() returned %d events, want 1", len(got))
	}
	if got[0].ID != ev.ID {
		t.Errorf("ID = %q, want %q", got[0].ID, ev.ID)
	}
	if got[0].Level == nil || *got[0].Level != 50 {
		t.Errorf("Level = %v, want 50", got[0].Level)
	}
	if got[0].Group != nil {
		t.Errorf("Group = %v, want nil", *got[0].Group)
	}
	if got[0].Cmd1 != 0x11 || got[0].Cmd2 != 0x80 {
		t.Errorf("cmd = %02X/%02X, want 11/80", got[0].Cmd1, got[0].Cmd2)
	}
}

func TestRecent_NewestFirstAndFiltered(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []*Event{
		{DeviceID: "a", Address: "11.11.11", Event: "turnOn", Origin: "broadcast", Group: intPtr(1), CreatedAt: base},
		{DeviceID: "b", Address: "22.22.22", Event: "turnOff", Origin: "ack", CreatedAt: base.Add(time.Second)},
		{DeviceID: "a", Address: "11.11.11", Event: "dimming", Origin: "broadcast", Group: intPtr(1), CreatedAt: base.Add(2 * time.Second)},
	}
	for _, ev := range events {
		if err := repo.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	tests := []struct {
		name     string
		deviceID string
		limit    int
		want     []string
	}{
		{"all devices", "", 10, []string{"dimming", "turnOff", "turnOn"}},
		{"one device", "a", 10, []string{"dimming", "turnOn"}},
		{"limited", "", 2, []string{"dimming", "turnOff"}},
		{"unknown device", "zzz", 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Recent(ctx, tt.deviceID, tt.limit)
			if err != nil {
				t.Fatalf("Recent() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Recent() returned %d events, want %d", len(got), len(tt.want))
			}
			for i, ev := range got {
				if ev.Event != tt.want[i] {
					t.Errorf("event[%d] = %q, want %q", i, ev.Event, tt.want[i])
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	for i, ts := range []time.Time{cutoff.Add(-48 * time.Hour), cutoff.Add(-time.Nanosecond), cutoff.Add(time.Hour)} {
		ev := &Event{DeviceID: "a", Address: "11.11.11", Event: "turnOn", Origin: "ack", Cmd1: i, CreatedAt: ts}
		if err := repo.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	n, err := repo.Prune(ctx, cutoff)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() deleted %d, want 2", n)
	}

	left, err := repo.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(left) != 1 || left[0].Cmd1 != 2 {
		t.Errorf("remaining events = %+v, want only the newest", left)
	}
}
