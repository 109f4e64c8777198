// Package history stores the light event log in the light_events table.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// timeFormat is fixed-width UTC so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// Page size limits for Recent.
const (
	defaultLimit = 20
	maxLimit     = 500
)

// Event is one stored light event.
type Event struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Address   string    `json:"address"`
	Event     string    `json:"event"`
	Origin    string    `json:"origin"`
	Group     *int      `json:"group,omitempty"`
	Level     *int      `json:"level,omitempty"`
	Cmd1      int       `json:"cmd1"`
	Cmd2      int       `json:"cmd2"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository defines the interface for event log operations.
type Repository interface {
	Record(ctx context.Context, ev *Event) error
	Recent(ctx context.Context, deviceID string, limit int) ([]Event, error)
	Prune(ctx context.Context, olderThan time.Time) (int64, error)
}

// SQLiteRepository keeps the event log in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new event log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts an event. The ID and CreatedAt are generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, ev *Event) error {
	if ev.ID == "" {
		ev.ID = "evt-" + uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO light_events (id, device_id, address, event, origin, grp, level, cmd1, cmd2, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.DeviceID, ev.Address, ev.Event, ev.Origin,
		nullableInt(ev.Group), nullableInt(ev.Level),
		ev.Cmd1, ev.Cmd2,
		ev.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting light event: %w", err)
	}

	return nil
}

// nullableInt maps a nil pointer to SQL NULL.
func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

// Recent returns up to limit events, newest first. An empty deviceID
// returns events for all devices.
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	const columns = "id, device_id, address, event, origin, grp, level, cmd1, cmd2, created_at"

	var (
		rows *sql.Rows
		err  error
	)
	if deviceID == "" {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+columns+" FROM light_events ORDER BY created_at DESC, rowid DESC LIMIT ?",
			limit)
	} else {
		rows, err = r.db.QueryContext(ctx,
			"SELECT "+columns+" FROM light_events WHERE device_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
			deviceID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("querying light events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var group, level sql.NullInt64
		var createdAt string

		if err := rows.Scan(&ev.ID, &ev.DeviceID, &ev.Address, &ev.Event, &ev.Origin,
			&group, &level, &ev.Cmd1, &ev.Cmd2, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning light event: %w", err)
		}

		if group.Valid {
			g := int(group.Int64)
			ev.Group = &g
		}
		if level.Valid {
			l := int(level.Int64)
			ev.Level = &l
		}

		t, err := time.Parse(timeFormat, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing light event timestamp %q: %w", createdAt, err)
		}
		ev.CreatedAt = t

		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating light events: %w", err)
	}

	if events == nil {
		events = []Event{}
	}

	return events, nil
}

// Prune deletes events created before olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: If the delete fails
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM light_events WHERE created_at < ?",
		olderThan.UTC().Format(timeFormat))
	if err != nil {
		return 0, fmt.Errorf("pruning light events: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned light events: %w", err)
	}
	return n, nil
}
