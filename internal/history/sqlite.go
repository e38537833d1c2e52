package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-smartctl/internal/controller"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteRepository implements Repository using the controller_transitions
// table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite transition repository.
//
// Parameters:
//   - db: Open SQLite connection with migrations applied
//
// Returns:
//   - *SQLiteRepository: Repository instance ready for use
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

// RecordTransition inserts one transition. A zero At is stamped with the
// current time.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - tr: Transition reported by a controller listener
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) RecordTransition(ctx context.Context, tr controller.Transition) error {
	if tr.ControllerID == "" {
		return ErrControllerIDRequired
	}

	at := tr.At
	if at.IsZero() {
		at = r.now()
	}

	isOn := 0
	if tr.IsOn {
		isOn = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO controller_transitions
		 (controller_id, controller_type, from_state, to_state, is_on, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ControllerID,
		tr.ControllerType,
		string(tr.From),
		string(tr.To),
		isOn,
		at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}

	return nil
}

// GetHistory returns recent transitions of a controller, ordered newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - controllerID: Controller identifier from config.yaml
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) GetHistory(ctx context.Context, controllerID string, limit int) ([]Entry, error) {
	if controllerID == "" {
		return nil, ErrControllerIDRequired
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, controller_id, controller_type, from_state, to_state, is_on, created_at
		 FROM controller_transitions
		 WHERE controller_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		controllerID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var isOn int
		var createdAt string

		if err := rows.Scan(&entry.ID, &entry.ControllerID, &entry.ControllerType,
			&entry.From, &entry.To, &isOn, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		entry.IsOn = isOn != 0

		timestamp, err := parseTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transitions: %w", err)
	}

	return entries, nil
}

// PruneHistory deletes transitions older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Duration to retain (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}

	cutoff := r.now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM controller_transitions WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting transitions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseTimestamp parses a created_at value stored in SQLite.
func parseTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return timestamp, nil
	}

	fallback, fallbackErr := time.Parse("2006-01-02 15:04:05", value)
	if fallbackErr == nil {
		return fallback.UTC(), nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
