package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aaal/envanter/internal/model"
)

// InsertLog appends an activity entry in a single statement, assigning its
// ID and, if unset, its timestamp.
func InsertLog(ctx context.Context, db *sql.DB, e *model.LogEntry) error {
	e.ID = NewID()
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encoding log metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, action, user_id, user_name, details, metadata, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Action), e.UserID, e.UserName, e.Details, metadata, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting log entry: %w", err)
	}
	return nil
}

// LogFilter narrows ListLogs. Zero fields match everything; Limit <= 0 means
// no limit.
type LogFilter struct {
	UserID string
	Action model.LogAction
	Since  time.Time
	Until  time.Time
	Limit  int
}

// ListLogs returns log entries, newest first.
func ListLogs(ctx context.Context, db *sql.DB, f LogFilter) ([]model.LogEntry, error) {
	query := `SELECT id, action, user_id, user_name, details, metadata, timestamp
	          FROM activity_logs WHERE 1=1`
	var args []any

	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.Action != "" {
		query += ` AND action = ?`
		args = append(args, string(f.Action))
	}
	if !f.Since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, f.Since.UTC())
	}
	if !f.Until.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, f.Until.UTC())
	}

	query += ` ORDER BY timestamp DESC, rowid DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing logs: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var e model.LogEntry
		var metadata sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.UserID, &e.UserName, &e.Details, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning log entry: %w", err)
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &e.Metadata); err != nil {
				return nil, fmt.Errorf("decoding log metadata: %w", err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
