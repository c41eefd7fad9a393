package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PutPhoto stores photo bytes under key, replacing any previous value.
func PutPhoto(ctx context.Context, db *sql.DB, key string, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO item_photos (key, data, mime, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, mime = excluded.mime, updated_at = excluded.updated_at`,
		key, data, mime, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing photo: %w", err)
	}
	return nil
}

// GetPhoto returns the photo stored under key. data is nil if there is none.
func GetPhoto(ctx context.Context, db *sql.DB, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM item_photos WHERE key = ?`, key,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting photo: %w", err)
	}
	return data, mime, nil
}

// DeletePhoto removes the photo stored under key.
func DeletePhoto(ctx context.Context, db *sql.DB, key string) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM item_photos WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
