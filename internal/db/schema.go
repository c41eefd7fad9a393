package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema. Each collection is its own table keyed
// by a UUID; requests and items are not linked by foreign keys because items
// can be deleted while requests that reference them stay open.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    first_name    TEXT NOT NULL,
    last_name     TEXT NOT NULL,
    email         TEXT,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('admin', 'advisor', 'user')),
    created_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_name
    ON users(lower(first_name), lower(last_name));

CREATE TABLE IF NOT EXISTS inventory_items (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL,
    description  TEXT NOT NULL DEFAULT '',
    category     TEXT NOT NULL,
    quantity     INTEGER NOT NULL CHECK (quantity >= 0),
    min_quantity INTEGER NOT NULL DEFAULT 0 CHECK (min_quantity >= 0),
    location     TEXT NOT NULL DEFAULT '',
    created_at   DATETIME NOT NULL,
    updated_at   DATETIME NOT NULL,
    created_by   TEXT NOT NULL,
    photo_key    TEXT
);

CREATE TABLE IF NOT EXISTS requests (
    id                  TEXT PRIMARY KEY,
    user_id             TEXT NOT NULL,
    user_name           TEXT NOT NULL,
    item_id             TEXT NOT NULL,
    item_name           TEXT NOT NULL,
    quantity            INTEGER NOT NULL CHECK (quantity > 0),
    reason              TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    admin_note          TEXT,
    reviewed_by         TEXT,
    reviewed_at         DATETIME,
    created_at          DATETIME NOT NULL,
    return_type         TEXT CHECK (return_type IN ('self_declaration', 'admin_check')),
    return_status       TEXT CHECK (return_status IN ('pending_return', 'returned')),
    return_requested_at DATETIME,
    returned_at         DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_one_pending
    ON requests(user_id, item_id) WHERE status = 'pending';

CREATE TABLE IF NOT EXISTS activity_logs (
    id        TEXT PRIMARY KEY,
    action    TEXT NOT NULL,
    user_id   TEXT NOT NULL,
    user_name TEXT NOT NULL,
    details   TEXT NOT NULL,
    metadata  TEXT,
    timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_activity_logs_timestamp ON activity_logs(timestamp);

CREATE TABLE IF NOT EXISTS item_photos (
    key        TEXT PRIMARY KEY,
    data       BLOB NOT NULL,
    mime       TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: rows written before return tracking existed default to
	// self-declared returns.
	`UPDATE requests SET return_type = 'self_declaration'
	     WHERE status = 'approved' AND return_type IS NULL`,
}

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// Migrate ensures the schema and then runs the migrations.
func Migrate(db *sql.DB) error {
	if err := EnsureSchema(db); err != nil {
		return err
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
