package db

import "testing"

func TestMigrateIsIdempotent(t *testing.T) {
	database := NewTestDB(t)

	if err := Migrate(database); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}

	var count int
	err := database.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN
		 ('users', 'inventory_items', 'requests', 'activity_logs', 'item_photos', 'settings', 'revoked_tokens')`,
	).Scan(&count)
	if err != nil {
		t.Fatalf("counting tables: %v", err)
	}
	if count != 7 {
		t.Errorf("expected 7 tables, got %d", count)
	}
}

func TestOnePendingRequestPerUserAndItem(t *testing.T) {
	database := NewTestDB(t)

	insert := `INSERT INTO requests (id, user_id, user_name, item_id, item_name, quantity, status, created_at)
	           VALUES (?, 'u1', 'U One', 'i1', 'Item', 1, ?, CURRENT_TIMESTAMP)`

	if _, err := database.Exec(insert, "r1", "pending"); err != nil {
		t.Fatalf("first pending insert: %v", err)
	}
	if _, err := database.Exec(insert, "r2", "pending"); err == nil {
		t.Error("expected unique violation for second pending request")
	}
	if _, err := database.Exec(insert, "r3", "rejected"); err != nil {
		t.Errorf("rejected request should not conflict: %v", err)
	}
}
