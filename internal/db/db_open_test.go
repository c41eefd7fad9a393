package db

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
)

func TestPragmasApplyToEveryConnection(t *testing.T) {
	database, err := Open(filepath.Join(t.TempDir(), "envanter.sqlite3"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer database.Close()
	database.SetMaxOpenConns(3)

	ctx := context.Background()
	for i := range 3 {
		conn, err := database.Conn(ctx)
		if err != nil {
			t.Fatalf("conn %d: %v", i, err)
		}
		defer conn.Close()

		var timeout int
		if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
			t.Fatalf("conn %d busy_timeout: %v", i, err)
		}
		if timeout != 5000 {
			t.Errorf("conn %d: expected busy_timeout 5000, got %d", i, timeout)
		}

		var mode string
		if err := conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
			t.Fatalf("conn %d journal_mode: %v", i, err)
		}
		if !strings.EqualFold(mode, "wal") {
			t.Errorf("conn %d: expected wal journal, got %q", i, mode)
		}
	}
}

func TestDSNKeepsPath(t *testing.T) {
	got := dsn("data/envanter.sqlite3")
	if !strings.HasPrefix(got, "data/envanter.sqlite3?_pragma=") {
		t.Errorf("unexpected dsn %q", got)
	}
	if strings.Count(got, "_pragma=") != len(pragmas) {
		t.Errorf("expected %d pragmas in %q", len(pragmas), got)
	}
}
