package store

import (
	"bytes"
	"context"
	"testing"

	"github.com/aaal/envanter/internal/db"
)

func TestPhotoRoundTrip(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	data, mime, err := GetPhoto(ctx, database, "items/x")
	if err != nil {
		t.Fatalf("GetPhoto: %v", err)
	}
	if data != nil || mime != "" {
		t.Error("expected no photo")
	}

	if err := PutPhoto(ctx, database, "items/x", []byte{1, 2, 3}, "image/png"); err != nil {
		t.Fatalf("PutPhoto: %v", err)
	}
	PutPhoto(ctx, database, "items/x", []byte{4, 5}, "image/jpeg")

	data, mime, _ = GetPhoto(ctx, database, "items/x")
	if !bytes.Equal(data, []byte{4, 5}) || mime != "image/jpeg" {
		t.Errorf("expected replaced photo, got %v %q", data, mime)
	}

	DeletePhoto(ctx, database, "items/x")
	data, _, _ = GetPhoto(ctx, database, "items/x")
	if data != nil {
		t.Error("expected photo to be deleted")
	}
}
