// Package photos stores item photos in a pluggable blob backend.
package photos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/aaal/envanter/internal/imaging"
	"github.com/aaal/envanter/internal/store"
)

var ErrNotFound = errors.New("photo not found")

// Store is a blob backend keyed by string.
type Store interface {
	Put(ctx context.Context, key string, data []byte, mime string) error
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}

// Photos attaches normalized photos to inventory items.
type Photos struct {
	db     *sql.DB
	blobs  Store
	prefix string
	maxDim int
}

// New returns a Photos writing blobs to s under prefix and item references
// to db.
func New(db *sql.DB, s Store, prefix string, maxDim int) *Photos {
	return &Photos{db: db, blobs: s, prefix: prefix, maxDim: maxDim}
}

// Upload normalizes the image read from r and makes it itemID's photo.
func (p *Photos) Upload(ctx context.Context, itemID string, r io.Reader) (*imaging.Photo, error) {
	item, err := store.GetItem(ctx, p.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	photo, err := imaging.Normalize(r, p.maxDim)
	if err != nil {
		return nil, err
	}

	key := p.prefix + itemID
	if err := p.blobs.Put(ctx, key, photo.Data, photo.MIME); err != nil {
		return nil, fmt.Errorf("storing photo: %w", err)
	}
	if _, err := store.SetItemPhotoKey(ctx, p.db, itemID, key); err != nil {
		return nil, err
	}
	return photo, nil
}

// Open returns the photo bytes and MIME type of itemID.
func (p *Photos) Open(ctx context.Context, itemID string) ([]byte, string, error) {
	key, err := store.GetItemPhotoKey(ctx, p.db, itemID)
	if err != nil {
		return nil, "", err
	}
	if key == "" {
		return nil, "", ErrNotFound
	}
	return p.blobs.Get(ctx, key)
}

// Remove deletes the photo of itemID, if any. It is called when the item
// itself is deleted.
func (p *Photos) Remove(ctx context.Context, itemID string) error {
	key, err := store.GetItemPhotoKey(ctx, p.db, itemID)
	if err != nil || key == "" {
		return err
	}
	return p.blobs.Delete(ctx, key)
}

// DBStore keeps blobs in the item_photos table.
type DBStore struct {
	db *sql.DB
}

// NewDBStore returns a Store backed by db.
func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

func (s *DBStore) Put(ctx context.Context, key string, data []byte, mime string) error {
	return store.PutPhoto(ctx, s.db, key, data, mime)
}

func (s *DBStore) Get(ctx context.Context, key string) ([]byte, string, error) {
	data, mime, err := store.GetPhoto(ctx, s.db, key)
	if err != nil {
		return nil, "", err
	}
	if data == nil {
		return nil, "", ErrNotFound
	}
	return data, mime, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	return store.DeletePhoto(ctx, s.db, key)
}
