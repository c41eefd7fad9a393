package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aaal/envanter/internal/model"
)

const itemColumns = `id, name, description, category, quantity, min_quantity, location,
	created_at, updated_at, created_by, photo_key`

// CreateItem inserts an item, assigning its ID and timestamps.
func CreateItem(ctx context.Context, q Querier, item *model.InventoryItem) (*model.InventoryItem, error) {
	now := time.Now().UTC()
	item.ID = NewID()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO inventory_items
		     (id, name, description, category, quantity, min_quantity, location, created_at, updated_at, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Name, item.Description, item.Category, item.Quantity, item.MinQuantity,
		item.Location, item.CreatedAt, item.UpdatedAt, item.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, q, item.ID)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, q Querier, id string) (*model.InventoryItem, error) {
	item, err := scanItem(q.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM inventory_items WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// ItemFilter narrows ListItems. Search matches name or description,
// case-insensitively.
type ItemFilter struct {
	Category string
	Search   string
}

// ListItems returns items ordered by name.
func ListItems(ctx context.Context, q Querier, f ItemFilter) ([]model.InventoryItem, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE 1=1`
	var args []any

	if f.Category != "" {
		query += ` AND category = ?`
		args = append(args, f.Category)
	}
	if f.Search != "" {
		pattern := "%" + strings.ToLower(f.Search) + "%"
		query += ` AND (lower(name) LIKE ? OR lower(description) LIKE ?)`
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY name, rowid`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	var items []model.InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// ItemUpdate holds the descriptive fields of a partial item update; nil
// fields are left unchanged. Quantity is not part of it: stock changes go
// through the ledger.
type ItemUpdate struct {
	Name        *string
	Description *string
	Category    *string
	MinQuantity *int
	Location    *string
}

// UpdateItem merges upd into the item and bumps updated_at. It reports
// whether the item exists.
func UpdateItem(ctx context.Context, q Querier, id string, upd ItemUpdate) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET
		     name         = COALESCE(?, name),
		     description  = COALESCE(?, description),
		     category     = COALESCE(?, category),
		     min_quantity = COALESCE(?, min_quantity),
		     location     = COALESCE(?, location),
		     updated_at   = ?
		 WHERE id = ?`,
		nullable(upd.Name), nullable(upd.Description), nullable(upd.Category), nullable(upd.MinQuantity),
		nullable(upd.Location), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("updating item: %w", err)
	}
	return affected(result)
}

// DeleteItem removes an item. Requests referencing it are left untouched.
func DeleteItem(ctx context.Context, q Querier, id string) (bool, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting item: %w", err)
	}
	return affected(result)
}

// GetItemQuantity reads the stored quantity. found is false if the item
// does not exist.
func GetItemQuantity(ctx context.Context, q Querier, id string) (quantity int, found bool, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT quantity FROM inventory_items WHERE id = ?`, id,
	).Scan(&quantity)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("getting item quantity: %w", err)
	}
	return quantity, true, nil
}

// AddItemQuantity adds delta to the quantity unless the result would be
// negative. It reports whether a row was changed.
func AddItemQuantity(ctx context.Context, q Querier, id string, delta int) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = quantity + ?, updated_at = ?
		 WHERE id = ? AND quantity + ? >= 0`,
		delta, time.Now().UTC(), id, delta,
	)
	if err != nil {
		return false, fmt.Errorf("changing item quantity: %w", err)
	}
	return affected(result)
}

// SetItemQuantity overwrites the quantity. It reports whether the item exists.
func SetItemQuantity(ctx context.Context, q Querier, id string, quantity int) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET quantity = ?, updated_at = ? WHERE id = ?`,
		quantity, time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("setting item quantity: %w", err)
	}
	return affected(result)
}

// SetItemPhotoKey records where an item's photo is stored. An empty key
// clears it.
func SetItemPhotoKey(ctx context.Context, q Querier, id, key string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_items SET photo_key = ?, updated_at = ? WHERE id = ?`,
		nullString(key), time.Now().UTC(), id,
	)
	if err != nil {
		return false, fmt.Errorf("setting item photo: %w", err)
	}
	return affected(result)
}

// GetItemPhotoKey returns the photo key of an item, or "" if it has none.
func GetItemPhotoKey(ctx context.Context, q Querier, id string) (string, error) {
	var key sql.NullString
	err := q.QueryRowContext(ctx,
		`SELECT photo_key FROM inventory_items WHERE id = ?`, id,
	).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting item photo: %w", err)
	}
	return key.String, nil
}

func scanItem(row rowScanner) (*model.InventoryItem, error) {
	item := &model.InventoryItem{}
	var photoKey sql.NullString
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Category, &item.Quantity,
		&item.MinQuantity, &item.Location, &item.CreatedAt, &item.UpdatedAt, &item.CreatedBy, &photoKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	item.HasPhoto = photoKey.Valid && photoKey.String != ""
	return item, nil
}
