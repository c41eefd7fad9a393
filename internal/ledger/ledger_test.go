package ledger

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaal/envanter/internal/db"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

func seedItem(t *testing.T, database *sql.DB, quantity int) string {
	t.Helper()
	item, err := store.CreateItem(context.Background(), database, &model.InventoryItem{
		Name: "Servo", Category: "Motors", Quantity: quantity, CreatedBy: "admin",
	})
	require.NoError(t, err)
	return item.ID
}

func TestReserveAndRestore(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 10)

	unlock := l.Lock(id)
	qty, err := l.Reserve(ctx, database, id, 3)
	unlock()
	require.NoError(t, err)
	assert.Equal(t, 7, qty)

	unlock = l.Lock(id)
	qty, err = l.Restore(ctx, database, id, 3)
	unlock()
	require.NoError(t, err)
	assert.Equal(t, 10, qty)

	stored, err := l.Quantity(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, stored)
}

func TestReserveRejectsOverdraw(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 2)

	_, err := l.Reserve(ctx, database, id, 3)
	assert.ErrorIs(t, err, ErrInsufficientStock)

	stored, _ := l.Quantity(ctx, id)
	assert.Equal(t, 2, stored, "failed reserve must not touch stock")

	qty, err := l.Reserve(ctx, database, id, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestInvalidAmounts(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 5)

	_, err := l.Reserve(ctx, database, id, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = l.Restore(ctx, database, id, -1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.ErrorIs(t, l.Set(ctx, id, -1), ErrInvalidAmount)
}

func TestMissingItem(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()

	_, err := l.Reserve(ctx, database, "missing", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	_, err = l.Restore(ctx, database, "missing", 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, l.Set(ctx, "missing", 4), ErrItemNotFound)
	_, err = l.Quantity(ctx, "missing")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestSet(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 5)

	require.NoError(t, l.Set(ctx, id, 42))
	qty, _ := l.Quantity(ctx, id)
	assert.Equal(t, 42, qty)
}

func TestUpdateWritesFieldsAndQuantityTogether(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 5)

	name, location, qty := "Servo MG996R", "Shelf C", 9
	require.NoError(t, l.Update(ctx, id, store.ItemUpdate{Name: &name, Location: &location}, &qty))

	item, err := store.GetItem(ctx, database, id)
	require.NoError(t, err)
	assert.Equal(t, "Servo MG996R", item.Name)
	assert.Equal(t, "Shelf C", item.Location)
	assert.Equal(t, 9, item.Quantity)

	require.NoError(t, l.Update(ctx, id, store.ItemUpdate{Location: &location}, nil))
	item, _ = store.GetItem(ctx, database, id)
	assert.Equal(t, 9, item.Quantity)

	missing := 1
	assert.ErrorIs(t, l.Update(ctx, "missing", store.ItemUpdate{Name: &name}, &missing), ErrItemNotFound)
}

func TestUpdateRollsBackFieldsWhenQuantityFails(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 5)

	_, err := database.Exec(`CREATE TRIGGER reject_quantity BEFORE UPDATE OF quantity ON inventory_items
		BEGIN SELECT RAISE(ABORT, 'quantity locked'); END`)
	require.NoError(t, err)

	name, qty := "Renamed", 8
	require.Error(t, l.Update(ctx, id, store.ItemUpdate{Name: &name}, &qty))

	item, err := store.GetItem(ctx, database, id)
	require.NoError(t, err)
	assert.Equal(t, "Servo", item.Name)
	assert.Equal(t, 5, item.Quantity)

	negative := -2
	assert.ErrorIs(t, l.Update(ctx, id, store.ItemUpdate{Name: &name}, &negative), ErrInvalidAmount)
	item, _ = store.GetItem(ctx, database, id)
	assert.Equal(t, "Servo", item.Name)
}

func TestConcurrentReservesNeverOversell(t *testing.T) {
	database := db.NewTestDB(t)
	l := New(database)
	ctx := context.Background()
	id := seedItem(t, database, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
	)
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(id)
			defer unlock()
			if _, err := l.Reserve(ctx, database, id, 1); err == nil {
				mu.Lock()
				reserved++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, reserved)
	qty, _ := l.Quantity(ctx, id)
	assert.Equal(t, 0, qty)
}

func TestLockReleasesEntries(t *testing.T) {
	l := New(nil)
	unlock := l.Lock("a")
	unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Empty(t, l.locks)
}
