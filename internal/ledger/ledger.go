// Package ledger owns the stock counter of inventory items. Every change to
// an item's quantity goes through Reserve, Restore or Set, and none of them
// lets the stored quantity drop below zero.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/aaal/envanter/internal/store"
)

var (
	ErrItemNotFound      = errors.New("item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Ledger serializes stock movements per item.
type Ledger struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*itemLock
}

type itemLock struct {
	mu   sync.Mutex
	refs int
}

// New returns a ledger over the inventory_items table of db.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, locks: make(map[string]*itemLock)}
}

// Lock enters the critical section for itemID and returns the function that
// leaves it. Callers that mutate stock inside their own transaction must take
// the lock before opening the transaction.
func (l *Ledger) Lock(itemID string) func() {
	l.mu.Lock()
	lk, ok := l.locks[itemID]
	if !ok {
		lk = &itemLock{}
		l.locks[itemID] = lk
	}
	lk.refs++
	l.mu.Unlock()

	lk.mu.Lock()
	return func() {
		lk.mu.Unlock()

		l.mu.Lock()
		lk.refs--
		if lk.refs == 0 {
			delete(l.locks, itemID)
		}
		l.mu.Unlock()
	}
}

// Reserve takes amount units of itemID out of stock and returns the new
// quantity. The caller must hold Lock(itemID); q may be a transaction.
func (l *Ledger) Reserve(ctx context.Context, q store.Querier, itemID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	current, found, err := store.GetItemQuantity(ctx, q, itemID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrItemNotFound
	}
	if current < amount {
		return 0, fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, current, amount)
	}

	ok, err := store.AddItemQuantity(ctx, q, itemID, -amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrInsufficientStock
	}
	return current - amount, nil
}

// Restore puts amount units of itemID back into stock and returns the new
// quantity. The caller must hold Lock(itemID); q may be a transaction.
func (l *Ledger) Restore(ctx context.Context, q store.Querier, itemID string, amount int) (int, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidAmount, amount)
	}

	current, found, err := store.GetItemQuantity(ctx, q, itemID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrItemNotFound
	}

	ok, err := store.AddItemQuantity(ctx, q, itemID, amount)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrItemNotFound
	}
	return current + amount, nil
}

// Set overwrites the stock of itemID, for administrative corrections.
func (l *Ledger) Set(ctx context.Context, itemID string, quantity int) error {
	return l.Update(ctx, itemID, store.ItemUpdate{}, &quantity)
}

// Update applies the descriptive changes in upd and, when quantity is not
// nil, overwrites the stock of itemID. Both are written in one transaction
// under the item lock.
func (l *Ledger) Update(ctx context.Context, itemID string, upd store.ItemUpdate, quantity *int) error {
	if quantity != nil && *quantity < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidAmount, *quantity)
	}

	unlock := l.Lock(itemID)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := store.UpdateItem(ctx, tx, itemID, upd)
	if err != nil {
		return err
	}
	if !ok {
		return ErrItemNotFound
	}

	if quantity != nil {
		if _, err := store.SetItemQuantity(ctx, tx, itemID, *quantity); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Quantity returns the current stock of itemID.
func (l *Ledger) Quantity(ctx context.Context, itemID string) (int, error) {
	qty, found, err := store.GetItemQuantity(ctx, l.db, itemID)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, ErrItemNotFound
	}
	return qty, nil
}
