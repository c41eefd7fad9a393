// Package lifecycle drives material requests through review and return,
// keeping each request row and the item's stock in step.
//
//	pending ──approve──▶ approved ──return──▶ approved/pending_return ──confirm──▶ approved/returned
//	   │                     └──return (self_declaration)──────────────────────────▶ approved/returned
//	   └──reject/cancel──▶ rejected
package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

// CancelNote is written as the admin note of a cancelled request.
const CancelNote = "cancelled"

// Actor is the authenticated user performing an operation.
type Actor struct {
	ID   string
	Name string
	Role model.Role
}

// ActorFromUser builds an Actor from a stored user.
func ActorFromUser(u *model.User) Actor {
	return Actor{ID: u.ID, Name: u.DisplayName(), Role: u.Role}
}

// Engine applies request transitions. All mutations are serialized on the
// engine; those touching stock also hold the ledger's item lock for the
// duration of their transaction.
type Engine struct {
	db     *sql.DB
	ledger *ledger.Ledger
	hooks  []Hook
	now    func() time.Time

	mu sync.Mutex
}

// New returns an engine over db that moves stock through l.
func New(db *sql.DB, l *ledger.Ledger, hooks ...Hook) *Engine {
	return &Engine{
		db:     db,
		ledger: l,
		hooks:  hooks,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddHook registers h to run after every committed transition.
func (e *Engine) AddHook(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
}

// Apply dispatches cmd to the matching operation.
func (e *Engine) Apply(ctx context.Context, actor Actor, cmd Command) (*model.MaterialRequest, error) {
	switch cmd.Action {
	case ActionApprove:
		return e.Review(ctx, actor, cmd.RequestID, model.StatusApproved, cmd.Note, cmd.ReturnType)
	case ActionReject:
		return e.Review(ctx, actor, cmd.RequestID, model.StatusRejected, cmd.Note, "")
	case ActionCancel:
		return e.Cancel(ctx, actor, cmd.RequestID)
	case ActionReturn:
		return e.InitiateReturn(ctx, actor, cmd.RequestID)
	case ActionConfirmReturn:
		return e.ConfirmReturn(ctx, actor, cmd.RequestID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, cmd.Action)
	}
}

// CreateRequest files a pending request by actor for quantity units of
// itemID. Stock is checked but not reserved.
func (e *Engine) CreateRequest(ctx context.Context, actor Actor, itemID string, quantity int, reason string) (*model.MaterialRequest, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	item, err := store.GetItem(ctx, e.db, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: item %s", ErrNotFound, itemID)
	}
	if item.Quantity < quantity {
		return nil, fmt.Errorf("%w: %d available", ErrInsufficientStock, item.Quantity)
	}

	dup, err := store.HasPendingRequest(ctx, e.db, actor.ID, itemID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicatePending
	}

	r := &model.MaterialRequest{
		ID:        store.NewID(),
		UserID:    actor.ID,
		UserName:  actor.Name,
		ItemID:    item.ID,
		ItemName:  item.Name,
		Quantity:  quantity,
		Reason:    reason,
		Status:    model.StatusPending,
		CreatedAt: e.now(),
	}
	if err := store.CreateRequest(ctx, e.db, r); err != nil {
		return nil, err
	}

	e.emit(ctx, Event{Kind: model.ActionRequestCreate, Actor: actor, Request: *r, At: r.CreatedAt})
	return r, nil
}

// Review approves or rejects a pending request. Approval reserves stock in
// the same transaction that marks the request approved.
func (e *Engine) Review(ctx context.Context, actor Actor, requestID string, decision model.RequestStatus, note string, returnType model.ReturnType) (*model.MaterialRequest, error) {
	if !model.CanApproveRequests(actor.Role) {
		return nil, ErrForbidden
	}
	if decision != model.StatusApproved && decision != model.StatusRejected {
		return nil, fmt.Errorf("%w: cannot review to %q", ErrInvalidState, decision)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.Status != model.StatusPending {
		return nil, ErrAlreadyReviewed
	}

	now := e.now()
	rv := store.Review{Status: decision, Note: note, ReviewedBy: actor.ID, ReviewedAt: now}

	if decision == model.StatusRejected {
		ok, err := store.MarkReviewed(ctx, e.db, r.ID, rv)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAlreadyReviewed
		}
		return e.finish(ctx, Event{Kind: model.ActionRequestReject, Actor: actor, At: now}, r.ID)
	}

	if returnType == "" {
		returnType = model.ReturnSelfDeclaration
	}
	if !returnType.Valid() {
		return nil, fmt.Errorf("%w: unknown return type %q", ErrInvalidState, returnType)
	}
	rv.ReturnType = returnType

	unlock := e.ledger.Lock(r.ItemID)
	defer unlock()

	var after int
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		after, err = e.ledger.Reserve(ctx, tx, r.ItemID, r.Quantity)
		if errors.Is(err, ledger.ErrItemNotFound) {
			return fmt.Errorf("%w: item %s", ErrNotFound, r.ItemID)
		}
		if err != nil {
			return err
		}

		ok, err := store.MarkReviewed(ctx, tx, r.ID, rv)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyReviewed
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return e.finish(ctx, Event{
		Kind: model.ActionRequestApprove, Actor: actor, At: now,
		StockDelta: -r.Quantity, StockAfter: after,
	}, r.ID)
}

// Cancel withdraws a pending request. Only the requester or an admin may
// cancel; the request ends up rejected with CancelNote.
func (e *Engine) Cancel(ctx context.Context, actor Actor, requestID string) (*model.MaterialRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.ID && !model.IsAdmin(actor.Role) {
		return nil, ErrForbidden
	}
	if r.Status != model.StatusPending {
		return nil, fmt.Errorf("%w: only pending requests can be cancelled", ErrInvalidState)
	}

	now := e.now()
	ok, err := store.MarkReviewed(ctx, e.db, r.ID, store.Review{
		Status:     model.StatusRejected,
		Note:       CancelNote,
		ReviewedBy: actor.ID,
		ReviewedAt: now,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: only pending requests can be cancelled", ErrInvalidState)
	}

	return e.finish(ctx, Event{Kind: model.ActionRequestCancel, Actor: actor, At: now}, r.ID)
}

// InitiateReturn is the requester handing an approved loan back. With a
// self-declared return the loan closes and stock is restored at once;
// admin-checked returns wait for ConfirmReturn.
func (e *Engine) InitiateReturn(ctx context.Context, actor Actor, requestID string) (*model.MaterialRequest, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.ID {
		return nil, ErrForbidden
	}
	if r.Status != model.StatusApproved {
		return nil, fmt.Errorf("%w: request is not approved", ErrInvalidState)
	}
	if r.ReturnStatus != model.ReturnNone {
		return nil, fmt.Errorf("%w: return already %s", ErrInvalidState, r.ReturnStatus)
	}

	now := e.now()
	ev := Event{Kind: model.ActionReturnInitiate, Actor: actor, At: now}

	if r.EffectiveReturnType() == model.ReturnAdminCheck {
		ok, err := store.MarkReturnPending(ctx, e.db, r.ID, now)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: return already in progress", ErrInvalidState)
		}
		return e.finish(ctx, ev, r.ID)
	}

	ev.StockDelta, ev.StockAfter, err = e.closeLoan(ctx, r, now)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, ev, r.ID)
}

// ConfirmReturn closes a loan after an approver checked the returned items.
func (e *Engine) ConfirmReturn(ctx context.Context, actor Actor, requestID string) (*model.MaterialRequest, error) {
	if !model.CanApproveRequests(actor.Role) {
		return nil, ErrForbidden
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	r, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !r.OnLoan() {
		return nil, fmt.Errorf("%w: nothing to return", ErrInvalidState)
	}

	now := e.now()
	ev := Event{Kind: model.ActionReturnConfirm, Actor: actor, At: now}
	ev.StockDelta, ev.StockAfter, err = e.closeLoan(ctx, r, now)
	if err != nil {
		return nil, err
	}
	return e.finish(ctx, ev, r.ID)
}

// closeLoan marks r returned and puts its quantity back. If the item has
// since been deleted the request is still closed and no stock moves.
func (e *Engine) closeLoan(ctx context.Context, r *model.MaterialRequest, now time.Time) (delta, after int, err error) {
	unlock := e.ledger.Lock(r.ItemID)
	defer unlock()

	err = e.inTx(ctx, func(tx *sql.Tx) error {
		ok, err := store.MarkReturned(ctx, tx, r.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: already returned", ErrInvalidState)
		}

		after, err = e.ledger.Restore(ctx, tx, r.ItemID, r.Quantity)
		if errors.Is(err, ledger.ErrItemNotFound) {
			slog.Warn("returned item no longer exists, stock not restored",
				"request", r.ID, "item", r.ItemID, "quantity", r.Quantity)
			return nil
		}
		if err != nil {
			return err
		}
		delta = r.Quantity
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return delta, after, nil
}

// Get returns a request by ID.
func (e *Engine) Get(ctx context.Context, requestID string) (*model.MaterialRequest, error) {
	return e.load(ctx, requestID)
}

// List returns requests matching f, newest first.
func (e *Engine) List(ctx context.Context, f store.RequestFilter) ([]model.MaterialRequest, error) {
	return store.ListRequests(ctx, e.db, f)
}

func (e *Engine) load(ctx context.Context, requestID string) (*model.MaterialRequest, error) {
	r, err := store.GetRequest(ctx, e.db, requestID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("%w: request %s", ErrNotFound, requestID)
	}
	return r, nil
}

func (e *Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// finish re-reads the committed request and hands the event to the hooks.
func (e *Engine) finish(ctx context.Context, ev Event, requestID string) (*model.MaterialRequest, error) {
	r, err := e.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	ev.Request = *r
	e.emit(ctx, ev)
	return r, nil
}

func (e *Engine) emit(ctx context.Context, ev Event) {
	for _, h := range e.hooks {
		h.OnTransition(ctx, ev)
	}
}
