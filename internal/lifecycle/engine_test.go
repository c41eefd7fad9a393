package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/aaal/envanter/internal/db"
	"github.com/aaal/envanter/internal/ledger"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

var (
	student = Actor{ID: "u-student", Name: "Ali Veli", Role: model.RoleUser}
	other   = Actor{ID: "u-other", Name: "Can Demir", Role: model.RoleUser}
	advisor = Actor{ID: "u-advisor", Name: "Ayse Kaya", Role: model.RoleAdvisor}
	admin   = Actor{ID: "u-admin", Name: "Admin User", Role: model.RoleAdmin}
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) OnTransition(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []model.LogAction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.LogAction
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

func setup(t *testing.T) (*Engine, *sql.DB, *recorder) {
	t.Helper()
	database := db.NewTestDB(t)
	rec := &recorder{}
	return New(database, ledger.New(database), rec), database, rec
}

func seedItem(t *testing.T, database *sql.DB, quantity int) string {
	t.Helper()
	item, err := store.CreateItem(context.Background(), database, &model.InventoryItem{
		Name: "Servo Motor", Category: "Motors", Quantity: quantity, CreatedBy: admin.ID,
	})
	require.NoError(t, err)
	return item.ID
}

func stock(t *testing.T, database *sql.DB, itemID string) int {
	t.Helper()
	qty, found, err := store.GetItemQuantity(context.Background(), database, itemID)
	require.NoError(t, err)
	require.True(t, found)
	return qty
}

func TestWorkedExampleSelfDeclaration(t *testing.T) {
	e, database, rec := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 10)

	r, err := e.CreateRequest(ctx, student, itemID, 3, "robot arm")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, r.Status)
	assert.Equal(t, "Servo Motor", r.ItemName)
	assert.Equal(t, "Ali Veli", r.UserName)
	assert.Equal(t, 10, stock(t, database, itemID), "creation must not reserve")

	r, err = e.Apply(ctx, advisor, Command{RequestID: r.ID, Action: ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, r.Status)
	assert.Equal(t, model.ReturnSelfDeclaration, r.ReturnType)
	assert.Equal(t, advisor.ID, r.ReviewedBy)
	assert.NotNil(t, r.ReviewedAt)
	assert.Equal(t, 7, stock(t, database, itemID))

	_, err = e.Apply(ctx, advisor, Command{RequestID: r.ID, Action: ActionApprove})
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 7, stock(t, database, itemID))

	r, err = e.Apply(ctx, student, Command{RequestID: r.ID, Action: ActionReturn})
	require.NoError(t, err)
	assert.Equal(t, model.ReturnDone, r.ReturnStatus)
	assert.NotNil(t, r.ReturnedAt)
	assert.Equal(t, 10, stock(t, database, itemID))

	_, err = e.InitiateReturn(ctx, student, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = e.ConfirmReturn(ctx, advisor, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 10, stock(t, database, itemID))

	assert.Equal(t, []model.LogAction{
		model.ActionRequestCreate, model.ActionRequestApprove, model.ActionReturnInitiate,
	}, rec.kinds())
	assert.Equal(t, -3, rec.events[1].StockDelta)
	assert.Equal(t, 7, rec.events[1].StockAfter)
	assert.Equal(t, 3, rec.events[2].StockDelta)
}

func TestAdminCheckReturnNeedsConfirmation(t *testing.T) {
	e, database, rec := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 5)

	r, err := e.CreateRequest(ctx, student, itemID, 2, "")
	require.NoError(t, err)
	_, err = e.Review(ctx, admin, r.ID, model.StatusApproved, "check cables", model.ReturnAdminCheck)
	require.NoError(t, err)
	assert.Equal(t, 3, stock(t, database, itemID))

	r, err = e.InitiateReturn(ctx, student, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnPending, r.ReturnStatus)
	assert.NotNil(t, r.ReturnRequestedAt)
	assert.Equal(t, 3, stock(t, database, itemID), "stock waits for confirmation")

	_, err = e.InitiateReturn(ctx, student, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = e.ConfirmReturn(ctx, student, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	r, err = e.ConfirmReturn(ctx, advisor, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnDone, r.ReturnStatus)
	assert.Equal(t, 5, stock(t, database, itemID))

	_, err = e.ConfirmReturn(ctx, advisor, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 5, stock(t, database, itemID))

	assert.Len(t, rec.events, 4)
}

func TestConfirmReturnOfOutstandingSelfDeclaredLoan(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 4)

	r, _ := e.CreateRequest(ctx, student, itemID, 4, "")
	_, err := e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, stock(t, database, itemID))

	r, err = e.ConfirmReturn(ctx, advisor, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnDone, r.ReturnStatus)
	assert.Equal(t, 4, stock(t, database, itemID))
}

func TestConfirmReturnAfterItemDeleted(t *testing.T) {
	e, database, rec := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 4)

	r, _ := e.CreateRequest(ctx, student, itemID, 1, "")
	e.Review(ctx, advisor, r.ID, model.StatusApproved, "", model.ReturnAdminCheck)
	e.InitiateReturn(ctx, student, r.ID)

	_, err := store.DeleteItem(ctx, database, itemID)
	require.NoError(t, err)

	r, err = e.ConfirmReturn(ctx, advisor, r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReturnDone, r.ReturnStatus)

	last := rec.events[len(rec.events)-1]
	assert.Equal(t, model.ActionReturnConfirm, last.Kind)
	assert.Zero(t, last.StockDelta)
}

func TestCreateRequestValidation(t *testing.T) {
	e, database, rec := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 3)

	_, err := e.CreateRequest(ctx, student, itemID, 0, "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = e.CreateRequest(ctx, student, "missing", 1, "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.CreateRequest(ctx, student, itemID, 4, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = e.CreateRequest(ctx, student, itemID, 1, "")
	require.NoError(t, err)
	_, err = e.CreateRequest(ctx, student, itemID, 1, "")
	assert.ErrorIs(t, err, ErrDuplicatePending)

	_, err = e.CreateRequest(ctx, other, itemID, 1, "")
	assert.NoError(t, err, "another user may request the same item")

	assert.Len(t, rec.events, 2)
}

func TestReviewChecks(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 3)
	r, _ := e.CreateRequest(ctx, student, itemID, 2, "")

	_, err := e.Review(ctx, student, r.ID, model.StatusApproved, "", "")
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.Review(ctx, advisor, "missing", model.StatusApproved, "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "courier")
	assert.ErrorIs(t, err, ErrInvalidState)

	store.SetItemQuantity(ctx, database, itemID, 1)
	_, err = e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	got, _ := e.Get(ctx, r.ID)
	assert.Equal(t, model.StatusPending, got.Status, "failed approval leaves request pending")
	assert.Equal(t, 1, stock(t, database, itemID))

	got, err = e.Review(ctx, advisor, r.ID, model.StatusRejected, "not now", "")
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, "not now", got.AdminNote)
	assert.Empty(t, got.ReturnType)
	assert.Equal(t, 1, stock(t, database, itemID))

	_, err = e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "")
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestApproveDeletedItem(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 3)
	r, _ := e.CreateRequest(ctx, student, itemID, 1, "")

	store.DeleteItem(ctx, database, itemID)

	_, err := e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "")
	assert.ErrorIs(t, err, ErrNotFound)

	got, _ := e.Get(ctx, r.ID)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestCancel(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 3)
	r, _ := e.CreateRequest(ctx, student, itemID, 1, "")

	_, err := e.Cancel(ctx, other, r.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.Cancel(ctx, student, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := e.Apply(ctx, student, Command{RequestID: r.ID, Action: ActionCancel})
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, got.Status)
	assert.Equal(t, CancelNote, got.AdminNote)

	_, err = e.Cancel(ctx, student, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState)

	// A cancelled request frees the slot for a new one.
	r2, err := e.CreateRequest(ctx, student, itemID, 1, "")
	require.NoError(t, err)
	_, err = e.Cancel(ctx, admin, r2.ID)
	assert.NoError(t, err, "admins may cancel any pending request")
}

func TestInitiateReturnChecks(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 3)
	r, _ := e.CreateRequest(ctx, student, itemID, 1, "")

	_, err := e.InitiateReturn(ctx, student, r.ID)
	assert.ErrorIs(t, err, ErrInvalidState, "pending requests cannot be returned")

	e.Review(ctx, advisor, r.ID, model.StatusApproved, "", "")

	_, err = e.InitiateReturn(ctx, advisor, r.ID)
	assert.ErrorIs(t, err, ErrForbidden, "only the requester returns")
}

func TestApplyUnknownAction(t *testing.T) {
	e, _, _ := setup(t)
	_, err := e.Apply(context.Background(), admin, Command{RequestID: "x", Action: Action(99)})
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestParseAction(t *testing.T) {
	for _, a := range []Action{ActionApprove, ActionReject, ActionCancel, ActionReturn, ActionConfirmReturn} {
		got, err := ParseAction(a.String())
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseAction("delete")
	assert.True(t, errors.Is(err, ErrUnknownAction))
}

func TestList(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemA := seedItem(t, database, 3)
	itemB := seedItem(t, database, 3)

	e.CreateRequest(ctx, student, itemA, 1, "")
	e.CreateRequest(ctx, student, itemB, 1, "")
	e.CreateRequest(ctx, other, itemA, 1, "")

	mine, err := e.List(ctx, store.RequestFilter{UserID: student.ID})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	forA, _ := e.List(ctx, store.RequestFilter{ItemID: itemA})
	assert.Len(t, forA, 2)
}

func TestConcurrentApprovalsNeverOversell(t *testing.T) {
	e, database, _ := setup(t)
	ctx := context.Background()
	itemID := seedItem(t, database, 5)

	var ids []string
	for i := 0; i < 8; i++ {
		u := Actor{ID: store.NewID(), Name: "Student", Role: model.RoleUser}
		r, err := e.CreateRequest(ctx, u, itemID, 2, "")
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	var (
		mu       sync.Mutex
		approved int
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error {
			_, err := e.Review(gctx, advisor, id, model.StatusApproved, "", "")
			if errors.Is(err, ErrInsufficientStock) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			approved++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 2, approved)
	assert.Equal(t, 1, stock(t, database, itemID))
}
