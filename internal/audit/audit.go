// Package audit keeps the append-only activity log.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaal/envanter/internal/lifecycle"
	"github.com/aaal/envanter/internal/model"
	"github.com/aaal/envanter/internal/store"
)

// DefaultLimit caps an unfiltered query.
const DefaultLimit = 100

// Recorder writes activity entries. It doubles as a lifecycle hook.
type Recorder struct {
	db *sql.DB
}

// New returns a recorder writing to db.
func New(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends one entry attributed to actor.
func (r *Recorder) Record(ctx context.Context, action model.LogAction, actor lifecycle.Actor, details string, metadata map[string]any) error {
	return store.InsertLog(ctx, r.db, &model.LogEntry{
		Action:   action,
		UserID:   actor.ID,
		UserName: actor.Name,
		Details:  details,
		Metadata: metadata,
	})
}

// OnTransition logs a committed request transition. A failed write is
// reported but does not undo the transition.
func (r *Recorder) OnTransition(ctx context.Context, ev lifecycle.Event) {
	req := ev.Request
	metadata := map[string]any{
		"requestId": req.ID,
		"itemId":    req.ItemID,
		"quantity":  req.Quantity,
	}
	if ev.StockDelta != 0 {
		metadata["stockDelta"] = ev.StockDelta
		metadata["stockAfter"] = ev.StockAfter
	}
	if req.ReturnType != "" {
		metadata["returnType"] = string(req.ReturnType)
	}
	if req.AdminNote != "" {
		metadata["adminNote"] = req.AdminNote
	}

	err := store.InsertLog(ctx, r.db, &model.LogEntry{
		Action:    ev.Kind,
		UserID:    ev.Actor.ID,
		UserName:  ev.Actor.Name,
		Details:   describe(ev),
		Metadata:  metadata,
		Timestamp: ev.At,
	})
	if err != nil {
		slog.Error("failed to write activity log", "action", ev.Kind, "request", req.ID, "error", err)
	}
}

func describe(ev lifecycle.Event) string {
	req := ev.Request
	switch ev.Kind {
	case model.ActionRequestCreate:
		return fmt.Sprintf("requested %d x %s", req.Quantity, req.ItemName)
	case model.ActionRequestApprove:
		return fmt.Sprintf("approved %s's request for %d x %s", req.UserName, req.Quantity, req.ItemName)
	case model.ActionRequestReject:
		return fmt.Sprintf("rejected %s's request for %s", req.UserName, req.ItemName)
	case model.ActionRequestCancel:
		return fmt.Sprintf("cancelled request for %s", req.ItemName)
	case model.ActionReturnInitiate:
		if req.ReturnStatus == model.ReturnDone {
			return fmt.Sprintf("returned %d x %s", req.Quantity, req.ItemName)
		}
		return fmt.Sprintf("asked to return %d x %s", req.Quantity, req.ItemName)
	case model.ActionReturnConfirm:
		return fmt.Sprintf("confirmed return of %d x %s from %s", req.Quantity, req.ItemName, req.UserName)
	}
	return string(ev.Kind)
}

// Query selects log entries. Without any filter it returns the most recent
// Limit entries (DefaultLimit if Limit is unset).
type Query struct {
	UserID string
	Action model.LogAction
	Since  time.Time
	Until  time.Time
	Limit  int
}

func (q Query) filtered() bool {
	return q.UserID != "" || q.Action != "" || !q.Since.IsZero() || !q.Until.IsZero()
}

// Find returns entries matching q, newest first.
func (r *Recorder) Find(ctx context.Context, q Query) ([]model.LogEntry, error) {
	limit := q.Limit
	if !q.filtered() && limit <= 0 {
		limit = DefaultLimit
	}
	return store.ListLogs(ctx, r.db, store.LogFilter{
		UserID: q.UserID,
		Action: q.Action,
		Since:  q.Since,
		Until:  q.Until,
		Limit:  limit,
	})
}
