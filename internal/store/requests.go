package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aaal/envanter/internal/model"
)

const requestColumns = `id, user_id, user_name, item_id, item_name, quantity, reason, status,
	admin_note, reviewed_by, reviewed_at, created_at,
	return_type, return_status, return_requested_at, returned_at`

// CreateRequest inserts a pending request. ID and CreatedAt must be set by
// the caller.
func CreateRequest(ctx context.Context, q Querier, r *model.MaterialRequest) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO requests (id, user_id, user_name, item_id, item_name, quantity, reason, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.UserName, r.ItemID, r.ItemName, r.Quantity, r.Reason, string(r.Status), r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	return nil
}

// GetRequest returns a request by ID.
func GetRequest(ctx context.Context, q Querier, id string) (*model.MaterialRequest, error) {
	r, err := scanRequest(q.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting request: %w", err)
	}
	return r, nil
}

// RequestFilter narrows ListRequests. Zero fields match everything.
type RequestFilter struct {
	Status model.RequestStatus
	UserID string
	ItemID string
}

// ListRequests returns requests, newest first.
func ListRequests(ctx context.Context, q Querier, f RequestFilter) ([]model.MaterialRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(f.Status))
	}
	if f.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, f.UserID)
	}
	if f.ItemID != "" {
		query += ` AND item_id = ?`
		args = append(args, f.ItemID)
	}

	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing requests: %w", err)
	}
	defer rows.Close()

	var requests []model.MaterialRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

// HasPendingRequest reports whether the user already has a pending request
// for the item.
func HasPendingRequest(ctx context.Context, q Querier, userID, itemID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM requests WHERE user_id = ? AND item_id = ? AND status = 'pending'`,
		userID, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking pending requests: %w", err)
	}
	return n > 0, nil
}

// Review is the outcome written by MarkReviewed.
type Review struct {
	Status     model.RequestStatus
	Note       string
	ReviewedBy string
	ReviewedAt time.Time
	ReturnType model.ReturnType
}

// MarkReviewed moves a pending request to rv.Status. It reports false if the
// request no longer exists or is no longer pending.
func MarkReviewed(ctx context.Context, q Querier, id string, rv Review) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE requests
		 SET status = ?, admin_note = ?, reviewed_by = ?, reviewed_at = ?, return_type = ?
		 WHERE id = ? AND status = 'pending'`,
		string(rv.Status), nullString(rv.Note), rv.ReviewedBy, rv.ReviewedAt, nullString(string(rv.ReturnType)), id,
	)
	if err != nil {
		return false, fmt.Errorf("reviewing request: %w", err)
	}
	return affected(result)
}

// MarkReturnPending flags an outstanding loan as awaiting return
// confirmation. It reports false unless the request is approved with no
// return in progress.
func MarkReturnPending(ctx context.Context, q Querier, id string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE requests SET return_status = 'pending_return', return_requested_at = ?
		 WHERE id = ? AND status = 'approved' AND return_status IS NULL`,
		at, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking return pending: %w", err)
	}
	return affected(result)
}

// MarkReturned closes a loan. It reports false unless the request is
// approved and not already returned, which keeps a second return from
// restoring stock twice.
func MarkReturned(ctx context.Context, q Querier, id string, at time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE requests SET return_status = 'returned', returned_at = ?,
		     return_requested_at = COALESCE(return_requested_at, ?)
		 WHERE id = ? AND status = 'approved' AND (return_status IS NULL OR return_status != 'returned')`,
		at, at, id,
	)
	if err != nil {
		return false, fmt.Errorf("marking returned: %w", err)
	}
	return affected(result)
}

func scanRequest(row rowScanner) (*model.MaterialRequest, error) {
	r := &model.MaterialRequest{}
	var adminNote, reviewedBy, returnType, returnStatus sql.NullString
	err := row.Scan(&r.ID, &r.UserID, &r.UserName, &r.ItemID, &r.ItemName, &r.Quantity, &r.Reason, &r.Status,
		&adminNote, &reviewedBy, &r.ReviewedAt, &r.CreatedAt,
		&returnType, &returnStatus, &r.ReturnRequestedAt, &r.ReturnedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.AdminNote = adminNote.String
	r.ReviewedBy = reviewedBy.String
	r.ReturnType = model.ReturnType(returnType.String)
	r.ReturnStatus = model.ReturnStatus(returnStatus.String)
	return r, nil
}
