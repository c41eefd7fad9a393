package lifecycle

import (
	"errors"

	"github.com/aaal/envanter/internal/ledger"
)

var (
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = ledger.ErrInsufficientStock
	ErrDuplicatePending  = errors.New("a pending request for this item already exists")
	ErrAlreadyReviewed   = errors.New("request already reviewed")
	ErrInvalidState      = errors.New("invalid request state")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrUnknownAction     = errors.New("unknown action")
)
