package lifecycle

import (
	"context"
	"time"

	"github.com/aaal/envanter/internal/model"
)

// Event describes a committed transition.
type Event struct {
	Kind    model.LogAction
	Actor   Actor
	Request model.MaterialRequest
	// StockDelta is the change applied to the item's quantity, zero when
	// the transition left stock alone.
	StockDelta int
	// StockAfter is the item's quantity after the change. Only meaningful
	// when StockDelta is non-zero.
	StockAfter int
	At         time.Time
}

// Hook observes committed transitions. Hooks run synchronously after the
// commit and cannot fail the operation that triggered them.
type Hook interface {
	OnTransition(ctx context.Context, ev Event)
}

// HookFunc adapts a function to Hook.
type HookFunc func(ctx context.Context, ev Event)

// OnTransition calls f.
func (f HookFunc) OnTransition(ctx context.Context, ev Event) {
	f(ctx, ev)
}
