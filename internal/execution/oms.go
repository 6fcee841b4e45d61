package execution

import (
	"sync"
	"time"

	"github.com/quantloop/core/pkg/types"
	"go.uber.org/zap"
)

// legalTransitions enumerates the lifecycle state machine of spec §4.4.
// Terminal states have no outgoing entries.
var legalTransitions = map[types.OrderStatus]map[types.OrderStatus]bool{
	types.OrderStatusPending: {
		types.OrderStatusSubmitting: true,
	},
	types.OrderStatusSubmitting: {
		types.OrderStatusWorking:  true,
		types.OrderStatusRejected: true,
	},
	types.OrderStatusWorking: {
		types.OrderStatusPartiallyFilled: true,
		types.OrderStatusFilled:          true,
		types.OrderStatusCancelling:      true,
		types.OrderStatusCancelled:       true,
		types.OrderStatusExpired:         true,
	},
	types.OrderStatusPartiallyFilled: {
		types.OrderStatusPartiallyFilled: true,
		types.OrderStatusFilled:          true,
		types.OrderStatusCancelling:      true,
		types.OrderStatusCancelled:       true,
		types.OrderStatusExpired:         true,
	},
	types.OrderStatusCancelling: {
		types.OrderStatusCancelled: true,
		types.OrderStatusFilled:    true, // cancel races a fill; fill wins
	},
}

// OMS is the single mutable owner of order state (spec §4.4, §5). External
// readers access through snapshot queries only.
type OMS struct {
	mu     sync.RWMutex
	logger *zap.Logger

	orders   map[types.OrderId]*types.Order
	seenFills map[string]bool // fill id -> seen, for idempotent record_fill
}

// NewOMS constructs an empty order tracker.
func NewOMS(logger *zap.Logger) *OMS {
	return &OMS{
		logger:    logger.Named("oms"),
		orders:    make(map[types.OrderId]*types.Order),
		seenFills: make(map[string]bool),
	}
}

// TrackOrder begins tracking a new order. Invariant: not already tracked;
// initial status must be Pending or Submitting.
func (o *OMS) TrackOrder(order *types.Order) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.orders[order.ID]; exists {
		return types.NewExecError(types.ErrInvalidOrderState, "order already tracked")
	}
	if order.Status != types.OrderStatusPending && order.Status != types.OrderStatusSubmitting {
		return types.NewExecError(types.ErrInvalidOrderState, "initial status must be Pending or Submitting")
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	o.orders[order.ID] = order
	return nil
}

// GetOrder returns a point-in-time copy of the tracked order, or nil.
func (o *OMS) GetOrder(id types.OrderId) *types.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ord, ok := o.orders[id]
	if !ok {
		return nil
	}
	cp := *ord
	return &cp
}

// GetFills returns the fills recorded against an order.
func (o *OMS) GetFills(id types.OrderId) []types.Fill {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ord, ok := o.orders[id]
	if !ok {
		return nil
	}
	out := make([]types.Fill, len(ord.Fills))
	copy(out, ord.Fills)
	return out
}

// GetAllOrders returns a snapshot of every tracked order.
func (o *OMS) GetAllOrders() []types.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.Order, 0, len(o.orders))
	for _, ord := range o.orders {
		out = append(out, *ord)
	}
	return out
}

// GetActiveOrders returns every order not in a terminal state.
func (o *OMS) GetActiveOrders() []types.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.Order, 0)
	for _, ord := range o.orders {
		if !ord.Status.Terminal() {
			out = append(out, *ord)
		}
	}
	return out
}

// GetTerminalOrders returns every order in a terminal state.
func (o *OMS) GetTerminalOrders() []types.Order {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]types.Order, 0)
	for _, ord := range o.orders {
		if ord.Status.Terminal() {
			out = append(out, *ord)
		}
	}
	return out
}

// Count returns the number of tracked orders.
func (o *OMS) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.orders)
}

// UpdateStatus enforces the lifecycle transitions; fails with
// InvalidOrderState on illegal transitions, including any transition out of
// a terminal state.
func (o *OMS) UpdateStatus(id types.OrderId, newStatus types.OrderStatus) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ord, ok := o.orders[id]
	if !ok {
		return types.NewExecError(types.ErrOrderNotFound, "order not tracked")
	}
	if ord.Status.Terminal() {
		return types.NewExecError(types.ErrInvalidOrderState, "order already in terminal state")
	}
	if ord.Status == newStatus {
		return nil
	}
	allowed := legalTransitions[ord.Status]
	if allowed == nil || !allowed[newStatus] {
		return types.NewExecError(types.ErrInvalidOrderState, "illegal transition "+string(ord.Status)+" -> "+string(newStatus))
	}
	ord.Status = newStatus
	ord.UpdatedAt = time.Now()
	return nil
}

// RecordFill atomically appends a fill, recomputes filled size and VWAP, and
// transitions status to PartiallyFilled or Filled. Duplicate fill ids
// (same fill.ID) are ignored for idempotency.
func (o *OMS) RecordFill(id types.OrderId, fill types.Fill) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	ord, ok := o.orders[id]
	if !ok {
		return types.NewExecError(types.ErrOrderNotFound, "order not tracked")
	}
	if o.seenFills[fill.ID] {
		return nil // idempotent no-op
	}
	if ord.Status.Terminal() && ord.Status != types.OrderStatusFilled {
		return types.NewExecError(types.ErrInvalidOrderState, "cannot fill a terminal order")
	}

	o.seenFills[fill.ID] = true
	ord.Fills = append(ord.Fills, fill)

	prevNotional := ord.AvgFillPrice.Mul(ord.FilledSize)
	ord.FilledSize = ord.FilledSize.Add(fill.Size)
	if !ord.FilledSize.IsZero() {
		ord.AvgFillPrice = prevNotional.Add(fill.Price.Mul(fill.Size)).Div(ord.FilledSize)
	}
	ord.UpdatedAt = fill.Timestamp

	if ord.FilledSize.GreaterThanOrEqual(ord.RequestedSize) {
		ord.Status = types.OrderStatusFilled
	} else if ord.Status != types.OrderStatusCancelling {
		ord.Status = types.OrderStatusPartiallyFilled
	}

	return nil
}

// RemoveOrder drops an order from tracking entirely (e.g. after external
// archival); it no longer appears in any query.
func (o *OMS) RemoveOrder(id types.OrderId) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.orders, id)
}

// ClearTerminalOrders removes every order in a terminal state, bounding
// memory for the in-memory-only OMS (Non-goal: no persistence).
func (o *OMS) ClearTerminalOrders() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for id, ord := range o.orders {
		if ord.Status.Terminal() {
			delete(o.orders, id)
			n++
		}
	}
	return n
}

// ExpireStale transitions every active order older than maxAge to Expired,
// mirroring the teacher's MonitorOrders sweep (order_manager.go).
func (o *OMS) ExpireStale(maxAge time.Duration) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	n := 0
	for _, ord := range o.orders {
		if ord.Status.Terminal() {
			continue
		}
		if ord.UpdatedAt.Before(cutoff) {
			ord.Status = types.OrderStatusExpired
			ord.UpdatedAt = time.Now()
			n++
		}
	}
	return n
}
