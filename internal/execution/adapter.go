// Package execution implements the venue adapter contract, the Polymarket
// reference adapter, the order tracker (OMS), the order validator, the
// per-venue rate limiter and the execution engine that orchestrates them
// (spec §4.4, §4.5).
package execution

import (
	"context"

	"github.com/quantloop/core/pkg/types"
)

// OrderAck is returned by a successful place/modify call: the venue-assigned
// order id and the status the venue observed at acceptance time.
type OrderAck struct {
	VenueOrderID string
	Status       types.OrderStatus
}

// CancelAck is returned by a successful cancel call.
type CancelAck struct {
	Status types.OrderStatus
}

// Adapter is the polymorphic venue contract (spec §4.4). All operations are
// asynchronous; suspension only occurs at the network I/O boundary (spec §5).
type Adapter interface {
	PlaceOrder(ctx context.Context, order *types.Order) (OrderAck, error)
	CancelOrder(ctx context.Context, orderID types.OrderId) (CancelAck, error)
	ModifyOrder(ctx context.Context, orderID types.OrderId, newPrice, newSize *string) (OrderAck, error)
	GetOrderStatus(ctx context.Context, orderID types.OrderId) (types.OrderStatus, error)
	GetOpenOrders(ctx context.Context) ([]types.Order, error)
	HealthCheck(ctx context.Context) (bool, error)
	VenueID() types.VenueId
}
