package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType distinguishes execution style.
type OrderType string

const (
	OrderTypeLimit    OrderType = "limit"
	OrderTypeMarket   OrderType = "market"
	OrderTypePostOnly OrderType = "post_only"
)

// TimeInForce constrains how long an order rests on the book.
type TimeInForce string

const (
	TIFGoodTillCancel TimeInForce = "gtc"
	TIFImmediateOrCancel TimeInForce = "ioc"
	TIFFillOrKill TimeInForce = "fok"
)

// OrderStatus is a state in the lifecycle machine of spec §4.4.
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusSubmitting     OrderStatus = "submitting"
	OrderStatusWorking        OrderStatus = "working"
	OrderStatusPartiallyFilled OrderStatus = "partially_filled"
	OrderStatusFilled         OrderStatus = "filled"
	OrderStatusCancelling     OrderStatus = "cancelling"
	OrderStatusCancelled      OrderStatus = "cancelled"
	OrderStatusRejected       OrderStatus = "rejected"
	OrderStatusExpired        OrderStatus = "expired"
)

// Terminal reports whether the status is absorbing: Filled, Cancelled,
// Rejected, Expired. No further transition is legal once terminal.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return true
	default:
		return false
	}
}

// LiquidityTag marks whether a fill added or removed book liquidity.
type LiquidityTag string

const (
	LiquidityMaker LiquidityTag = "maker"
	LiquidityTaker LiquidityTag = "taker"
)

// Order is exclusively owned by the OMS once tracked (spec §3).
type Order struct {
	ID            OrderId
	ClientOrderID ClientOrderId
	VenueOrderID  string // filled in on ack, empty until then
	Venue         VenueId
	Market        MarketId
	Side          OrderSide
	Type          OrderType
	TIF           TimeInForce

	Price       *decimal.Decimal // required iff Limit/PostOnly, forbidden iff Market
	RequestedSize decimal.Decimal
	FilledSize    decimal.Decimal
	AvgFillPrice  decimal.Decimal

	Status OrderStatus

	Fills []Fill

	CreatedAt time.Time
	UpdatedAt time.Time
}

// RemainingSize is RequestedSize - FilledSize, never negative by invariant.
func (o *Order) RemainingSize() decimal.Decimal {
	return o.RequestedSize.Sub(o.FilledSize)
}

// Fill is an immutable record appended to its parent order.
type Fill struct {
	ID        string // fill id, used for idempotent de-duplication
	OrderID   OrderId
	Price     decimal.Decimal
	Size      decimal.Decimal
	Fee       decimal.Decimal
	FeeCurrency string
	Liquidity LiquidityTag
	Timestamp time.Time
}

// Position is derived entirely from fills; there is no independent source
// of truth (spec §3).
type Position struct {
	Market          MarketId
	Size            decimal.Decimal // signed
	AvgEntryPrice   decimal.Decimal
	InvestedCapital decimal.Decimal
	RealizedPnL     decimal.Decimal
}
