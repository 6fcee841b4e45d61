// Package types holds the shared data model for the trading core: identifiers,
// orders, fills, positions, risk context, market ticks and signals.
package types

import "github.com/google/uuid"

// VenueId identifies a trading venue. Opaque wrapper over a string.
type VenueId string

// MarketId identifies a single tradeable market on a venue.
type MarketId string

// OrderId is a universally unique identifier, set by the submitter or, when
// empty, by the execution engine or the backtest port on submission.
type OrderId string

// ClientOrderId is caller-chosen and must be unique per venue; used for
// idempotency and reconciliation across adapter retries.
type ClientOrderId string

// NewOrderId generates a fresh, universally unique order id.
func NewOrderId() OrderId {
	return OrderId(uuid.NewString())
}

// NewClientOrderId generates a fresh client order id when the caller has no
// natural idempotency key of its own.
func NewClientOrderId() ClientOrderId {
	return ClientOrderId(uuid.NewString())
}
