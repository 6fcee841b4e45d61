package types

import "github.com/shopspring/decimal"

// RiskContext is constructed fresh per submission attempt (spec §3).
type RiskContext struct {
	MarketID         MarketId
	CurrentPosition  decimal.Decimal // signed
	ProposedSizeDelta decimal.Decimal // signed
	InventoryValueUSD decimal.Decimal // sum of |size*price| across all markets
}

// PolicyKind discriminates the tagged PolicyRule variant.
type PolicyKind string

const (
	PolicyPositionLimit PolicyKind = "PositionLimit"
	PolicyInventoryLimit PolicyKind = "InventoryLimit"
	PolicyKillSwitch    PolicyKind = "KillSwitch"
	PolicyVarLimit      PolicyKind = "VarLimit"
	PolicyGreeksLimit   PolicyKind = "GreeksLimit"
)

// PolicyRule is the tagged variant of spec §3. Only the fields relevant to
// Kind are populated; zero values on the rest are ignored.
type PolicyRule struct {
	Kind PolicyKind

	// PositionLimit
	Market     MarketId // empty means global scope
	MaxAbsSize decimal.Decimal

	// InventoryLimit
	MaxNotionalUSD decimal.Decimal

	// KillSwitch
	Enabled bool

	// VarLimit
	MaxVarUSD    decimal.Decimal
	Confidence   float64
	HorizonDays  float64

	// GreeksLimit
	MaxDelta decimal.Decimal
	MaxGamma decimal.Decimal
	MaxVega  decimal.Decimal
}

// RiskDecision is the output of a policy evaluation.
type RiskDecision struct {
	Allowed          bool
	ViolatedPolicies []string
}

// MarketTick is a normalized order-book snapshot (spec §3).
type MarketTick struct {
	Market          MarketId
	Bids            []PriceLevel // ordered best-first
	Asks            []PriceLevel
	ServerTimestamp int64 // unix millis, venue-reported
	RecvTimestamp   int64 // unix millis, local receipt
}

// PriceLevel is one (price, size) entry of a book side.
type PriceLevel struct {
	Price decimal.Decimal
	Size  decimal.Decimal
}

// MidPrice returns (best_bid+best_ask)/2 when both sides exist.
func (t *MarketTick) MidPrice() (decimal.Decimal, bool) {
	if len(t.Bids) == 0 || len(t.Asks) == 0 {
		return decimal.Zero, false
	}
	return t.Bids[0].Price.Add(t.Asks[0].Price).Div(decimal.NewFromInt(2)), true
}

// SignalType is the directional classification of a Signal.
type SignalType string

const (
	SignalLong    SignalType = "long"
	SignalShort   SignalType = "short"
	SignalNeutral SignalType = "neutral"
	SignalClose   SignalType = "close"
)

// Signal is produced by the signal library / reference strategies.
type Signal struct {
	TimestampMs int64
	Market      MarketId
	Type        SignalType
	Strength    float64 // in [-1, 1]
	Confidence  float64 // in [0, 1]
	Metadata    map[string]interface{}
}
