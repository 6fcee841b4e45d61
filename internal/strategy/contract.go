// Package strategy implements the strategy lifecycle contract, its
// execution-facing context, the multi-market coordinator, and the
// reference strategies (spec §4.6, §4.7).
package strategy

import "github.com/quantloop/core/pkg/types"

// Metadata is the pure, static description of a strategy (spec §4.6).
type Metadata struct {
	Name            string
	Version         string
	Description     string
	RequiredParams  []string
}

// Strategy is the polymorphic capability set every strategy implements.
// All hooks are invoked by the coordinator; errors are captured and
// surfaced, never halting the coordinator by default.
type Strategy interface {
	Initialize(ctx *Context) error
	OnMarketTick(marketID types.MarketId, tick types.MarketTick, ctx *Context) error
	OnFill(fill types.Fill, ctx *Context) error
	OnCancel(orderID types.OrderId, ctx *Context) error
	OnTimer(ctx *Context) error
	Shutdown(ctx *Context) error
	Metadata() Metadata
}
