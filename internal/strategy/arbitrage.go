package strategy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

// CrossMarketArbitrage is the reference two-leg arbitrage strategy of spec
// §4.7: it watches two correlated markets and, once their mid prices diverge
// past a threshold in basis points, buys the cheap leg and sells the rich
// leg in equal size.
//
//	spread_bps = |mid_A - mid_B| / min(mid_A, mid_B) * 1e4
//
// Each opportunity gets a correlation id that labels the errors of either
// leg's submission. The id is not attached to the orders themselves, so the
// OMS tracks the two legs as unrelated orders.
type CrossMarketArbitrage struct {
	marketA, marketB types.MarketId
	thresholdBps     decimal.Decimal
	legSize          decimal.Decimal

	lastTickA, lastTickB types.MarketTick
	haveA, haveB         bool

	openCorrelationID string
}

func NewCrossMarketArbitrage(marketA, marketB types.MarketId, thresholdBps, legSize decimal.Decimal) *CrossMarketArbitrage {
	return &CrossMarketArbitrage{
		marketA:      marketA,
		marketB:      marketB,
		thresholdBps: thresholdBps,
		legSize:      legSize,
	}
}

func (a *CrossMarketArbitrage) Initialize(ctx *Context) error { return nil }

func (a *CrossMarketArbitrage) OnMarketTick(marketID types.MarketId, tick types.MarketTick, ctx *Context) error {
	switch marketID {
	case a.marketA:
		a.lastTickA, a.haveA = tick, true
	case a.marketB:
		a.lastTickB, a.haveB = tick, true
	default:
		return nil
	}
	if !a.haveA || !a.haveB {
		return nil
	}

	midA, okA := a.lastTickA.MidPrice()
	midB, okB := a.lastTickB.MidPrice()
	if !okA || !okB {
		return nil
	}

	diff := midA.Sub(midB).Abs()
	minMid := midA
	if midB.LessThan(midA) {
		minMid = midB
	}
	if minMid.IsZero() {
		return nil
	}
	spreadBps := diff.Div(minMid).Mul(decimal.NewFromInt(10000))

	if spreadBps.LessThan(a.thresholdBps) {
		return nil
	}
	if a.openCorrelationID != "" {
		return nil // one opportunity in flight at a time
	}

	cheapMarket, richMarket := a.marketA, a.marketB
	if midB.LessThan(midA) {
		cheapMarket, richMarket = a.marketB, a.marketA
	}

	correlationID := uuid.NewString()
	a.openCorrelationID = correlationID

	buyLeg := &types.Order{
		ID:            types.NewOrderId(),
		ClientOrderID: types.NewClientOrderId(),
		Market:        cheapMarket,
		Side:          types.SideBuy,
		Type:          types.OrderTypeMarket,
		TIF:           types.TIFImmediateOrCancel,
		RequestedSize: a.legSize,
	}
	sellLeg := &types.Order{
		ID:            types.NewOrderId(),
		ClientOrderID: types.NewClientOrderId(),
		Market:        richMarket,
		Side:          types.SideSell,
		Type:          types.OrderTypeMarket,
		TIF:           types.TIFImmediateOrCancel,
		RequestedSize: a.legSize,
	}

	if _, err := ctx.SubmitOrder(context.Background(), buyLeg); err != nil {
		a.openCorrelationID = ""
		return fmt.Errorf("submit buy leg (correlation %s): %w", correlationID, err)
	}
	if _, err := ctx.SubmitOrder(context.Background(), sellLeg); err != nil {
		a.openCorrelationID = ""
		return fmt.Errorf("submit sell leg (correlation %s): %w", correlationID, err)
	}
	return nil
}

func (a *CrossMarketArbitrage) OnFill(fill types.Fill, ctx *Context) error {
	a.openCorrelationID = ""
	return nil
}

func (a *CrossMarketArbitrage) OnCancel(orderID types.OrderId, ctx *Context) error {
	a.openCorrelationID = ""
	return nil
}

func (a *CrossMarketArbitrage) OnTimer(ctx *Context) error { return nil }

func (a *CrossMarketArbitrage) Shutdown(ctx *Context) error { return nil }

func (a *CrossMarketArbitrage) Metadata() Metadata {
	return Metadata{
		Name:           "cross_market_arbitrage",
		Version:        "1.0.0",
		Description:    "two-leg spread capture across correlated markets",
		RequiredParams: []string{"threshold_bps", "leg_size"},
	}
}
