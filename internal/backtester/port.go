// Package backtester implements the deterministic event-driven backtest
// engine of spec §4.9 (P). The live adapter is replaced by an in-process
// fill simulator driven by recorded ticks; the strategy contract, context,
// and coordinator are reused unchanged from internal/strategy.
package backtester

import (
	"context"
	"fmt"
	"sync"

	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/internal/strategy"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

// FeeSchedule is the fixed maker/taker fee schedule for a backtest run.
type FeeSchedule struct {
	MakerBps decimal.Decimal
	TakerBps decimal.Decimal
}

// SlippageConfig controls fill simulation (spec §4.9).
type SlippageConfig struct {
	MarketSlippageBps    decimal.Decimal
	LimitFillProbability float64 // [0,1], applied when a resting limit is merely touched, not crossed
}

// Trade is one completed fill recorded by the simulator, independent of the
// order it partially or fully filled.
type Trade struct {
	StrategyID string
	OrderID    types.OrderId
	Market     types.MarketId
	Side       types.OrderSide
	Price      decimal.Decimal
	Size       decimal.Decimal
	Fee        decimal.Decimal
	Liquidity  types.LiquidityTag
	Timestamp  int64 // unix millis, from the triggering tick
}

// Port is the shared in-process fill simulator backing every strategy's
// ExecutionPort during a backtest run. One Port instance serves all
// strategies registered with the run's coordinator.
type Port struct {
	mu sync.Mutex

	fees     FeeSchedule
	slippage SlippageConfig
	rng      *risk.SeededRNG
	sim      *risk.Simulator

	currentTick map[types.MarketId]types.MarketTick
	currentTime int64

	resting map[types.OrderId]*restingOrder

	trades []Trade

	// onFill is invoked synchronously whenever a fill is generated, so the
	// owning engine can route it back through the strategy contract
	// (spec §4.9: "at each fill, dispatch on_fill").
	onFill func(strategyID string, fill types.Fill)
}

type restingOrder struct {
	strategyID string
	order      *types.Order
}

// NewPort constructs a fill simulator seeded for bit-identical determinism
// across runs given the same seed (spec §4.9, §8).
func NewPort(fees FeeSchedule, slippage SlippageConfig, seed int64) *Port {
	return &Port{
		fees:        fees,
		slippage:    slippage,
		rng:         risk.NewSeededRNG(seed),
		sim:         risk.NewSimulator(),
		currentTick: make(map[types.MarketId]types.MarketTick),
		resting:     make(map[types.OrderId]*restingOrder),
	}
}

// StrategyPort binds the shared Port to one strategy id, satisfying
// strategy.ExecutionPort without every strategy needing to know it is
// running against a simulator rather than a live venue.
type StrategyPort struct {
	strategyID string
	port       *Port
}

// ForStrategy returns an ExecutionPort bound to strategyID.
func (p *Port) ForStrategy(strategyID string) *StrategyPort {
	return &StrategyPort{strategyID: strategyID, port: p}
}

func (sp *StrategyPort) SubmitOrder(ctx context.Context, order *types.Order) (strategy.VenueAck, error) {
	return sp.port.submit(sp.strategyID, order)
}

func (sp *StrategyPort) CancelOrder(ctx context.Context, orderID types.OrderId) error {
	return sp.port.cancel(orderID)
}

func (sp *StrategyPort) GetPosition(market types.MarketId) types.Position {
	for _, p := range sp.port.sim.Snapshot() {
		if p.Market == market {
			return p
		}
	}
	return types.Position{Market: market}
}

func (sp *StrategyPort) GetActiveOrders() []types.Order {
	return sp.port.activeOrders()
}

func (p *Port) advanceTick(market types.MarketId, tick types.MarketTick) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.currentTick[market] = tick
	p.currentTime = tick.RecvTimestamp
	p.matchRestingLocked(market, tick)
}

func (p *Port) submit(strategyID string, order *types.Order) (strategy.VenueAck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if order.ID == "" {
		order.ID = types.NewOrderId()
	}
	order.Status = types.OrderStatusWorking

	tick, haveTick := p.currentTick[order.Market]

	switch order.Type {
	case types.OrderTypeMarket:
		if !haveTick {
			return strategy.VenueAck{}, fmt.Errorf("no market data yet for %s", order.Market)
		}
		p.fillMarketLocked(strategyID, order, tick)
		return strategy.VenueAck{VenueOrderID: string(order.ID), Status: order.Status}, nil
	default:
		p.resting[order.ID] = &restingOrder{strategyID: strategyID, order: order}
		if haveTick {
			p.tryFillRestingLocked(strategyID, order, tick)
		}
		return strategy.VenueAck{VenueOrderID: string(order.ID), Status: order.Status}, nil
	}
}

func (p *Port) cancel(orderID types.OrderId) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.resting[orderID]
	if !ok {
		return nil
	}
	r.order.Status = types.OrderStatusCancelled
	delete(p.resting, orderID)
	return nil
}

func (p *Port) activeOrders() []types.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.Order, 0, len(p.resting))
	for _, r := range p.resting {
		out = append(out, *r.order)
	}
	return out
}

// fillMarketLocked fills immediately at the opposing best plus slippage,
// tagged Taker (spec §4.9).
func (p *Port) fillMarketLocked(strategyID string, order *types.Order, tick types.MarketTick) {
	var best decimal.Decimal
	var ok bool
	if order.Side == types.SideBuy {
		if len(tick.Asks) > 0 {
			best, ok = tick.Asks[0].Price, true
		}
	} else {
		if len(tick.Bids) > 0 {
			best, ok = tick.Bids[0].Price, true
		}
	}
	if !ok {
		order.Status = types.OrderStatusRejected
		return
	}

	slip := best.Mul(p.slippage.MarketSlippageBps).Div(decimal.NewFromInt(10000))
	var fillPrice decimal.Decimal
	if order.Side == types.SideBuy {
		fillPrice = best.Add(slip)
	} else {
		fillPrice = best.Sub(slip)
	}

	p.applyFillLocked(strategyID, order, fillPrice, order.RemainingSize(), types.LiquidityTaker, tick.RecvTimestamp)
}

// tryFillRestingLocked applies spec §4.9's limit-order fill rule to a
// single order against the latest tick.
func (p *Port) tryFillRestingLocked(strategyID string, order *types.Order, tick types.MarketTick) {
	if order.Price == nil || order.RemainingSize().IsZero() {
		return
	}
	limit := *order.Price

	if order.Side == types.SideBuy {
		if len(tick.Asks) == 0 {
			return
		}
		bestAsk := tick.Asks[0].Price
		if bestAsk.LessThanOrEqual(limit) {
			fillPrice := decimal.Min(limit, bestAsk)
			liquidity := types.LiquidityMaker
			if bestAsk.Equal(limit) {
				liquidity = types.LiquidityTaker
			}
			size := decimal.Min(order.RemainingSize(), tick.Asks[0].Size)
			p.applyFillLocked(strategyID, order, fillPrice, size, liquidity, tick.RecvTimestamp)
			return
		}
		if p.touchesWithoutCrossing(bestAsk, limit, true) && p.rng.Float64() < p.slippage.LimitFillProbability {
			size := decimal.Min(order.RemainingSize(), tick.Asks[0].Size)
			p.applyFillLocked(strategyID, order, limit, size, types.LiquidityMaker, tick.RecvTimestamp)
		}
		return
	}

	// Sell side, symmetric.
	if len(tick.Bids) == 0 {
		return
	}
	bestBid := tick.Bids[0].Price
	if bestBid.GreaterThanOrEqual(limit) {
		fillPrice := decimal.Max(limit, bestBid)
		liquidity := types.LiquidityMaker
		if bestBid.Equal(limit) {
			liquidity = types.LiquidityTaker
		}
		size := decimal.Min(order.RemainingSize(), tick.Bids[0].Size)
		p.applyFillLocked(strategyID, order, fillPrice, size, liquidity, tick.RecvTimestamp)
		return
	}
	if p.touchesWithoutCrossing(bestBid, limit, false) && p.rng.Float64() < p.slippage.LimitFillProbability {
		size := decimal.Min(order.RemainingSize(), tick.Bids[0].Size)
		p.applyFillLocked(strategyID, order, limit, size, types.LiquidityMaker, tick.RecvTimestamp)
	}
}

// touchesWithoutCrossing reports whether the book just reached the resting
// limit price without fully crossing it, a proxy for "price touches" in
// spec §4.9's probabilistic fill clause.
func (p *Port) touchesWithoutCrossing(best, limit decimal.Decimal, isBuy bool) bool {
	if isBuy {
		return best.Equal(limit)
	}
	return best.Equal(limit)
}

func (p *Port) matchRestingLocked(market types.MarketId, tick types.MarketTick) {
	for id, r := range p.resting {
		if r.order.Market != market {
			continue
		}
		p.tryFillRestingLocked(r.strategyID, r.order, tick)
		if r.order.RemainingSize().IsZero() {
			delete(p.resting, id)
		}
	}
}

func (p *Port) applyFillLocked(strategyID string, order *types.Order, price, size decimal.Decimal, liquidity types.LiquidityTag, timestampMs int64) {
	if size.IsZero() {
		return
	}

	feeBps := p.fees.TakerBps
	if liquidity == types.LiquidityMaker {
		feeBps = p.fees.MakerBps
	}
	notional := price.Mul(size)
	fee := notional.Mul(feeBps).Div(decimal.NewFromInt(10000))

	order.FilledSize = order.FilledSize.Add(size)
	if order.FilledSize.GreaterThanOrEqual(order.RequestedSize) {
		order.Status = types.OrderStatusFilled
	} else {
		order.Status = types.OrderStatusPartiallyFilled
	}

	fillID := fmt.Sprintf("%s-%d", order.ID, len(order.Fills))
	fill := types.Fill{
		ID:        fillID,
		OrderID:   order.ID,
		Price:     price,
		Size:      size,
		Fee:       fee,
		Liquidity: liquidity,
	}
	order.Fills = append(order.Fills, fill)

	delta := size
	if order.Side == types.SideSell {
		delta = size.Neg()
	}
	_ = p.sim.UpdatePosition(order.Market, delta, price)

	p.trades = append(p.trades, Trade{
		StrategyID: strategyID,
		OrderID:    order.ID,
		Market:     order.Market,
		Side:       order.Side,
		Price:      price,
		Size:       size,
		Fee:        fee,
		Liquidity:  liquidity,
		Timestamp:  timestampMs,
	})

	if p.onFill != nil {
		p.onFill(strategyID, fill)
	}
}
