package strategy

import (
	"fmt"
	"sync"

	"github.com/quantloop/core/pkg/types"
	"go.uber.org/zap"
)

type registration struct {
	id       string
	strategy Strategy
	ctx      *Context
	markets  map[types.MarketId]bool
}

// Coordinator exclusively owns registered strategies; it never exposes
// strategy references outside its own dispatch methods (spec §3, M).
type Coordinator struct {
	logger *zap.Logger

	mu    sync.RWMutex
	byID  map[string]*registration
	// marketSubs indexes registrations by subscribed market for fast
	// tick fan-out.
	marketSubs map[types.MarketId][]*registration
}

// NewCoordinator constructs an empty coordinator.
func NewCoordinator(logger *zap.Logger) *Coordinator {
	return &Coordinator{
		logger:     logger.Named("coordinator"),
		byID:       make(map[string]*registration),
		marketSubs: make(map[types.MarketId][]*registration),
	}
}

// RegisterStrategy is idempotent on re-registration with the same markets;
// a duplicate id with a different market set is an error (spec §4.6:
// "subscription changes require re-registration").
func (c *Coordinator) RegisterStrategy(id string, s Strategy, ctx *Context, markets []types.MarketId) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byID[id]; ok {
		if sameMarketSet(existing.markets, markets) {
			return nil // idempotent re-registration
		}
		return fmt.Errorf("strategy id %q already registered with a different market set", id)
	}

	reg := &registration{id: id, strategy: s, ctx: ctx, markets: make(map[types.MarketId]bool, len(markets))}
	for _, m := range markets {
		reg.markets[m] = true
		c.marketSubs[m] = append(c.marketSubs[m], reg)
	}
	c.byID[id] = reg

	if err := s.Initialize(ctx); err != nil {
		c.logger.Error("strategy initialize failed", zap.String("strategy_id", id), zap.Error(err))
	}
	return nil
}

func sameMarketSet(have map[types.MarketId]bool, want []types.MarketId) bool {
	if len(have) != len(want) {
		return false
	}
	for _, m := range want {
		if !have[m] {
			return false
		}
	}
	return true
}

// RouteMarketTick dispatches to every strategy whose subscription set
// contains marketID. Dispatch is sequential per coordinator by default; a
// slow strategy blocks only its own market's dispatch in that cycle, not
// others, because each registration's hook is invoked independently and
// errors are captured rather than propagated (spec §4.6).
func (c *Coordinator) RouteMarketTick(marketID types.MarketId, tick types.MarketTick) {
	c.mu.RLock()
	regs := append([]*registration(nil), c.marketSubs[marketID]...)
	c.mu.RUnlock()

	for _, reg := range regs {
		if err := reg.strategy.OnMarketTick(marketID, tick, reg.ctx); err != nil {
			c.logger.Warn("strategy on_market_tick error",
				zap.String("strategy_id", reg.id),
				zap.String("market", string(marketID)),
				zap.Error(err))
		}
	}
}

// RouteFill dispatches to exactly one strategy (spec §4.6).
func (c *Coordinator) RouteFill(strategyID string, fill types.Fill) {
	c.mu.RLock()
	reg, ok := c.byID[strategyID]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("fill routed to unknown strategy", zap.String("strategy_id", strategyID))
		return
	}
	if err := reg.strategy.OnFill(fill, reg.ctx); err != nil {
		c.logger.Warn("strategy on_fill error", zap.String("strategy_id", strategyID), zap.Error(err))
	}
}

// RouteCancel dispatches a cancellation notification to exactly one strategy.
func (c *Coordinator) RouteCancel(strategyID string, orderID types.OrderId) {
	c.mu.RLock()
	reg, ok := c.byID[strategyID]
	c.mu.RUnlock()
	if !ok {
		return
	}
	if err := reg.strategy.OnCancel(orderID, reg.ctx); err != nil {
		c.logger.Warn("strategy on_cancel error", zap.String("strategy_id", strategyID), zap.Error(err))
	}
}

// DispatchTimer fires on_timer for every registered strategy.
func (c *Coordinator) DispatchTimer() {
	c.mu.RLock()
	regs := make([]*registration, 0, len(c.byID))
	for _, r := range c.byID {
		regs = append(regs, r)
	}
	c.mu.RUnlock()

	for _, reg := range regs {
		if err := reg.strategy.OnTimer(reg.ctx); err != nil {
			c.logger.Warn("strategy on_timer error", zap.String("strategy_id", reg.id), zap.Error(err))
		}
	}
}

// Shutdown invokes shutdown on every registered strategy.
func (c *Coordinator) Shutdown() {
	c.mu.RLock()
	regs := make([]*registration, 0, len(c.byID))
	for _, r := range c.byID {
		regs = append(regs, r)
	}
	c.mu.RUnlock()

	for _, reg := range regs {
		if err := reg.strategy.Shutdown(reg.ctx); err != nil {
			c.logger.Warn("strategy shutdown error", zap.String("strategy_id", reg.id), zap.Error(err))
		}
	}
}

// CalculateTotalExposure collects cross-market exposure (spec §4.6): one
// position per subscribed market, read from the context of one strategy
// subscribed to it. Positions are not summed across strategies.
func (c *Coordinator) CalculateTotalExposure() map[types.MarketId]types.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[types.MarketId]types.Position)
	for _, reg := range c.byID {
		for m := range reg.markets {
			if _, seen := out[m]; seen {
				continue
			}
			out[m] = reg.ctx.GetPosition(m)
		}
	}
	return out
}
