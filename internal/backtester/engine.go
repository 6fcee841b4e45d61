package backtester

import (
	"sort"

	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/internal/strategy"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TickStream is one market's ordered tick sequence for a backtest run.
type TickStream struct {
	Market types.MarketId
	Ticks  []types.MarketTick
}

// Config bundles everything the run needs beyond the tick streams
// themselves (spec §4.9).
type Config struct {
	Fees           FeeSchedule
	Slippage       SlippageConfig
	Seed           int64
	RiskFreeRate   float64
	PeriodsPerYear float64
	TimerEveryN    int // dispatch DispatchTimer every N merged ticks; 0 disables
}

// EquityPoint is one timestamped mark-to-market sample.
type EquityPoint struct {
	TimestampMs int64
	Equity      decimal.Decimal
}

// Result is the backtest's complete output (spec §4.9: "equity curve,
// trade list, aggregate metrics").
type Result struct {
	EquityCurve []EquityPoint
	Trades      []Trade
	Metrics     risk.PerformanceMetrics
}

// Engine runs a deterministic event-driven backtest against a pre-built
// strategy.Coordinator. The coordinator's registered strategies are wired
// to a shared Port that replaces the live execution adapter with a fill
// simulator (spec §4.9: "identical strategy contract; the adapter is
// replaced by an in-process fill simulator").
type Engine struct {
	logger      *zap.Logger
	coordinator *strategy.Coordinator
	port        *Port
	config      Config
	markPrices  map[types.MarketId]decimal.Decimal
}

// NewEngine wires a coordinator to a fresh Port configured per cfg. Callers
// register strategies on the coordinator (via strategy.NewContext(...,
// engine.Port().ForStrategy(id), ...)) before calling Run.
func NewEngine(logger *zap.Logger, coordinator *strategy.Coordinator, cfg Config) *Engine {
	port := NewPort(cfg.Fees, cfg.Slippage, cfg.Seed)
	port.onFill = func(strategyID string, fill types.Fill) {
		coordinator.RouteFill(strategyID, fill)
	}
	return &Engine{
		logger:      logger.Named("backtester"),
		coordinator: coordinator,
		port:        port,
		config:      cfg,
		markPrices:  make(map[types.MarketId]decimal.Decimal),
	}
}

// Port exposes the shared fill simulator so callers can bind strategy
// contexts before Run.
func (e *Engine) Port() *Port { return e.port }

type mergedTick struct {
	market types.MarketId
	tick   types.MarketTick
}

// mergeByTimestamp merges per-market tick streams into one chronological
// sequence, stable on ties (spec §4.9: "merge ticks by timestamp into one
// deterministic sequence").
func mergeByTimestamp(streams []TickStream) []mergedTick {
	var all []mergedTick
	for _, s := range streams {
		for _, t := range s.Ticks {
			all = append(all, mergedTick{market: s.Market, tick: t})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].tick.RecvTimestamp < all[j].tick.RecvTimestamp
	})
	return all
}

// Run replays every tick across every market in deterministic order,
// dispatching fills and on_tick callbacks, then rolls up the final result.
func (e *Engine) Run(streams []TickStream) *Result {
	merged := mergeByTimestamp(streams)

	var equityCurve []EquityPoint
	tickCount := 0

	for _, mt := range merged {
		e.markPrices[mt.market] = midOrLast(mt.tick, e.markPrices[mt.market])

		e.port.advanceTick(mt.market, mt.tick)
		e.coordinator.RouteMarketTick(mt.market, mt.tick)

		tickCount++
		if e.config.TimerEveryN > 0 && tickCount%e.config.TimerEveryN == 0 {
			e.coordinator.DispatchTimer()
		}

		equityCurve = append(equityCurve, EquityPoint{
			TimestampMs: mt.tick.RecvTimestamp,
			Equity:      e.markToMarket(),
		})
	}

	e.coordinator.Shutdown()

	returns := toReturns(equityCurve)
	equityFloats := toFloats(equityCurve)
	metrics := risk.ComputePerformanceMetrics(returns, equityFloats, e.config.RiskFreeRate, e.config.PeriodsPerYear, nil)

	return &Result{
		EquityCurve: equityCurve,
		Trades:      append([]Trade(nil), e.port.trades...),
		Metrics:     metrics,
	}
}

// Robustness runs a Monte Carlo resampling pass over a completed run's
// equity curve (FEATURE SUPPLEMENT 3), bootstrap-resampling the realized
// per-tick returns to bound how much of Result.Metrics depended on the
// particular sequence of trades observed in this run.
func (e *Engine) Robustness(result *Result, cfg RobustnessConfig) *RobustnessReport {
	returns := toReturns(result.EquityCurve)
	startEquity := 0.0
	if len(result.EquityCurve) > 0 {
		startEquity, _ = result.EquityCurve[0].Equity.Float64()
	}
	return RunRobustness(e.logger, returns, startEquity, cfg)
}

func midOrLast(tick types.MarketTick, fallback decimal.Decimal) decimal.Decimal {
	if mid, ok := tick.MidPrice(); ok {
		return mid
	}
	return fallback
}

func (e *Engine) markToMarket() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range e.port.sim.Snapshot() {
		mark, ok := e.markPrices[pos.Market]
		if !ok {
			continue
		}
		total = total.Add(pos.Size.Mul(mark).Sub(pos.InvestedCapital)).Add(pos.RealizedPnL)
	}
	return total
}

func toReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	out := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev, _ := curve[i-1].Equity.Float64()
		cur, _ := curve[i].Equity.Float64()
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (cur-prev)/absF(prev))
	}
	return out
}

func toFloats(curve []EquityPoint) []float64 {
	out := make([]float64, len(curve))
	for i, p := range curve {
		out[i], _ = p.Equity.Float64()
	}
	return out
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
