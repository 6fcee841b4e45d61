package backtester

import (
	"context"
	"testing"

	"github.com/quantloop/core/internal/strategy"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func buildTickStream(prices [][2]float64) []types.MarketTick {
	out := make([]types.MarketTick, 0, len(prices))
	for i, p := range prices {
		out = append(out, types.MarketTick{
			Market:        "m1",
			Bids:          []types.PriceLevel{{Price: decimal.NewFromFloat(p[0]), Size: decimal.NewFromInt(100)}},
			Asks:          []types.PriceLevel{{Price: decimal.NewFromFloat(p[1]), Size: decimal.NewFromInt(100)}},
			RecvTimestamp: int64(1000 + i),
		})
	}
	return out
}

func runMarketMakerBacktest(t *testing.T, seed int64) *Result {
	t.Helper()
	logger := zap.NewNop()
	coord := strategy.NewCoordinator(logger)

	cfg := Config{
		Fees:           FeeSchedule{MakerBps: decimal.NewFromInt(1), TakerBps: decimal.NewFromInt(5)},
		Slippage:       SlippageConfig{MarketSlippageBps: decimal.NewFromInt(2), LimitFillProbability: 0.5},
		Seed:           seed,
		RiskFreeRate:   0,
		PeriodsPerYear: 365,
	}
	eng := NewEngine(logger, coord, cfg)

	mm := strategy.NewMarketMaker("m1", decimal.NewFromFloat(0.02), decimal.Zero, decimal.NewFromInt(1000), decimal.NewFromInt(10), decimal.Zero)
	ctx := strategy.NewContext("mm", eng.Port().ForStrategy("mm"), nil, 64)
	if err := coord.RegisterStrategy("mm", mm, ctx, []types.MarketId{"m1"}); err != nil {
		t.Fatal(err)
	}

	prices := make([][2]float64, 0, 1000)
	mid := 0.50
	for i := 0; i < 1000; i++ {
		prices = append(prices, [2]float64{mid - 0.01, mid + 0.01})
		if i%7 == 0 {
			mid += 0.001
		} else if i%5 == 0 {
			mid -= 0.0008
		}
	}

	streams := []TickStream{{Market: "m1", Ticks: buildTickStream(prices)}}
	return eng.Run(streams)
}

// TestBacktestDeterminism implements spec §4.9/§8's Scenario 4: identical
// inputs and RNG seed must produce byte-identical trade lists and equity.
func TestBacktestDeterminism(t *testing.T) {
	r1 := runMarketMakerBacktest(t, 42)
	r2 := runMarketMakerBacktest(t, 42)

	if len(r1.Trades) != len(r2.Trades) {
		t.Fatalf("expected identical trade counts, got %d vs %d", len(r1.Trades), len(r2.Trades))
	}
	for i := range r1.Trades {
		if !r1.Trades[i].Price.Equal(r2.Trades[i].Price) || !r1.Trades[i].Size.Equal(r2.Trades[i].Size) {
			t.Fatalf("trade %d diverged: %+v vs %+v", i, r1.Trades[i], r2.Trades[i])
		}
	}
	if len(r1.EquityCurve) != len(r2.EquityCurve) {
		t.Fatalf("expected identical equity curve lengths")
	}
	last1 := r1.EquityCurve[len(r1.EquityCurve)-1].Equity
	last2 := r2.EquityCurve[len(r2.EquityCurve)-1].Equity
	if !last1.Equal(last2) {
		t.Fatalf("expected identical final equity, got %s vs %s", last1, last2)
	}
}

func TestBacktestDifferentSeedCanDiverge(t *testing.T) {
	r1 := runMarketMakerBacktest(t, 1)
	r2 := runMarketMakerBacktest(t, 2)
	// Not asserting inequality (they may coincide), just that both runs
	// complete and produce a usable result either way.
	if r1 == nil || r2 == nil {
		t.Fatalf("expected both runs to produce a result")
	}
}

func TestMarketOrderFillsImmediatelyWithSlippage(t *testing.T) {
	port := NewPort(FeeSchedule{TakerBps: decimal.NewFromInt(10)}, SlippageConfig{MarketSlippageBps: decimal.NewFromInt(5)}, 7)
	port.advanceTick("m1", types.MarketTick{
		Market: "m1",
		Bids:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.49), Size: decimal.NewFromInt(100)}},
		Asks:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.51), Size: decimal.NewFromInt(100)}},
	})

	sp := port.ForStrategy("s1")
	order := &types.Order{
		ID:            types.NewOrderId(),
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeMarket,
		RequestedSize: decimal.NewFromInt(10),
	}
	ack, err := sp.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != types.OrderStatusFilled {
		t.Fatalf("expected market order to fill immediately, got %s", ack.Status)
	}
	if len(port.trades) != 1 || port.trades[0].Liquidity != types.LiquidityTaker {
		t.Fatalf("expected one taker trade, got %+v", port.trades)
	}
	expectedPrice := decimal.NewFromFloat(0.51).Add(decimal.NewFromFloat(0.51 * 0.0005))
	if !port.trades[0].Price.Sub(expectedPrice).Abs().LessThan(decimal.NewFromFloat(0.0001)) {
		t.Fatalf("expected fill price near %s, got %s", expectedPrice, port.trades[0].Price)
	}
}

func TestLimitOrderRestsUntilCrossed(t *testing.T) {
	port := NewPort(FeeSchedule{MakerBps: decimal.NewFromInt(1)}, SlippageConfig{LimitFillProbability: 0}, 7)
	port.advanceTick("m1", types.MarketTick{
		Market: "m1",
		Bids:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.49), Size: decimal.NewFromInt(100)}},
		Asks:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.51), Size: decimal.NewFromInt(100)}},
	})

	sp := port.ForStrategy("s1")
	price := decimal.NewFromFloat(0.50)
	order := &types.Order{
		ID:            types.NewOrderId(),
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		Price:         &price,
		RequestedSize: decimal.NewFromInt(10),
	}
	if _, err := sp.SubmitOrder(context.Background(), order); err != nil {
		t.Fatal(err)
	}
	if len(port.trades) != 0 {
		t.Fatalf("expected limit order to rest, not fill, when ask is above limit")
	}

	port.advanceTick("m1", types.MarketTick{
		Market: "m1",
		Bids:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.48), Size: decimal.NewFromInt(100)}},
		Asks:   []types.PriceLevel{{Price: decimal.NewFromFloat(0.495), Size: decimal.NewFromInt(100)}},
	})
	if len(port.trades) != 1 {
		t.Fatalf("expected resting limit buy to fill once the ask crosses it, got %d trades", len(port.trades))
	}
	if port.trades[0].Liquidity != types.LiquidityMaker {
		t.Fatalf("expected maker tag for a crossing limit fill, got %s", port.trades[0].Liquidity)
	}
}

func TestRobustnessReportIsDeterministicGivenSeed(t *testing.T) {
	result := runMarketMakerBacktest(t, 42)
	logger := zap.NewNop()

	eng := &Engine{logger: logger}
	cfg := RobustnessConfig{NumSimulations: 20, Seed: 9, RiskFreeRate: 0, PeriodsPerYear: 365, Workers: 2}

	r1 := eng.Robustness(result, cfg)
	r2 := eng.Robustness(result, cfg)

	if r1.NumSimulations != 20 || r2.NumSimulations != 20 {
		t.Fatalf("expected 20 simulations, got %d and %d", r1.NumSimulations, r2.NumSimulations)
	}
	if r1.FinalEquityP50 != r2.FinalEquityP50 {
		t.Fatalf("expected identical median equity given an identical seed, got %f vs %f", r1.FinalEquityP50, r2.FinalEquityP50)
	}
	if r1.RuinProbability < 0 || r1.RuinProbability > 1 {
		t.Fatalf("expected ruin probability in [0,1], got %f", r1.RuinProbability)
	}
}

func TestRobustnessReportEmptyReturnsZeroValue(t *testing.T) {
	logger := zap.NewNop()
	report := RunRobustness(logger, nil, 1000, DefaultRobustnessConfig())
	if report.NumSimulations != 0 {
		t.Fatalf("expected zero-valued report for an empty return series, got %+v", report)
	}
}
