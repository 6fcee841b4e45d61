package strategy

import (
	"context"
	"testing"

	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

type fakePort struct {
	submitted []*types.Order
	cancelled []types.OrderId
	position  types.Position
}

func (f *fakePort) SubmitOrder(ctx context.Context, order *types.Order) (VenueAck, error) {
	f.submitted = append(f.submitted, order)
	return VenueAck{VenueOrderID: "v-" + string(order.ID), Status: types.OrderStatusWorking}, nil
}

func (f *fakePort) CancelOrder(ctx context.Context, orderID types.OrderId) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

func (f *fakePort) GetPosition(market types.MarketId) types.Position { return f.position }
func (f *fakePort) GetActiveOrders() []types.Order                   { return nil }

func tick(bid, ask float64) types.MarketTick {
	return types.MarketTick{
		Market: "m1",
		Bids:   []types.PriceLevel{{Price: decimal.NewFromFloat(bid), Size: decimal.NewFromInt(10)}},
		Asks:   []types.PriceLevel{{Price: decimal.NewFromFloat(ask), Size: decimal.NewFromInt(10)}},
	}
}

// TestMarketMakerSkewsAwayFromLongPosition verifies spec §4.7 Scenario 2: a
// strategy long of target quotes a lower bid and a lower ask than a flat
// strategy at the same mid, since skew > 0 pulls both sides down.
func TestMarketMakerSkewsAwayFromLongPosition(t *testing.T) {
	spread := decimal.NewFromFloat(0.02)
	target := decimal.Zero
	maxPos := decimal.NewFromInt(100)
	size := decimal.NewFromInt(10)

	flatPort := &fakePort{position: types.Position{Size: decimal.Zero}}
	flatCtx := NewContext("flat", flatPort, nil, 16)
	flatMM := NewMarketMaker("m1", spread, target, maxPos, size, decimal.Zero)
	if err := flatMM.OnMarketTick("m1", tick(0.49, 0.51), flatCtx); err != nil {
		t.Fatal(err)
	}

	longPort := &fakePort{position: types.Position{Size: decimal.NewFromInt(50)}}
	longCtx := NewContext("long", longPort, nil, 16)
	longMM := NewMarketMaker("m1", spread, target, maxPos, size, decimal.Zero)
	if err := longMM.OnMarketTick("m1", tick(0.49, 0.51), longCtx); err != nil {
		t.Fatal(err)
	}

	if len(flatPort.submitted) != 2 || len(longPort.submitted) != 2 {
		t.Fatalf("expected both strategies to submit a bid and an ask")
	}

	if !longMM.lastBid.LessThan(flatMM.lastBid) {
		t.Fatalf("expected long strategy's bid (%s) below flat strategy's bid (%s)", longMM.lastBid, flatMM.lastBid)
	}
	if !longMM.lastAsk.LessThan(flatMM.lastAsk) {
		t.Fatalf("expected long strategy's ask (%s) below flat strategy's ask (%s)", longMM.lastAsk, flatMM.lastAsk)
	}
}

func TestMarketMakerRequoteThresholdSuppressesNoise(t *testing.T) {
	port := &fakePort{position: types.Position{Size: decimal.Zero}}
	ctx := NewContext("s1", port, nil, 16)
	mm := NewMarketMaker("m1", decimal.NewFromFloat(0.02), decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.NewFromFloat(0.01))

	if err := mm.OnMarketTick("m1", tick(0.49, 0.51), ctx); err != nil {
		t.Fatal(err)
	}
	firstSubmits := len(port.submitted)

	// A sub-cent mid move should not trigger a requote given a 0.01 threshold.
	if err := mm.OnMarketTick("m1", tick(0.4901, 0.5101), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != firstSubmits {
		t.Fatalf("expected no requote for a sub-threshold price move")
	}
}

// TestMarketMakerSuppressesQuotesAtMaxPosition verifies spec §4.7: once
// |position| >= max_position, the strategy must stop submitting new
// quotes (but still cancel whatever it had resting).
func TestMarketMakerSuppressesQuotesAtMaxPosition(t *testing.T) {
	maxPos := decimal.NewFromInt(100)
	port := &fakePort{position: types.Position{Size: decimal.Zero}}
	ctx := NewContext("s1", port, nil, 16)
	mm := NewMarketMaker("m1", decimal.NewFromFloat(0.02), decimal.Zero, maxPos, decimal.NewFromInt(10), decimal.Zero)

	if err := mm.OnMarketTick("m1", tick(0.49, 0.51), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != 2 {
		t.Fatalf("expected an initial bid/ask while within the position limit, got %d", len(port.submitted))
	}

	// Position grows to exactly max_position: no longer strictly less than
	// the limit, so no further quotes should go out, and the existing
	// resting pair should be cancelled.
	port.position = types.Position{Size: maxPos}
	if err := mm.OnMarketTick("m1", tick(0.50, 0.52), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != 2 {
		t.Fatalf("expected no new quotes once position reaches max_position, got %d submissions", len(port.submitted))
	}
	if len(port.cancelled) != 2 {
		t.Fatalf("expected the resting bid/ask to be cancelled once quoting is suppressed, got %d", len(port.cancelled))
	}

	// Further ticks at the same over-limit position should not re-cancel
	// orders that are already known to be gone.
	if err := mm.OnMarketTick("m1", tick(0.50, 0.52), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.cancelled) != 2 {
		t.Fatalf("expected no redundant cancels on a subsequent over-limit tick, got %d", len(port.cancelled))
	}
}

func TestMarketMakerCancelsOnShutdown(t *testing.T) {
	port := &fakePort{position: types.Position{Size: decimal.Zero}}
	ctx := NewContext("s1", port, nil, 16)
	mm := NewMarketMaker("m1", decimal.NewFromFloat(0.02), decimal.Zero, decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.Zero)

	if err := mm.OnMarketTick("m1", tick(0.49, 0.51), ctx); err != nil {
		t.Fatal(err)
	}
	if err := mm.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.cancelled) != 2 {
		t.Fatalf("expected both resting orders cancelled on shutdown, got %d", len(port.cancelled))
	}
}
