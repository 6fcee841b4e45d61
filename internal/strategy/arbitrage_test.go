package strategy

import (
	"testing"

	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

func TestArbitrageFiresOnDivergence(t *testing.T) {
	port := &fakePort{}
	ctx := NewContext("arb", port, nil, 16)
	arb := NewCrossMarketArbitrage("a", "b", decimal.NewFromInt(50), decimal.NewFromInt(10))

	if err := arb.OnMarketTick("a", tick(0.49, 0.51), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != 0 {
		t.Fatalf("expected no orders with only one leg observed")
	}

	// b's mid (1.00) diverges from a's mid (0.50) by 10000bps, well past 50bps.
	if err := arb.OnMarketTick("b", tick(0.99, 1.01), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != 2 {
		t.Fatalf("expected a buy leg and a sell leg submitted, got %d", len(port.submitted))
	}
	if port.submitted[0].Market != "a" || port.submitted[0].Side != types.SideBuy {
		t.Fatalf("expected cheap market 'a' bought first, got %+v", port.submitted[0])
	}
	if port.submitted[1].Market != "b" || port.submitted[1].Side != types.SideSell {
		t.Fatalf("expected rich market 'b' sold second, got %+v", port.submitted[1])
	}
}

func TestArbitrageDoesNotDoubleFireWhileOpen(t *testing.T) {
	port := &fakePort{}
	ctx := NewContext("arb", port, nil, 16)
	arb := NewCrossMarketArbitrage("a", "b", decimal.NewFromInt(50), decimal.NewFromInt(10))

	if err := arb.OnMarketTick("a", tick(0.49, 0.51), ctx); err != nil {
		t.Fatal(err)
	}
	if err := arb.OnMarketTick("b", tick(0.99, 1.01), ctx); err != nil {
		t.Fatal(err)
	}
	submittedAfterFirst := len(port.submitted)

	if err := arb.OnMarketTick("b", tick(0.99, 1.01), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) != submittedAfterFirst {
		t.Fatalf("expected no new orders while an opportunity is already open")
	}

	arb.OnFill(types.Fill{}, ctx)
	if err := arb.OnMarketTick("b", tick(0.99, 1.01), ctx); err != nil {
		t.Fatal(err)
	}
	if len(port.submitted) == submittedAfterFirst {
		t.Fatalf("expected a new opportunity to fire after the prior one closed on fill")
	}
}
