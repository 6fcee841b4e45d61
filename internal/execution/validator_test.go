package execution

import (
	"testing"

	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

func baseOrder() *types.Order {
	return &types.Order{
		ClientOrderID: "c1",
		Venue:         "polymarket",
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         price(0.5),
		RequestedSize: decimal.NewFromInt(10),
	}
}

func TestValidatorZeroSizeRejected(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	o := baseOrder()
	o.RequestedSize = decimal.Zero
	if err := v.Validate(o); err == nil {
		t.Fatalf("expected rejection for zero size")
	}
}

func TestValidatorMinSizeAccepted(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	o := baseOrder()
	o.RequestedSize = decimal.NewFromFloat(0.01)
	if err := v.Validate(o); err != nil {
		t.Fatalf("expected min size accepted, got %v", err)
	}
}

func TestValidatorLimitWithoutPriceRejected(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	o := baseOrder()
	o.Price = nil
	if err := v.Validate(o); err == nil {
		t.Fatalf("expected rejection for limit order without price")
	}
}

func TestValidatorMarketWithPriceRejected(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	o := baseOrder()
	o.Type = types.OrderTypeMarket
	if err := v.Validate(o); err == nil {
		t.Fatalf("expected rejection for market order with price")
	}
}

func TestValidatorPostOnlyForbidsIOC(t *testing.T) {
	v := NewValidator(DefaultValidatorConfig())
	o := baseOrder()
	o.Type = types.OrderTypePostOnly
	o.TIF = types.TIFImmediateOrCancel
	if err := v.Validate(o); err == nil {
		t.Fatalf("expected rejection for post-only + IOC")
	}
}
