package execution

import (
	"context"
	"testing"

	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type stubAdapter struct {
	venue types.VenueId
}

func (s *stubAdapter) VenueID() types.VenueId { return s.venue }
func (s *stubAdapter) PlaceOrder(ctx context.Context, order *types.Order) (OrderAck, error) {
	return OrderAck{VenueOrderID: "v-" + string(order.ID), Status: types.OrderStatusWorking}, nil
}
func (s *stubAdapter) CancelOrder(ctx context.Context, id types.OrderId) (CancelAck, error) {
	return CancelAck{Status: types.OrderStatusCancelled}, nil
}
func (s *stubAdapter) ModifyOrder(ctx context.Context, id types.OrderId, p, sz *string) (OrderAck, error) {
	return OrderAck{}, nil
}
func (s *stubAdapter) GetOrderStatus(ctx context.Context, id types.OrderId) (types.OrderStatus, error) {
	return types.OrderStatusWorking, nil
}
func (s *stubAdapter) GetOpenOrders(ctx context.Context) ([]types.Order, error) { return nil, nil }
func (s *stubAdapter) HealthCheck(ctx context.Context) (bool, error)            { return true, nil }

func newTestHarness(t *testing.T, riskRules []types.PolicyRule) (*Engine, *OMS) {
	t.Helper()
	logger := zap.NewNop()
	oms := NewOMS(logger)
	sim := risk.NewSimulator()
	limiters := NewRateLimiterRegistry()
	limiters.Register("polymarket", 100, 100)
	validator := NewValidator(DefaultValidatorConfig())
	riskEngine := risk.NewEngine(logger, riskRules)

	eng := NewEngine(logger, DefaultEngineConfig(), limiters, validator, riskEngine, oms, sim, nil)
	eng.AddAdapter(&stubAdapter{venue: "polymarket"})
	return eng, oms
}

func price(p float64) *decimal.Decimal {
	d := decimal.NewFromFloat(p)
	return &d
}

func TestSubmitOrderHappyPath(t *testing.T) {
	eng, oms := newTestHarness(t, nil)
	order := &types.Order{
		ClientOrderID: types.NewClientOrderId(),
		Venue:         "polymarket",
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         price(0.5),
		RequestedSize: decimal.NewFromInt(100),
	}
	ack, err := eng.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}
	if ack.Status != types.OrderStatusWorking {
		t.Fatalf("expected Working, got %s", ack.Status)
	}
	if oms.Count() != 1 {
		t.Fatalf("expected 1 tracked order, got %d", oms.Count())
	}
}

func TestSubmitOrderRiskRejectedLeavesOmsEmpty(t *testing.T) {
	eng, oms := newTestHarness(t, []types.PolicyRule{
		{Kind: types.PolicyPositionLimit, MaxAbsSize: decimal.NewFromInt(1000)},
	})
	order := &types.Order{
		ClientOrderID: types.NewClientOrderId(),
		Venue:         "polymarket",
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         price(0.5),
		RequestedSize: decimal.NewFromInt(1200),
	}
	_, err := eng.SubmitOrder(context.Background(), order)
	if err == nil {
		t.Fatalf("expected RiskRejected error")
	}
	execErr, ok := err.(*types.ExecError)
	if !ok || execErr.Kind != types.ErrRiskRejected {
		t.Fatalf("expected RiskRejected, got %v", err)
	}
	if oms.Count() != 0 {
		t.Fatalf("expected OMS to remain empty after rejection, got %d", oms.Count())
	}
}

func TestSubmitOrderUnknownVenue(t *testing.T) {
	eng, _ := newTestHarness(t, nil)
	order := &types.Order{Venue: "unknown", Market: "m1", RequestedSize: decimal.NewFromInt(1), Type: types.OrderTypeMarket, ClientOrderID: types.NewClientOrderId()}
	_, err := eng.SubmitOrder(context.Background(), order)
	execErr, ok := err.(*types.ExecError)
	if !ok || execErr.Kind != types.ErrVenueNotSupported {
		t.Fatalf("expected VenueNotSupported, got %v", err)
	}
}

func TestRecordFillUpdatesPositionOnce(t *testing.T) {
	eng, _ := newTestHarness(t, nil)
	order := &types.Order{
		ClientOrderID: types.NewClientOrderId(),
		Venue:         "polymarket",
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         price(0.5),
		RequestedSize: decimal.NewFromInt(100),
	}
	_, err := eng.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatal(err)
	}

	fill := types.Fill{ID: "F1", Size: decimal.NewFromInt(60), Price: decimal.NewFromFloat(0.5)}
	if err := eng.RecordFill(order.ID, fill); err != nil {
		t.Fatal(err)
	}
	if err := eng.RecordFill(order.ID, fill); err != nil {
		t.Fatal(err)
	}

	pos := eng.GetPosition("m1")
	if !pos.Size.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected position size 60, got %s", pos.Size)
	}
}
