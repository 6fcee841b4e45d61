package execution

import (
	"testing"
	"time"

	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func trackedOrder(id types.OrderId, size decimal.Decimal) *types.Order {
	return &types.Order{
		ID:            id,
		ClientOrderID: types.NewClientOrderId(),
		Venue:         "polymarket",
		Market:        "m1",
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		RequestedSize: size,
		Status:        types.OrderStatusPending,
	}
}

// Scenario 3 of the spec's seed tests.
func TestRecordFillIdempotent(t *testing.T) {
	oms := NewOMS(zap.NewNop())
	o := trackedOrder("o1", decimal.NewFromInt(100))
	if err := oms.TrackOrder(o); err != nil {
		t.Fatal(err)
	}
	if err := oms.UpdateStatus("o1", types.OrderStatusSubmitting); err != nil {
		t.Fatal(err)
	}
	if err := oms.UpdateStatus("o1", types.OrderStatusWorking); err != nil {
		t.Fatal(err)
	}

	fill := types.Fill{ID: "F1", OrderID: "o1", Size: decimal.NewFromInt(60), Price: decimal.NewFromFloat(0.5), Timestamp: time.Now()}
	if err := oms.RecordFill("o1", fill); err != nil {
		t.Fatal(err)
	}
	if err := oms.RecordFill("o1", fill); err != nil {
		t.Fatal(err)
	}

	got := oms.GetOrder("o1")
	if !got.FilledSize.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected filled size 60, got %s", got.FilledSize)
	}
	if got.Status != types.OrderStatusPartiallyFilled {
		t.Fatalf("expected PartiallyFilled, got %s", got.Status)
	}
	if !got.AvgFillPrice.Equal(decimal.NewFromFloat(0.5)) {
		t.Fatalf("expected avg fill price 0.5, got %s", got.AvgFillPrice)
	}
}

func TestIllegalTransitionRejected(t *testing.T) {
	oms := NewOMS(zap.NewNop())
	o := trackedOrder("o1", decimal.NewFromInt(100))
	_ = oms.TrackOrder(o)
	_ = oms.UpdateStatus("o1", types.OrderStatusSubmitting)
	_ = oms.UpdateStatus("o1", types.OrderStatusRejected)

	if err := oms.UpdateStatus("o1", types.OrderStatusWorking); err == nil {
		t.Fatalf("expected error transitioning out of terminal state")
	}
}

func TestCancellingRacesFilled(t *testing.T) {
	oms := NewOMS(zap.NewNop())
	o := trackedOrder("o1", decimal.NewFromInt(100))
	_ = oms.TrackOrder(o)
	_ = oms.UpdateStatus("o1", types.OrderStatusSubmitting)
	_ = oms.UpdateStatus("o1", types.OrderStatusWorking)
	_ = oms.UpdateStatus("o1", types.OrderStatusCancelling)

	if err := oms.UpdateStatus("o1", types.OrderStatusFilled); err != nil {
		t.Fatalf("expected Cancelling -> Filled to be legal, got %v", err)
	}
}

func TestFilledSizeNeverExceedsRequested(t *testing.T) {
	oms := NewOMS(zap.NewNop())
	o := trackedOrder("o1", decimal.NewFromInt(100))
	_ = oms.TrackOrder(o)
	_ = oms.UpdateStatus("o1", types.OrderStatusSubmitting)
	_ = oms.UpdateStatus("o1", types.OrderStatusWorking)

	_ = oms.RecordFill("o1", types.Fill{ID: "F1", Size: decimal.NewFromInt(60), Price: decimal.NewFromFloat(0.5), Timestamp: time.Now()})
	_ = oms.RecordFill("o1", types.Fill{ID: "F2", Size: decimal.NewFromInt(40), Price: decimal.NewFromFloat(0.51), Timestamp: time.Now()})

	got := oms.GetOrder("o1")
	if got.FilledSize.GreaterThan(got.RequestedSize) {
		t.Fatalf("filled size %s exceeds requested %s", got.FilledSize, got.RequestedSize)
	}
	if got.Status != types.OrderStatusFilled {
		t.Fatalf("expected Filled, got %s", got.Status)
	}
}
