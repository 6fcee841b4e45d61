package strategy

import (
	"context"
	"fmt"

	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

// MarketMaker is the reference inventory-skewed quoting strategy of spec
// §4.7. It holds one resting bid and one resting ask per market, shading
// both sides away from mid proportionally to how far the current position
// sits from its target.
//
//	skew = (position - target) / max_position
//	bid  = mid - spread*(1+|skew|)/2 - skew*spread/4
//	ask  = mid + spread*(1+|skew|)/2 - skew*spread/4
type MarketMaker struct {
	market        types.MarketId
	spread        decimal.Decimal // absolute quote width
	targetPos     decimal.Decimal
	maxPos        decimal.Decimal
	orderSize     decimal.Decimal
	requoteMinMove decimal.Decimal // Open Question decision: configurable, default 0

	lastBid, lastAsk   decimal.Decimal
	haveQuote          bool
	bidOrderID, askOrderID types.OrderId
}

// NewMarketMaker builds a market maker quoting a single market. requoteMinMove
// of zero requotes on every tick where the computed price differs at all.
func NewMarketMaker(market types.MarketId, spread, targetPos, maxPos, orderSize, requoteMinMove decimal.Decimal) *MarketMaker {
	return &MarketMaker{
		market:         market,
		spread:         spread,
		targetPos:      targetPos,
		maxPos:         maxPos,
		orderSize:      orderSize,
		requoteMinMove: requoteMinMove,
	}
}

func (m *MarketMaker) Initialize(ctx *Context) error { return nil }

func (m *MarketMaker) OnMarketTick(marketID types.MarketId, tick types.MarketTick, ctx *Context) error {
	if marketID != m.market {
		return nil
	}
	mid, ok := tick.MidPrice()
	if !ok {
		return nil
	}

	pos := ctx.GetPosition(m.market)

	// spec §4.7: only submit new quotes while |position| < max_position;
	// still cancel whatever is resting so the strategy doesn't keep
	// growing exposure past its configured limit.
	withinLimit := m.maxPos.IsZero() || pos.Size.Abs().LessThan(m.maxPos)
	if !withinLimit {
		if m.haveQuote {
			m.cancelResting(ctx)
			m.haveQuote = false
		}
		return nil
	}

	skew := m.skew(pos.Size)

	half := m.spread.Mul(decimal.NewFromFloat(1 + absFloat(skew))).Div(decimal.NewFromInt(2))
	skewAdj := m.spread.Div(decimal.NewFromInt(4)).Mul(decimal.NewFromFloat(skew))

	bid := mid.Sub(half).Sub(skewAdj)
	ask := mid.Add(half).Sub(skewAdj)

	if m.haveQuote && !m.movedEnough(bid, ask) {
		return nil
	}

	if m.haveQuote {
		m.cancelResting(ctx)
	}

	bidOrder := &types.Order{
		ID:            types.NewOrderId(),
		ClientOrderID: types.NewClientOrderId(),
		Market:        m.market,
		Side:          types.SideBuy,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         &bid,
		RequestedSize: m.orderSize,
	}
	askOrder := &types.Order{
		ID:            types.NewOrderId(),
		ClientOrderID: types.NewClientOrderId(),
		Market:        m.market,
		Side:          types.SideSell,
		Type:          types.OrderTypeLimit,
		TIF:           types.TIFGoodTillCancel,
		Price:         &ask,
		RequestedSize: m.orderSize,
	}

	if _, err := ctx.SubmitOrder(context.Background(), bidOrder); err != nil {
		return fmt.Errorf("submit bid: %w", err)
	}
	if _, err := ctx.SubmitOrder(context.Background(), askOrder); err != nil {
		return fmt.Errorf("submit ask: %w", err)
	}

	m.bidOrderID = bidOrder.ID
	m.askOrderID = askOrder.ID
	m.lastBid, m.lastAsk = bid, ask
	m.haveQuote = true
	return nil
}

func (m *MarketMaker) cancelResting(ctx *Context) {
	if m.bidOrderID != "" {
		_ = ctx.CancelOrder(context.Background(), m.bidOrderID)
		m.bidOrderID = ""
	}
	if m.askOrderID != "" {
		_ = ctx.CancelOrder(context.Background(), m.askOrderID)
		m.askOrderID = ""
	}
}

func (m *MarketMaker) movedEnough(bid, ask decimal.Decimal) bool {
	if m.requoteMinMove.IsZero() {
		return !bid.Equal(m.lastBid) || !ask.Equal(m.lastAsk)
	}
	return bid.Sub(m.lastBid).Abs().GreaterThanOrEqual(m.requoteMinMove) ||
		ask.Sub(m.lastAsk).Abs().GreaterThanOrEqual(m.requoteMinMove)
}

func (m *MarketMaker) skew(position decimal.Decimal) float64 {
	if m.maxPos.IsZero() {
		return 0
	}
	num, _ := position.Sub(m.targetPos).Float64()
	den, _ := m.maxPos.Float64()
	return num / den
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func (m *MarketMaker) OnFill(fill types.Fill, ctx *Context) error {
	if fill.OrderID == m.bidOrderID || fill.OrderID == m.askOrderID {
		m.haveQuote = false // force a fresh quote on next tick
	}
	return nil
}

func (m *MarketMaker) OnCancel(orderID types.OrderId, ctx *Context) error {
	if orderID == m.bidOrderID {
		m.bidOrderID = ""
	}
	if orderID == m.askOrderID {
		m.askOrderID = ""
	}
	return nil
}

func (m *MarketMaker) OnTimer(ctx *Context) error { return nil }

func (m *MarketMaker) Shutdown(ctx *Context) error {
	if m.bidOrderID != "" {
		_ = ctx.CancelOrder(context.Background(), m.bidOrderID)
	}
	if m.askOrderID != "" {
		_ = ctx.CancelOrder(context.Background(), m.askOrderID)
	}
	return nil
}

func (m *MarketMaker) Metadata() Metadata {
	return Metadata{
		Name:           "market_maker",
		Version:        "1.0.0",
		Description:    "inventory-skewed two-sided quoting",
		RequiredParams: []string{"spread", "target_position", "max_position", "order_size"},
	}
}
