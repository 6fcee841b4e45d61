package strategy

import (
	"context"
	"fmt"

	"github.com/quantloop/core/internal/ring"
	"github.com/quantloop/core/pkg/types"
)

// ExecutionPort is the subset of the execution engine a strategy context
// needs: submit/cancel apply the engine's risk checks automatically
// (spec §4.6).
type ExecutionPort interface {
	SubmitOrder(ctx context.Context, order *types.Order) (VenueAck, error)
	CancelOrder(ctx context.Context, orderID types.OrderId) error
	GetPosition(market types.MarketId) types.Position
	GetActiveOrders() []types.Order
}

// VenueAck mirrors execution.OrderAck without creating an import cycle
// between strategy and execution.
type VenueAck struct {
	VenueOrderID string
	Status       types.OrderStatus
}

// Context is the façade exposing submit/cancel/positions/params/metrics to
// a strategy (spec §4.6, L). The context shares the engine, risk engine
// (indirectly, via ExecutionPort), and owns a per-strategy metric buffer.
type Context struct {
	StrategyID string
	engine     ExecutionPort
	params     map[string]interface{}
	metrics    *ring.Buffer
}

// NewContext constructs a per-strategy context. metricBufferCapacity sizes
// the owned ring buffer (spec §3: "per-strategy metric buffer").
func NewContext(strategyID string, engine ExecutionPort, params map[string]interface{}, metricBufferCapacity int) *Context {
	return &Context{
		StrategyID: strategyID,
		engine:     engine,
		params:     params,
		metrics:    ring.New(metricBufferCapacity),
	}
}

// SubmitOrder applies engine risk checks automatically.
func (c *Context) SubmitOrder(ctx context.Context, order *types.Order) (VenueAck, error) {
	return c.engine.SubmitOrder(ctx, order)
}

// CancelOrder applies engine risk checks automatically (none needed for
// cancellation, but routed through the same port for lifecycle symmetry).
func (c *Context) CancelOrder(ctx context.Context, orderID types.OrderId) error {
	return c.engine.CancelOrder(ctx, orderID)
}

// GetPosition returns the current position for a market.
func (c *Context) GetPosition(market types.MarketId) types.Position {
	return c.engine.GetPosition(market)
}

// GetOpenOrders returns every active order across the engine. Strategies
// are expected to filter by their own order ids where relevant.
func (c *Context) GetOpenOrders() []types.Order {
	return c.engine.GetActiveOrders()
}

// GetParam fetches a typed parameter by key, returning ok=false when absent
// or of the wrong type.
func GetParam[T any](c *Context, key string) (T, bool) {
	var zero T
	raw, ok := c.params[key]
	if !ok {
		return zero, false
	}
	v, ok := raw.(T)
	return v, ok
}

// EmitMetric appends a (timestamp, value) sample to the per-strategy metric
// buffer. The coordinator does not drain the buffer; readers use
// MetricBuffer.
func (c *Context) EmitMetric(timestampMs int64, value float64) {
	c.metrics.Append(timestampMs, value)
}

// MetricBuffer exposes the owned ring buffer.
func (c *Context) MetricBuffer() *ring.Buffer { return c.metrics }

// Param is a convenience string-formatting accessor for logging.
func (c *Context) Param(key string) string {
	return fmt.Sprintf("%v", c.params[key])
}
