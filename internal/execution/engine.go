package execution

import (
	"context"
	"sync"
	"time"

	"github.com/quantloop/core/internal/risk"
	"github.com/quantloop/core/pkg/types"
	"go.uber.org/zap"
)

// RiskEvaluator is the subset of risk.Engine the execution engine depends
// on, kept as an interface so tests can substitute a stub.
type RiskEvaluator interface {
	Evaluate(ctx types.RiskContext) types.RiskDecision
}

// MarkObserver receives a per-market price observation on every fill, so
// an advanced risk checker (internal/risk.PortfolioRiskMonitor) can build
// the return history its VaR/Greeks limit checks need. Optional: a nil
// observer simply means no advanced-risk history accumulates.
type MarkObserver interface {
	RecordMarkPrice(market types.MarketId, mark float64)
}

// MetricsSink receives the engine's emitted metrics (spec §4.5). Transport
// is out of scope; the engine only appends.
type MetricsSink interface {
	ObserveLatencyMs(venue, market string, ms float64)
	IncOrdersPlaced(venue string)
	IncOrdersFilled(venue string)
	IncOrdersCancelled(venue string)
	IncOrdersRejected(venue string)
	IncRiskRejection(policy string)
	IncRateLimitHit(venue string)
}

// EngineConfig toggles validation and risk checks, matching the spec's
// "if validation enabled" / "if risk_engine present and checks enabled".
type EngineConfig struct {
	ValidationEnabled bool
	RiskChecksEnabled bool
	AdapterTimeout    time.Duration
}

// DefaultEngineConfig returns the spec's 10s default adapter timeout.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{ValidationEnabled: true, RiskChecksEnabled: true, AdapterTimeout: 10 * time.Second}
}

// Engine orchestrates submission as validator -> risk -> limiter -> adapter
// -> tracker (spec §4.5), and is the sole mutator of positions via
// RecordFill.
type Engine struct {
	logger *zap.Logger
	cfg    EngineConfig

	mu       sync.RWMutex
	adapters map[types.VenueId]Adapter

	limiters  *RateLimiterRegistry
	validator *Validator
	riskEngine RiskEvaluator
	oms       *OMS
	simulator *risk.Simulator
	metrics   MetricsSink
	markObs   MarkObserver
}

// NewEngine wires the four collaborators named in spec §4.5.
func NewEngine(logger *zap.Logger, cfg EngineConfig, limiters *RateLimiterRegistry, validator *Validator, riskEngine RiskEvaluator, oms *OMS, simulator *risk.Simulator, metrics MetricsSink) *Engine {
	return &Engine{
		logger:     logger.Named("execution"),
		cfg:        cfg,
		adapters:   make(map[types.VenueId]Adapter),
		limiters:   limiters,
		validator:  validator,
		riskEngine: riskEngine,
		oms:        oms,
		simulator:  simulator,
		metrics:    metrics,
	}
}

// SetMarkObserver wires an optional per-fill price observer, e.g. a
// risk.PortfolioRiskMonitor backing the risk engine's VarLimit/GreeksLimit
// rules.
func (e *Engine) SetMarkObserver(obs MarkObserver) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.markObs = obs
}

// AddAdapter registers a venue adapter. The engine holds a shared reference
// for its lifetime (spec §3 ownership rules).
func (e *Engine) AddAdapter(a Adapter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.adapters[a.VenueID()] = a
}

func (e *Engine) adapterFor(venue types.VenueId) (Adapter, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	a, ok := e.adapters[venue]
	return a, ok
}

// SubmitOrder implements spec §4.5's exact orchestration:
//   assert venue registered -> VenueNotSupported
//   validate (if enabled)
//   risk evaluate (if enabled) -> RiskRejected
//   rate_limiter.acquire()
//   status <- Submitting; oms.track_order
//   ack <- adapter.place_order
//   oms.update_status(ack.status)
func (e *Engine) SubmitOrder(ctx context.Context, order *types.Order) (OrderAck, error) {
	start := time.Now()

	adapter, ok := e.adapterFor(order.Venue)
	if !ok {
		return OrderAck{}, types.NewExecError(types.ErrVenueNotSupported, "venue not registered: "+string(order.Venue))
	}

	if e.cfg.ValidationEnabled {
		if err := e.validator.Validate(order); err != nil {
			return OrderAck{}, err
		}
	}

	if e.riskEngine != nil && e.cfg.RiskChecksEnabled {
		riskCtx := e.buildRiskContext(order)
		decision := e.riskEngine.Evaluate(riskCtx)
		if !decision.Allowed {
			for _, p := range decision.ViolatedPolicies {
				if e.metrics != nil {
					e.metrics.IncRiskRejection(p)
				}
			}
			return OrderAck{}, types.RiskRejectedError(decision.ViolatedPolicies)
		}
	}

	if limiter := e.limiters.For(string(order.Venue)); limiter != nil {
		if limiter.TryAcquire() != Acquired {
			if e.metrics != nil {
				e.metrics.IncRateLimitHit(string(order.Venue))
			}
			if err := limiter.Acquire(ctx); err != nil {
				return OrderAck{}, types.NewExecError(types.ErrTimeout, "rate limiter wait cancelled")
			}
		}
	}

	if order.ID == "" {
		order.ID = types.NewOrderId()
	}
	order.Status = types.OrderStatusSubmitting
	// Track before adapter call so a cancelled submission never leaves the
	// OMS partially tracked: either fully tracked, or Rejected on failure
	// (spec §5's cancellation invariant, the "track before ack" branch).
	if err := e.oms.TrackOrder(order); err != nil {
		return OrderAck{}, err
	}

	submitCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()
	ack, err := adapter.PlaceOrder(submitCtx, order)
	if err != nil {
		_ = e.oms.UpdateStatus(order.ID, types.OrderStatusRejected)
		if e.metrics != nil {
			e.metrics.IncOrdersRejected(string(order.Venue))
		}
		return OrderAck{}, err
	}

	if err := e.oms.UpdateStatus(order.ID, ack.Status); err != nil {
		e.logger.Warn("post-ack status transition rejected", zap.Error(err))
	}
	if e.metrics != nil {
		e.metrics.IncOrdersPlaced(string(order.Venue))
		e.metrics.ObserveLatencyMs(string(order.Venue), string(order.Market), float64(time.Since(start).Milliseconds()))
	}

	return ack, nil
}

func (e *Engine) buildRiskContext(order *types.Order) types.RiskContext {
	current := e.simulator.GetPosition(order.Market)
	delta := order.RequestedSize
	if order.Side == types.SideSell {
		delta = delta.Neg()
	}
	return types.RiskContext{
		MarketID:          order.Market,
		CurrentPosition:   current,
		ProposedSizeDelta: delta,
		InventoryValueUSD: e.simulator.GetInventoryValueUSD(nil),
	}
}

// CancelOrder looks up the tracked order, rejects if terminal, transitions
// to Cancelling, invokes the adapter, then accepts Cancelled or a racing
// Filled (spec §4.5).
func (e *Engine) CancelOrder(ctx context.Context, orderID types.OrderId) error {
	order := e.oms.GetOrder(orderID)
	if order == nil {
		return types.NewExecError(types.ErrOrderNotFound, "order not tracked")
	}
	if order.Status.Terminal() {
		return types.NewExecError(types.ErrInvalidOrderState, "cannot cancel a terminal order")
	}

	adapter, ok := e.adapterFor(order.Venue)
	if !ok {
		return types.NewExecError(types.ErrVenueNotSupported, "venue not registered: "+string(order.Venue))
	}

	if err := e.oms.UpdateStatus(orderID, types.OrderStatusCancelling); err != nil {
		return err
	}

	cancelCtx, cancel := context.WithTimeout(ctx, e.cfg.AdapterTimeout)
	defer cancel()
	ack, err := adapter.CancelOrder(cancelCtx, orderID)
	if err != nil {
		return err
	}

	finalStatus := ack.Status
	if finalStatus == "" {
		finalStatus = types.OrderStatusCancelled
	}
	if err := e.oms.UpdateStatus(orderID, finalStatus); err != nil {
		return err
	}
	if e.metrics != nil && finalStatus == types.OrderStatusCancelled {
		e.metrics.IncOrdersCancelled(string(order.Venue))
	}
	return nil
}

// RecordFill is the sole mutator of positions: records the fill via OMS and
// applies simulator.UpdatePosition. Idempotent on duplicate fills — OMS
// drops duplicates, so positions do not double-count.
func (e *Engine) RecordFill(orderID types.OrderId, fill types.Fill) error {
	order := e.oms.GetOrder(orderID)
	if order == nil {
		return types.NewExecError(types.ErrOrderNotFound, "order not tracked")
	}

	before := e.oms.GetFills(orderID)
	if err := e.oms.RecordFill(orderID, fill); err != nil {
		return err
	}
	after := e.oms.GetFills(orderID)
	if len(after) == len(before) {
		return nil // duplicate fill, already applied once
	}

	delta := fill.Size
	if order.Side == types.SideSell {
		delta = delta.Neg()
	}
	if err := e.simulator.UpdatePosition(order.Market, delta, fill.Price); err != nil {
		return err
	}

	e.mu.RLock()
	obs := e.markObs
	e.mu.RUnlock()
	if obs != nil {
		if mark, ok := fill.Price.Float64(); ok {
			obs.RecordMarkPrice(order.Market, mark)
		}
	}

	if e.metrics != nil {
		updated := e.oms.GetOrder(orderID)
		if updated != nil && updated.Status == types.OrderStatusFilled {
			e.metrics.IncOrdersFilled(string(order.Venue))
		}
	}
	return nil
}

// GetPosition is safe for concurrent callers.
func (e *Engine) GetPosition(market types.MarketId) types.Position {
	for _, p := range e.simulator.Snapshot() {
		if p.Market == market {
			return p
		}
	}
	return types.Position{Market: market}
}

// GetAllPositions is safe for concurrent callers.
func (e *Engine) GetAllPositions() []types.Position {
	return e.simulator.Snapshot()
}

// GetActiveOrders is safe for concurrent callers.
func (e *Engine) GetActiveOrders() []types.Order {
	return e.oms.GetActiveOrders()
}

// GetOrder is safe for concurrent callers.
func (e *Engine) GetOrder(id types.OrderId) *types.Order {
	return e.oms.GetOrder(id)
}
