package metrics

// ExecutionSink adapts Registry to execution.MetricsSink without internal/
// metrics importing internal/execution (the engine depends on the sink
// interface, not the other way around).
type ExecutionSink struct {
	reg *Registry
}

// NewExecutionSink binds a Registry as an execution.MetricsSink.
func NewExecutionSink(reg *Registry) *ExecutionSink {
	return &ExecutionSink{reg: reg}
}

func (s *ExecutionSink) ObserveLatencyMs(venue, market string, ms float64) {
	s.reg.SubmitLatency.WithLabelValues(venue).Observe(ms / 1000.0)
}

func (s *ExecutionSink) IncOrdersPlaced(venue string) {
	s.reg.OrdersSubmitted.WithLabelValues(venue).Inc()
}

func (s *ExecutionSink) IncOrdersFilled(venue string) {
	s.reg.FillsRecorded.WithLabelValues(venue, "unknown").Inc()
}

func (s *ExecutionSink) IncOrdersCancelled(venue string) {
	s.reg.OrdersRejected.WithLabelValues(venue, "cancelled").Inc()
}

func (s *ExecutionSink) IncOrdersRejected(venue string) {
	s.reg.OrdersRejected.WithLabelValues(venue, "adapter_rejected").Inc()
}

func (s *ExecutionSink) IncRiskRejection(policy string) {
	s.reg.OrdersRejected.WithLabelValues("", policy).Inc()
}

func (s *ExecutionSink) IncRateLimitHit(venue string) {
	s.reg.RateLimiterWaits.WithLabelValues(venue).Inc()
}
