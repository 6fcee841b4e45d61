// Package risk implements the risk policy engine (spec §4.1), the position
// simulator (§4.2), and advanced quantitative risk analytics (§4.3).
package risk

import (
	"sync"
	"sync/atomic"

	"github.com/quantloop/core/pkg/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleConfig is the wire shape of one rule in a policy config document
// (spec §6: "Each rule has a type discriminator").
type RuleConfig struct {
	Type string `yaml:"type" json:"type"`

	Market     string  `yaml:"market,omitempty" json:"market,omitempty"`
	MaxAbsSize float64 `yaml:"max_abs_size,omitempty" json:"max_abs_size,omitempty"`

	MaxNotionalUSD float64 `yaml:"max_notional_usd,omitempty" json:"max_notional_usd,omitempty"`

	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	MaxVarUSD   float64 `yaml:"max_var_usd,omitempty" json:"max_var_usd,omitempty"`
	Confidence  float64 `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	HorizonDays float64 `yaml:"horizon_days,omitempty" json:"horizon_days,omitempty"`

	MaxDelta float64 `yaml:"max_delta,omitempty" json:"max_delta,omitempty"`
	MaxGamma float64 `yaml:"max_gamma,omitempty" json:"max_gamma,omitempty"`
	MaxVega  float64 `yaml:"max_vega,omitempty" json:"max_vega,omitempty"`
}

// PolicyConfig is the top-level document shape (spec §6: "policies: [rule, ...]").
type PolicyConfig struct {
	Policies []RuleConfig `yaml:"policies" json:"policies"`
}

// ConfigFormat selects the decoder used by FromConfig.
type ConfigFormat string

const (
	FormatYAML ConfigFormat = "yaml"
	FormatJSON ConfigFormat = "json"
)

// KillSwitchEvent is published on the Events() channel whenever the
// process-wide kill-switch flips, mirroring the teacher's RiskManager
// event-sink idiom (internal/execution/risk_manager.go).
type KillSwitchEvent struct {
	Triggered bool
	Reason    string
}

// Engine evaluates a RiskContext against a fixed-order rule set and holds
// the process-wide kill-switch (spec §4.1). Reads are safe for concurrent
// callers; the kill-switch toggle is exclusive-writer/shared-reader.
type Engine struct {
	logger *zap.Logger

	mu    sync.RWMutex
	rules []types.PolicyRule

	killSwitch atomic.Bool

	events chan KillSwitchEvent

	advancedMu sync.RWMutex
	advanced   AdvancedRiskChecker
}

// NewEngine constructs an Engine with an explicit, already-validated rule
// set. Use FromConfig to parse and validate one from a config document.
func NewEngine(logger *zap.Logger, rules []types.PolicyRule) *Engine {
	return &Engine{
		logger: logger.Named("risk"),
		rules:  rules,
		events: make(chan KillSwitchEvent, 64),
	}
}

// FromConfig parses a rule list document, rejecting unknown variants and
// negative limits (spec §4.1). Missing fields are not detected: an absent
// numeric limit decodes as zero and is accepted.
func FromConfig(logger *zap.Logger, text []byte, format ConfigFormat) (*Engine, error) {
	var cfg PolicyConfig
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(text, &cfg); err != nil {
			return nil, &types.ConfigError{Message: "yaml parse: " + err.Error()}
		}
	case FormatJSON:
		if err := unmarshalJSON(text, &cfg); err != nil {
			return nil, &types.ConfigError{Message: "json parse: " + err.Error()}
		}
	default:
		return nil, &types.ConfigError{Field: "format", Message: "unknown config format"}
	}

	rules := make([]types.PolicyRule, 0, len(cfg.Policies))
	for i, rc := range cfg.Policies {
		rule, err := decodeRule(rc)
		if err != nil {
			return nil, &types.ConfigError{Field: rc.Type, Message: err.Error() + " (policy index " + itoa(i) + ")"}
		}
		rules = append(rules, rule)
	}

	return NewEngine(logger, rules), nil
}

func decodeRule(rc RuleConfig) (types.PolicyRule, error) {
	switch types.PolicyKind(rc.Type) {
	case types.PolicyPositionLimit:
		if rc.MaxAbsSize < 0 {
			return types.PolicyRule{}, errNegative("max_abs_size")
		}
		return types.PolicyRule{
			Kind:       types.PolicyPositionLimit,
			Market:     types.MarketId(rc.Market),
			MaxAbsSize: decimalFromFloat(rc.MaxAbsSize),
		}, nil
	case types.PolicyInventoryLimit:
		if rc.MaxNotionalUSD < 0 {
			return types.PolicyRule{}, errNegative("max_notional_usd")
		}
		return types.PolicyRule{
			Kind:           types.PolicyInventoryLimit,
			MaxNotionalUSD: decimalFromFloat(rc.MaxNotionalUSD),
		}, nil
	case types.PolicyKillSwitch:
		return types.PolicyRule{Kind: types.PolicyKillSwitch, Enabled: rc.Enabled}, nil
	case types.PolicyVarLimit:
		if rc.MaxVarUSD < 0 {
			return types.PolicyRule{}, errNegative("max_var_usd")
		}
		return types.PolicyRule{
			Kind:        types.PolicyVarLimit,
			MaxVarUSD:   decimalFromFloat(rc.MaxVarUSD),
			Confidence:  rc.Confidence,
			HorizonDays: rc.HorizonDays,
		}, nil
	case types.PolicyGreeksLimit:
		if rc.MaxDelta < 0 || rc.MaxGamma < 0 || rc.MaxVega < 0 {
			return types.PolicyRule{}, errNegative("max_delta/max_gamma/max_vega")
		}
		return types.PolicyRule{
			Kind:     types.PolicyGreeksLimit,
			MaxDelta: decimalFromFloat(rc.MaxDelta),
			MaxGamma: decimalFromFloat(rc.MaxGamma),
			MaxVega:  decimalFromFloat(rc.MaxVega),
		}, nil
	default:
		return types.PolicyRule{}, &types.ConfigError{Field: "type", Message: "unknown policy rule type: " + rc.Type}
	}
}

// Evaluate is pure and thread-safe for concurrent readers. Rules are
// evaluated in the fixed order of spec §4.1: KillSwitch short-circuits;
// PositionLimit, InventoryLimit, VarLimit/GreeksLimit accumulate.
func (e *Engine) Evaluate(ctx types.RiskContext) types.RiskDecision {
	if e.killSwitch.Load() {
		return types.RiskDecision{Allowed: false, ViolatedPolicies: []string{string(types.PolicyKillSwitch)}}
	}

	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var violated []string

	// PositionLimit: market-specific rule wins over global.
	var marketRule, globalRule *types.PolicyRule
	for i := range rules {
		if rules[i].Kind != types.PolicyPositionLimit {
			continue
		}
		r := &rules[i]
		if r.Market != "" && r.Market == ctx.MarketID {
			marketRule = r
		} else if r.Market == "" {
			globalRule = r
		}
	}
	posRule := marketRule
	if posRule == nil {
		posRule = globalRule
	}
	if posRule != nil {
		proposed := ctx.CurrentPosition.Add(ctx.ProposedSizeDelta).Abs()
		if proposed.GreaterThan(posRule.MaxAbsSize) {
			violated = append(violated, string(types.PolicyPositionLimit))
		}
	}

	e.advancedMu.RLock()
	advanced := e.advanced
	e.advancedMu.RUnlock()

	for i := range rules {
		r := &rules[i]
		switch r.Kind {
		case types.PolicyInventoryLimit:
			if ctx.InventoryValueUSD.GreaterThan(r.MaxNotionalUSD) {
				violated = append(violated, string(types.PolicyInventoryLimit))
			}
		case types.PolicyVarLimit:
			if advanced == nil {
				continue
			}
			if hit, err := advanced.CheckVaRLimit(ctx, *r); err != nil {
				e.logger.Warn("VaR limit check failed", zap.Error(err))
			} else if hit {
				violated = append(violated, string(types.PolicyVarLimit))
			}
		case types.PolicyGreeksLimit:
			if advanced == nil {
				continue
			}
			if hit, err := advanced.CheckGreeksLimit(ctx, *r); err != nil {
				e.logger.Warn("Greeks limit check failed", zap.Error(err))
			} else if hit {
				violated = append(violated, string(types.PolicyGreeksLimit))
			}
		}
	}

	return types.RiskDecision{Allowed: len(violated) == 0, ViolatedPolicies: violated}
}

// TriggerKillSwitch sets the process-wide kill flag. Exclusive writer.
func (e *Engine) TriggerKillSwitch(reason string) {
	e.killSwitch.Store(true)
	e.logger.Warn("kill switch triggered", zap.String("reason", reason))
	e.publish(KillSwitchEvent{Triggered: true, Reason: reason})
}

// ResetKillSwitch clears the process-wide kill flag.
func (e *Engine) ResetKillSwitch() {
	e.killSwitch.Store(false)
	e.logger.Info("kill switch reset")
	e.publish(KillSwitchEvent{Triggered: false})
}

// KillSwitchActive reports the current kill-switch state.
func (e *Engine) KillSwitchActive() bool {
	return e.killSwitch.Load()
}

// Events returns the kill-switch notification channel. Non-blocking send:
// a full channel drops the event rather than stalling the trigger path.
func (e *Engine) Events() <-chan KillSwitchEvent {
	return e.events
}

func (e *Engine) publish(ev KillSwitchEvent) {
	select {
	case e.events <- ev:
	default:
		e.logger.Warn("kill switch event dropped, channel full")
	}
}

// UpdateRules replaces the active rule set (e.g. hot-reload of config).
func (e *Engine) UpdateRules(rules []types.PolicyRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = rules
}

// SetAdvancedRiskChecker wires a VaR/Greeks evaluator into the engine
// (spec §4.1 step 4). Pass nil to unwire it, in which case VarLimit and
// GreeksLimit rules are left unenforced.
func (e *Engine) SetAdvancedRiskChecker(checker AdvancedRiskChecker) {
	e.advancedMu.Lock()
	defer e.advancedMu.Unlock()
	e.advanced = checker
}

func errNegative(field string) error {
	return &types.ConfigError{Field: field, Message: "must not be negative"}
}
