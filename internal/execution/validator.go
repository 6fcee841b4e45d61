package execution

import (
	"github.com/quantloop/core/pkg/types"
	"github.com/shopspring/decimal"
)

// ValidatorConfig holds the static bounds checked before risk evaluation
// (spec §4.4). Defaults match a binary-outcome market price range.
type ValidatorConfig struct {
	MinSize  decimal.Decimal
	MaxSize  decimal.Decimal
	MinPrice decimal.Decimal
	MaxPrice decimal.Decimal
}

// DefaultValidatorConfig returns spec §4.4's stated defaults.
func DefaultValidatorConfig() ValidatorConfig {
	return ValidatorConfig{
		MinSize:  decimal.NewFromFloat(0.01),
		MaxSize:  decimal.NewFromInt(1_000_000),
		MinPrice: decimal.NewFromFloat(0.0001),
		MaxPrice: decimal.NewFromFloat(1.0),
	}
}

// Validator applies stateless pre-submission checks.
type Validator struct {
	cfg ValidatorConfig
}

// NewValidator constructs a Validator with the given bounds.
func NewValidator(cfg ValidatorConfig) *Validator {
	return &Validator{cfg: cfg}
}

// Validate runs the static checks of spec §4.4, returning a ValidationError
// ExecError on the first violation found (ids, size, price, type/TIF).
func (v *Validator) Validate(o *types.Order) error {
	if o.Venue == "" || o.Market == "" || o.ClientOrderID == "" {
		return types.NewExecError(types.ErrValidation, "order venue, market and client order id are required")
	}
	if o.RequestedSize.LessThanOrEqual(decimal.Zero) {
		return types.NewExecError(types.ErrValidation, "size must be > 0")
	}
	if o.RequestedSize.LessThan(v.cfg.MinSize) || o.RequestedSize.GreaterThan(v.cfg.MaxSize) {
		return types.NewExecError(types.ErrValidation, "size out of bounds")
	}

	switch o.Type {
	case types.OrderTypeMarket:
		if o.Price != nil {
			return types.NewExecError(types.ErrValidation, "market order must not carry a price")
		}
	case types.OrderTypeLimit, types.OrderTypePostOnly:
		if o.Price == nil {
			return types.NewExecError(types.ErrValidation, "limit/post-only order requires a price")
		}
		if o.Price.LessThan(v.cfg.MinPrice) || o.Price.GreaterThan(v.cfg.MaxPrice) {
			return types.NewExecError(types.ErrValidation, "price out of bounds")
		}
	default:
		return types.NewExecError(types.ErrValidation, "unknown order type")
	}

	if o.Type == types.OrderTypePostOnly && (o.TIF == types.TIFImmediateOrCancel || o.TIF == types.TIFFillOrKill) {
		return types.NewExecError(types.ErrValidation, "post-only forbids IOC/FOK time-in-force")
	}

	return nil
}
