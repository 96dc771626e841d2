package override

import (
	"sync"

	"lv-bintrade/internal/apperr"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
)

// Policy is the operator-configured settlement rule set. It is read
// and written only as a whole value, never field by field.
type Policy struct {
	Mode             types.OverrideMode `json:"mode"`
	AlwaysLoss       bool               `json:"always_loss"`
	PayoutMultiplier decimal.Decimal    `json:"payout_multiplier"`
	MinWager         decimal.Decimal    `json:"min_wager"`
	MaxWager         decimal.Decimal    `json:"max_wager"`
}

// Controller owns the single process-wide Policy.
type Controller struct {
	mu     sync.RWMutex
	policy Policy
}

func NewController(initial Policy) *Controller {
	if initial.Mode == "" {
		initial.Mode = types.OverrideModeNormal
	}
	return &Controller{policy: initial}
}

func (c *Controller) Policy() Policy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.policy
}

func (c *Controller) SetPolicy(p Policy) error {
	switch p.Mode {
	case types.OverrideModeNormal, types.OverrideModeForceWin, types.OverrideModeForceLoss:
	default:
		return apperr.Validation("mode", "unknown override mode")
	}
	if !p.PayoutMultiplier.GreaterThan(decimal.Zero) {
		return apperr.Validation("payout_multiplier", "must be positive")
	}
	if !p.MinWager.GreaterThan(decimal.Zero) || p.MaxWager.LessThan(p.MinWager) {
		return apperr.Validation("wager_limits", "min must be positive and not exceed max")
	}
	c.mu.Lock()
	c.policy = p
	c.mu.Unlock()
	return nil
}

// Resolve applies override precedence to the raw price outcome:
// alwaysLoss beats everything, then forced modes, then the raw result.
func (p Policy) Resolve(rawWon bool) bool {
	if p.AlwaysLoss {
		return false
	}
	switch p.Mode {
	case types.OverrideModeForceWin:
		return true
	case types.OverrideModeForceLoss:
		return false
	default:
		return rawWon
	}
}
