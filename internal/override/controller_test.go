package override_test

import (
	"testing"

	"lv-bintrade/internal/override"
	"lv-bintrade/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPolicy() override.Policy {
	return override.Policy{
		Mode:             types.OverrideModeNormal,
		PayoutMultiplier: decimal.RequireFromString("1.85"),
		MinWager:         decimal.NewFromInt(1),
		MaxWager:         decimal.NewFromInt(10000),
	}
}

func TestResolve_Precedence(t *testing.T) {
	cases := []struct {
		name    string
		mode    types.OverrideMode
		always  bool
		raw     bool
		wantWon bool
	}{
		{"normal keeps raw win", types.OverrideModeNormal, false, true, true},
		{"normal keeps raw loss", types.OverrideModeNormal, false, false, false},
		{"force win overrides loss", types.OverrideModeForceWin, false, false, true},
		{"force loss overrides win", types.OverrideModeForceLoss, false, true, false},
		{"always loss beats force win", types.OverrideModeForceWin, true, true, false},
		{"always loss beats normal win", types.OverrideModeNormal, true, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPolicy()
			p.Mode = tc.mode
			p.AlwaysLoss = tc.always
			assert.Equal(t, tc.wantWon, p.Resolve(tc.raw))
		})
	}
}

func TestSetPolicy_Validation(t *testing.T) {
	ctrl := override.NewController(validPolicy())

	bad := validPolicy()
	bad.Mode = types.OverrideMode("rigged")
	assert.Error(t, ctrl.SetPolicy(bad))

	bad = validPolicy()
	bad.PayoutMultiplier = decimal.Zero
	assert.Error(t, ctrl.SetPolicy(bad))

	bad = validPolicy()
	bad.MaxWager = decimal.NewFromInt(0)
	assert.Error(t, ctrl.SetPolicy(bad))

	good := validPolicy()
	good.Mode = types.OverrideModeForceLoss
	require.NoError(t, ctrl.SetPolicy(good))
	assert.Equal(t, types.OverrideModeForceLoss, ctrl.Policy().Mode)
}

func TestPolicy_ReadIsSnapshot(t *testing.T) {
	ctrl := override.NewController(validPolicy())
	snap := ctrl.Policy()

	next := validPolicy()
	next.AlwaysLoss = true
	require.NoError(t, ctrl.SetPolicy(next))

	assert.False(t, snap.AlwaysLoss)
	assert.True(t, ctrl.Policy().AlwaysLoss)
}
