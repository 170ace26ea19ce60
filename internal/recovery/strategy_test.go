package recovery

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.ErrorKind
		attempt int
		want    Strategy
	}{
		{"slippage", domain.ErrorKindSlippage, 1, StrategyRetryReducedSlippage},
		{"gas", domain.ErrorKindInsufficientGas, 1, StrategyRetryHigherGas},
		{"liquidity first attempt", domain.ErrorKindInsufficientLiquidity, 1, StrategyRetryAlternativeProvider},
		{"liquidity second attempt", domain.ErrorKindInsufficientLiquidity, 2, StrategyRetrySmallerPosition},
		{"liquidity later attempts", domain.ErrorKindInsufficientLiquidity, 4, StrategyRetrySmallerPosition},
		{"revert", domain.ErrorKindExecutionReverted, 1, StrategyManualReview},
		{"validation", domain.ErrorKindValidationFailed, 1, StrategyAbortGraceful},
		{"timeout", domain.ErrorKindTimeout, 1, StrategyRetryHigherGas},
		{"network", domain.ErrorKindNetworkError, 1, StrategyRetryHigherGas},
		{"unknown", domain.ErrorKindUnknown, 1, StrategyRetryHigherGas},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StrategyFor(tt.kind, tt.attempt))
		})
	}
}

func TestStrategyTerminal(t *testing.T) {
	assert.True(t, StrategyAbortGraceful.Terminal())
	assert.True(t, StrategyManualReview.Terminal())
	assert.False(t, StrategyRetryReducedSlippage.Terminal())
	assert.False(t, StrategyRetryHigherGas.Terminal())
	assert.False(t, StrategyRetryAlternativeProvider.Terminal())
	assert.False(t, StrategyRetrySmallerPosition.Terminal())
}

func TestApply_Slippage(t *testing.T) {
	params := domain.PlanParams{SlippageTolerancePct: 0.50}

	adjusted, ok := Apply(StrategyRetryReducedSlippage, params)
	require.True(t, ok)
	assert.InDelta(t, 0.55, adjusted.SlippageTolerancePct, 1e-12)

	// Increments compound across attempts.
	adjusted, ok = Apply(StrategyRetryReducedSlippage, adjusted)
	require.True(t, ok)
	assert.InDelta(t, 0.60, adjusted.SlippageTolerancePct, 1e-12)
}

func TestApply_HigherGas(t *testing.T) {
	params := domain.PlanParams{MaxFeePerGasWei: big.NewInt(1000)}

	adjusted, ok := Apply(StrategyRetryHigherGas, params)
	require.True(t, ok)
	assert.Equal(t, int64(1200), adjusted.MaxFeePerGasWei.Int64())
	// Original untouched.
	assert.Equal(t, int64(1000), params.MaxFeePerGasWei.Int64())
}

func TestApply_SmallerPosition(t *testing.T) {
	params := domain.PlanParams{AmountWei: big.NewInt(1000)}

	adjusted, ok := Apply(StrategyRetrySmallerPosition, params)
	require.True(t, ok)
	assert.Equal(t, int64(700), adjusted.AmountWei.Int64())
	assert.Equal(t, int64(1000), params.AmountWei.Int64())
}

func TestApply_AlternativeProvider(t *testing.T) {
	params := domain.PlanParams{}

	adjusted, ok := Apply(StrategyRetryAlternativeProvider, params)
	require.True(t, ok)
	assert.True(t, adjusted.AlternativeProvider)
	assert.False(t, params.AlternativeProvider)
}

func TestApply_TerminalReturnsFalse(t *testing.T) {
	params := domain.PlanParams{SlippageTolerancePct: 0.5}

	for _, s := range []Strategy{StrategyAbortGraceful, StrategyManualReview} {
		adjusted, ok := Apply(s, params)
		assert.False(t, ok, "strategy %s", s)
		assert.Equal(t, params, adjusted)
	}
}

func TestApply_NilBigIntsAreSafe(t *testing.T) {
	params := domain.PlanParams{}

	adjusted, ok := Apply(StrategyRetryHigherGas, params)
	require.True(t, ok)
	assert.Nil(t, adjusted.MaxFeePerGasWei)

	adjusted, ok = Apply(StrategyRetrySmallerPosition, params)
	require.True(t, ok)
	assert.Nil(t, adjusted.AmountWei)
}
