// Package recovery implements failure recovery for execution attempts:
// a deterministic strategy table keyed by error classification, parameter
// adjustment for retries, and an exponential-backoff retry engine.
package recovery

import (
	"math/big"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// Strategy is the action taken after a classified failure.
type Strategy string

const (
	StrategyRetryReducedSlippage     Strategy = "retry_reduced_slippage"
	StrategyRetryHigherGas           Strategy = "retry_higher_gas"
	StrategyRetryAlternativeProvider Strategy = "retry_alternative_provider"
	StrategyRetrySmallerPosition     Strategy = "retry_smaller_position"
	StrategyAbortGraceful            Strategy = "abort_graceful"
	StrategyManualReview             Strategy = "manual_review"
)

// Terminal reports whether the strategy forbids further retries.
func (s Strategy) Terminal() bool {
	return s == StrategyAbortGraceful || s == StrategyManualReview
}

// StrategyFor selects the recovery strategy for an error kind and attempt
// number (1-indexed). The mapping is a pure lookup: no randomness, same
// inputs always give the same strategy.
func StrategyFor(kind domain.ErrorKind, attempt int) Strategy {
	switch kind {
	case domain.ErrorKindSlippage:
		return StrategyRetryReducedSlippage
	case domain.ErrorKindInsufficientGas:
		return StrategyRetryHigherGas
	case domain.ErrorKindInsufficientLiquidity:
		// First try the secondary flash loan provider, then shrink the
		// position.
		if attempt <= 1 {
			return StrategyRetryAlternativeProvider
		}
		return StrategyRetrySmallerPosition
	case domain.ErrorKindExecutionReverted:
		return StrategyManualReview
	case domain.ErrorKindValidationFailed:
		return StrategyAbortGraceful
	case domain.ErrorKindTimeout, domain.ErrorKindNetworkError:
		return StrategyRetryHigherGas
	default:
		return StrategyRetryHigherGas
	}
}

// Adjustment constants. Slippage widens by a fixed increment in percentage
// points; gas and position size scale by fixed multipliers.
const slippageIncrementPct = 0.05

var (
	gasNumerator      = big.NewInt(12) // x1.2
	positionNumerator = big.NewInt(7)  // x0.7
	adjustmentDenom   = big.NewInt(10)
)

// Apply returns a copy of params adjusted per the strategy. The second return
// is false for terminal strategies (AbortGraceful, ManualReview): the caller
// must not retry and the original params are returned untouched.
func Apply(s Strategy, params domain.PlanParams) (domain.PlanParams, bool) {
	if s.Terminal() {
		return params, false
	}

	adjusted := params.Clone()

	switch s {
	case StrategyRetryReducedSlippage:
		adjusted.SlippageTolerancePct += slippageIncrementPct
	case StrategyRetryHigherGas:
		if adjusted.MaxFeePerGasWei != nil {
			adjusted.MaxFeePerGasWei.Mul(adjusted.MaxFeePerGasWei, gasNumerator)
			adjusted.MaxFeePerGasWei.Div(adjusted.MaxFeePerGasWei, adjustmentDenom)
		}
	case StrategyRetrySmallerPosition:
		if adjusted.AmountWei != nil {
			adjusted.AmountWei.Mul(adjusted.AmountWei, positionNumerator)
			adjusted.AmountWei.Div(adjusted.AmountWei, adjustmentDenom)
		}
	case StrategyRetryAlternativeProvider:
		adjusted.AlternativeProvider = true
	}

	return adjusted, true
}
