package domain

import (
	"math/big"
	"time"
)

// RouteStep is one hop of an arbitrage route (borrow, swap, repay).
type RouteStep struct {
	Venue        string   `json:"venue"` // e.g. "uniswap_v3", "curve"
	TokenIn      string   `json:"token_in"`
	TokenOut     string   `json:"token_out"`
	AmountIn     *big.Int `json:"amount_in"`      // wei
	MinAmountOut *big.Int `json:"min_amount_out"` // wei, slippage-bounded
}

// PlanParams are the execution knobs a recovery strategy is allowed to adjust
// between attempts. A strategy always works on a copy; the plan the strategy
// layer handed us is never mutated.
type PlanParams struct {
	SlippageTolerancePct float64  `json:"slippage_tolerance_pct"` // allowed slippage, percentage points
	MaxFeePerGasWei      *big.Int `json:"max_fee_per_gas_wei"`    // fee ceiling for the submission
	AmountWei            *big.Int `json:"amount_wei"`             // position size
	AlternativeProvider  bool     `json:"alternative_provider"`   // route via the secondary provider
}

// Clone returns a deep copy of the params. big.Int fields are copied so the
// caller can adjust them freely.
func (p PlanParams) Clone() PlanParams {
	out := p
	if p.MaxFeePerGasWei != nil {
		out.MaxFeePerGasWei = new(big.Int).Set(p.MaxFeePerGasWei)
	}
	if p.AmountWei != nil {
		out.AmountWei = new(big.Int).Set(p.AmountWei)
	}
	return out
}

// ExecutionPlan describes one attempted arbitrage operation. It is created by
// the strategy layer, consumed exactly once by the orchestrator, and treated
// as immutable after creation.
type ExecutionPlan struct {
	ID             string        `json:"id"` // UUID
	Strategy       string        `json:"strategy"`
	Tokens         []string      `json:"tokens"`
	Routes         []RouteStep   `json:"routes"`
	Params         PlanParams    `json:"params"`
	EstProfitETH   float64       `json:"est_profit_eth"`
	EstGasCostWei  *big.Int      `json:"est_gas_cost_wei"`
	EstSlippagePct float64       `json:"est_slippage_pct"`
	Provider       string        `json:"provider"` // flash loan provider
	CreatedAt      time.Time     `json:"created_at"`
	TTL            time.Duration `json:"ttl_ns"`
}

// Expired reports whether the plan is too old to submit. Plans with a zero
// TTL never expire.
func (p ExecutionPlan) Expired(now time.Time) bool {
	if p.TTL <= 0 {
		return false
	}
	return now.Sub(p.CreatedAt) > p.TTL
}

// EstimatedLoss is the loss the breaker should assume if this plan goes
// wrong, used for the pre-flight daily-loss gate. Gas is the money already
// spent when an attempt fails.
func (p ExecutionPlan) EstimatedLoss() float64 {
	if p.EstGasCostWei == nil {
		return 0
	}
	gas, _ := new(big.Float).Quo(
		new(big.Float).SetInt(p.EstGasCostWei),
		big.NewFloat(1e18),
	).Float64()
	return gas
}
