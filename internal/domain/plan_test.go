package domain

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	plan := ExecutionPlan{CreatedAt: now.Add(-time.Minute), TTL: 30 * time.Second}
	assert.True(t, plan.Expired(now))

	plan.TTL = 2 * time.Minute
	assert.False(t, plan.Expired(now))

	// Zero TTL never expires.
	plan.TTL = 0
	plan.CreatedAt = now.Add(-24 * time.Hour)
	assert.False(t, plan.Expired(now))
}

func TestPlanEstimatedLoss(t *testing.T) {
	plan := ExecutionPlan{}
	assert.Zero(t, plan.EstimatedLoss())

	// 0.02 ETH of gas at risk.
	plan.EstGasCostWei = new(big.Int).Mul(big.NewInt(2), big.NewInt(1e16))
	assert.InDelta(t, 0.02, plan.EstimatedLoss(), 1e-12)
}

func TestPlanParamsClone(t *testing.T) {
	orig := PlanParams{
		SlippageTolerancePct: 0.5,
		MaxFeePerGasWei:      big.NewInt(100),
		AmountWei:            big.NewInt(1000),
	}

	clone := orig.Clone()
	require.NotNil(t, clone.MaxFeePerGasWei)
	require.NotNil(t, clone.AmountWei)

	clone.MaxFeePerGasWei.SetInt64(999)
	clone.AmountWei.SetInt64(1)
	clone.SlippageTolerancePct = 9.9

	assert.Equal(t, int64(100), orig.MaxFeePerGasWei.Int64())
	assert.Equal(t, int64(1000), orig.AmountWei.Int64())
	assert.Equal(t, 0.5, orig.SlippageTolerancePct)
}
