package orchestrator

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

func TestBuild(t *testing.T) {
	b := NewPayloadBuilder(fakeSigner{})
	plan := testPlan("plan-1")

	payload, err := b.Build(plan)
	require.NoError(t, err)

	assert.Equal(t, "plan-1", payload.PlanID)
	assert.Equal(t, fakeSigner{}.Address().Hex(), payload.Sender)
	assert.Len(t, payload.Signature, 65)
	require.NotNil(t, payload.MaxFeePerGasWei)
	assert.Equal(t, int64(30_000_000_000), payload.MaxFeePerGasWei.Int64())
	// Priority fee rides at 10% of the ceiling.
	assert.Equal(t, int64(3_000_000_000), payload.MaxPriorityFeeWei.Int64())

	var env struct {
		PlanID   string             `json:"plan_id"`
		Strategy string             `json:"strategy"`
		Provider string             `json:"provider"`
		Routes   []domain.RouteStep `json:"routes"`
		Slippage float64            `json:"slippage_pct"`
	}
	require.NoError(t, json.Unmarshal(payload.CallData, &env))
	assert.Equal(t, "plan-1", env.PlanID)
	assert.Equal(t, "tri_dex", env.Strategy)
	assert.Equal(t, "aave_v3", env.Provider)
	require.Len(t, env.Routes, 1)
	assert.Equal(t, "uniswap_v3", env.Routes[0].Venue)
	assert.InDelta(t, 0.50, env.Slippage, 1e-12)
}

func TestBuild_NoRoutesFails(t *testing.T) {
	b := NewPayloadBuilder(fakeSigner{})
	plan := testPlan("plan-1")
	plan.Routes = nil

	_, err := b.Build(plan)
	require.Error(t, err)
	// The message must classify as a validation failure, not a retryable kind.
	assert.Equal(t, domain.ErrorKindValidationFailed, domain.Classify(err.Error()))
}

func TestBuild_NilFeeDefaultsToZero(t *testing.T) {
	b := NewPayloadBuilder(fakeSigner{})
	plan := testPlan("plan-1")
	plan.Params.MaxFeePerGasWei = nil

	payload, err := b.Build(plan)
	require.NoError(t, err)
	require.NotNil(t, payload.MaxFeePerGasWei)
	assert.Zero(t, payload.MaxFeePerGasWei.Int64())
	assert.Zero(t, payload.MaxPriorityFeeWei.Int64())
}

// Each build produces a fresh signature over fresh calldata: a retry is a new
// submission, never a replay.
func TestBuild_FreshPayloadPerCall(t *testing.T) {
	b := NewPayloadBuilder(fakeSigner{})
	plan := testPlan("plan-1")

	p1, err := b.Build(plan)
	require.NoError(t, err)
	p2, err := b.Build(plan)
	require.NoError(t, err)

	// Timestamps inside the calldata differ, so the hashes and signatures do
	// too.
	assert.NotEqual(t, p1.CallData, p2.CallData)
	assert.NotEqual(t, p1.Signature, p2.Signature)
}

func TestPayloadHash_CoversFeeFields(t *testing.T) {
	base := domain.SubmissionPayload{
		Sender:          "0x0000000000000000000000000000000000000a11",
		CallData:        []byte(`{"plan_id":"p"}`),
		MaxFeePerGasWei: big.NewInt(100),
	}
	bumped := base
	bumped.MaxFeePerGasWei = big.NewInt(120)

	assert.NotEqual(t, PayloadHash(base), PayloadHash(bumped))
}
