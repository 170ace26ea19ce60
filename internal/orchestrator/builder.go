package orchestrator

import (
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// Signer signs submission payload hashes. Implemented by internal/crypto so
// the orchestrator never touches key material.
type Signer interface {
	SignHash(hash common.Hash) ([]byte, error)
	Address() common.Address
}

// callEnvelope is the canonical encoding of a plan's execution steps inside
// the payload calldata: flash loan borrow, swaps, profit capture, repayment.
type callEnvelope struct {
	PlanID    string             `json:"plan_id"`
	Strategy  string             `json:"strategy"`
	Provider  string             `json:"provider"`
	Routes    []domain.RouteStep `json:"routes"`
	AmountWei string             `json:"amount_wei,omitempty"`
	Slippage  float64            `json:"slippage_pct"`
	Timestamp int64              `json:"timestamp"`
}

// PayloadBuilder turns an ExecutionPlan into a signed SubmissionPayload.
type PayloadBuilder struct {
	signer Signer
}

// NewPayloadBuilder creates a builder that signs with the given signer.
func NewPayloadBuilder(signer Signer) *PayloadBuilder {
	return &PayloadBuilder{signer: signer}
}

// Build encodes the plan's routes into calldata, applies the plan's fee and
// routing parameters, and signs the payload hash. Each call produces a fresh
// payload (new timestamp, new signature) so a retry is a new submission
// attempt, never a replay of an accepted one.
func (b *PayloadBuilder) Build(plan domain.ExecutionPlan) (domain.SubmissionPayload, error) {
	if len(plan.Routes) == 0 {
		return domain.SubmissionPayload{}, fmt.Errorf("builder: plan %s has no routes: validation failed", plan.ID)
	}

	env := callEnvelope{
		PlanID:    plan.ID,
		Strategy:  plan.Strategy,
		Provider:  plan.Provider,
		Routes:    plan.Routes,
		Slippage:  plan.Params.SlippageTolerancePct,
		Timestamp: time.Now().UTC().UnixNano(),
	}
	if plan.Params.AmountWei != nil {
		env.AmountWei = plan.Params.AmountWei.String()
	}

	callData, err := json.Marshal(env)
	if err != nil {
		return domain.SubmissionPayload{}, fmt.Errorf("builder: encode calldata: %w", err)
	}

	maxFee := plan.Params.MaxFeePerGasWei
	if maxFee == nil {
		maxFee = big.NewInt(0)
	}
	// Priority fee rides at 10% of the fee ceiling.
	priority := new(big.Int).Div(new(big.Int).Set(maxFee), big.NewInt(10))

	payload := domain.SubmissionPayload{
		PlanID:              plan.ID,
		Sender:              b.signer.Address().Hex(),
		CallData:            callData,
		MaxFeePerGasWei:     maxFee,
		MaxPriorityFeeWei:   priority,
		AlternativeProvider: plan.Params.AlternativeProvider,
	}

	sig, err := b.signer.SignHash(PayloadHash(payload))
	if err != nil {
		return domain.SubmissionPayload{}, fmt.Errorf("builder: %w: %w", domain.ErrSigningFailed, err)
	}
	payload.Signature = sig

	return payload, nil
}

// PayloadHash computes the keccak256 digest the signer commits to: sender,
// calldata, and both fee fields.
func PayloadHash(p domain.SubmissionPayload) common.Hash {
	var maxFee, priority []byte
	if p.MaxFeePerGasWei != nil {
		maxFee = p.MaxFeePerGasWei.Bytes()
	}
	if p.MaxPriorityFeeWei != nil {
		priority = p.MaxPriorityFeeWei.Bytes()
	}
	return common.BytesToHash(ethcrypto.Keccak256(
		common.HexToAddress(p.Sender).Bytes(),
		p.CallData,
		maxFee,
		priority,
	))
}
