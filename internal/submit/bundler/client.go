// Package bundler implements the submission channel against an ERC-4337
// bundler over JSON-RPC: eth_sendUserOperation to submit and
// eth_getUserOperationReceipt polling to confirm.
package bundler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// Config holds the bundler endpoints and chain parameters.
type Config struct {
	// RPCURL is the primary bundler endpoint.
	RPCURL string

	// AlternativeRPCURL serves payloads flagged for the secondary provider.
	// Falls back to RPCURL when unset.
	AlternativeRPCURL string

	// EntryPoint is the EntryPoint contract address passed with every
	// submission.
	EntryPoint string

	// Paymaster, when set, is attached for gas sponsorship.
	Paymaster string

	// ChainID identifies the target chain.
	ChainID int64
}

// Client is the JSON-RPC bundler client. It implements
// domain.SubmissionChannel.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	reqID      atomic.Int64
}

// New creates a bundler client for the given endpoints.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With(slog.String("component", "bundler_client")),
	}
}

// Submit sends the payload as a user operation and returns the provisional
// user-operation hash. Payloads flagged for the alternative provider go to
// the secondary endpoint.
func (c *Client) Submit(ctx context.Context, payload domain.SubmissionPayload) (domain.Receipt, error) {
	op := userOperation{
		Sender:    payload.Sender,
		CallData:  hexutil.Encode(payload.CallData),
		Signature: hexutil.Encode(payload.Signature),
		Paymaster: c.cfg.Paymaster,
	}
	if payload.MaxFeePerGasWei != nil {
		op.MaxFeePerGas = hexutil.EncodeBig(payload.MaxFeePerGasWei)
	}
	if payload.MaxPriorityFeeWei != nil {
		op.MaxPriorityFeePerGas = hexutil.EncodeBig(payload.MaxPriorityFeeWei)
	}

	endpoint := c.endpoint(payload.AlternativeProvider)

	var opHash string
	if err := c.call(ctx, endpoint, "eth_sendUserOperation", []any{op, c.cfg.EntryPoint}, &opHash); err != nil {
		return domain.Receipt{}, fmt.Errorf("bundler: send user operation: %w", err)
	}

	c.logger.DebugContext(ctx, "user operation accepted",
		slog.String("plan_id", payload.PlanID),
		slog.String("user_op_hash", opHash),
		slog.Bool("alternative", payload.AlternativeProvider),
	)

	return domain.Receipt{Ref: opHash, AcceptedAt: time.Now().UTC()}, nil
}

// AwaitConfirmation polls eth_getUserOperationReceipt at pollInterval until
// the operation lands, timeout elapses, or ctx is cancelled. Timeout and
// cancellation both surface as domain.ErrConfirmationTimeout.
func (c *Client) AwaitConfirmation(ctx context.Context, ref string, timeout, pollInterval time.Duration) (domain.Confirmation, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		receipt, found, err := c.receipt(ctx, ref)
		if err != nil {
			// Transient RPC trouble during polling is not terminal; the
			// deadline bounds the overall wait.
			if ctx.Err() != nil {
				return domain.Confirmation{}, fmt.Errorf("bundler: %w: %s", domain.ErrConfirmationTimeout, ref)
			}
			c.logger.WarnContext(ctx, "receipt poll failed",
				slog.String("user_op_hash", ref),
				slog.String("error", err.Error()),
			)
		}
		if found {
			return domain.Confirmation{
				TxHash:      receipt.Receipt.TransactionHash,
				BlockNumber: parseHexUint(receipt.Receipt.BlockNumber),
				GasUsed:     parseHexUint(receipt.ActualGas),
				Success:     receipt.Success,
			}, nil
		}

		select {
		case <-ctx.Done():
			return domain.Confirmation{}, fmt.Errorf("bundler: %w: %s", domain.ErrConfirmationTimeout, ref)
		case <-ticker.C:
		}
	}
}

// receipt fetches the user-operation receipt; found is false while pending.
func (c *Client) receipt(ctx context.Context, ref string) (userOpReceipt, bool, error) {
	var raw json.RawMessage
	if err := c.call(ctx, c.cfg.RPCURL, "eth_getUserOperationReceipt", []any{ref}, &raw); err != nil {
		return userOpReceipt{}, false, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return userOpReceipt{}, false, nil
	}
	var rec userOpReceipt
	if err := json.Unmarshal(raw, &rec); err != nil {
		return userOpReceipt{}, false, fmt.Errorf("decode receipt: %w", err)
	}
	return rec, true, nil
}

func (c *Client) endpoint(alternative bool) string {
	if alternative && c.cfg.AlternativeRPCURL != "" {
		return c.cfg.AlternativeRPCURL
	}
	return c.cfg.RPCURL
}

// call performs one JSON-RPC request and decodes the result into out.
func (c *Client) call(ctx context.Context, endpoint, method string, params []any, out any) error {
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out != nil {
		if err := json.Unmarshal(rpcResp.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

func parseHexUint(s string) uint64 {
	if s == "" {
		return 0
	}
	v, err := hexutil.DecodeUint64(s)
	if err != nil {
		return 0
	}
	return v
}
