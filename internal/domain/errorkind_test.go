package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ErrorKind
	}{
		{"slippage", "price slippage exceeded", ErrorKindSlippage},
		{"tolerance", "amount out below tolerance", ErrorKindSlippage},
		{"gas", "out of gas", ErrorKindInsufficientGas},
		{"insufficient funds", "insufficient funds for transfer", ErrorKindInsufficientGas},
		{"liquidity", "not enough liquidity in pair", ErrorKindInsufficientLiquidity},
		{"pool", "pool reserves too low", ErrorKindInsufficientLiquidity},
		{"revert", "transaction reverted", ErrorKindExecutionReverted},
		{"execution", "execution failed", ErrorKindExecutionReverted},
		{"validation", "validation error on calldata", ErrorKindValidationFailed},
		{"invalid", "invalid signature", ErrorKindValidationFailed},
		{"timeout", "request timeout after 30s", ErrorKindTimeout},
		{"network", "network unreachable", ErrorKindNetworkError},
		{"connection", "connection refused", ErrorKindNetworkError},
		{"unknown", "something odd happened", ErrorKindUnknown},
		{"empty", "", ErrorKindUnknown},
		{"case insensitive", "SLIPPAGE TOO HIGH", ErrorKindSlippage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

// Matching order is fixed: an ambiguous message must resolve the same way
// every time, earliest rule wins.
func TestClassify_OrderIsDeterministic(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want ErrorKind
	}{
		{"slippage beats gas", "slippage too high, not enough gas", ErrorKindSlippage},
		{"gas beats liquidity", "gas estimation failed: low liquidity", ErrorKindInsufficientGas},
		{"liquidity beats revert", "liquidity check reverted", ErrorKindInsufficientLiquidity},
		{"revert beats validation", "revert: invalid opcode", ErrorKindExecutionReverted},
		{"validation beats timeout", "invalid request: timeout", ErrorKindValidationFailed},
		{"timeout beats network", "timeout waiting for connection", ErrorKindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.msg))
		})
	}
}

func TestSeverityOf(t *testing.T) {
	tests := []struct {
		msg  string
		want Severity
	}{
		{"transaction reverted", SeverityCritical},
		{"out_of_gas", SeverityCritical},
		{"execution_failed", SeverityCritical},
		{"slippage exceeded", SeverityHigh},
		{"timeout after 5s", SeverityHigh},
		{"invalid nonce", SeverityHigh},
		{"connection reset", SeverityMedium},
		{"network flake", SeverityMedium},
		{"mystery", SeverityLow},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, SeverityOf(tt.msg))
		})
	}
}

// Severity and kind are independent axes: the same message can rank high on
// one and low on the other.
func TestSeverityIndependentOfKind(t *testing.T) {
	msg := "network blip" // medium severity, retryable kind
	assert.Equal(t, ErrorKindNetworkError, Classify(msg))
	assert.Equal(t, SeverityMedium, SeverityOf(msg))

	msg = "invalid calldata" // high severity, not retryable
	assert.Equal(t, ErrorKindValidationFailed, Classify(msg))
	assert.Equal(t, SeverityHigh, SeverityOf(msg))
}

func TestErrorKindRetryable(t *testing.T) {
	retryable := []ErrorKind{
		ErrorKindSlippage, ErrorKindInsufficientGas, ErrorKindInsufficientLiquidity,
		ErrorKindTimeout, ErrorKindNetworkError, ErrorKindUnknown,
	}
	for _, k := range retryable {
		assert.True(t, k.Retryable(), "kind %s", k)
	}

	assert.False(t, ErrorKindExecutionReverted.Retryable())
	assert.False(t, ErrorKindValidationFailed.Retryable())
}
