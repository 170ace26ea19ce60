package domain

import "strings"

// ErrorKind classifies a raw execution failure into a finite category that
// the recovery engine and circuit breaker can act on.
type ErrorKind string

const (
	ErrorKindSlippage              ErrorKind = "slippage_exceeded"
	ErrorKindInsufficientGas       ErrorKind = "gas_insufficient"
	ErrorKindInsufficientLiquidity ErrorKind = "insufficient_liquidity"
	ErrorKindExecutionReverted     ErrorKind = "execution_reverted"
	ErrorKindValidationFailed      ErrorKind = "validation_failed"
	ErrorKindTimeout               ErrorKind = "timeout"
	ErrorKindNetworkError          ErrorKind = "network_error"
	ErrorKindUnknown               ErrorKind = "unknown"
)

// Severity ranks the impact of a failure independently of its ErrorKind.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Classify maps a free-text error message to an ErrorKind. Matching is
// case-insensitive and the order is fixed: slippage, gas, liquidity,
// execution/revert, validation, timeout, network. The first match wins, so
// ambiguous messages (a liquidity error that also says "invalid") resolve the
// same way every time. Upstream collaborators should eventually emit
// structured error codes; substring matching is the fallback contract.
func Classify(msg string) ErrorKind {
	s := strings.ToLower(msg)

	switch {
	case strings.Contains(s, "slippage") || strings.Contains(s, "tolerance"):
		return ErrorKindSlippage
	case strings.Contains(s, "gas") || strings.Contains(s, "insufficient funds"):
		return ErrorKindInsufficientGas
	case strings.Contains(s, "liquidity") || strings.Contains(s, "pool"):
		return ErrorKindInsufficientLiquidity
	case strings.Contains(s, "execution") || strings.Contains(s, "revert"):
		return ErrorKindExecutionReverted
	case strings.Contains(s, "invalid") || strings.Contains(s, "validation"):
		return ErrorKindValidationFailed
	case strings.Contains(s, "timeout"):
		return ErrorKindTimeout
	case strings.Contains(s, "connection") || strings.Contains(s, "network"):
		return ErrorKindNetworkError
	default:
		return ErrorKindUnknown
	}
}

// SeverityOf derives an impact classification from the raw error message.
// It is deliberately independent of Classify so a message can be, say,
// high-severity without being retryable.
func SeverityOf(msg string) Severity {
	s := strings.ToLower(msg)

	switch {
	case strings.Contains(s, "revert") || strings.Contains(s, "out_of_gas") || strings.Contains(s, "execution_failed"):
		return SeverityCritical
	case strings.Contains(s, "slippage") || strings.Contains(s, "timeout") || strings.Contains(s, "invalid"):
		return SeverityHigh
	case strings.Contains(s, "connection") || strings.Contains(s, "network"):
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Retryable reports whether failures of this kind are worth retrying locally.
// Validation failures and contract reverts are surfaced immediately instead.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindSlippage, ErrorKindInsufficientGas, ErrorKindInsufficientLiquidity,
		ErrorKindTimeout, ErrorKindNetworkError, ErrorKindUnknown:
		return true
	default:
		return false
	}
}
