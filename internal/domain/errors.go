package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrCircuitOpen         = errors.New("circuit breaker open")
	ErrPlanExpired         = errors.New("execution plan expired")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrMaxRetriesExceeded  = errors.New("max retries exceeded")
	ErrNoRecovery          = errors.New("no recovery strategy available")
	ErrSigningFailed       = errors.New("signing failed")
	ErrContextDone         = errors.New("context cancelled")
)
