package core

import "errors"

// Validation errors. These abort accept and are returned to the submitter.
var (
	ErrInvalidAmount           = errors.New("deltran: invalid amount")
	ErrInvalidBic              = errors.New("deltran: invalid bic")
	ErrInvalidIban             = errors.New("deltran: invalid iban")
	ErrSignatureFailed         = errors.New("deltran: signature verification failed")
	ErrReplayDetected          = errors.New("deltran: replay detected")
	ErrTtlExpired              = errors.New("deltran: ttl expired")
	ErrTokenInvalid            = errors.New("deltran: eligibility token invalid")
	ErrTokenAmountInsufficient = errors.New("deltran: eligibility token does not cover amount")
	ErrTokenExpired            = errors.New("deltran: eligibility token expired")
	ErrSelfTransfer            = errors.New("deltran: sender equals receiver")
)

// Protocol errors. These are internal-bug assertions: they must never
// happen with a correct caller, and propagation treats them as fatal.
var (
	ErrInvalidTransition = errors.New("deltran: invalid state transition")
	ErrWindowClosed      = errors.New("deltran: window is closed")
	ErrDuplicatePayment  = errors.New("deltran: duplicate payment")
)

// Netting errors. ErrThresholdNotMet is non-fatal and only bypasses cycle
// elimination; ErrDecimalOverflow fails the window.
var (
	ErrThresholdNotMet  = errors.New("deltran: netting admission threshold not met")
	ErrDecimalOverflow  = errors.New("deltran: decimal overflow")
)

// 2PC errors. These invoke partial settlement before surfacing.
var (
	ErrPrepareTimeout   = errors.New("deltran: prepare timeout")
	ErrDissent          = errors.New("deltran: bank dissented")
	ErrCommitAckMissing = errors.New("deltran: commit acknowledgement missing")
)

// Resilience errors. Retried per the adapter resilience layer.
var (
	ErrCircuitOpen      = errors.New("deltran: circuit open")
	ErrKillSwitchActive = errors.New("deltran: kill switch active")
	ErrDLQFull          = errors.New("deltran: dead-letter queue full")
)

// Proof errors. Surfaced to the requester without state change.
var (
	ErrMerkleMismatch   = errors.New("deltran: merkle path does not verify")
	ErrQuorumNotReached = errors.New("deltran: bft quorum not reached")
	ErrNotAuthorized    = errors.New("deltran: caller not authorized for this proof")
	ErrNotSealed        = errors.New("deltran: payment's batch is not sealed")
)

// ErrorClass categorizes an error for propagation-policy decisions: only
// the Fatal class fails a window outright.
type ErrorClass int

const (
	ClassRetryable ErrorClass = iota
	ClassFinal
	ClassFatal
)

// Classify reports the propagation class of a known core error. Unknown
// errors are treated as Final (safe default: do not retry, do not fail the
// whole window).
func Classify(err error) ErrorClass {
	switch {
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrKillSwitchActive),
		errors.Is(err, ErrPrepareTimeout), errors.Is(err, ErrCommitAckMissing):
		return ClassRetryable
	case errors.Is(err, ErrMerkleMismatch), errors.Is(err, ErrQuorumNotReached),
		errors.Is(err, ErrDecimalOverflow), errors.Is(err, ErrInvalidTransition):
		return ClassFatal
	default:
		return ClassFinal
	}
}
