// Package resilience implements the per-corridor adapter resilience layer
// from §4.8: kill switch -> circuit breaker -> send, plus a dead-letter
// queue with exponential backoff. The circuit breaker is lifted directly
// from the teacher's consumer/circuit_breaker.go (atomic state fields,
// Call/canExecute/recordFailure/recordSuccess, RetryWithBackoff), but
// generalized from one process-global breaker into a corridor-keyed
// registry where each corridor's breaker, kill switch, and DLQ are
// protected only by their own lock -- per §5 and §9's "avoid a single
// global lock".
package resilience

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/deltran/settlement-core/internal/core"
)

// CircuitState mirrors the teacher's CircuitState enum.
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker is one corridor's breaker: Closed counts consecutive
// failures; on reaching maxFailures it opens; Open rejects immediately
// until resetTimeout elapses, then probes via HalfOpen; halfOpenSuccess
// consecutive successes close it again, any failure reopens it.
type CircuitBreaker struct {
	corridor        string
	maxFailures     int32
	resetTimeout    time.Duration
	halfOpenSuccess int32

	state              int32 // CircuitState, atomic
	failures           int32 // atomic
	halfOpenSuccesses  int32 // atomic
	lastFailureAtNanos int64 // atomic, unix nanos

	mu sync.Mutex
}

// NewCircuitBreaker constructs a breaker for one corridor with the given
// failure threshold, reset timeout and half-open success threshold;
// DefaultCircuitBreaker supplies the spec's default values.
func NewCircuitBreaker(corridor string, maxFailures int32, resetTimeout time.Duration, halfOpenSuccess int32) *CircuitBreaker {
	return &CircuitBreaker{
		corridor:        corridor,
		maxFailures:     maxFailures,
		resetTimeout:    resetTimeout,
		halfOpenSuccess: halfOpenSuccess,
	}
}

// DefaultCircuitBreaker applies the spec's defaults: failure_threshold=5,
// timeout_seconds=60, success_threshold=2.
func DefaultCircuitBreaker(corridor string) *CircuitBreaker {
	return NewCircuitBreaker(corridor, 5, 60*time.Second, 2)
}

// Call executes fn if the breaker's state allows it, recording the
// outcome. Returns core.ErrCircuitOpen without invoking fn when the
// breaker is open and not yet due for a probe.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if !cb.canExecute() {
		return core.ErrCircuitOpen
	}
	err := fn()
	if err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) canExecute() bool {
	state := CircuitState(atomic.LoadInt32(&cb.state))
	switch state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		lastFailure := time.Unix(0, atomic.LoadInt64(&cb.lastFailureAtNanos))
		if time.Since(lastFailure) >= cb.resetTimeout {
			// Exactly one probe is allowed through: the first caller to win
			// this CompareAndSwap transitions Open -> HalfOpen.
			if atomic.CompareAndSwapInt32(&cb.state, int32(StateOpen), int32(StateHalfOpen)) {
				atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
				return true
			}
			return false
		}
		return false
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	atomic.StoreInt64(&cb.lastFailureAtNanos, time.Now().UnixNano())
	state := CircuitState(atomic.LoadInt32(&cb.state))
	if state == StateHalfOpen {
		atomic.StoreInt32(&cb.state, int32(StateOpen))
		atomic.StoreInt32(&cb.failures, 0)
		return
	}
	failures := atomic.AddInt32(&cb.failures, 1)
	if failures >= cb.maxFailures {
		atomic.StoreInt32(&cb.state, int32(StateOpen))
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	state := CircuitState(atomic.LoadInt32(&cb.state))
	if state == StateHalfOpen {
		successes := atomic.AddInt32(&cb.halfOpenSuccesses, 1)
		if successes >= cb.halfOpenSuccess {
			atomic.StoreInt32(&cb.state, int32(StateClosed))
			atomic.StoreInt32(&cb.failures, 0)
		}
		return
	}
	atomic.StoreInt32(&cb.failures, 0)
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// FailureCount reports the current consecutive-failure count.
func (cb *CircuitBreaker) FailureCount() int32 {
	return atomic.LoadInt32(&cb.failures)
}

// Reset forces the breaker back to Closed, used by the ops Control
// interface's circuit_reset.
func (cb *CircuitBreaker) Reset() {
	atomic.StoreInt32(&cb.state, int32(StateClosed))
	atomic.StoreInt32(&cb.failures, 0)
	atomic.StoreInt32(&cb.halfOpenSuccesses, 0)
}

// RetryConfig configures RetryWithBackoff, mirroring the teacher's
// DefaultRetryConfig shape.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryConfig matches the teacher's tuning: 3 attempts, 50ms
// initial delay, 500ms max delay, 2x multiplier.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: 50 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Multiplier: 2.0}
}

// RetryWithBackoff retries fn with exponential backoff, respecting ctx
// cancellation, matching the teacher's RetryWithBackoff.
func RetryWithBackoff(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return fmt.Errorf("resilience: retries exhausted: %w", lastErr)
}
