package resilience

import (
	"context"
	"fmt"

	"github.com/deltran/settlement-core/internal/core"
)

// Send routes one outbound call for a corridor through Kill Switch ->
// Circuit Breaker -> send -> outcome recorded, per §4.8. On an
// unrecoverable failure (the breaker's fn still errors after the circuit
// allowed it through), the caller is responsible for enqueueing to the
// corridor's DLQ; Send itself only enforces the kill-switch/breaker gate.
func (r *Registry) Send(corridor string, fn func() error) error {
	cs := r.stateFor(corridor)
	if cs.kill.Active() {
		return core.ErrKillSwitchActive
	}
	return cs.breaker.Call(fn)
}

// SendOrDLQ is Send plus automatic DLQ enqueueing on failure, used by
// callers (the 2PC coordinator) that want failed sends parked for retry
// rather than surfaced immediately.
func (r *Registry) SendOrDLQ(ctx context.Context, corridor string, request any, fn func() error) error {
	err := r.Send(corridor, fn)
	if err == nil {
		return nil
	}
	if err == core.ErrKillSwitchActive || err == core.ErrCircuitOpen {
		return err
	}
	if dlqErr := r.DLQ(corridor).Enqueue(request, err); dlqErr != nil {
		return fmt.Errorf("resilience: send failed (%v) and dlq enqueue failed: %w", err, dlqErr)
	}
	return err
}

// Connector is the Bank adapter interface from §6: the capability set
// provided to corridor connectors. Concrete variants (SWIFT, ACH, RTGS,
// CBDC) dispatch over this closed interface, per §9 -- "no dynamic
// hierarchy is needed".
type Connector interface {
	Prepare(ctx context.Context, batchID, netTransferID string) (Vote, error)
	Commit(ctx context.Context, batchID, netTransferID string) error
	Abort(ctx context.Context, batchID, netTransferID string) error
	Health(ctx context.Context) (ok bool, latencyMS int64, err error)
}

// Vote is a bank's response to a Prepare call.
type Vote int

const (
	VoteNo Vote = iota
	VoteYes
)
