// Package protocol implements DelTran's four-phase protocol state machine:
// a static transition table enforcing valid phase movement for a payment
// as it passes through INSTRUCT -> NET -> FINALIZE -> PROOF, emitting an
// ordered event on every successful transition for out-of-scope observers.
package protocol

import (
	"fmt"
	"sync"

	"github.com/deltran/settlement-core/internal/core"
)

// State is one node of the protocol state machine.
type State int

const (
	Idle State = iota
	Validated
	EligibilityConfirmed
	Queued
	Netted
	Prepared
	Committed
	Sealed
	Rejected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Validated:
		return "Validated"
	case EligibilityConfirmed:
		return "EligibilityConfirmed"
	case Queued:
		return "Queued"
	case Netted:
		return "Netted"
	case Prepared:
		return "Prepared"
	case Committed:
		return "Committed"
	case Sealed:
		return "Sealed"
	case Rejected:
		return "Rejected"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// transitions is the static table: for each state, the set of states it
// may move to. Any transition not listed here yields ErrInvalidTransition.
var transitions = map[State]map[State]bool{
	Idle:                  {Validated: true, Rejected: true},
	Validated:             {EligibilityConfirmed: true, Rejected: true},
	EligibilityConfirmed:  {Queued: true, Rejected: true},
	Queued:                {Netted: true, Failed: true},
	Netted:                {Prepared: true, Queued: true, Failed: true}, // retry arc on netting timeout
	Prepared:              {Committed: true, Failed: true},
	Committed:             {Sealed: true, Queued: true, Failed: true}, // retry arc on checkpoint quorum miss
	Sealed:                {},
	Rejected:              {},
	Failed:                {},
}

// Event is the ordered record emitted on every successful transition.
// Event emission is grounded on the teacher's WebSocketHub broadcast-channel
// pattern (consumer/websocket.go): a typed, non-blocking, bounded channel
// rather than an in-process callback chain, per §9.
type Event struct {
	PaymentID string
	From      State
	To        State
	Seq       uint64 // per-payment monotonic sequence, totally ordered
}

// Machine tracks one payment's protocol state and emits events on
// successful transitions. Transitions are authoritative: no side effect
// may precede a successful transition, per §4.5.
type Machine struct {
	mu        sync.Mutex
	state     State
	paymentID string
	seq       uint64
	emit      func(Event)
}

// NewMachine starts a payment in Idle with an emit callback for transition
// events. emit MUST NOT block; callers typically wire it to a bounded,
// non-blocking channel send (see internal/events).
func NewMachine(paymentID string, emit func(Event)) *Machine {
	return &Machine{state: Idle, paymentID: paymentID, emit: emit}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition attempts to move to `to`. On success it emits an Event and
// returns nil; on an illegal transition it returns core.ErrInvalidTransition
// and leaves state unchanged -- per §7, this is a protocol error, an
// internal-bug assertion that must never happen with a correct caller.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed, ok := transitions[m.state]
	if !ok || !allowed[to] {
		return fmt.Errorf("%w: %s -> %s", core.ErrInvalidTransition, m.state, to)
	}

	from := m.state
	m.state = to
	m.seq++
	ev := Event{PaymentID: m.paymentID, From: from, To: to, Seq: m.seq}
	if m.emit != nil {
		m.emit(ev)
	}
	return nil
}
