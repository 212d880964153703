// Package engine wires DelTran's component packages into the external
// interfaces described in §6: Submit, a window lifecycle, and GetProof.
// It plays the role the teacher's consumer package plays for Nexus-Lite
// (the top-level service gluing transport, validation, and persistence
// together) but sits above the settlement core's own packages instead of
// a single liquidity-check call.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deltran/settlement-core/internal/checkpoint"
	"github.com/deltran/settlement-core/internal/config"
	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/events"
	"github.com/deltran/settlement-core/internal/protocol"
	"github.com/deltran/settlement-core/internal/resilience"
	"github.com/deltran/settlement-core/internal/twopc"
	"github.com/deltran/settlement-core/internal/validate"
)

// Service is the process-wide settlement core: one instance owns every
// open window, every payment's protocol machine, and the shared
// resilience/checkpoint/event infrastructure.
type Service struct {
	validator  *validate.Validator
	registry   *resilience.Registry
	coordinator *twopc.Coordinator
	checkpointGen *checkpoint.Generator
	eventsCh   *events.Channel
	thresholds validate.NettingThresholds
	constants  config.Constants

	mu       sync.Mutex
	windows  map[string]*windowState
	machines map[string]*protocol.Machine // payment_id -> machine
	payments map[string]core.PaymentInstruction // payment_id -> last accepted instruction, for seal-failure requeue

	sealed *sealedLedger
}

// windowState tracks one ClearingWindow's accumulating obligations and its
// derived artifacts once netted/sealed.
type windowState struct {
	window core.ClearingWindow
	batch  *core.SettlementBatch
}

// New constructs a Service. resolver and verifier are supplied by the
// deployment (bank connectors, signature verification backing store) --
// wiring concrete bank transports is explicitly out of scope per §1's
// non-goals.
func New(
	validator *validate.Validator,
	registry *resilience.Registry,
	resolver twopc.ConnectorResolver,
	checkpointGen *checkpoint.Generator,
	eventsCh *events.Channel,
	thresholds validate.NettingThresholds,
	constants config.Constants,
) *Service {
	coordinator := twopc.New(registry, resolver, constants.TwoPCTimeout(), constants.DLQMaxRetries)
	return &Service{
		validator:     validator,
		registry:      registry,
		coordinator:   coordinator,
		checkpointGen: checkpointGen,
		eventsCh:      eventsCh,
		thresholds:    thresholds,
		constants:     constants,
		windows:       make(map[string]*windowState),
		machines:      make(map[string]*protocol.Machine),
		payments:      make(map[string]core.PaymentInstruction),
		sealed:        newSealedLedger(),
	}
}

// emit publishes a protocol transition event as a notification (drop-newest
// under backpressure, per §9 and internal/events).
func (s *Service) emit(ev protocol.Event) {
	if s.eventsCh == nil {
		return
	}
	s.eventsCh.PublishNotification(events.Envelope{
		Key:  ev.PaymentID,
		Type: fmt.Sprintf("transition:%s->%s", ev.From, ev.To),
		Payload: map[string]any{
			"payment_id": ev.PaymentID,
			"from":       ev.From.String(),
			"to":         ev.To.String(),
			"seq":        ev.Seq,
		},
	})
}

func (s *Service) machineFor(paymentID string) *protocol.Machine {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[paymentID]
	if !ok {
		m = protocol.NewMachine(paymentID, s.emit)
		s.machines[paymentID] = m
	}
	return m
}

// OpenWindow starts a new ClearingWindow accumulating obligations until
// CloseWindow is called.
func (s *Service) OpenWindow(windowID string, scheduledClose time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[windowID] = &windowState{window: core.ClearingWindow{
		WindowID:         windowID,
		OpenedAt:         time.Now(),
		ScheduledCloseAt: scheduledClose,
		Status:           core.WindowOpen,
	}}
}

// errWindowNotFound is returned when a windowID has no open window.
var errWindowNotFound = fmt.Errorf("engine: window not found")

func (s *Service) windowFor(windowID string) (*windowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ws, ok := s.windows[windowID]
	if !ok {
		return nil, errWindowNotFound
	}
	return ws, nil
}
