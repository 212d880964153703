package engine

import (
	"context"
	"fmt"

	"github.com/deltran/settlement-core/internal/checkpoint"
	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/protocol"
	"github.com/deltran/settlement-core/internal/signer"
)

// SubmitPayment runs §4.4 validation and, on success, drives the payment's
// protocol machine from Idle through Queued and files it as an Obligation
// against the named window. The caller is responsible for routing the
// payment to the right window (typically "current open window for the
// obligation's currency"), matching the spec's
// "no dynamic window-selection policy is mandated" open question.
func (s *Service) SubmitPayment(ctx context.Context, windowID string, p core.PaymentInstruction, sig signer.Signature) error {
	ws, err := s.windowFor(windowID)
	if err != nil {
		return err
	}

	m := s.machineFor(p.PaymentID)

	if err := s.validator.Validate(ctx, p, sig); err != nil {
		_ = m.Transition(protocol.Rejected)
		return err
	}

	if err := m.Transition(protocol.Validated); err != nil {
		return err
	}
	if err := m.Transition(protocol.EligibilityConfirmed); err != nil {
		return err
	}

	s.mu.Lock()
	if ws.window.Status != core.WindowOpen {
		s.mu.Unlock()
		return core.ErrWindowClosed
	}
	obligation := core.Obligation{
		ObligationID: p.PaymentID + ":obl",
		PaymentID:    p.PaymentID,
		PayerBIC:     p.SenderBIC,
		PayeeBIC:     p.ReceiverBIC,
		Currency:     p.Currency,
		Amount:       p.Amount,
		WindowID:     windowID,
	}
	ws.window.Obligations = append(ws.window.Obligations, obligation)
	s.payments[p.PaymentID] = p
	s.mu.Unlock()

	return m.Transition(protocol.Queued)
}

// CloseWindow stops accepting new obligations, runs netting per currency,
// finalizes every resulting component via 2PC, and seals a checkpoint over
// the resulting batch -- the full §4.6/§4.7/§4.9 pipeline for one window.
func (s *Service) CloseWindow(ctx context.Context, windowID string, round *checkpoint.Round) (core.SettlementBatch, error) {
	ws, err := s.windowFor(windowID)
	if err != nil {
		return core.SettlementBatch{}, err
	}

	s.mu.Lock()
	if ws.window.Status != core.WindowOpen {
		s.mu.Unlock()
		return core.SettlementBatch{}, core.ErrWindowClosed
	}
	ws.window.Status = core.WindowClosing
	obligations := append([]core.Obligation(nil), ws.window.Obligations...)
	s.mu.Unlock()

	byCurrency := make(map[string][]core.Obligation)
	for _, o := range obligations {
		byCurrency[o.Currency] = append(byCurrency[o.Currency], o)
	}

	var allTransfers []core.NetTransfer
	var gross, net, cycleEliminated = zeroBatchTotals()
	for currency, obls := range byCurrency {
		transfers, stats := s.runNetting(currency, obls)
		allTransfers = append(allTransfers, transfers...)
		gross = gross.Add(stats.Gross)
		net = net.Add(stats.Net)
		cycleEliminated = cycleEliminated.Add(stats.CycleEliminated)
	}

	for _, t := range allTransfers {
		for _, pid := range t.SourcePaymentIDs {
			_ = s.machineFor(pid).Transition(protocol.Netted)
		}
	}

	s.mu.Lock()
	ws.window.Status = core.WindowNetted
	s.mu.Unlock()

	batch := core.SettlementBatch{
		BatchID:      windowID + ":batch",
		WindowID:     windowID,
		NetTransfers: allTransfers,
		Stats: core.BatchStats{
			Gross:           gross,
			Net:             net,
			CycleEliminated: cycleEliminated,
			Efficiency:      efficiencyOf(gross, net),
		},
	}

	components := groupByComponent(allTransfers)
	outcomes := s.coordinator.FinalizeBatch(ctx, batch.BatchID, components)

	for _, out := range outcomes {
		for _, t := range out.Committed {
			for _, pid := range t.SourcePaymentIDs {
				_ = s.machineFor(pid).Transition(protocol.Prepared)
				_ = s.machineFor(pid).Transition(protocol.Committed)
			}
		}
		for _, pid := range out.Requeued {
			_ = s.machineFor(pid).Transition(protocol.Queued)
		}
	}

	s.mu.Lock()
	ws.window.Status = core.WindowFinalizing
	s.mu.Unlock()

	leaves := leavesFromPayments(collectCommitted(outcomes))
	cp, err := s.checkpointGen.Seal(ctx, batch, leaves, round)
	if err != nil {
		s.mu.Lock()
		ws.window.Status = core.WindowFailed
		s.mu.Unlock()
		s.requeueAfterSealFailure(windowID+":retry", collectCommitted(outcomes))
		return core.SettlementBatch{}, fmt.Errorf("engine: seal window %s: %w", windowID, err)
	}
	batch.MerkleRoot = cp.MerkleRoot

	s.sealed.record(cp, leaves, batch)
	for _, t := range batch.NetTransfers {
		for _, pid := range t.SourcePaymentIDs {
			_ = s.machineFor(pid).Transition(protocol.Sealed)
		}
	}

	s.mu.Lock()
	ws.window.Status = core.WindowSealed
	ws.batch = &batch
	s.mu.Unlock()

	if s.eventsCh != nil {
		_ = s.eventsCh.PublishAudit(ctx, auditEnvelope(batch, cp))
	}
	return batch, nil
}
