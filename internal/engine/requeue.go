package engine

import (
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/protocol"
)

// requeueAfterSealFailure implements §4.9's checkpoint-quorum-miss failure
// clause (scenario 4): every payment whose net transfer committed in a
// window that then failed to seal is re-filed into a fresh window with a
// newly generated nonce, payment_id unchanged, so the replay cache does not
// reject the retry. The caller has already moved the window itself to
// WindowFailed; this only concerns the payments it carried.
func (s *Service) requeueAfterSealFailure(retryWindowID string, committed []core.NetTransfer) {
	s.mu.Lock()
	retry := &windowState{window: core.ClearingWindow{
		WindowID: retryWindowID,
		OpenedAt: time.Now(),
		Status:   core.WindowOpen,
	}}
	s.windows[retryWindowID] = retry
	s.mu.Unlock()

	for _, t := range committed {
		for _, pid := range t.SourcePaymentIDs {
			s.mu.Lock()
			orig, ok := s.payments[pid]
			if !ok {
				s.mu.Unlock()
				continue
			}
			orig.Nonce++
			s.payments[pid] = orig

			retry.window.Obligations = append(retry.window.Obligations, core.Obligation{
				ObligationID: pid + ":obl:retry",
				PaymentID:    pid,
				PayerBIC:     orig.SenderBIC,
				PayeeBIC:     orig.ReceiverBIC,
				Currency:     orig.Currency,
				Amount:       orig.Amount,
				WindowID:     retryWindowID,
			})
			s.mu.Unlock()

			_ = s.machineFor(pid).Transition(protocol.Queued)
		}
	}
}
