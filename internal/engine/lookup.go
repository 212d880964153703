package engine

import (
	"sync"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/events"
	"github.com/deltran/settlement-core/internal/merkle"
	"github.com/deltran/settlement-core/internal/proof"
)

// sealedLedger is the Service's in-memory record of sealed checkpoints and
// their Merkle leaves, backing proof.SealedBatchLookup. Persisting this
// durably is a deployment concern outside this package's scope, matching
// §1's non-goals around storage/transport specifics.
type sealedLedger struct {
	mu                sync.RWMutex
	checkpoints       map[string]core.Checkpoint
	leavesByCheckpoint map[string][]merkle.Leaf
	checkpointByPayment map[string]string
	authorizedParties   map[string][]string
}

func newSealedLedger() *sealedLedger {
	return &sealedLedger{
		checkpoints:         make(map[string]core.Checkpoint),
		leavesByCheckpoint:  make(map[string][]merkle.Leaf),
		checkpointByPayment: make(map[string]string),
		authorizedParties:   make(map[string][]string),
	}
}

func (l *sealedLedger) record(cp *core.Checkpoint, leaves []merkle.Leaf, batch core.SettlementBatch) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.checkpoints[cp.CheckpointID] = *cp
	l.leavesByCheckpoint[cp.CheckpointID] = leaves
	for _, t := range batch.NetTransfers {
		for _, pid := range t.SourcePaymentIDs {
			l.checkpointByPayment[pid] = cp.CheckpointID
			l.authorizedParties[pid] = []string{t.PayerBIC, t.PayeeBIC}
		}
	}
}

// LeavesForCheckpoint implements proof.SealedBatchLookup.
func (l *sealedLedger) LeavesForCheckpoint(checkpointID string) ([]merkle.Leaf, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	leaves, ok := l.leavesByCheckpoint[checkpointID]
	return leaves, ok
}

// CheckpointByID implements proof.SealedBatchLookup.
func (l *sealedLedger) CheckpointByID(checkpointID string) (core.Checkpoint, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp, ok := l.checkpoints[checkpointID]
	return cp, ok
}

// CheckpointRefForPayment implements proof.SealedBatchLookup.
func (l *sealedLedger) CheckpointRefForPayment(paymentID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.checkpointByPayment[paymentID]
	return id, ok
}

// AuthorizedParties implements proof.SealedBatchLookup.
func (l *sealedLedger) AuthorizedParties(paymentID string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.authorizedParties[paymentID]
}

// GetProof implements the §6 proof interface: builds a SettlementProof for
// a sealed payment, or core.ErrNotSealed if its window has not sealed yet.
func (s *Service) GetProof(paymentID string, paymentHash [32]byte) (core.SettlementProof, error) {
	return proof.Generate(s.sealed, paymentID, paymentHash)
}

// CheckpointByID exposes a sealed checkpoint for external verification
// flows (auditors, regulators running proof.Verify out-of-process).
func (s *Service) CheckpointByID(checkpointID string) (core.Checkpoint, bool) {
	return s.sealed.CheckpointByID(checkpointID)
}

func auditEnvelope(batch core.SettlementBatch, cp *core.Checkpoint) events.Envelope {
	return events.Envelope{
		Key:  batch.WindowID,
		Type: "window_sealed",
		Payload: map[string]any{
			"batch_id":      batch.BatchID,
			"window_id":     batch.WindowID,
			"checkpoint_id": cp.CheckpointID,
			"height":        cp.Height,
			"efficiency":    batch.Stats.Efficiency,
		},
		EmittedAt: time.Now(),
	}
}
