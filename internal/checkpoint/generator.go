package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deltran/settlement-core/internal/canon"
	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/hsmproto"
	"github.com/deltran/settlement-core/internal/merkle"
	"github.com/deltran/settlement-core/internal/signer"
)

// TrustSet is the known 7-member BFT validator set: validator_id -> public
// key, keyed by the epoch it was issued under.
type TrustSet struct {
	mu      sync.RWMutex
	members map[string]map[uint32][]byte // validator_id -> epoch -> pubkey
}

// NewTrustSet constructs an empty trust set.
func NewTrustSet() *TrustSet {
	return &TrustSet{members: make(map[string]map[uint32][]byte)}
}

// Add registers a validator's public key under an epoch.
func (t *TrustSet) Add(validatorID string, epoch uint32, pub []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.members[validatorID] == nil {
		t.members[validatorID] = make(map[uint32][]byte)
	}
	t.members[validatorID][epoch] = append([]byte(nil), pub...)
}

// Verify checks a validator's signature over message under the claimed
// epoch.
func (t *TrustSet) Verify(validatorID string, epoch uint32, message, sig []byte) bool {
	t.mu.RLock()
	pub, ok := t.members[validatorID][epoch]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return ed25519VerifyRaw(pub, message, sig)
}

// Size reports the number of distinct known validators (expected 7, per
// §4.9).
func (t *TrustSet) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.members)
}

// Generator seals batches into a chained checkpoint ledger, per §4.9.
type Generator struct {
	trust        *TrustSet
	hsm          hsmproto.HSMSignerClient
	hsmKeyID     string
	quorum       int
	interval     uint64
	roundTimeout time.Duration

	mu     sync.Mutex // checkpoint generation is serialized globally, per §5
	last   *core.Checkpoint
	height uint64
}

// New constructs a Generator. quorum and interval are used exactly as
// given; New applies no defaults (callers pass config.Defaults()'s
// BFTQuorum=5 and CheckpointInterval=100).
func New(trust *TrustSet, hsm hsmproto.HSMSignerClient, hsmKeyID string, quorum int, interval uint64, roundTimeout time.Duration) *Generator {
	return &Generator{trust: trust, hsm: hsm, hsmKeyID: hsmKeyID, quorum: quorum, interval: interval, roundTimeout: roundTimeout}
}

// appHash computes the canonical hash of the batch summary (window_id,
// stats, net_transfers sorted), per §4.9 step 1.
func appHash(batch core.SettlementBatch) [32]byte {
	sorted := append([]core.NetTransfer(nil), batch.NetTransfers...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Currency != sorted[j].Currency {
			return sorted[i].Currency < sorted[j].Currency
		}
		if sorted[i].PayerBIC != sorted[j].PayerBIC {
			return sorted[i].PayerBIC < sorted[j].PayerBIC
		}
		return sorted[i].PayeeBIC < sorted[j].PayeeBIC
	})

	e := canon.NewEncoder()
	e.String(batch.WindowID)
	e.Decimal(batch.Stats.Gross)
	e.Decimal(batch.Stats.Net)
	e.Decimal(batch.Stats.CycleEliminated)
	e.KVSeq(len(sorted), func(i int, enc *canon.Encoder) {
		h := sorted[i].CanonicalHash()
		enc.Bytes(h[:])
	})
	return canon.Hash(canon.TagSettlementBatch, e.Finish())
}

// Seal runs the full §4.9 pipeline for the next checkpoint height:
// app_hash, merkle root, BFT quorum collection over the given gossip
// round, HSM coordinator seal, and chain append. Returns
// core.ErrQuorumNotReached if fewer than quorum distinct, valid
// signatures arrive within roundTimeout -- callers must transition the
// window to Failed and requeue its payments with fresh nonces on that
// error, per §4.9's failure clause.
func (g *Generator) Seal(ctx context.Context, batch core.SettlementBatch, leaves []merkle.Leaf, round *Round) (*core.Checkpoint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	prevID := ""
	nextHeight := g.interval
	if g.last != nil {
		prevID = g.last.CheckpointID
		nextHeight = g.last.Height + g.interval
	}

	app := appHash(batch)
	tree := merkle.Build(leaves)
	root := tree.Root()

	tuple := core.Checkpoint{Height: nextHeight, PrevCheckpointID: prevID, AppHash: app, MerkleRoot: root}
	tupleHash := tuple.TupleHash()
	round.Broadcast(tupleHash[:])

	collected := round.Await(ctx, g.roundTimeout)

	var valid []core.BFTSignature
	seen := make(map[string]bool)
	for _, t := range collected {
		if seen[t.ValidatorID] {
			continue
		}
		if !g.trust.Verify(t.ValidatorID, t.KeyEpoch, tupleHash[:], t.Signature) {
			continue
		}
		seen[t.ValidatorID] = true
		valid = append(valid, core.BFTSignature{ValidatorID: t.ValidatorID, Signature: t.Signature, KeyEpoch: t.KeyEpoch})
	}

	if len(valid) < g.quorum {
		return nil, fmt.Errorf("checkpoint: only %d/%d validator signatures: %w", len(valid), g.quorum, core.ErrQuorumNotReached)
	}

	sigHashes := make([][]byte, len(valid))
	for i, s := range valid {
		sigHashes[i] = s.Signature
	}
	sealResp, err := g.hsm.Seal(ctx, &hsmproto.SealRequest{CanonicalHash: tupleHash[:], BftSignatureHashes: sigHashes})
	if err != nil {
		return nil, fmt.Errorf("checkpoint: hsm coordinator seal failed: %w", err)
	}

	cp := &core.Checkpoint{
		CheckpointID:     uuid.New().String(),
		Height:           nextHeight,
		PrevCheckpointID: prevID,
		AppHash:          app,
		MerkleRoot:       root,
		Stats:            batch.Stats,
		BFTSignatures:    valid,
		CoordinatorSeal:  sealResp.Seal,
	}
	g.last = cp
	g.height = nextHeight
	return cp, nil
}

// Last returns the most recently sealed checkpoint, or nil if none.
func (g *Generator) Last() *core.Checkpoint {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// VerifyQuorum is the stateless half of checkpoint verification used by
// the proof generator: verify_bft(checkpoint, trust_set, quorum).
func VerifyQuorum(cp core.Checkpoint, trust *TrustSet, quorum int) bool {
	tupleHash := cp.TupleHash()
	count := 0
	seen := make(map[string]bool)
	for _, s := range cp.BFTSignatures {
		if seen[s.ValidatorID] {
			continue
		}
		if trust.Verify(s.ValidatorID, s.KeyEpoch, tupleHash[:], s.Signature) {
			seen[s.ValidatorID] = true
			count++
		}
	}
	return count >= quorum
}

// VerifySeal is the stateless check verify_seal(checkpoint,
// coordinator_key_set), delegated to a signer.Signer holding the
// coordinator's trusted public keys.
func VerifySeal(ctx context.Context, cp core.Checkpoint, coordinatorVerifier signer.Signer, sig signer.Signature) (bool, error) {
	return coordinatorVerifier.Verify(ctx, cp.TupleHash(), sig)
}
