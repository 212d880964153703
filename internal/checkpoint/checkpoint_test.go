package checkpoint

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/decimal"
	"github.com/deltran/settlement-core/internal/hsmproto"
	"github.com/deltran/settlement-core/internal/merkle"
)

func newValidator(t *testing.T, trust *TrustSet, validatorID string, epoch uint32) ed25519.PrivateKey {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error = %v", err)
	}
	trust.Add(validatorID, epoch, pub)
	return priv
}

func testBatch() core.SettlementBatch {
	gross, _ := decimal.Parse("1000")
	net, _ := decimal.Parse("400")
	return core.SettlementBatch{
		BatchID:  "batch-1",
		WindowID: "window-1",
		Stats:    core.BatchStats{Gross: gross, Net: net},
	}
}

func signForRound(priv ed25519.PrivateKey, validatorID string, epoch uint32, height uint64, tupleHash [32]byte) SignedTuple {
	sig := ed25519.Sign(priv, tupleHash[:])
	return SignedTuple{ValidatorID: validatorID, Height: height, TupleHash: tupleHash[:], Signature: sig, KeyEpoch: epoch}
}

func TestSealReachesQuorumAndChains(t *testing.T) {
	trust := NewTrustSet()
	privs := make(map[string]ed25519.PrivateKey)
	for i := 1; i <= 5; i++ {
		id := validatorName(i)
		privs[id] = newValidator(t, trust, id, 1)
	}
	stub, err := hsmproto.NewInProcessStub("coordinator-1", 1)
	if err != nil {
		t.Fatalf("NewInProcessStub error = %v", err)
	}
	gen := New(trust, stub, "coordinator-1", 5, 100, time.Second)

	leaves := []merkle.Leaf{{PaymentID: "p1", Hash: [32]byte{1}}}
	round := NewRound(100, 5)

	// Pre-compute the tuple hash the generator will broadcast, so the fake
	// validators can sign it synchronously before Seal awaits the round.
	tuple := core.Checkpoint{Height: 100, PrevCheckpointID: "", AppHash: appHash(testBatch()), MerkleRoot: merkle.Build(leaves).Root()}
	tupleHash := tuple.TupleHash()
	for id, priv := range privs {
		round.record(signForRound(priv, id, 1, 100, tupleHash))
	}

	cp, err := gen.Seal(context.Background(), testBatch(), leaves, round)
	if err != nil {
		t.Fatalf("Seal error = %v", err)
	}
	if cp.Height != 100 {
		t.Errorf("Height = %d, want 100", cp.Height)
	}
	if len(cp.BFTSignatures) != 5 {
		t.Errorf("len(BFTSignatures) = %d, want 5", len(cp.BFTSignatures))
	}
	if gen.Last().CheckpointID != cp.CheckpointID {
		t.Error("Last() should return the just-sealed checkpoint")
	}

	// Seal a second checkpoint and confirm chaining.
	round2 := NewRound(200, 5)
	tuple2 := core.Checkpoint{Height: 200, PrevCheckpointID: cp.CheckpointID, AppHash: appHash(testBatch()), MerkleRoot: merkle.Build(leaves).Root()}
	tupleHash2 := tuple2.TupleHash()
	for id, priv := range privs {
		round2.record(signForRound(priv, id, 1, 200, tupleHash2))
	}
	cp2, err := gen.Seal(context.Background(), testBatch(), leaves, round2)
	if err != nil {
		t.Fatalf("second Seal error = %v", err)
	}
	if cp2.PrevCheckpointID != cp.CheckpointID {
		t.Errorf("PrevCheckpointID = %s, want %s", cp2.PrevCheckpointID, cp.CheckpointID)
	}
	if cp2.Height != 200 {
		t.Errorf("Height = %d, want 200", cp2.Height)
	}
}

func validatorName(i int) string {
	return string(rune('A' + i))
}

func TestSealFailsBelowQuorum(t *testing.T) {
	trust := NewTrustSet()
	privs := make(map[string]ed25519.PrivateKey)
	for i := 1; i <= 2; i++ {
		id := validatorName(i)
		privs[id] = newValidator(t, trust, id, 1)
	}
	stub, _ := hsmproto.NewInProcessStub("coordinator-1", 1)
	gen := New(trust, stub, "coordinator-1", 5, 100, 20*time.Millisecond)

	leaves := []merkle.Leaf{{PaymentID: "p1", Hash: [32]byte{1}}}
	round := NewRound(100, 5)
	tuple := core.Checkpoint{Height: 100, AppHash: appHash(testBatch()), MerkleRoot: merkle.Build(leaves).Root()}
	tupleHash := tuple.TupleHash()
	for id, priv := range privs {
		round.record(signForRound(priv, id, 1, 100, tupleHash))
	}

	_, err := gen.Seal(context.Background(), testBatch(), leaves, round)
	if !errors.Is(err, core.ErrQuorumNotReached) {
		t.Fatalf("Seal error = %v, want ErrQuorumNotReached", err)
	}
}

func TestSealRejectsInvalidSignatures(t *testing.T) {
	trust := NewTrustSet()
	privs := make(map[string]ed25519.PrivateKey)
	for i := 1; i <= 5; i++ {
		id := validatorName(i)
		privs[id] = newValidator(t, trust, id, 1)
	}
	stub, _ := hsmproto.NewInProcessStub("coordinator-1", 1)
	gen := New(trust, stub, "coordinator-1", 5, 100, 20*time.Millisecond)

	leaves := []merkle.Leaf{{PaymentID: "p1", Hash: [32]byte{1}}}
	round := NewRound(100, 5)
	tuple := core.Checkpoint{Height: 100, AppHash: appHash(testBatch()), MerkleRoot: merkle.Build(leaves).Root()}
	tupleHash := tuple.TupleHash()

	i := 0
	for id, priv := range privs {
		if i == 0 {
			// Tamper with one validator's signature: it should be dropped silently.
			bad := signForRound(priv, id, 1, 100, tupleHash)
			bad.Signature[0] ^= 0xFF
			round.record(bad)
		} else {
			round.record(signForRound(priv, id, 1, 100, tupleHash))
		}
		i++
	}

	_, err := gen.Seal(context.Background(), testBatch(), leaves, round)
	if !errors.Is(err, core.ErrQuorumNotReached) {
		t.Fatalf("Seal error = %v, want ErrQuorumNotReached (4 valid of 5 submitted, below quorum)", err)
	}
}

func TestVerifyQuorumStateless(t *testing.T) {
	trust := NewTrustSet()
	priv := newValidator(t, trust, "validator-1", 1)

	cp := core.Checkpoint{Height: 100}
	tupleHash := cp.TupleHash()
	sig := ed25519.Sign(priv, tupleHash[:])
	cp.BFTSignatures = []core.BFTSignature{{ValidatorID: "validator-1", Signature: sig, KeyEpoch: 1}}

	if VerifyQuorum(cp, trust, 1) != true {
		t.Error("VerifyQuorum should succeed with 1 valid signature at quorum=1")
	}
	if VerifyQuorum(cp, trust, 2) != false {
		t.Error("VerifyQuorum should fail with 1 valid signature at quorum=2")
	}
}
