package proof

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/deltran/settlement-core/internal/checkpoint"
	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/merkle"
	"github.com/deltran/settlement-core/internal/signer"
)

type fakeLookup struct {
	checkpointByPayment map[string]string
	leaves              map[string][]merkle.Leaf
	checkpoints         map[string]core.Checkpoint
	parties             map[string][]string
}

func (f *fakeLookup) LeavesForCheckpoint(checkpointID string) ([]merkle.Leaf, bool) {
	leaves, ok := f.leaves[checkpointID]
	return leaves, ok
}

func (f *fakeLookup) CheckpointByID(checkpointID string) (core.Checkpoint, bool) {
	cp, ok := f.checkpoints[checkpointID]
	return cp, ok
}

func (f *fakeLookup) CheckpointRefForPayment(paymentID string) (string, bool) {
	id, ok := f.checkpointByPayment[paymentID]
	return id, ok
}

func (f *fakeLookup) AuthorizedParties(paymentID string) []string {
	return f.parties[paymentID]
}

func leafHash(s string) [32]byte {
	var h [32]byte
	copy(h[:], s)
	return h
}

func TestGenerateAndVerifyProof(t *testing.T) {
	leaves := []merkle.Leaf{
		{PaymentID: "p1", Hash: leafHash("hash-p1")},
		{PaymentID: "p2", Hash: leafHash("hash-p2")},
	}
	tree := merkle.Build(leaves)

	lookup := &fakeLookup{
		checkpointByPayment: map[string]string{"p1": "cp-1"},
		leaves:              map[string][]merkle.Leaf{"cp-1": leaves},
		parties:             map[string][]string{"p1": {"AAAABBBB", "CCCCDDDD"}},
	}

	p, err := Generate(lookup, "p1", leafHash("hash-p1"))
	if err != nil {
		t.Fatalf("Generate error = %v", err)
	}
	if p.CheckpointRef != "cp-1" {
		t.Errorf("CheckpointRef = %s, want cp-1", p.CheckpointRef)
	}
	if len(p.AuthorizedParties) != 2 {
		t.Errorf("AuthorizedParties = %v", p.AuthorizedParties)
	}

	coordPub, coordPriv, _ := ed25519.GenerateKey(rand.Reader)
	coordSigner, _ := signer.NewEd25519SignerFromSeed("coordinator-1", 1, "deltran.checkpoint-seal.v1", coordPriv.Seed())
	_ = coordPub

	trust := checkpoint.NewTrustSet()
	cp := core.Checkpoint{CheckpointID: "cp-1", Height: 100, MerkleRoot: tree.Root()}
	coordSig, err := coordSigner.Sign(context.Background(), cp.TupleHash())
	if err != nil {
		t.Fatalf("coordinator sign error = %v", err)
	}

	ok, err := Verify(context.Background(), leafHash("hash-p1"), p, cp, trust, 0, coordSigner, coordSig)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true for a genuine proof")
	}
}

func TestGenerateUnsealedPaymentFails(t *testing.T) {
	lookup := &fakeLookup{checkpointByPayment: map[string]string{}}
	_, err := Generate(lookup, "p1", leafHash("hash-p1"))
	if !errors.Is(err, core.ErrNotSealed) {
		t.Errorf("Generate error = %v, want ErrNotSealed", err)
	}
}

func TestGenerateMissingLeafFails(t *testing.T) {
	lookup := &fakeLookup{
		checkpointByPayment: map[string]string{"p1": "cp-1"},
		leaves:              map[string][]merkle.Leaf{"cp-1": {{PaymentID: "p2", Hash: leafHash("hash-p2")}}},
	}
	_, err := Generate(lookup, "p1", leafHash("hash-p1"))
	if !errors.Is(err, core.ErrMerkleMismatch) {
		t.Errorf("Generate error = %v, want ErrMerkleMismatch", err)
	}
}

func TestVerifyRejectsWrongMerkleRoot(t *testing.T) {
	leaves := []merkle.Leaf{{PaymentID: "p1", Hash: leafHash("hash-p1")}}
	lookup := &fakeLookup{
		checkpointByPayment: map[string]string{"p1": "cp-1"},
		leaves:              map[string][]merkle.Leaf{"cp-1": leaves},
	}
	p, _ := Generate(lookup, "p1", leafHash("hash-p1"))

	trust := checkpoint.NewTrustSet()
	coordPriv := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	coordSigner, _ := signer.NewEd25519SignerFromSeed("coordinator-1", 1, "deltran.checkpoint-seal.v1", coordPriv.Seed())

	wrongRoot := leafHash("not-the-real-root")
	cp := core.Checkpoint{CheckpointID: "cp-1", MerkleRoot: wrongRoot}
	coordSig, _ := coordSigner.Sign(context.Background(), cp.TupleHash())

	ok, err := Verify(context.Background(), leafHash("hash-p1"), p, cp, trust, 0, coordSigner, coordSig)
	if ok || !errors.Is(err, core.ErrMerkleMismatch) {
		t.Errorf("Verify = (%v, %v), want (false, ErrMerkleMismatch)", ok, err)
	}
}

func TestCheckAuthorized(t *testing.T) {
	p := core.SettlementProof{AuthorizedParties: []string{"AAAABBBB", "CCCCDDDD"}}
	regulators := map[string]bool{"REGULATOR": true}

	tests := []struct {
		name    string
		caller  string
		wantErr bool
	}{
		{name: "payer authorized", caller: "AAAABBBB", wantErr: false},
		{name: "payee authorized", caller: "CCCCDDDD", wantErr: false},
		{name: "regulator authorized", caller: "REGULATOR", wantErr: false},
		{name: "unrelated bank rejected", caller: "EEEEFFFF", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckAuthorized(p, tt.caller, regulators)
			if (err != nil) != tt.wantErr {
				t.Errorf("CheckAuthorized(%s) error = %v, wantErr %v", tt.caller, err, tt.wantErr)
			}
		})
	}
}
