// Package proof implements the per-payment settlement proof generator and
// its stateless verifier, per §4.10. A proof bundles a payment's Merkle
// inclusion path with its checkpoint's BFT signatures and coordinator
// seal; verification recomputes the root and checks BFT quorum and the
// coordinator seal without consulting any mutable state.
//
// The descriptive field set a proof response carries (hash algorithm,
// signature scheme, consensus proof) is grounded on the original
// DelTran-MVP gateway fragment's CryptographicProofData shape, adapted to
// name the scheme this core actually uses.
package proof

import (
	"context"

	"github.com/deltran/settlement-core/internal/checkpoint"
	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/merkle"
	"github.com/deltran/settlement-core/internal/signer"
)

// CryptoSummary documents which primitives back a proof, for display or
// audit -- not consulted by verification itself, which is purely
// structural.
type CryptoSummary struct {
	HashAlgorithm   string
	SignatureScheme string
	ConsensusProof  string
}

// DefaultCryptoSummary names the schemes DelTran actually uses, replacing
// the placeholder ECDSA-secp256k1/SHA-256/BFT-7-of-7 values carried by the
// original fragment this is grounded on.
func DefaultCryptoSummary() CryptoSummary {
	return CryptoSummary{HashAlgorithm: "SHA3-256", SignatureScheme: "Ed25519/PKCS11", ConsensusProof: "BFT-5-of-7"}
}

// SealedBatchLookup resolves the Merkle leaves and checkpoint for a
// payment that has been sealed, so Generate can build its path.
type SealedBatchLookup interface {
	LeavesForCheckpoint(checkpointID string) ([]merkle.Leaf, bool)
	CheckpointByID(checkpointID string) (core.Checkpoint, bool)
	CheckpointRefForPayment(paymentID string) (checkpointID string, ok bool)
	AuthorizedParties(paymentID string) []string
}

// Generate builds a SettlementProof for a sealed payment, or
// core.ErrNotSealed if the payment's batch has not yet been sealed.
func Generate(lookup SealedBatchLookup, paymentID string, paymentHash [32]byte) (core.SettlementProof, error) {
	checkpointID, ok := lookup.CheckpointRefForPayment(paymentID)
	if !ok {
		return core.SettlementProof{}, core.ErrNotSealed
	}
	leaves, ok := lookup.LeavesForCheckpoint(checkpointID)
	if !ok {
		return core.SettlementProof{}, core.ErrNotSealed
	}

	tree := merkle.Build(leaves)
	path, err := tree.Prove(paymentHash)
	if err != nil {
		return core.SettlementProof{}, core.ErrMerkleMismatch
	}

	steps := make([]core.MerklePathStep, len(path))
	for i, p := range path {
		steps[i] = core.MerklePathStep{Sibling: p.Sibling, Right: p.Side == merkle.SideRight}
	}

	return core.SettlementProof{
		PaymentID:         paymentID,
		MerklePath:        steps,
		CheckpointRef:     checkpointID,
		AuthorizedParties: lookup.AuthorizedParties(paymentID),
	}, nil
}

// Verify implements §4.10's stateless verification:
// verify_path(payment_hash, path, merkle_root) AND verify_bft(checkpoint,
// trust_set, quorum=5/7) AND verify_seal(checkpoint, coordinator_key_set).
func Verify(ctx context.Context, paymentHash [32]byte, p core.SettlementProof, cp core.Checkpoint, trust *checkpoint.TrustSet, quorum int, coordinatorVerifier signer.Signer, coordinatorSig signer.Signature) (bool, error) {
	path := make([]merkle.ProofNode, len(p.MerklePath))
	for i, s := range p.MerklePath {
		side := merkle.SideLeft
		if s.Right {
			side = merkle.SideRight
		}
		path[i] = merkle.ProofNode{Sibling: s.Sibling, Side: side}
	}
	if !merkle.Verify(paymentHash, path, cp.MerkleRoot) {
		return false, core.ErrMerkleMismatch
	}
	if !checkpoint.VerifyQuorum(cp, trust, quorum) {
		return false, core.ErrQuorumNotReached
	}
	ok, err := checkpoint.VerifySeal(ctx, cp, coordinatorVerifier, coordinatorSig)
	if err != nil || !ok {
		return false, core.ErrMerkleMismatch
	}
	return true, nil
}

// CheckAuthorized enforces §4.10's ACL gate: access to a proof is
// restricted to authorized_parties (payer BIC, payee BIC, a configured
// regulator set).
func CheckAuthorized(p core.SettlementProof, callerBIC string, regulators map[string]bool) error {
	if regulators[callerBIC] {
		return nil
	}
	for _, party := range p.AuthorizedParties {
		if party == callerBIC {
			return nil
		}
	}
	return core.ErrNotAuthorized
}
