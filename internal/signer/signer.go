// Package signer defines DelTran's opaque signer capability and its two
// closed variants: a software Ed25519 signer for tests and development, and
// an external PKCS#11-style signer reached over gRPC for production,
// modeling a hardware security module. Signatures always cover a canonical
// hash, never a raw structure, per §4.3.
package signer

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownEpoch is returned when a verifier is asked to trust a key_epoch
// it has not been configured to accept.
var ErrUnknownEpoch = errors.New("signer: key epoch not in trust set")

// KeyEpoch identifies a signing key generation, allowing rotation: a
// verifier accepts any epoch still in its trust set.
type KeyEpoch uint32

// Signature is the opaque result of Sign: a signature over the canonical
// hash, plus the key identity that produced it.
type Signature struct {
	Bytes    []byte
	KeyID    string
	KeyEpoch KeyEpoch
}

// Signer is the capability set every variant implements.
type Signer interface {
	// Sign signs the canonical hash (NOT a raw structure) and returns the
	// signature along with the signing key's identity and epoch.
	Sign(ctx context.Context, canonicalHash [32]byte) (Signature, error)
	// Verify checks a signature produced by Sign against the canonical
	// hash, key_id, and key_epoch it claims.
	Verify(ctx context.Context, canonicalHash [32]byte, sig Signature) (bool, error)
	// PublicKey returns the raw public key bytes for a given key_id/epoch,
	// or an error if unknown.
	PublicKey(keyID string, epoch KeyEpoch) ([]byte, error)
	// CurrentEpoch reports the epoch this signer currently signs under.
	CurrentEpoch() KeyEpoch
}

// Ed25519Signer is the software signer variant, used for tests and
// development. Its capability set mirrors signer.Signer exactly.
type Ed25519Signer struct {
	mu      sync.RWMutex
	keyID   string
	epoch   KeyEpoch
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	domain  string
	trusted map[KeyEpoch][]byte // epoch -> trusted public key, for Verify
}

// NewEd25519Signer generates a fresh keypair for the given key_id/epoch and
// domain-separation tag. domain is mixed into every signed message so that
// signatures cannot be replayed across unrelated protocols, following the
// domain-separation discipline of attestation-style Ed25519 signers.
func NewEd25519Signer(keyID string, epoch KeyEpoch, domain string) (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("signer: generate ed25519 key: %w", err)
	}
	s := &Ed25519Signer{
		keyID:   keyID,
		epoch:   epoch,
		priv:    priv,
		pub:     pub,
		domain:  domain,
		trusted: map[KeyEpoch][]byte{epoch: pub},
	}
	return s, nil
}

// NewEd25519SignerFromSeed constructs a deterministic signer from a 32-byte
// seed, used by tests that need reproducible validator identities.
func NewEd25519SignerFromSeed(keyID string, epoch KeyEpoch, domain string, seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("signer: seed must be %d bytes", ed25519.SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Ed25519Signer{
		keyID:   keyID,
		epoch:   epoch,
		priv:    priv,
		pub:     pub,
		domain:  domain,
		trusted: map[KeyEpoch][]byte{epoch: pub},
	}, nil
}

// TrustEpoch registers another key_epoch's public key as acceptable to
// Verify, implementing key rotation: the verifier accepts any epoch still
// in its trust set.
func (s *Ed25519Signer) TrustEpoch(epoch KeyEpoch, pub ed25519.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trusted[epoch] = append([]byte(nil), pub...)
}

func (s *Ed25519Signer) domainMessage(hash [32]byte) []byte {
	h := canonDomainHash(s.domain, hash)
	return h[:]
}

func (s *Ed25519Signer) Sign(_ context.Context, canonicalHash [32]byte) (Signature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg := s.domainMessage(canonicalHash)
	sig := ed25519.Sign(s.priv, msg)
	return Signature{Bytes: sig, KeyID: s.keyID, KeyEpoch: s.epoch}, nil
}

func (s *Ed25519Signer) Verify(_ context.Context, canonicalHash [32]byte, sig Signature) (bool, error) {
	s.mu.RLock()
	pub, ok := s.trusted[sig.KeyEpoch]
	s.mu.RUnlock()
	if !ok {
		return false, ErrUnknownEpoch
	}
	msg := s.domainMessage(canonicalHash)
	return ed25519.Verify(pub, msg, sig.Bytes), nil
}

func (s *Ed25519Signer) PublicKey(keyID string, epoch KeyEpoch) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if keyID != s.keyID {
		return nil, fmt.Errorf("signer: unknown key_id %q", keyID)
	}
	pub, ok := s.trusted[epoch]
	if !ok {
		return nil, ErrUnknownEpoch
	}
	return pub, nil
}

func (s *Ed25519Signer) CurrentEpoch() KeyEpoch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}
