package signer

import (
	"context"
	"crypto/ed25519"
	"errors"
	"testing"

	"golang.org/x/crypto/sha3"
)

func hashOf(s string) [32]byte {
	return sha3.Sum256([]byte(s))
}

func TestEd25519SignVerifyRoundTrip(t *testing.T) {
	s, err := NewEd25519Signer("validator-1", 1, "deltran.checkpoint.v1")
	if err != nil {
		t.Fatalf("NewEd25519Signer error = %v", err)
	}
	hash := hashOf("payment-1")

	sig, err := s.Sign(context.Background(), hash)
	if err != nil {
		t.Fatalf("Sign error = %v", err)
	}
	if sig.KeyID != "validator-1" || sig.KeyEpoch != 1 {
		t.Errorf("signature identity = %s/%d, want validator-1/1", sig.KeyID, sig.KeyEpoch)
	}

	ok, err := s.Verify(context.Background(), hash, sig)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if !ok {
		t.Error("Verify = false, want true for a genuine signature")
	}
}

func TestVerifyRejectsTamperedHash(t *testing.T) {
	s, _ := NewEd25519Signer("validator-1", 1, "deltran.checkpoint.v1")
	sig, _ := s.Sign(context.Background(), hashOf("payment-1"))

	ok, err := s.Verify(context.Background(), hashOf("payment-2"), sig)
	if err != nil {
		t.Fatalf("Verify error = %v", err)
	}
	if ok {
		t.Error("Verify = true for a hash that was never signed, want false")
	}
}

func TestVerifyRejectsUnknownEpoch(t *testing.T) {
	s, _ := NewEd25519Signer("validator-1", 1, "deltran.checkpoint.v1")
	sig, _ := s.Sign(context.Background(), hashOf("payment-1"))
	sig.KeyEpoch = 99

	_, err := s.Verify(context.Background(), hashOf("payment-1"), sig)
	if !errors.Is(err, ErrUnknownEpoch) {
		t.Errorf("Verify error = %v, want ErrUnknownEpoch", err)
	}
}

func TestTrustEpochAcceptsRotatedKey(t *testing.T) {
	s, _ := NewEd25519Signer("validator-1", 1, "deltran.checkpoint.v1")
	hash := hashOf("payment-1")
	oldSig, _ := s.Sign(context.Background(), hash)

	newPub, newPriv, _ := ed25519.GenerateKey(nil)
	_ = newPriv
	s.TrustEpoch(2, newPub)

	ok, err := s.Verify(context.Background(), hash, oldSig)
	if err != nil || !ok {
		t.Errorf("old epoch should still verify after rotation: ok=%v err=%v", ok, err)
	}

	if _, err := s.PublicKey("validator-1", 2); err != nil {
		t.Errorf("PublicKey(epoch 2) error = %v, want nil after TrustEpoch", err)
	}
}

func TestDeterministicSignerFromSeed(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	s1, err := NewEd25519SignerFromSeed("validator-1", 1, "deltran.checkpoint.v1", seed)
	if err != nil {
		t.Fatalf("NewEd25519SignerFromSeed error = %v", err)
	}
	s2, err := NewEd25519SignerFromSeed("validator-1", 1, "deltran.checkpoint.v1", seed)
	if err != nil {
		t.Fatalf("NewEd25519SignerFromSeed error = %v", err)
	}
	hash := hashOf("payment-1")
	sig1, _ := s1.Sign(context.Background(), hash)
	sig2, _ := s2.Sign(context.Background(), hash)
	if string(sig1.Bytes) != string(sig2.Bytes) {
		t.Error("signers built from the same seed should produce identical signatures")
	}
}

func TestDomainSeparationAcrossSigners(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	s1, _ := NewEd25519SignerFromSeed("v1", 1, "deltran.payment.v1", seed)
	s2, _ := NewEd25519SignerFromSeed("v1", 1, "deltran.checkpoint.v1", seed)

	hash := hashOf("payment-1")
	sig, _ := s1.Sign(context.Background(), hash)

	ok, _ := s2.Verify(context.Background(), hash, sig)
	if ok {
		t.Error("a signature made under one domain tag should not verify under another")
	}
}
