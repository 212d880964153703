package hsmproto

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// InProcessStub is a test/development HSMSignerClient backed by an
// in-memory Ed25519 keypair instead of a real network call. main.go uses it
// as the checkpoint coordinator's HSM when no -hsm address is given, and
// the checkpoint and engine tests use it in place of a live gRPC server.
type InProcessStub struct {
	keyID string
	epoch uint32
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
}

// NewInProcessStub generates a fresh keypair for the stub.
func NewInProcessStub(keyID string, epoch uint32) (*InProcessStub, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("hsmproto: generate stub key: %w", err)
	}
	return &InProcessStub{keyID: keyID, epoch: epoch, priv: priv, pub: pub}, nil
}

func (s *InProcessStub) Sign(_ context.Context, req *SignRequest) (*SignResponse, error) {
	return &SignResponse{
		Signature: ed25519.Sign(s.priv, req.CanonicalHash),
		KeyID:     s.keyID,
		KeyEpoch:  s.epoch,
	}, nil
}

func (s *InProcessStub) Seal(_ context.Context, req *SealRequest) (*SealResponse, error) {
	msg := append([]byte(nil), req.CanonicalHash...)
	for _, h := range req.BftSignatureHashes {
		msg = append(msg, h...)
	}
	return &SealResponse{
		Seal:     ed25519.Sign(s.priv, msg),
		KeyID:    s.keyID,
		KeyEpoch: s.epoch,
	}, nil
}

func (s *InProcessStub) PublicKey(_ context.Context, _ *PublicKeyRequest) (*PublicKeyResponse, error) {
	return &PublicKeyResponse{PublicKey: append([]byte(nil), s.pub...)}, nil
}

func (s *InProcessStub) Close() error { return nil }
