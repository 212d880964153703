package signer

import (
	"context"
	"fmt"

	"github.com/deltran/settlement-core/internal/hsmproto"
)

// PKCS11Signer is the external, production signer variant: every Sign call
// is proxied over hsmproto to an opaque PKCS#11-style module. It implements
// the exact same Signer capability set as Ed25519Signer so the rest of the
// core never branches on which variant it holds.
type PKCS11Signer struct {
	client   hsmproto.HSMSignerClient
	keyID    string
	epoch    KeyEpoch
	trustSet map[KeyEpoch][]byte
}

// NewPKCS11Signer wraps a dialed or stubbed HSMSignerClient.
func NewPKCS11Signer(client hsmproto.HSMSignerClient, keyID string, epoch KeyEpoch) *PKCS11Signer {
	return &PKCS11Signer{
		client:   client,
		keyID:    keyID,
		epoch:    epoch,
		trustSet: make(map[KeyEpoch][]byte),
	}
}

// TrustEpoch registers a previously-fetched public key for verification
// under key rotation, same contract as Ed25519Signer.TrustEpoch.
func (s *PKCS11Signer) TrustEpoch(epoch KeyEpoch, pub []byte) {
	s.trustSet[epoch] = append([]byte(nil), pub...)
}

func (s *PKCS11Signer) Sign(ctx context.Context, canonicalHash [32]byte) (Signature, error) {
	resp, err := s.client.Sign(ctx, &hsmproto.SignRequest{
		CanonicalHash: canonicalHash[:],
		KeyID:         s.keyID,
	})
	if err != nil {
		return Signature{}, fmt.Errorf("signer: pkcs11 sign: %w", err)
	}
	return Signature{Bytes: resp.Signature, KeyID: resp.KeyID, KeyEpoch: KeyEpoch(resp.KeyEpoch)}, nil
}

func (s *PKCS11Signer) Verify(ctx context.Context, canonicalHash [32]byte, sig Signature) (bool, error) {
	pub, ok := s.trustSet[sig.KeyEpoch]
	if !ok {
		fetched, err := s.client.PublicKey(ctx, &hsmproto.PublicKeyRequest{KeyID: sig.KeyID, KeyEpoch: uint32(sig.KeyEpoch)})
		if err != nil {
			return false, ErrUnknownEpoch
		}
		pub = fetched.PublicKey
		s.trustSet[sig.KeyEpoch] = pub
	}
	return ed25519VerifyRaw(pub, canonicalHash[:], sig.Bytes), nil
}

func (s *PKCS11Signer) PublicKey(keyID string, epoch KeyEpoch) ([]byte, error) {
	if keyID != s.keyID {
		return nil, fmt.Errorf("signer: unknown key_id %q", keyID)
	}
	pub, ok := s.trustSet[epoch]
	if !ok {
		return nil, ErrUnknownEpoch
	}
	return pub, nil
}

func (s *PKCS11Signer) CurrentEpoch() KeyEpoch {
	return s.epoch
}
