// Package hsmproto defines the request/response shapes and client
// interface for DelTran's external signer and HSM coordinator seal RPCs.
// It mirrors the generated-client-stub shape the teacher repo's own
// liquidity_client.go assumes from a "proto" package, but that package is
// never shipped in the retrieval pack either; this is the minimal
// hand-authored equivalent, ready to be swapped for a real
// protoc-gen-go-grpc client against the same method set without touching
// any caller.
package hsmproto

import "context"

// SignRequest asks the external signer to sign a canonical hash under its
// current key_epoch.
type SignRequest struct {
	CanonicalHash []byte
	KeyID         string
}

// SignResponse carries the signature and the key identity/epoch it was
// produced under, so callers can record key rotation history.
type SignResponse struct {
	Signature []byte
	KeyID     string
	KeyEpoch  uint32
}

// SealRequest asks the HSM coordinator to seal a checkpoint tuple's
// canonical hash together with the collected BFT signature set.
type SealRequest struct {
	CanonicalHash      []byte
	BftSignatureHashes [][]byte
}

// SealResponse carries the coordinator's seal signature.
type SealResponse struct {
	Seal     []byte
	KeyID    string
	KeyEpoch uint32
}

// PublicKeyRequest asks for the public key backing a key_id/epoch pair.
type PublicKeyRequest struct {
	KeyID    string
	KeyEpoch uint32
}

// PublicKeyResponse carries the raw public key bytes.
type PublicKeyResponse struct {
	PublicKey []byte
}

// HSMSignerClient is the capability set an external PKCS#11-style signer
// exposes over gRPC. A real deployment backs this with a generated
// protobuf client; internal/signer's PKCS11Signer variant only depends on
// this interface, so either a generated stub or the in-process
// implementation in this package can stand behind it.
type HSMSignerClient interface {
	Sign(ctx context.Context, req *SignRequest) (*SignResponse, error)
	Seal(ctx context.Context, req *SealRequest) (*SealResponse, error)
	PublicKey(ctx context.Context, req *PublicKeyRequest) (*PublicKeyResponse, error)
	Close() error
}
