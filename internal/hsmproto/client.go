package hsmproto

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// GRPCClient is the production HSMSignerClient, reached over gRPC. It
// follows the teacher's liquidity_client.go dial pattern exactly: a
// blocking DialContext with a short connect timeout, then per-call
// contexts layered underneath for each RPC.
type GRPCClient struct {
	conn *grpc.ClientConn
}

// NewGRPCClient dials the external signer / HSM coordinator at address.
func NewGRPCClient(address string, dialTimeout time.Duration) (*GRPCClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	conn, err := grpc.DialContext(ctx, address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return nil, fmt.Errorf("hsmproto: failed to connect to signer service: %w", err)
	}
	return &GRPCClient{conn: conn}, nil
}

func (c *GRPCClient) Sign(ctx context.Context, req *SignRequest) (*SignResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp := &SignResponse{}
	if err := c.conn.Invoke(ctx, "/deltran.hsm.v1.Signer/Sign", req, resp); err != nil {
		return nil, fmt.Errorf("hsmproto: sign rpc failed: %w", err)
	}
	return resp, nil
}

func (c *GRPCClient) Seal(ctx context.Context, req *SealRequest) (*SealResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	resp := &SealResponse{}
	if err := c.conn.Invoke(ctx, "/deltran.hsm.v1.Signer/Seal", req, resp); err != nil {
		return nil, fmt.Errorf("hsmproto: seal rpc failed: %w", err)
	}
	return resp, nil
}

func (c *GRPCClient) PublicKey(ctx context.Context, req *PublicKeyRequest) (*PublicKeyResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	resp := &PublicKeyResponse{}
	if err := c.conn.Invoke(ctx, "/deltran.hsm.v1.Signer/PublicKey", req, resp); err != nil {
		return nil, fmt.Errorf("hsmproto: public key rpc failed: %w", err)
	}
	return resp, nil
}

func (c *GRPCClient) Close() error {
	return c.conn.Close()
}
