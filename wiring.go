package main

import (
	"context"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/resilience"
)

// inMemoryTokenStore is a development-only validate.TokenStore: deployments
// back this with persistent storage (out of scope per §1), so real
// eligibility tokens never touch this binary's memory.
type inMemoryTokenStore struct{}

func (inMemoryTokenStore) Lookup(tokenID string) (core.EligibilityToken, bool) {
	return core.EligibilityToken{}, false
}

func (inMemoryTokenStore) MarkConsumed(tokenID string) bool { return true }

// staticResolver is a development-only twopc.ConnectorResolver: every BIC
// resolves to the same demo corridor connector. A real deployment supplies
// its own resolver backed by actual bank transports, which is explicitly
// out of scope per §1's non-goals.
type staticResolver struct{}

func (staticResolver) Connector(bic string) (string, resilience.Connector, bool) {
	return "demo-corridor", demoConnector{}, true
}

// demoConnector always votes Yes and commits instantly, standing in for a
// real bank adapter so this binary can run end-to-end standalone.
type demoConnector struct{}

func (demoConnector) Prepare(ctx context.Context, batchID, netTransferID string) (resilience.Vote, error) {
	return resilience.VoteYes, nil
}

func (demoConnector) Commit(ctx context.Context, batchID, netTransferID string) error { return nil }
func (demoConnector) Abort(ctx context.Context, batchID, netTransferID string) error  { return nil }

func (demoConnector) Health(ctx context.Context) (bool, int64, error) {
	return true, time.Millisecond.Milliseconds(), nil
}
