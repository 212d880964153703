package twopc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/decimal"
	"github.com/deltran/settlement-core/internal/resilience"
)

type fakeConnector struct {
	vote resilience.Vote
	err  error

	mu       sync.Mutex
	prepared []string
	committed []string
	aborted   []string
}

func (f *fakeConnector) Prepare(ctx context.Context, batchID, netTransferID string) (resilience.Vote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepared = append(f.prepared, netTransferID)
	return f.vote, f.err
}

func (f *fakeConnector) Commit(ctx context.Context, batchID, netTransferID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, netTransferID)
	return nil
}

func (f *fakeConnector) Abort(ctx context.Context, batchID, netTransferID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborted = append(f.aborted, netTransferID)
	return nil
}

func (f *fakeConnector) Health(ctx context.Context) (bool, int64, error) { return true, 0, nil }

type fakeResolver struct {
	connectors map[string]*fakeConnector
}

func (f *fakeResolver) Connector(bic string) (string, resilience.Connector, bool) {
	conn, ok := f.connectors[bic]
	if !ok {
		return "", nil, false
	}
	return "corridor-" + bic, conn, true
}

func transfer(id, payer, payee, amt string, sources ...string) core.NetTransfer {
	d, _ := decimal.Parse(amt)
	return core.NetTransfer{NetTransferID: id, Currency: "USD", PayerBIC: payer, PayeeBIC: payee, Amount: d, SourcePaymentIDs: sources}
}

func TestFinalizeBatchAllYesCommits(t *testing.T) {
	connA := &fakeConnector{vote: resilience.VoteYes}
	connB := &fakeConnector{vote: resilience.VoteYes}
	resolver := &fakeResolver{connectors: map[string]*fakeConnector{"AAAABBBB": connA, "BBBBCCCC": connB}}
	coord := New(resilience.NewRegistry(10), resolver, time.Second, 3)

	components := map[string][]core.NetTransfer{
		"comp-1": {transfer("nt-1", "AAAABBBB", "BBBBCCCC", "100", "p1")},
	}
	outcomes := coord.FinalizeBatch(context.Background(), "batch-1", components)

	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	out := outcomes[0]
	if len(out.Committed) != 1 || len(out.DissentingBanks) != 0 {
		t.Errorf("outcome = %+v, want one committed transfer and no dissent", out)
	}
	if len(connA.committed) != 1 || len(connB.committed) != 1 {
		t.Errorf("commit not propagated to both banks: A=%v B=%v", connA.committed, connB.committed)
	}
}

func TestFinalizeBatchDissentTriggersPartialSettlement(t *testing.T) {
	connA := &fakeConnector{vote: resilience.VoteYes}
	connB := &fakeConnector{vote: resilience.VoteNo}
	resolver := &fakeResolver{connectors: map[string]*fakeConnector{"AAAABBBB": connA, "BBBBCCCC": connB}}
	coord := New(resilience.NewRegistry(10), resolver, time.Second, 3)

	components := map[string][]core.NetTransfer{
		"comp-1": {transfer("nt-1", "AAAABBBB", "BBBBCCCC", "100", "p1")},
	}
	outcomes := coord.FinalizeBatch(context.Background(), "batch-1", components)
	out := outcomes[0]

	if len(out.Committed) != 0 {
		t.Errorf("Committed = %v, want none (the only transfer touches the dissenting bank)", out.Committed)
	}
	if len(out.Requeued) != 1 || out.Requeued[0] != "p1" {
		t.Errorf("Requeued = %v, want [p1]", out.Requeued)
	}
	if len(out.DissentingBanks) != 1 || out.DissentingBanks[0] != "BBBBCCCC" {
		t.Errorf("DissentingBanks = %v, want [BBBBCCCC]", out.DissentingBanks)
	}
	if len(connA.aborted) != 1 {
		t.Errorf("the voting-Yes bank should still be aborted on dissent, aborted=%v", connA.aborted)
	}
}

func TestFinalizeBatchPartialSettlementKeepsSurvivingSubgraph(t *testing.T) {
	connA := &fakeConnector{vote: resilience.VoteYes}
	connB := &fakeConnector{vote: resilience.VoteNo}
	connC := &fakeConnector{vote: resilience.VoteYes}
	connD := &fakeConnector{vote: resilience.VoteYes}
	resolver := &fakeResolver{connectors: map[string]*fakeConnector{
		"AAAABBBB": connA, "BBBBCCCC": connB, "CCCCDDDD": connC, "DDDDEEEE": connD,
	}}
	coord := New(resilience.NewRegistry(10), resolver, time.Second, 3)

	components := map[string][]core.NetTransfer{
		"comp-1": {
			transfer("nt-1", "AAAABBBB", "BBBBCCCC", "100", "p1"), // touches dissenting BBBBCCCC
			transfer("nt-2", "CCCCDDDD", "DDDDEEEE", "50", "p2"),  // independent, all-Yes subgraph
		},
	}
	outcomes := coord.FinalizeBatch(context.Background(), "batch-1", components)
	out := outcomes[0]

	if len(out.Committed) != 1 || out.Committed[0].NetTransferID != "nt-2" {
		t.Errorf("Committed = %+v, want only nt-2 to survive", out.Committed)
	}
	if len(out.Requeued) != 1 || out.Requeued[0] != "p1" {
		t.Errorf("Requeued = %v, want [p1]", out.Requeued)
	}
}

// TestScenarioFourBankCycleDissent reproduces the spec's 2PC worked
// example verbatim: a four-bank cycle A->B->C->D->A where the middle bank
// C dissents. The sub-graph that never touches C (D->A, A->B) must commit
// as its own surviving component; the two transfers touching C must be
// requeued.
func TestScenarioFourBankCycleDissent(t *testing.T) {
	connA := &fakeConnector{vote: resilience.VoteYes}
	connB := &fakeConnector{vote: resilience.VoteYes}
	connC := &fakeConnector{vote: resilience.VoteNo}
	connD := &fakeConnector{vote: resilience.VoteYes}
	resolver := &fakeResolver{connectors: map[string]*fakeConnector{
		"AAAABBBB": connA, "BBBBCCCC": connB, "CCCCDDDD": connC, "DDDDEEEE": connD,
	}}
	coord := New(resilience.NewRegistry(10), resolver, time.Second, 3)

	components := map[string][]core.NetTransfer{
		"comp-1": {
			transfer("nt-1", "AAAABBBB", "BBBBCCCC", "100", "p1"), // A -> B
			transfer("nt-2", "BBBBCCCC", "CCCCDDDD", "100", "p2"), // B -> C
			transfer("nt-3", "CCCCDDDD", "DDDDEEEE", "100", "p3"), // C -> D
			transfer("nt-4", "DDDDEEEE", "AAAABBBB", "100", "p4"), // D -> A
		},
	}
	outcomes := coord.FinalizeBatch(context.Background(), "batch-1", components)
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}
	out := outcomes[0]

	if len(out.DissentingBanks) != 1 || out.DissentingBanks[0] != "CCCCDDDD" {
		t.Errorf("DissentingBanks = %v, want [CCCCDDDD]", out.DissentingBanks)
	}

	wantCommitted := map[string]bool{"nt-1": true, "nt-4": true}
	if len(out.Committed) != len(wantCommitted) {
		t.Fatalf("Committed = %+v, want exactly %v", out.Committed, wantCommitted)
	}
	for _, nt := range out.Committed {
		if !wantCommitted[nt.NetTransferID] {
			t.Errorf("unexpected committed transfer %s", nt.NetTransferID)
		}
	}

	if len(out.Requeued) != 2 || out.Requeued[0] != "p2" || out.Requeued[1] != "p3" {
		t.Errorf("Requeued = %v, want [p2 p3] (the two transfers touching the dissenting bank)", out.Requeued)
	}
}

func TestFinalizeBatchMissingConnectorVotesNo(t *testing.T) {
	connA := &fakeConnector{vote: resilience.VoteYes}
	resolver := &fakeResolver{connectors: map[string]*fakeConnector{"AAAABBBB": connA}}
	coord := New(resilience.NewRegistry(10), resolver, time.Second, 3)

	components := map[string][]core.NetTransfer{
		"comp-1": {transfer("nt-1", "AAAABBBB", "BBBBCCCC", "100", "p1")},
	}
	outcomes := coord.FinalizeBatch(context.Background(), "batch-1", components)
	out := outcomes[0]

	if len(out.Committed) != 0 {
		t.Errorf("Committed = %v, want none when a bank has no resolvable connector", out.Committed)
	}
	if len(out.DissentingBanks) != 1 || out.DissentingBanks[0] != "BBBBCCCC" {
		t.Errorf("DissentingBanks = %v, want [BBBBCCCC]", out.DissentingBanks)
	}
}
