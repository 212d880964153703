// Package twopc implements DelTran's two-phase-commit finalization with
// partial-settlement fallback, per §4.7. For each component produced by
// netting, the coordinator drives Prepare across every involved bank via
// the Adapter resilience layer, then Commits on unanimous Yes or Aborts
// and decomposes into maximal sub-components excluding any dissenting
// bank.
//
// The narrow TransactionProcessor/LedgerManager-style interface separation
// for out-of-scope collaborators is grounded on
// cmatc13/stathera/internal/settlement/settlement.go's SettlementEngine.
// The per-bank mutex serializing outbound sends (Prepare before
// Commit/Abort for the same component, per §5) generalizes the teacher's
// single-connection gRPC call discipline in liquidity_client.go.
package twopc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/deltran/settlement-core/internal/core"
	"github.com/deltran/settlement-core/internal/resilience"
)

// ConnectorResolver maps a bank BIC to its corridor connector and corridor
// key, so the coordinator can route Prepare/Commit/Abort through the
// right Adapter resilience partition.
type ConnectorResolver interface {
	Connector(bic string) (corridor string, conn resilience.Connector, ok bool)
}

// Coordinator drives 2PC for components within a batch. Components run
// concurrently; a per-bank mutex enforces that a bank never receives
// Commit/Abort before its own Prepare response for the same component.
type Coordinator struct {
	registry    *resilience.Registry
	resolver    ConnectorResolver
	prepareTTL  time.Duration
	maxRetries  int

	bankMu sync.Map // bic -> *sync.Mutex
}

// New constructs a Coordinator. prepareTTL is used exactly as given; New
// applies no default (config.Defaults() carries TWO_PC_TIMEOUT_SECONDS=900).
func New(registry *resilience.Registry, resolver ConnectorResolver, prepareTTL time.Duration, maxRetries int) *Coordinator {
	return &Coordinator{registry: registry, resolver: resolver, prepareTTL: prepareTTL, maxRetries: maxRetries}
}

func (c *Coordinator) bankLock(bic string) *sync.Mutex {
	v, _ := c.bankMu.LoadOrStore(bic, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Outcome is the result of finalizing one component.
type Outcome struct {
	ComponentID       string
	Committed         []core.NetTransfer // transfers that committed
	Requeued          []string           // payment_ids to requeue (traversed a dissenting bank)
	DissentingBanks   []string
}

// FinalizeBatch runs 2PC independently and concurrently for every
// component in the batch, per §5 ("components within a batch run
// concurrently").
func (c *Coordinator) FinalizeBatch(ctx context.Context, batchID string, components map[string][]core.NetTransfer) []Outcome {
	var wg sync.WaitGroup
	outcomes := make([]Outcome, len(components))
	i := 0
	for componentID, transfers := range components {
		idx := i
		i++
		wg.Add(1)
		go func(componentID string, transfers []core.NetTransfer) {
			defer wg.Done()
			outcomes[idx] = c.finalizeComponent(ctx, batchID, componentID, transfers)
		}(componentID, transfers)
	}
	wg.Wait()
	return outcomes
}

// finalizeComponent runs one Prepare/Commit-or-Abort round, falling back
// to partial settlement on any dissent or timeout.
func (c *Coordinator) finalizeComponent(ctx context.Context, batchID, componentID string, transfers []core.NetTransfer) Outcome {
	banks := involvedBanks(transfers)
	votes := c.prepareAll(ctx, batchID, banks, transfers)

	dissenting := votesToDissenting(votes)
	if len(dissenting) == 0 {
		c.commitAll(ctx, batchID, banks, transfers)
		return Outcome{ComponentID: componentID, Committed: transfers}
	}

	// Abort every bank that voted (even Yes voters), then fall back to
	// partial settlement, per §4.7.
	c.abortAll(ctx, batchID, banks, transfers)
	return c.partialSettle(ctx, batchID, componentID, transfers, dissenting)
}

func (c *Coordinator) prepareAll(ctx context.Context, batchID string, banks []string, transfers []core.NetTransfer) map[string]resilience.Vote {
	votes := make(map[string]resilience.Vote, len(banks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	prepareCtx, cancel := context.WithTimeout(ctx, c.prepareTTL)
	defer cancel()

	for _, bic := range banks {
		bic := bic
		wg.Add(1)
		go func() {
			defer wg.Done()
			vote := c.prepareBank(prepareCtx, batchID, bic, transfersFor(transfers, bic))
			mu.Lock()
			votes[bic] = vote
			mu.Unlock()
		}()
	}
	wg.Wait()

	// wg.Wait returns only after every bank's goroutine has recorded a
	// vote, so the prepareTTL deadline becomes a No vote only through a
	// connector's Prepare returning an error under prepareCtx; a connector
	// that ignores its context is waited for. The loop below fills in No
	// for any bank without a recorded vote.
	for _, bic := range banks {
		if _, ok := votes[bic]; !ok {
			votes[bic] = resilience.VoteNo
		}
	}
	return votes
}

func (c *Coordinator) prepareBank(ctx context.Context, batchID, bic string, myTransfers []core.NetTransfer) resilience.Vote {
	lock := c.bankLock(bic)
	lock.Lock()
	defer lock.Unlock()

	corridor, conn, ok := c.resolver.Connector(bic)
	if !ok {
		return resilience.VoteNo
	}

	finalVote := resilience.VoteNo
	for _, nt := range myTransfers {
		vote, err := conn.Prepare(ctx, batchID, nt.NetTransferID)
		err = c.registry.Send(corridor, func() error { return err })
		if err != nil || vote != resilience.VoteYes {
			return resilience.VoteNo
		}
		finalVote = resilience.VoteYes
	}
	return finalVote
}

func (c *Coordinator) commitAll(ctx context.Context, batchID string, banks []string, transfers []core.NetTransfer) {
	var wg sync.WaitGroup
	for _, bic := range banks {
		bic := bic
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := c.bankLock(bic)
			lock.Lock()
			defer lock.Unlock()
			corridor, conn, ok := c.resolver.Connector(bic)
			if !ok {
				return
			}
			for _, nt := range transfersFor(transfers, bic) {
				_ = c.registry.Send(corridor, func() error { return conn.Commit(ctx, batchID, nt.NetTransferID) })
			}
		}()
	}
	wg.Wait()
}

func (c *Coordinator) abortAll(ctx context.Context, batchID string, banks []string, transfers []core.NetTransfer) {
	var wg sync.WaitGroup
	for _, bic := range banks {
		bic := bic
		wg.Add(1)
		go func() {
			defer wg.Done()
			lock := c.bankLock(bic)
			lock.Lock()
			defer lock.Unlock()
			corridor, conn, ok := c.resolver.Connector(bic)
			if !ok {
				return
			}
			for _, nt := range transfersFor(transfers, bic) {
				_ = c.registry.Send(corridor, func() error { return conn.Abort(ctx, batchID, nt.NetTransferID) })
			}
		}()
	}
	wg.Wait()
}

func involvedBanks(transfers []core.NetTransfer) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range transfers {
		for _, b := range []string{t.PayerBIC, t.PayeeBIC} {
			if !seen[b] {
				seen[b] = true
				out = append(out, b)
			}
		}
	}
	return out
}

func transfersFor(transfers []core.NetTransfer, bic string) []core.NetTransfer {
	var out []core.NetTransfer
	for _, t := range transfers {
		if t.PayerBIC == bic || t.PayeeBIC == bic {
			out = append(out, t)
		}
	}
	return out
}

func votesToDissenting(votes map[string]resilience.Vote) []string {
	var out []string
	for bic, v := range votes {
		if v != resilience.VoteYes {
			out = append(out, bic)
		}
	}
	return out
}

var errMissingConnector = fmt.Errorf("twopc: no connector resolved for bank")
