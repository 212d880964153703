package twopc

import (
	"context"
	"sort"

	"github.com/deltran/settlement-core/internal/core"
)

// partialSettle decomposes the component's net-graph into maximal
// sub-components containing no dissenting bank, per §4.7: "the coordinator
// decomposes the original net-graph into maximal sub-components that
// contain no failed bank... a weakly connected component of the residual
// after removing every edge incident to a failed bank." Each sub-component
// is committed independently under a fresh Prepare/Commit round; transfers
// touching a dissenting bank are requeued instead.
func (c *Coordinator) partialSettle(ctx context.Context, batchID, componentID string, transfers []core.NetTransfer, dissenting []string) Outcome {
	failed := make(map[string]bool, len(dissenting))
	for _, b := range dissenting {
		failed[b] = true
	}

	var survivors []core.NetTransfer
	var requeuePaymentIDs []string
	for _, t := range transfers {
		if failed[t.PayerBIC] || failed[t.PayeeBIC] {
			requeuePaymentIDs = append(requeuePaymentIDs, t.SourcePaymentIDs...)
			continue
		}
		survivors = append(survivors, t)
	}

	subComponents := weaklyConnectedSubgraphs(survivors)

	var committed []core.NetTransfer
	for subID, subTransfers := range subComponents {
		sub := c.finalizeComponent(ctx, batchID, componentID+"/"+subID, subTransfers)
		committed = append(committed, sub.Committed...)
		requeuePaymentIDs = append(requeuePaymentIDs, sub.Requeued...)
	}

	sort.Strings(requeuePaymentIDs)
	return Outcome{
		ComponentID:     componentID,
		Committed:       committed,
		Requeued:        dedupe(requeuePaymentIDs),
		DissentingBanks: dissenting,
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// weaklyConnectedSubgraphs groups survivor transfers into weakly
// connected components over the bank graph, keyed by the
// lexicographically smallest BIC in each group (a stable, reproducible
// sub-component id).
func weaklyConnectedSubgraphs(transfers []core.NetTransfer) map[string][]core.NetTransfer {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, t := range transfers {
		union(t.PayerBIC, t.PayeeBIC)
	}

	groupOf := make(map[string]string)
	members := make(map[string][]string)
	for bic := range parent {
		r := find(bic)
		members[r] = append(members[r], bic)
	}
	for r, m := range members {
		sort.Strings(m)
		groupOf[r] = m[0]
	}

	out := make(map[string][]core.NetTransfer)
	for _, t := range transfers {
		r := find(t.PayerBIC)
		id := groupOf[r]
		out[id] = append(out[id], t)
	}
	return out
}
