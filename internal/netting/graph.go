// Package netting implements DelTran's multilateral netting engine: per
// currency, it collapses a directed multigraph of bilateral obligations
// into a minimal set of net transfers via strongly-connected-component
// cycle elimination followed by bilateral residue collapse, per §4.6.
//
// The graph uses an arena of nodes keyed by BIC with a stable NodeIndex,
// and edges as a separate slice of (NodeIndex, NodeIndex, weight) --
// avoiding the shared-pointer graph lifetime trouble flagged in §9. SCC
// operates over indices only.
package netting

import (
	"sort"

	"github.com/deltran/settlement-core/internal/decimal"
)

// NodeIndex is a stable handle into a graph's node arena.
type NodeIndex int

// arena maps BICs to stable indices and back.
type arena struct {
	bics  []string
	index map[string]NodeIndex
}

func newArena() *arena {
	return &arena{index: make(map[string]NodeIndex)}
}

func (a *arena) indexOf(bic string) NodeIndex {
	if idx, ok := a.index[bic]; ok {
		return idx
	}
	idx := NodeIndex(len(a.bics))
	a.bics = append(a.bics, bic)
	a.index[bic] = idx
	return idx
}

func (a *arena) bic(idx NodeIndex) string {
	return a.bics[idx]
}

// edge is a weighted directed edge carrying the set of payment IDs that
// contributed to it, so the engine can emit source_payment_ids on the
// final NetTransfer.
type edge struct {
	From, To NodeIndex
	Weight   decimal.Decimal
	Payments map[string]bool
}

// Graph is a simple (no parallel edges, no self-loops) weighted digraph
// over BIC nodes for one currency within one window.
type Graph struct {
	Currency string
	arena    *arena
	edges    map[[2]NodeIndex]*edge // keyed by (from,to), parallel edges pre-collapsed
}

// ObligationInput is the minimal shape the netting engine needs from an
// accepted Obligation.
type ObligationInput struct {
	PaymentID string
	PayerBIC  string
	PayeeBIC  string
	Amount    decimal.Decimal
}

// BuildGraph collapses parallel edges by summation into a simple digraph,
// per §4.6 step 1. Self-obligations (payer == payee) are dropped: the
// data model guarantees sender != receiver at acceptance time, so this is
// defensive only.
func BuildGraph(currency string, obligations []ObligationInput) *Graph {
	g := &Graph{Currency: currency, arena: newArena(), edges: make(map[[2]NodeIndex]*edge)}
	for _, o := range obligations {
		if o.PayerBIC == o.PayeeBIC {
			continue
		}
		u := g.arena.indexOf(o.PayerBIC)
		v := g.arena.indexOf(o.PayeeBIC)
		key := [2]NodeIndex{u, v}
		e, ok := g.edges[key]
		if !ok {
			e = &edge{From: u, To: v, Weight: decimal.Zero(), Payments: make(map[string]bool)}
			g.edges[key] = e
		}
		e.Weight = e.Weight.Add(o.Amount)
		e.Payments[o.PaymentID] = true
	}
	return g
}

// NodeCount returns the number of distinct BICs touched by the graph.
func (g *Graph) NodeCount() int {
	return len(g.arena.bics)
}

// edgeList returns edges sorted by (from-bic, to-bic) for deterministic
// iteration, required by the tie-break rule in §4.6.
func (g *Graph) edgeList() []*edge {
	list := make([]*edge, 0, len(g.edges))
	for _, e := range g.edges {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool {
		bi, bj := list[i], list[j]
		if g.arena.bic(bi.From) != g.arena.bic(bj.From) {
			return g.arena.bic(bi.From) < g.arena.bic(bj.From)
		}
		return g.arena.bic(bi.To) < g.arena.bic(bj.To)
	})
	return list
}

func (g *Graph) dropZero() {
	for k, e := range g.edges {
		if e.Weight.IsZero() {
			delete(g.edges, k)
		}
	}
}
