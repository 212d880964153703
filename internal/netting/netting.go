package netting

import (
	"sort"

	"github.com/deltran/settlement-core/internal/decimal"
)

// bilateralCollapse implements §4.6 step 3: for every pair (u,v) with both
// (u,v) and (v,u) remaining, replace with a single edge carrying
// |w(u,v)-w(v,u)| in the direction of the larger, dropping it if equal.
func (g *Graph) bilateralCollapse() {
	seen := make(map[[2]NodeIndex]bool)
	for key, e := range g.edges {
		u, v := key[0], key[1]
		if seen[key] {
			continue
		}
		revKey := [2]NodeIndex{v, u}
		rev, ok := g.edges[revKey]
		if !ok {
			seen[key] = true
			continue
		}
		seen[key] = true
		seen[revKey] = true

		cmp := e.Weight.Cmp(rev.Weight)
		switch {
		case cmp == 0:
			delete(g.edges, key)
			delete(g.edges, revKey)
		case cmp > 0:
			merged := &edge{From: u, To: v, Weight: e.Weight.Sub(rev.Weight), Payments: mergePayments(e.Payments, rev.Payments)}
			delete(g.edges, key)
			delete(g.edges, revKey)
			g.edges[[2]NodeIndex{u, v}] = merged
		default:
			merged := &edge{From: v, To: u, Weight: rev.Weight.Sub(e.Weight), Payments: mergePayments(e.Payments, rev.Payments)}
			delete(g.edges, key)
			delete(g.edges, revKey)
			g.edges[[2]NodeIndex{v, u}] = merged
		}
	}
}

func mergePayments(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// unionFind is a minimal disjoint-set structure for component labeling.
type unionFind struct {
	parent map[NodeIndex]NodeIndex
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[NodeIndex]NodeIndex)}
}

func (u *unionFind) find(x NodeIndex) NodeIndex {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

func (u *unionFind) union(a, b NodeIndex) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// componentLabels partitions the remaining edges by weakly connected
// component, per §4.6 step 4, returning a stable deterministic
// component_id per group (the lexicographically smallest BIC in the
// component, which is reproducible across implementations).
func (g *Graph) componentLabels() map[NodeIndex]string {
	uf := newUnionFind()
	for _, e := range g.edges {
		uf.union(e.From, e.To)
	}
	roots := make(map[NodeIndex][]NodeIndex)
	for n := range uf.parent {
		r := uf.find(n)
		roots[r] = append(roots[r], n)
	}
	labels := make(map[NodeIndex]string)
	for _, members := range roots {
		sort.Slice(members, func(i, j int) bool { return g.arena.bic(members[i]) < g.arena.bic(members[j]) })
		id := g.arena.bic(members[0])
		for _, m := range members {
			labels[m] = id
		}
	}
	return labels
}

// Stats records the per-currency netting statistics of a Result.
type Stats struct {
	Gross           decimal.Decimal
	Net             decimal.Decimal
	CycleEliminated decimal.Decimal
	Efficiency      float64
}

// Result is the output of Run: the net transfers for one currency plus
// statistics.
type Result struct {
	Currency     string
	NetTransfers []NetTransferOutput
	Stats        Stats
}

// NetTransferOutput mirrors core.NetTransfer but stays independent of the
// core package to keep this package importable without a cycle; callers
// translate it into core.NetTransfer.
type NetTransferOutput struct {
	PayerBIC         string
	PayeeBIC         string
	Amount           decimal.Decimal
	ComponentID      string
	SourcePaymentIDs []string
}

// Run executes the full §4.6 pipeline for one currency: graph build,
// optional cycle elimination (skipped below admission threshold -- the
// caller decides and passes skipCycleElimination), bilateral collapse,
// component labeling, and net transfer emission.
func Run(currency string, obligations []ObligationInput, skipCycleElimination bool) Result {
	g := BuildGraph(currency, obligations)

	gross := decimal.Zero()
	for _, o := range obligations {
		gross = gross.Add(o.Amount)
	}

	cycleEliminated := decimal.Zero()
	if !skipCycleElimination {
		cycleEliminated = g.eliminateCycles()
	}
	g.bilateralCollapse()
	labels := g.componentLabels()

	list := g.edgeList()
	net := decimal.Zero()
	out := make([]NetTransferOutput, 0, len(list))
	for _, e := range list {
		net = net.Add(e.Weight)
		ids := make([]string, 0, len(e.Payments))
		for id := range e.Payments {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out = append(out, NetTransferOutput{
			PayerBIC:         g.arena.bic(e.From),
			PayeeBIC:         g.arena.bic(e.To),
			Amount:           e.Weight,
			ComponentID:      labels[e.From],
			SourcePaymentIDs: ids,
		})
	}

	efficiency := 0.0
	if !gross.IsZero() {
		efficiency = 1 - net.Float64()/gross.Float64()
	}

	return Result{
		Currency:     currency,
		NetTransfers: out,
		Stats: Stats{
			Gross:           gross,
			Net:             net,
			CycleEliminated: cycleEliminated,
			Efficiency:      efficiency,
		},
	}
}
