package netting

import (
	"sort"

	"github.com/deltran/settlement-core/internal/decimal"
)

// minLexNode picks the tie-break starting node for cycle extraction: the
// node whose BIC is lexicographically smallest within the SCC, per §4.6
// ("select the one whose smallest node id (lexicographic BIC) is
// minimal").
func (g *Graph) minLexNode(component []NodeIndex) NodeIndex {
	best := component[0]
	for _, n := range component[1:] {
		if g.arena.bic(n) < g.arena.bic(best) {
			best = n
		}
	}
	return best
}

// findCycle runs a deterministic DFS from start over adj (restricted to
// the SCC's nodes) and returns the first directed cycle found, as an
// ordered slice of edges. Because the SCC is strongly connected, a DFS
// from any node necessarily discovers a back edge -- a cycle -- before
// exhausting the component.
func findCycle(start NodeIndex, adj map[NodeIndex][]*edge) []*edge {
	visited := make(map[NodeIndex]bool)
	onStack := make(map[NodeIndex]bool)
	var pathEdges []*edge
	var cycle []*edge

	var dfs func(u NodeIndex) bool
	dfs = func(u NodeIndex) bool {
		visited[u] = true
		onStack[u] = true
		for _, e := range adj[u] {
			v := e.To
			if onStack[v] {
				cycle = extractCycle(pathEdges, e, v)
				return true
			}
			if !visited[v] {
				pathEdges = append(pathEdges, e)
				if dfs(v) {
					return true
				}
				pathEdges = pathEdges[:len(pathEdges)-1]
			}
		}
		onStack[u] = false
		return false
	}

	dfs(start)
	return cycle
}

// extractCycle finds where v entered the current DFS path and returns the
// suffix of pathEdges from there, plus the closing back edge.
func extractCycle(pathEdges []*edge, closingEdge *edge, v NodeIndex) []*edge {
	start := 0
	for i, e := range pathEdges {
		if e.From == v {
			start = i
			break
		}
	}
	cycle := append([]*edge(nil), pathEdges[start:]...)
	cycle = append(cycle, closingEdge)
	return cycle
}

// eliminateCycles repeatedly finds and reduces cycles within non-trivial
// SCCs of g until none remain, per §4.6 step 2. It returns the total
// weight eliminated, counted as m * |cycle| per elimination and summed.
func (g *Graph) eliminateCycles() decimal.Decimal {
	total := decimal.Zero()
	for {
		adj := g.buildAdjacency()
		nodes := g.allNodeIndices()
		sccs := tarjanSCC(nodes, adj)
		if len(sccs) == 0 {
			break
		}
		progressed := false
		for _, comp := range sccs {
			sort.Slice(comp, func(i, j int) bool { return g.arena.bic(comp[i]) < g.arena.bic(comp[j]) })
			start := g.minLexNode(comp)
			// restrict adjacency to this SCC's membership
			inComp := make(map[NodeIndex]bool, len(comp))
			for _, n := range comp {
				inComp[n] = true
			}
			restricted := make(map[NodeIndex][]*edge, len(comp))
			for _, n := range comp {
				for _, e := range adj[n] {
					if inComp[e.To] {
						restricted[n] = append(restricted[n], e)
					}
				}
			}
			cyc := findCycle(start, restricted)
			if len(cyc) == 0 {
				continue
			}
			m := cyc[0].Weight
			for _, e := range cyc[1:] {
				if e.Weight.Cmp(m) < 0 {
					m = e.Weight
				}
			}
			for _, e := range cyc {
				e.Weight = e.Weight.Sub(m)
			}
			total = total.Add(m.MulInt(len(cyc)))
			progressed = true
		}
		g.dropZero()
		if !progressed {
			break
		}
	}
	return total
}
