package netting

import "sort"

// tarjanSCC computes strongly connected components over the given edge
// set, restricted to the provided node set, using Tarjan's algorithm.
// Returns only non-trivial SCCs (more than one node, or a single node with
// a self-loop -- self-loops are excluded from this graph by construction,
// so in practice "non-trivial" means size > 1).
func tarjanSCC(nodes []NodeIndex, adj map[NodeIndex][]*edge) [][]NodeIndex {
	index := make(map[NodeIndex]int)
	lowlink := make(map[NodeIndex]int)
	onStack := make(map[NodeIndex]bool)
	var stack []NodeIndex
	counter := 0
	var sccs [][]NodeIndex

	var strongconnect func(v NodeIndex)
	strongconnect = func(v NodeIndex) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		neighbors := adj[v]
		for _, e := range neighbors {
			w := e.To
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var component []NodeIndex
			for {
				n := len(stack) - 1
				w := stack[n]
				stack = stack[:n]
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			if len(component) > 1 {
				sccs = append(sccs, component)
			}
		}
	}

	for _, v := range nodes {
		if _, seen := index[v]; !seen {
			strongconnect(v)
		}
	}
	return sccs
}

// buildAdjacency returns an adjacency list over the graph's current edges,
// with each node's outgoing edges sorted by destination BIC for
// deterministic traversal order, per §4.6's determinism requirement.
func (g *Graph) buildAdjacency() map[NodeIndex][]*edge {
	adj := make(map[NodeIndex][]*edge)
	for _, e := range g.edges {
		if e.Weight.IsZero() {
			continue
		}
		adj[e.From] = append(adj[e.From], e)
	}
	for u := range adj {
		sort.Slice(adj[u], func(i, j int) bool {
			return g.arena.bic(adj[u][i].To) < g.arena.bic(adj[u][j].To)
		})
	}
	return adj
}

// allNodeIndices returns every node index currently touched by an edge.
func (g *Graph) allNodeIndices() []NodeIndex {
	seen := make(map[NodeIndex]bool)
	for _, e := range g.edges {
		seen[e.From] = true
		seen[e.To] = true
	}
	out := make([]NodeIndex, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return g.arena.bic(out[i]) < g.arena.bic(out[j]) })
	return out
}
