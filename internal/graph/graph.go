// Package graph builds unit-weight topology graphs (undirected via
// FromAdjacency, directed-as-advertised via FromDirectedAdjacency) and
// computes shortest paths over them for the link-state router.
package graph

import (
	"sort"

	"github.com/netsim/routelab/internal/identity"
)

// edge is one adjacency entry: a neighbor and the cost to reach it.
type edge struct {
	to   identity.NodeID
	cost int
}

// Graph is an adjacency list of directed, weighted edges keyed by node
// id. FromAdjacency makes it undirected by adding each edge both ways.
type Graph struct {
	adj map[identity.NodeID][]edge
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{adj: make(map[identity.NodeID][]edge)}
}

// AddNode ensures id has an (possibly empty) adjacency entry.
func (g *Graph) AddNode(id identity.NodeID) {
	if _, ok := g.adj[id]; !ok {
		g.adj[id] = nil
	}
}

// AddEdge adds a directed edge u->v with the given cost. Callers wanting
// an undirected edge call this twice (see FromAdjacency).
func (g *Graph) AddEdge(u, v identity.NodeID, cost int) {
	g.AddNode(u)
	g.AddNode(v)
	g.adj[u] = append(g.adj[u], edge{to: v, cost: cost})
}

// Neighbors returns u's outgoing edges.
func (g *Graph) Neighbors(u identity.NodeID) []edge {
	return g.adj[u]
}

// Nodes returns every node known to the graph, sorted for deterministic
// iteration.
func (g *Graph) Nodes() []identity.NodeID {
	out := make([]identity.NodeID, 0, len(g.adj))
	for n := range g.adj {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasNode reports whether id appears anywhere in the graph.
func (g *Graph) HasNode(id identity.NodeID) bool {
	_, ok := g.adj[id]
	return ok
}

// FromAdjacency builds a symmetrized, deduplicated unit-weight graph from
// a node -> neighbor-list map, the same shape spec.md's topology file
// uses. Every node named as a key or as a neighbor gets a node entry,
// and each undirected edge is added in both directions exactly once,
// mirroring dijkstra.py's Graph.from_topology.
func FromAdjacency(adjacency map[identity.NodeID][]identity.NodeID) *Graph {
	g := New()
	for node := range adjacency {
		g.AddNode(node)
	}

	type pair struct{ a, b identity.NodeID }
	seen := make(map[pair]struct{})
	for u, neighbors := range adjacency {
		for _, v := range neighbors {
			g.AddNode(v)
			key := pair{u, v}
			if key.a > key.b {
				key.a, key.b = key.b, key.a
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			g.AddEdge(u, v, 1)
			g.AddEdge(v, u, 1)
		}
	}
	return g
}

// FromDirectedAdjacency builds a graph directly from a node -> neighbor
// list map with no symmetrization: each entry becomes a one-way edge
// set exactly as advertised, mirroring link_state.py's `_build_graph`
// (`g[origin] = list(neigh)`, no reverse edge added).
func FromDirectedAdjacency(adjacency map[identity.NodeID][]identity.NodeID) *Graph {
	g := New()
	for node := range adjacency {
		g.AddNode(node)
	}
	for u, neighbors := range adjacency {
		for _, v := range neighbors {
			g.AddEdge(u, v, 1)
		}
	}
	return g
}

// FromLSDB builds the link-state router's working graph directly from
// its flooded LSDB, folding in a node's own live neighbor list as
// ground truth for itself (SPEC_FULL.md §4.5). The graph is used
// directed-as-advertised, not symmetrized: an origin's LSA lists only
// the edges it chooses to advertise, mirroring link_state.py's
// `_build_graph`/`_dijkstra_next_hop`.
func FromLSDB(lsdb map[identity.NodeID][]identity.NodeID, self identity.NodeID, ownNeighbors []identity.NodeID) *Graph {
	merged := make(map[identity.NodeID][]identity.NodeID, len(lsdb)+1)
	for k, v := range lsdb {
		merged[k] = v
	}
	merged[self] = ownNeighbors
	return FromDirectedAdjacency(merged)
}
