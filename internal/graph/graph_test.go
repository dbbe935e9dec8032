package graph

import (
	"testing"

	"github.com/netsim/routelab/internal/identity"
)

func TestFromAdjacency_SymmetrizesAndDedups(t *testing.T) {
	adj := map[identity.NodeID][]identity.NodeID{
		"A": {"B"},
		"B": {"A", "C"},
		"C": {},
	}
	g := FromAdjacency(adj)

	for _, n := range []identity.NodeID{"A", "B", "C"} {
		if !g.HasNode(n) {
			t.Fatalf("expected node %q present", n)
		}
	}

	aNeighbors := g.Neighbors("A")
	if len(aNeighbors) != 1 || aNeighbors[0].to != "B" {
		t.Fatalf("expected A to have exactly one edge to B, got %+v", aNeighbors)
	}
	bNeighbors := g.Neighbors("B")
	if len(bNeighbors) != 2 {
		t.Fatalf("expected B to have 2 edges (A dedup'd, C), got %+v", bNeighbors)
	}
}

func TestFromAdjacency_UnknownNeighborGetsNode(t *testing.T) {
	adj := map[identity.NodeID][]identity.NodeID{
		"A": {"Z"},
	}
	g := FromAdjacency(adj)
	if !g.HasNode("Z") {
		t.Fatal("expected neighbor-only node Z to be present")
	}
}

func TestNodes_SortedAndComplete(t *testing.T) {
	g := FromAdjacency(map[identity.NodeID][]identity.NodeID{
		"C": {"A"},
		"B": {},
	})
	nodes := g.Nodes()
	want := []identity.NodeID{"A", "B", "C"}
	if len(nodes) != len(want) {
		t.Fatalf("got %v, want %v", nodes, want)
	}
	for i := range want {
		if nodes[i] != want[i] {
			t.Fatalf("got %v, want %v", nodes, want)
		}
	}
}

func TestFromLSDB_FoldsInOwnNeighbors(t *testing.T) {
	lsdb := map[identity.NodeID][]identity.NodeID{
		"B": {"A", "C"},
	}
	g := FromLSDB(lsdb, "A", []identity.NodeID{"B"})
	if !g.HasNode("A") || !g.HasNode("B") || !g.HasNode("C") {
		t.Fatalf("expected A, B, C all present")
	}
	aNeighbors := g.Neighbors("A")
	if len(aNeighbors) != 1 || aNeighbors[0].to != "B" {
		t.Fatalf("expected A-B edge from own neighbor list, got %+v", aNeighbors)
	}
}

// TestFromLSDB_DoesNotSymmetrize guards against FromLSDB silently
// reusing FromAdjacency's symmetrize+dedup pass: an LSA only advertises
// the origin's outgoing edges, exactly as link_state.py's _build_graph
// does, so a neighbor's advertisement must not implicitly create a
// reverse edge back through a third node that never advertised one.
func TestFromLSDB_DoesNotSymmetrize(t *testing.T) {
	lsdb := map[identity.NodeID][]identity.NodeID{
		"B": {"C"},
	}
	g := FromLSDB(lsdb, "A", []identity.NodeID{"B"})
	cNeighbors := g.Neighbors("C")
	if len(cNeighbors) != 0 {
		t.Fatalf("expected C to have no outgoing edges (C never advertised any), got %+v", cNeighbors)
	}
}
