package graph

import (
	"errors"
	"testing"

	"github.com/netsim/routelab/internal/identity"
)

// Linear topology A-B-C-D, so shortest path from A to D must route via
// B then C, and cost must equal hop count under unit weights.
func TestDijkstra_LinearChain(t *testing.T) {
	g := FromAdjacency(map[identity.NodeID][]identity.NodeID{
		"A": {"B"},
		"B": {"C"},
		"C": {"D"},
	})

	res, err := Dijkstra(g, "A")
	if err != nil {
		t.Fatalf("Dijkstra: %v", err)
	}
	if res.Dist["D"] != 3 {
		t.Fatalf("expected cost 3 to D, got %v", res.Dist["D"])
	}

	nextHop := BuildNextHop(res, "A")
	if nextHop["D"] != "B" {
		t.Fatalf("expected next hop to D via B, got %v", nextHop["D"])
	}
	if nextHop["B"] != "B" {
		t.Fatalf("expected next hop to B to be itself, got %v", nextHop["B"])
	}
}

func TestDijkstra_UnreachableNodeOmitted(t *testing.T) {
	g := New()
	g.AddEdge("A", "B", 1)
	g.AddEdge("B", "A", 1)
	g.AddNode("Z") // disconnected island

	res, err := Dijkstra(g, "A")
	if err != nil {
		t.Fatalf("Dijkstra: %v", err)
	}
	nextHop := BuildNextHop(res, "A")
	if _, ok := nextHop["Z"]; ok {
		t.Fatal("expected unreachable node Z to be absent from next-hop table")
	}
}

func TestDijkstra_UnknownSource(t *testing.T) {
	g := FromAdjacency(map[identity.NodeID][]identity.NodeID{"A": {"B"}})
	_, err := Dijkstra(g, "Q")
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

// Diamond topology: A connects to B and C, both of which connect to D.
// Either path costs 2, so the next hop to D must be one of the two
// direct neighbors, never something picked arbitrarily outside that set.
func TestDijkstra_DiamondPicksValidShortestPath(t *testing.T) {
	g := FromAdjacency(map[identity.NodeID][]identity.NodeID{
		"A": {"B", "C"},
		"B": {"D"},
		"C": {"D"},
	})
	res, err := Dijkstra(g, "A")
	if err != nil {
		t.Fatalf("Dijkstra: %v", err)
	}
	if res.Dist["D"] != 2 {
		t.Fatalf("expected cost 2 to D, got %v", res.Dist["D"])
	}
	nextHop := BuildNextHop(res, "A")
	hop := nextHop["D"]
	if hop != "B" && hop != "C" {
		t.Fatalf("expected next hop to D to be B or C, got %v", hop)
	}
}
