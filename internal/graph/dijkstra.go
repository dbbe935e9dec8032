package graph

import (
	"container/heap"
	"errors"
	"math"

	"github.com/netsim/routelab/internal/identity"
)

// ErrUnknownSource is returned when Dijkstra is asked to route from a
// node absent from the graph.
var ErrUnknownSource = errors.New("graph: source node not present")

// Result holds per-destination shortest distance and predecessor,
// matching dijkstra.py's (dist, prev) return pair.
type Result struct {
	Dist map[identity.NodeID]float64
	Prev map[identity.NodeID]identity.NodeID
	// hasPrev tracks which destinations have a predecessor set, since the
	// zero value of NodeID ("") is also a legal node id.
	hasPrev map[identity.NodeID]bool
}

// item is one priority-queue entry.
type item struct {
	node identity.NodeID
	dist float64
}

type priorityQueue []item

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].dist < pq[j].dist }
func (pq priorityQueue) Swap(i, j int)       { pq[i], pq[j] = pq[j], pq[i] }
func (pq *priorityQueue) Push(x interface{}) { *pq = append(*pq, x.(item)) }
func (pq *priorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	it := old[n-1]
	*pq = old[:n-1]
	return it
}

// Dijkstra computes single-source shortest paths from source over g,
// using container/heap as the priority queue (no pack library offers an
// unweighted/weighted shortest-path primitive, so this stays stdlib per
// DESIGN.md).
func Dijkstra(g *Graph, source identity.NodeID) (Result, error) {
	res := Result{
		Dist:    make(map[identity.NodeID]float64, len(g.adj)),
		Prev:    make(map[identity.NodeID]identity.NodeID, len(g.adj)),
		hasPrev: make(map[identity.NodeID]bool, len(g.adj)),
	}
	for n := range g.adj {
		res.Dist[n] = math.Inf(1)
	}
	if !g.HasNode(source) {
		return res, ErrUnknownSource
	}
	res.Dist[source] = 0

	pq := &priorityQueue{{node: source, dist: 0}}
	visited := make(map[identity.NodeID]bool, len(g.adj))

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(item)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true

		for _, e := range g.Neighbors(cur.node) {
			nd := cur.dist + float64(e.cost)
			if nd < res.Dist[e.to] {
				res.Dist[e.to] = nd
				res.Prev[e.to] = cur.node
				res.hasPrev[e.to] = true
				heap.Push(pq, item{node: e.to, dist: nd})
			}
		}
	}
	return res, nil
}

// BuildNextHop walks each destination's predecessor chain back toward
// source and returns the first hop on that path, mirroring
// dijkstra.py's build_next_hop. Destinations unreachable from source are
// omitted.
func BuildNextHop(res Result, source identity.NodeID) map[identity.NodeID]identity.NodeID {
	nextHop := make(map[identity.NodeID]identity.NodeID)
	for dest := range res.Dist {
		if dest == source || !res.hasPrev[dest] {
			continue
		}
		cur := dest
		for res.hasPrev[cur] && res.Prev[cur] != source {
			cur = res.Prev[cur]
		}
		if res.Prev[cur] == source {
			nextHop[dest] = cur
		}
	}
	return nextHop
}
