package routing

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/netsim/routelab/internal/graph"
	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/metrics"
	"github.com/netsim/routelab/internal/packet"
	"github.com/netsim/routelab/internal/transport"
)

// lsrTickInterval mirrors DV's 5-second cadence (spec.md §5 Timeouts).
const lsrTickInterval = 5 * time.Second

// helloTTL bounds the stub liveness probe and its echo reply (SPEC_FULL.md §9
// supplemented HELLO/ECHO feature, grounded on node.py's send_hello_to_neighbors).
const helloTTL = 8

// lsaRecord is one LSDB row: the highest sequence number seen from an
// origin plus its advertised neighbor list.
type lsaRecord struct {
	seq       int
	neighbors []identity.NodeID
}

// LSRRouter implements link-state routing: flooded LSAs with
// sequence-number suppression, and Dijkstra recomputed from the LSDB
// plus the node's own live neighbor list (spec.md §4.5).
type LSRRouter struct {
	self      identity.NodeID
	neighbors []identity.NodeID
	transport transport.Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onDeliver DeliverFunc

	mu   sync.Mutex
	seq  int
	lsdb map[identity.NodeID]lsaRecord
}

// NewLSRRouter builds a link-state router for self.
func NewLSRRouter(self identity.NodeID, neighbors []identity.NodeID, t transport.Transport, logger *slog.Logger, m *metrics.Metrics, onDeliver DeliverFunc) *LSRRouter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.NewMetricsWithRegistry(nil)
	}
	return &LSRRouter{
		self:      self,
		neighbors: neighbors,
		transport: t,
		logger:    logger,
		metrics:   m,
		onDeliver: onDeliver,
		lsdb:      make(map[identity.NodeID]lsaRecord),
	}
}

// TickInterval returns the 5-second LSA advertisement cadence.
func (r *LSRRouter) TickInterval() time.Duration { return lsrTickInterval }

// Tick increments seq and floods a fresh LSA carrying this node's
// neighbor list to every neighbor (spec.md §4.5).
func (r *LSRRouter) Tick(ctx context.Context) error {
	r.mu.Lock()
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	pkt := &packet.Packet{
		Proto:   packet.ProtoLSR,
		Type:    packet.TypeLSA,
		From:    r.self,
		To:      string(identity.Broadcast),
		Headers: []packet.Header{{"seq": strconv.Itoa(seq)}},
		Payload: packet.LSAPayload{Neighbors: r.neighbors},
	}
	r.floodLSA(ctx, pkt, "")
	r.metrics.LSASent.Inc()
	return nil
}

// OnPacket handles inbound LSAs (flood with suppression) and messages
// (Dijkstra-routed unicast), per spec.md §4.5.
func (r *LSRRouter) OnPacket(ctx context.Context, pkt *packet.Packet) error {
	switch pkt.Type {
	case packet.TypeLSA:
		return r.processLSA(ctx, pkt)
	case packet.TypeMessage:
		return r.forwardMessage(ctx, pkt)
	case packet.TypeHello:
		return r.replyEcho(ctx, pkt)
	default:
		return nil
	}
}

func (r *LSRRouter) processLSA(ctx context.Context, pkt *packet.Packet) error {
	lsa, ok := pkt.Payload.(packet.LSAPayload)
	if !ok {
		return nil
	}
	seq := 0
	if len(pkt.Headers) > 0 {
		if s, ok := pkt.Headers[0]["seq"]; ok {
			if parsed, err := strconv.Atoi(s); err == nil {
				seq = parsed
			}
		}
	}

	r.mu.Lock()
	stored, known := r.lsdb[pkt.From]
	if known && seq <= stored.seq {
		r.mu.Unlock()
		r.metrics.LSADropped.WithLabelValues("stale").Inc()
		return ErrStaleLSA
	}
	r.lsdb[pkt.From] = lsaRecord{seq: seq, neighbors: lsa.Neighbors}
	r.metrics.LSDBSize.Set(float64(len(r.lsdb)))
	r.mu.Unlock()

	r.metrics.LSAReceived.Inc()
	r.floodLSA(ctx, pkt, pkt.From)
	return nil
}

// floodLSA re-publishes pkt to every neighbor except exclude, rewriting
// From to self — spec.md §4.5: "preserves the packet unchanged except
// from := self."
func (r *LSRRouter) floodLSA(ctx context.Context, pkt *packet.Packet, exclude identity.NodeID) {
	for _, n := range r.neighbors {
		if n == exclude {
			continue
		}
		forward := pkt.Clone()
		forward.From = r.self
		if err := r.transport.Publish(ctx, string(n), &forward); err != nil {
			r.logger.Warn("lsa flood failed", logging.KeyPeer, n, logging.KeyError, err)
			r.metrics.TransportErrors.WithLabelValues("lsr").Inc()
		}
	}
}

func (r *LSRRouter) buildGraph() *graph.Graph {
	r.mu.Lock()
	defer r.mu.Unlock()
	lsdbAdj := make(map[identity.NodeID][]identity.NodeID, len(r.lsdb))
	for origin, rec := range r.lsdb {
		lsdbAdj[origin] = rec.neighbors
	}
	return graph.FromLSDB(lsdbAdj, r.self, r.neighbors)
}

// nextHopTo runs Dijkstra over the current graph materialization and
// returns the first hop toward dest.
func (r *LSRRouter) nextHopTo(dest identity.NodeID) (identity.NodeID, bool) {
	g := r.buildGraph()
	result, err := graph.Dijkstra(g, r.self)
	if err != nil {
		return "", false
	}
	nextHop := graph.BuildNextHop(result, r.self)
	hop, ok := nextHop[dest]
	return hop, ok
}

func (r *LSRRouter) forwardMessage(ctx context.Context, pkt *packet.Packet) error {
	dest := identity.NodeID(pkt.To)
	if dest == r.self {
		if msg, ok := pkt.Payload.(packet.MessagePayload); ok && r.onDeliver != nil {
			r.onDeliver(pkt.From, msg.Text)
		}
		return nil
	}

	hop, ok := r.nextHopTo(dest)
	if !ok {
		r.logger.Info("no route", logging.KeyDest, dest)
		r.metrics.PacketsDropped.WithLabelValues("no_route").Inc()
		return ErrNoRoute
	}

	forward := pkt.Clone()
	forward.From = r.self
	if err := r.transport.Publish(ctx, string(hop), &forward); err != nil {
		r.logger.Warn("lsr forward failed", logging.KeyNextHop, hop, logging.KeyError, err)
		r.metrics.TransportErrors.WithLabelValues("lsr").Inc()
		return nil
	}
	r.metrics.PacketsForwarded.Inc()
	return nil
}

// replyEcho answers a hello probe with an echo, the supplemented
// HELLO/ECHO stub (SPEC_FULL.md §9, grounded on node.py's inline reply).
func (r *LSRRouter) replyEcho(ctx context.Context, pkt *packet.Packet) error {
	echo := &packet.Packet{
		Proto:   packet.ProtoLSR,
		Type:    packet.TypeEcho,
		From:    r.self,
		To:      string(pkt.From),
		TTL:     helloTTL,
		Payload: packet.EchoPayload{Ts: pkt.Ts},
	}
	if err := r.transport.Publish(ctx, string(pkt.From), echo); err != nil {
		r.metrics.TransportErrors.WithLabelValues("lsr").Inc()
	}
	return nil
}

// Send originates a message and unicasts it along the Dijkstra-computed
// next hop toward dest.
func (r *LSRRouter) Send(ctx context.Context, dest identity.NodeID, text string) error {
	hop, ok := r.nextHopTo(dest)
	if !ok {
		return ErrNoRoute
	}
	pkt := &packet.Packet{
		Proto:   packet.ProtoLSR,
		Type:    packet.TypeMessage,
		From:    r.self,
		To:      string(dest),
		Payload: packet.MessagePayload{Text: text},
	}
	if err := r.transport.Publish(ctx, string(hop), pkt); err != nil {
		r.metrics.TransportErrors.WithLabelValues("lsr").Inc()
		return nil
	}
	r.metrics.PacketsSent.WithLabelValues(string(packet.TypeMessage)).Inc()
	return nil
}

// SendHello broadcasts a liveness probe to every direct neighbor
// (SPEC_FULL.md §9 supplemented feature).
func (r *LSRRouter) SendHello(ctx context.Context, ts float64) {
	for _, n := range r.neighbors {
		pkt := &packet.Packet{
			Proto:   packet.ProtoLSR,
			Type:    packet.TypeHello,
			From:    r.self,
			To:      string(n),
			TTL:     helloTTL,
			Payload: packet.HelloPayload{Ts: ts},
		}
		if err := r.transport.Publish(ctx, string(n), pkt); err != nil {
			r.logger.Warn("hello publish failed", logging.KeyPeer, n, logging.KeyError, err)
		}
	}
}

// TableSnapshot runs Dijkstra fresh and reports every reachable
// destination's cost and next hop.
func (r *LSRRouter) TableSnapshot() TableSnapshot {
	g := r.buildGraph()
	result, err := graph.Dijkstra(g, r.self)
	if err != nil {
		return TableSnapshot{Kind: "lsr"}
	}
	nextHop := graph.BuildNextHop(result, r.self)

	entries := make([]TableEntry, 0, len(nextHop))
	for dest, hop := range nextHop {
		entries = append(entries, TableEntry{Dest: dest, Cost: int(result.Dist[dest]), NextHop: hop})
	}
	return TableSnapshot{Kind: "lsr", Entries: entries}
}
