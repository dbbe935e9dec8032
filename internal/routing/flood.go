package routing

import (
	"context"
	"encoding/binary"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/metrics"
	"github.com/netsim/routelab/internal/packet"
	"github.com/netsim/routelab/internal/transport"
)

// floodDefaultTTL is the hop budget stamped on originated messages
// (spec.md §4.3 "On send").
const floodDefaultTTL = 10

// seenBoundPerNeighbor is the per-neighbor multiplier used to size the
// seen-set's LRU bound. spec.md §3 only requires "≥ 10x expected
// in-flight flood count"; 64 in-flight floods per neighbor is a
// generous estimate for the tens-of-nodes scale this lab targets.
const seenBoundPerNeighbor = 640

// seenKey is the hashed (from, ts) identity of a flooded message,
// mirroring flooding.py's `(pkt['from'], pkt['ts'])` dedup key but
// collapsed to a fixed-size uint64 via xxhash so the seen-set's memory
// footprint does not grow with message id string length.
type seenKey uint64

func hashSeenKey(from identity.NodeID, ts float64) seenKey {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(ts))
	digest := xxhash.Checksum64S(buf[:], xxhash.ChecksumString64(string(from)))
	return seenKey(digest)
}

// FloodRouter forwards every message to all neighbors except the
// immediate sender, deduplicating by (from, ts) with TTL as a secondary
// loop guard (spec.md §4.3).
type FloodRouter struct {
	self      identity.NodeID
	neighbors []identity.NodeID
	transport transport.Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onDeliver DeliverFunc

	mu    sync.Mutex
	seen  map[seenKey]struct{}
	order []seenKey
	bound int
}

// currentNeighbors returns a snapshot of the neighbor list, safe to
// range over without holding the lock during publish I/O (spec.md §5:
// "take lock → read/mutate → copy out what is needed → release →
// publish").
func (r *FloodRouter) currentNeighbors() []identity.NodeID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]identity.NodeID, len(r.neighbors))
	copy(out, r.neighbors)
	return out
}

// NewFloodRouter builds a flooding router for self, forwarding to
// neighbors over t.
func NewFloodRouter(self identity.NodeID, neighbors []identity.NodeID, t transport.Transport, logger *slog.Logger, m *metrics.Metrics, onDeliver DeliverFunc) *FloodRouter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.NewMetricsWithRegistry(nil)
	}
	bound := seenBoundPerNeighbor * (len(neighbors) + 1)
	return &FloodRouter{
		self:      self,
		neighbors: neighbors,
		transport: t,
		logger:    logger,
		metrics:   m,
		onDeliver: onDeliver,
		seen:      make(map[seenKey]struct{}),
		bound:     bound,
	}
}

// TickInterval is zero: flooding has no periodic work (spec.md §4.3).
func (r *FloodRouter) TickInterval() time.Duration { return 0 }

// Tick is a no-op for flooding.
func (r *FloodRouter) Tick(ctx context.Context) error { return nil }

func (r *FloodRouter) markSeen(key seenKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[key]; ok {
		return false
	}
	r.seen[key] = struct{}{}
	r.order = append(r.order, key)
	for len(r.order) > r.bound {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.seen, oldest)
	}
	r.metrics.SeenSetSize.Set(float64(len(r.seen)))
	return true
}

// OnPacket implements spec.md §4.3's five-step handling: dedupe, hop
// count, local delivery, TTL decrement, flood to all neighbors but the
// sender. The canonical top-level TTL is the hop budget for every
// protocol (SPEC_FULL.md §3, invariant 8.3); a headers[0]-style decimal
// copy is only kept in sync if a header entry already carries one, for
// compatibility with original_source/flooding.py's dual representation.
func (r *FloodRouter) OnPacket(ctx context.Context, pkt *packet.Packet) error {
	key := hashSeenKey(pkt.From, pkt.Ts)
	if !r.markSeen(key) {
		r.logger.Debug("dropping duplicate flood", logging.KeyFrom, pkt.From, logging.KeyComponent, "flood")
		return ErrSeenFlood
	}

	pkt.Hops++

	if identity.NodeID(pkt.To) == r.self {
		if msg, ok := pkt.Payload.(packet.MessagePayload); ok && r.onDeliver != nil {
			r.onDeliver(pkt.From, msg.Text)
		}
		return nil
	}

	if pkt.TTL <= 0 {
		r.logger.Debug("ttl exceeded, dropping", logging.KeyFrom, pkt.From)
		return ErrTTLExceeded
	}
	pkt.TTL--
	if _, ok := packet.HeaderTTL(pkt.Headers); ok {
		packet.SetHeaderTTL(pkt.Headers, pkt.TTL)
	}

	if pkt.Type == packet.TypeInfo {
		r.handleInfo(ctx, pkt)
		return nil
	}

	r.reflood(ctx, pkt, pkt.From)
	return nil
}

// reflood forwards pkt to every current neighbor except exclude,
// restamping From as self. Shared by the message path and the info
// (topology reload) path.
func (r *FloodRouter) reflood(ctx context.Context, pkt *packet.Packet, exclude identity.NodeID) {
	for _, n := range r.currentNeighbors() {
		if n == exclude {
			continue
		}
		forward := pkt.Clone()
		forward.From = r.self
		if err := r.transport.Publish(ctx, string(n), &forward); err != nil {
			r.logger.Warn("flood publish failed", logging.KeyPeer, n, logging.KeyError, err)
			r.metrics.TransportErrors.WithLabelValues("flood").Inc()
			continue
		}
		r.metrics.FloodedPackets.Inc()
		r.metrics.PacketsForwarded.Inc()
	}
}

// handleInfo applies an administrative topology update (original_source
// node.py's `ptype == "info"` branch) and reshares it: an InfoPayload
// whose "topology" entry is a neighbor-id list replaces the current
// neighbor list, then the packet is reflooded so the update propagates
// past direct neighbors too.
func (r *FloodRouter) handleInfo(ctx context.Context, pkt *packet.Packet) {
	info, ok := pkt.Payload.(packet.InfoPayload)
	if !ok {
		return
	}
	raw, ok := info.Data["topology"]
	if ok {
		if updated, ok := parseNeighborList(raw); ok {
			r.mu.Lock()
			r.neighbors = updated
			r.mu.Unlock()
			r.logger.Info("topology reloaded from info packet", logging.KeyFrom, pkt.From, logging.KeyCount, len(updated))
		}
	}
	r.reflood(ctx, pkt, pkt.From)
}

// parseNeighborList accepts a bare neighbor-id list, the []any jsoniter
// produces for a JSON array; non-string elements are skipped. Any other
// shape, including a topology map keyed by node id, is rejected.
func parseNeighborList(raw any) ([]identity.NodeID, bool) {
	list, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]identity.NodeID, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			continue
		}
		out = append(out, identity.NodeID(s))
	}
	return out, true
}

// Send originates a message packet with the default TTL and floods it
// to every neighbor (spec.md §4.3 "On send"). Ts is stamped to the
// origination time so the seen-set key (hashSeenKey) differs across
// repeated sends from the same node, matching
// original_source/flooding.py's `ts=time.time()` on every make_packet
// call. New traffic carries only the canonical TTL field, per
// SPEC_FULL.md §3; no headers[0]-style decimal copy is originated.
func (r *FloodRouter) Send(ctx context.Context, dest identity.NodeID, text string) error {
	pkt := &packet.Packet{
		Proto:   packet.ProtoFlooding,
		Type:    packet.TypeMessage,
		From:    r.self,
		To:      string(dest),
		TTL:     floodDefaultTTL,
		Ts:      float64(time.Now().UnixNano()) / 1e9,
		Payload: packet.MessagePayload{Text: text},
	}
	for _, n := range r.currentNeighbors() {
		if err := r.transport.Publish(ctx, string(n), pkt); err != nil {
			r.logger.Warn("send publish failed", logging.KeyPeer, n, logging.KeyError, err)
			r.metrics.TransportErrors.WithLabelValues("flood").Inc()
			continue
		}
		r.metrics.PacketsSent.WithLabelValues(string(packet.TypeMessage)).Inc()
	}
	return nil
}

// TableSnapshot reports the current seen-set size; flooding keeps no
// per-destination routing table.
func (r *FloodRouter) TableSnapshot() TableSnapshot {
	r.mu.Lock()
	n := len(r.seen)
	r.mu.Unlock()
	return TableSnapshot{Kind: "flooding", Note: "seen-set size"}.withCount(n)
}

func (s TableSnapshot) withCount(n int) TableSnapshot {
	s.Entries = []TableEntry{{Dest: "*", Cost: n, NextHop: ""}}
	return s
}
