package routing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/metrics"
	"github.com/netsim/routelab/internal/packet"
	"github.com/netsim/routelab/internal/transport"
)

// dvInfinity stands in for an unreachable destination's cost
// (spec.md §4.4: "INF = 10^9").
const dvInfinity = 1_000_000_000

// dvTickInterval is the periodic advertisement cadence (spec.md §5
// Timeouts: "5 s for DV and LSR").
const dvTickInterval = 5 * time.Second

// dvEntry is one routing table row: cost to dest and the neighbor to
// forward through to get there.
type dvEntry struct {
	cost    int
	nextHop identity.NodeID
}

// DVRouter implements distance-vector routing by Bellman-Ford neighbor
// exchange, with no split-horizon or poisoned-reverse (spec.md §4.4's
// documented, latent count-to-infinity limitation).
type DVRouter struct {
	self      identity.NodeID
	neighbors []identity.NodeID
	transport transport.Transport
	logger    *slog.Logger
	metrics   *metrics.Metrics
	onDeliver DeliverFunc

	mu    sync.Mutex
	table map[identity.NodeID]dvEntry
}

// NewDVRouter builds a distance-vector router, initializing the table
// to {self: (0, self)} ∪ {n: (1, n) for each neighbor} per spec.md §4.4.
func NewDVRouter(self identity.NodeID, neighbors []identity.NodeID, t transport.Transport, logger *slog.Logger, m *metrics.Metrics, onDeliver DeliverFunc) *DVRouter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.NewMetricsWithRegistry(nil)
	}
	table := map[identity.NodeID]dvEntry{self: {cost: 0, nextHop: self}}
	for _, n := range neighbors {
		table[n] = dvEntry{cost: 1, nextHop: n}
	}
	return &DVRouter{
		self:      self,
		neighbors: neighbors,
		transport: t,
		logger:    logger,
		metrics:   m,
		onDeliver: onDeliver,
		table:     table,
	}
}

// TickInterval returns the 5-second DV advertisement cadence.
func (r *DVRouter) TickInterval() time.Duration { return dvTickInterval }

// Tick broadcasts the current cost vector to every neighbor as a
// dv_table packet addressed to "all" (spec.md §4.4).
func (r *DVRouter) Tick(ctx context.Context) error {
	r.mu.Lock()
	costs := make(map[identity.NodeID]int, len(r.table))
	for dest, e := range r.table {
		costs[dest] = e.cost
	}
	r.mu.Unlock()

	pkt := &packet.Packet{
		Proto:   packet.ProtoDVR,
		Type:    packet.TypeDVTable,
		From:    r.self,
		To:      string(identity.Broadcast),
		Payload: packet.DVTablePayload{Costs: costs},
	}
	for _, n := range r.neighbors {
		if err := r.transport.Publish(ctx, string(n), pkt); err != nil {
			r.logger.Warn("dv advertise failed", logging.KeyPeer, n, logging.KeyError, err)
			r.metrics.TransportErrors.WithLabelValues("dv").Inc()
			continue
		}
		r.metrics.DVAdvertisementsSent.Inc()
	}
	return nil
}

// OnPacket processes an inbound dv_table advertisement or a message
// needing a forwarding decision (spec.md §4.4).
func (r *DVRouter) OnPacket(ctx context.Context, pkt *packet.Packet) error {
	switch pkt.Type {
	case packet.TypeDVTable:
		return r.processAdvertisement(pkt)
	case packet.TypeMessage:
		return r.forwardMessage(ctx, pkt)
	default:
		return nil
	}
}

func (r *DVRouter) processAdvertisement(pkt *packet.Packet) error {
	dv, ok := pkt.Payload.(packet.DVTablePayload)
	if !ok {
		return nil
	}
	r.metrics.DVAdvertisementsRecv.Inc()

	r.mu.Lock()
	defer r.mu.Unlock()

	costToSender := dvInfinity
	if e, ok := r.table[pkt.From]; ok {
		costToSender = e.cost
	}

	for dest, costFromSender := range dv.Costs {
		if dest == r.self {
			continue
		}
		candidate := costToSender + costFromSender
		current, known := r.table[dest]
		if !known || candidate < current.cost {
			r.table[dest] = dvEntry{cost: candidate, nextHop: pkt.From}
			r.metrics.DVTableUpdates.Inc()
		}
	}
	r.metrics.RoutesActive.Set(float64(len(r.table)))
	return nil
}

func (r *DVRouter) forwardMessage(ctx context.Context, pkt *packet.Packet) error {
	dest := identity.NodeID(pkt.To)
	if dest == r.self {
		if msg, ok := pkt.Payload.(packet.MessagePayload); ok && r.onDeliver != nil {
			r.onDeliver(pkt.From, msg.Text)
		}
		return nil
	}

	r.mu.Lock()
	entry, ok := r.table[dest]
	r.mu.Unlock()
	if !ok {
		r.logger.Info("no route", logging.KeyDest, dest)
		r.metrics.PacketsDropped.WithLabelValues("no_route").Inc()
		return ErrNoRoute
	}

	forward := pkt.Clone()
	forward.From = r.self
	if err := r.transport.Publish(ctx, string(entry.nextHop), &forward); err != nil {
		r.logger.Warn("dv forward failed", logging.KeyNextHop, entry.nextHop, logging.KeyError, err)
		r.metrics.TransportErrors.WithLabelValues("dv").Inc()
		return nil
	}
	r.metrics.PacketsForwarded.Inc()
	return nil
}

// Send originates a message and unicasts it via the table's next hop
// for dest, returning ErrNoRoute if dest is unknown (spec.md §4.4).
func (r *DVRouter) Send(ctx context.Context, dest identity.NodeID, text string) error {
	r.mu.Lock()
	entry, ok := r.table[dest]
	r.mu.Unlock()
	if !ok {
		return ErrNoRoute
	}

	pkt := &packet.Packet{
		Proto:   packet.ProtoDVR,
		Type:    packet.TypeMessage,
		From:    r.self,
		To:      string(dest),
		Payload: packet.MessagePayload{Text: text},
	}
	if err := r.transport.Publish(ctx, string(entry.nextHop), pkt); err != nil {
		r.metrics.TransportErrors.WithLabelValues("dv").Inc()
		return nil
	}
	r.metrics.PacketsSent.WithLabelValues(string(packet.TypeMessage)).Inc()
	return nil
}

// TableSnapshot reports every known (dest, cost, next hop) row.
func (r *DVRouter) TableSnapshot() TableSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]TableEntry, 0, len(r.table))
	for dest, e := range r.table {
		entries = append(entries, TableEntry{Dest: dest, Cost: e.cost, NextHop: e.nextHop})
	}
	return TableSnapshot{Kind: "dv", Entries: entries}
}
