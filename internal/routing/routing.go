// Package routing implements the three routing algorithms a node can
// run — flooding, distance-vector, and link-state — behind a common
// Router interface.
package routing

import (
	"context"
	"errors"
	"time"

	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/packet"
)

// Sentinel errors forming the router-level error taxonomy. Packet
// decode and transport failures are caught at the listener boundary and
// never reach a Router (spec.md §7); these are the ones that do.
var (
	ErrUnknownNode = errors.New("routing: unknown node")
	ErrNoRoute     = errors.New("routing: no route to destination")
	ErrTTLExceeded = errors.New("routing: ttl exceeded")
	ErrStaleLSA    = errors.New("routing: stale link-state advertisement")
	ErrSeenFlood   = errors.New("routing: packet already seen")
)

// DeliverFunc is invoked whenever a router completes local delivery of
// a message addressed to self.
type DeliverFunc func(from identity.NodeID, text string)

// TableEntry is one row of a router's routing state, rendered for the
// control shell's "table" command.
type TableEntry struct {
	Dest    identity.NodeID
	Cost    int // flooding's single "*" row carries the seen-set size here
	NextHop identity.NodeID
}

// TableSnapshot is a read-only, point-in-time view of a router's
// internal state, the Go equivalent of the reference node's
// debug_print.
type TableSnapshot struct {
	Kind    string
	Entries []TableEntry
	Note    string
}

// Router is the protocol-specific object every node runtime drives:
// inbound packets flow through OnPacket, outbound messages originate
// through Send, and periodic work (advertisement, LSA origination) runs
// through Tick on TickInterval's cadence. A zero TickInterval means the
// protocol has no periodic work (flooding).
type Router interface {
	OnPacket(ctx context.Context, pkt *packet.Packet) error
	Send(ctx context.Context, dest identity.NodeID, text string) error
	Tick(ctx context.Context) error
	TickInterval() time.Duration
	TableSnapshot() TableSnapshot
}
