// Package node composes a Transport, a Router, and the long-lived
// activities (listener, ticker) that make up one running routing lab
// process. The control shell lives in cmd/run-node.
package node

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/metrics"
	"github.com/netsim/routelab/internal/packet"
	"github.com/netsim/routelab/internal/routing"
	"github.com/netsim/routelab/internal/transport"
)

// DefaultWorkers bounds how many per-packet handler goroutines run at
// once, replacing the reference implementation's unbounded
// one-goroutine-per-packet model (spec.md §4.6 "may be bounded to a
// worker pool").
const DefaultWorkers = 8

// DeliveredMessage is one locally-delivered message, surfaced to
// whatever is driving the node (the control shell, a test harness).
type DeliveredMessage struct {
	From identity.NodeID
	Text string
}

// Node owns a Router's lifetime: it reads from Transport, dispatches to
// Router, drives Router.Tick on its protocol's cadence, and exposes Send
// for locally-originated messages.
type Node struct {
	Self      identity.NodeID
	Neighbors []identity.NodeID
	Router    routing.Router
	Transport transport.Transport
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Workers   int

	Delivered chan DeliveredMessage
}

// New builds a Node with no Router yet attached. Callers that need to
// wire a router's DeliverFunc to this node's DeliverLocal method build
// the node first, construct the router with n.DeliverLocal, then set
// n.Router before calling Run:
//
//	n := node.New(self, neighbors, t, logger, m)
//	n.Router = routing.NewFloodRouter(self, neighbors, t, logger, m, n.DeliverLocal)
func New(self identity.NodeID, neighbors []identity.NodeID, t transport.Transport, logger *slog.Logger, m *metrics.Metrics) *Node {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if m == nil {
		m = metrics.NewMetricsWithRegistry(nil)
	}
	return &Node{
		Self:      self,
		Neighbors: neighbors,
		Transport: t,
		Logger:    logger,
		Metrics:   m,
		Workers:   DefaultWorkers,
		Delivered: make(chan DeliveredMessage, 64),
	}
}

// Run starts the listener and (if the router has one) the periodic
// ticker, and blocks until ctx is canceled or either activity fails.
// Both activities are supervised by an errgroup so a listener failure
// tears down the ticker and vice versa (spec.md §5's single stop
// signal, generalized via context cancellation the way the teacher's
// agent shutdown path does).
func (n *Node) Run(ctx context.Context) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return n.runListener(gctx)
	})

	if interval := n.Router.TickInterval(); interval > 0 {
		group.Go(func() error {
			return n.runTicker(gctx, interval)
		})
	}

	err := group.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Node) runListener(ctx context.Context) error {
	stream, err := n.Transport.Subscribe(ctx, string(n.Self))
	if err != nil {
		return err
	}

	sem := make(chan struct{}, n.Workers)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-stream:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			go func(p *packet.Packet) {
				defer func() { <-sem }()
				n.handlePacket(ctx, p)
			}(pkt)
		}
	}
}

func (n *Node) handlePacket(ctx context.Context, pkt *packet.Packet) {
	n.Metrics.PacketsReceived.WithLabelValues(string(pkt.Type)).Inc()
	if err := n.Router.OnPacket(ctx, pkt); err != nil {
		n.Logger.Debug("router dropped packet",
			logging.KeyFrom, pkt.From,
			logging.KeyPacket, pkt.Type,
			logging.KeyError, err,
		)
	}
}

func (n *Node) runTicker(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			if err := n.Router.Tick(ctx); err != nil {
				n.Logger.Warn("tick failed", logging.KeyError, err)
			}
			n.Metrics.RouteRecomputes.Inc()
			n.Metrics.RouteRecomputeTime.Observe(time.Since(start).Seconds())
		}
	}
}

// Send originates a message toward dest through the router. The
// returned error distinguishes NoRoute/UnknownNode from success so a
// driving shell can print a diagnostic (spec.md §7 propagation policy).
func (n *Node) Send(ctx context.Context, dest identity.NodeID, text string) error {
	return n.Router.Send(ctx, dest, text)
}

// TableSnapshot exposes the router's current routing state.
func (n *Node) TableSnapshot() routing.TableSnapshot {
	return n.Router.TableSnapshot()
}

// DeliverLocal is the DeliverFunc a router's constructor should be
// given: it queues the message for whatever drains n.Delivered.
func (n *Node) DeliverLocal(from identity.NodeID, text string) {
	select {
	case n.Delivered <- DeliveredMessage{From: from, Text: text}:
	default:
		n.Logger.Warn("delivered-message buffer full, dropping", logging.KeyFrom, from)
	}
}
