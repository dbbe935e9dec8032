package transport

import (
	"context"
	"sync"

	"github.com/netsim/routelab/internal/packet"
)

// MemoryHub is an in-process pub/sub hub shared by a set of
// MemoryTransport handles, standing in for a real Redis instance in
// tests that need several nodes wired together without a network.
type MemoryHub struct {
	mu    sync.Mutex
	subs  map[string][]chan *packet.Packet
}

// NewMemoryHub returns an empty hub.
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[string][]chan *packet.Packet)}
}

// For returns a Transport handle publishing into and subscribing from
// this hub.
func (h *MemoryHub) For(channel string) *MemoryTransport {
	return &MemoryTransport{hub: h, channel: channel}
}

// MemoryTransport is a Transport backed by a MemoryHub.
type MemoryTransport struct {
	hub     *MemoryHub
	channel string
}

// Publish delivers pkt to every subscriber of channel without copying
// across a wire, but does clone the packet so concurrent mutation by
// each recipient stays independent.
func (t *MemoryTransport) Publish(_ context.Context, channel string, pkt *packet.Packet) error {
	t.hub.mu.Lock()
	defer t.hub.mu.Unlock()
	for _, ch := range t.hub.subs[channel] {
		clone := pkt.Clone()
		select {
		case ch <- &clone:
		default:
			// Bounded buffer full: drop, matching the "no backpressure"
			// transport behavior described in spec.md §5.
		}
	}
	return nil
}

// Subscribe registers a new receive channel for channel.
func (t *MemoryTransport) Subscribe(ctx context.Context, channel string) (<-chan *packet.Packet, error) {
	ch := make(chan *packet.Packet, 64)
	t.hub.mu.Lock()
	t.hub.subs[channel] = append(t.hub.subs[channel], ch)
	t.hub.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.hub.mu.Lock()
		defer t.hub.mu.Unlock()
		subs := t.hub.subs[channel]
		for i, c := range subs {
			if c == ch {
				t.hub.subs[channel] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// Close is a no-op: MemoryTransport holds no resource beyond the hub's
// own subscriber registry, cleaned up when Subscribe's context ends.
func (t *MemoryTransport) Close() error { return nil }
