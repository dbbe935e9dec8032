package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/netsim/routelab/internal/identity"
	"github.com/netsim/routelab/internal/packet"
	"github.com/netsim/routelab/internal/transport"
)

func TestDVRouter_InitialTable(t *testing.T) {
	hub := transport.NewMemoryHub()
	r := NewDVRouter("A", []identity.NodeID{"B", "C"}, hub.For("A"), nil, nil, nil)

	snap := r.TableSnapshot()
	costs := make(map[identity.NodeID]int, len(snap.Entries))
	for _, e := range snap.Entries {
		costs[e.Dest] = e.Cost
	}
	if costs["A"] != 0 || costs["B"] != 1 || costs["C"] != 1 {
		t.Fatalf("unexpected initial table: %+v", costs)
	}
}

func TestDVRouter_AdvertisementStrictlyBetterOnly(t *testing.T) {
	hub := transport.NewMemoryHub()
	r := NewDVRouter("A", []identity.NodeID{"B"}, hub.For("A"), nil, nil, nil)

	// B advertises a route to D at cost 1: candidate = cost(A->B)=1 + 1 = 2.
	adv := &packet.Packet{
		From: "B",
		Type: packet.TypeDVTable,
		Payload: packet.DVTablePayload{Costs: map[identity.NodeID]int{
			"D": 1,
		}},
	}
	if err := r.OnPacket(context.Background(), adv); err != nil {
		t.Fatalf("OnPacket: %v", err)
	}

	snap := r.TableSnapshot()
	var dCost int
	var dHop identity.NodeID
	for _, e := range snap.Entries {
		if e.Dest == "D" {
			dCost, dHop = e.Cost, e.NextHop
		}
	}
	if dCost != 2 || dHop != "B" {
		t.Fatalf("expected D reachable at cost 2 via B, got cost=%d hop=%v", dCost, dHop)
	}

	// A worse advertisement (cost 5 to D) must not replace the better one.
	worse := &packet.Packet{
		From: "B",
		Type: packet.TypeDVTable,
		Payload: packet.DVTablePayload{Costs: map[identity.NodeID]int{
			"D": 5,
		}},
	}
	if err := r.OnPacket(context.Background(), worse); err != nil {
		t.Fatalf("OnPacket: %v", err)
	}
	snap = r.TableSnapshot()
	for _, e := range snap.Entries {
		if e.Dest == "D" && e.Cost != 2 {
			t.Fatalf("expected D cost to remain 2, got %d", e.Cost)
		}
	}
}

func TestDVRouter_ForwardUsesNextHop(t *testing.T) {
	hub := transport.NewMemoryHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bStream, err := hub.For("B").Subscribe(ctx, "B")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	r := NewDVRouter("A", []identity.NodeID{"B"}, hub.For("A"), nil, nil, nil)
	if err := r.Send(ctx, "B", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-bStream:
		msg, ok := got.Payload.(packet.MessagePayload)
		if !ok || msg.Text != "hello" {
			t.Fatalf("unexpected payload: %#v", got.Payload)
		}
	default:
		t.Fatal("expected message to reach B")
	}
}

func TestDVRouter_NoRoute(t *testing.T) {
	hub := transport.NewMemoryHub()
	r := NewDVRouter("A", []identity.NodeID{"B"}, hub.For("A"), nil, nil, nil)
	if err := r.Send(context.Background(), "Q", "x"); !errors.Is(err, ErrNoRoute) {
		t.Fatalf("expected ErrNoRoute, got %v", err)
	}
}

func TestDVRouter_DeliversLocalMessage(t *testing.T) {
	hub := transport.NewMemoryHub()
	var delivered string
	r := NewDVRouter("A", []identity.NodeID{"B"}, hub.For("A"), nil, nil, func(from identity.NodeID, text string) {
		delivered = text
	})
	pkt := &packet.Packet{From: "B", To: "A", Type: packet.TypeMessage, Payload: packet.MessagePayload{Text: "hi"}}
	if err := r.OnPacket(context.Background(), pkt); err != nil {
		t.Fatalf("OnPacket: %v", err)
	}
	if delivered != "hi" {
		t.Fatalf("expected delivery of 'hi', got %q", delivered)
	}
}
