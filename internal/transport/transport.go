// Package transport abstracts the two wire adapters routing lab nodes
// can run over: a pub/sub hub and direct point-to-point TCP.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/netsim/routelab/internal/packet"
)

// ErrTransportError is the sentinel wrapped by every publish/subscribe
// failure. Transport errors are never fatal: callers log and continue
// with stale state (spec.md §7).
var ErrTransportError = errors.New("transport error")

// ConnectTimeout bounds how long a publish-side dial may block.
const ConnectTimeout = 1 * time.Second

// AcceptPollInterval bounds how long a listener blocks between checks
// of its stop signal.
const AcceptPollInterval = 1 * time.Second

// Transport is the abstract substrate a node runs its router over: a
// fire-and-forget publish and a cancellable subscription stream.
type Transport interface {
	// Publish sends pkt to channel, without waiting for delivery
	// confirmation. A non-nil error is always an ErrTransportError.
	Publish(ctx context.Context, channel string, pkt *packet.Packet) error

	// Subscribe returns a channel of packets published to this
	// transport's own channel. The returned channel is closed when ctx
	// is canceled; the TCP adapter also closes it when Close is called.
	Subscribe(ctx context.Context, channel string) (<-chan *packet.Packet, error)

	// Close releases any underlying connection or listener resources.
	Close() error
}

func wrapErr(adapter, verb string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrTransportError, adapter, verb, err)
}
