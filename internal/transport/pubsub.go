package transport

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/packet"
)

// PubSubTransport backs Transport with a Redis hub: each node subscribes
// to a channel named after its own id, and peers publish packets to
// that channel by name (spec.md §6.1).
type PubSubTransport struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPubSubTransport builds a Redis client for addr (e.g.
// "localhost:6379"). It does not connect: a bad address or password
// surfaces as an error from the first Publish or Subscribe.
func NewPubSubTransport(addr, password string, db int, logger *slog.Logger) *PubSubTransport {
	if logger == nil {
		logger = logging.NopLogger()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &PubSubTransport{client: client, logger: logger}
}

// Publish marshals pkt and publishes it to channel's Redis pub/sub
// topic. Redis PUBLISH does not require a trailing newline since each
// message is already framed by the protocol.
func (t *PubSubTransport) Publish(ctx context.Context, channel string, pkt *packet.Packet) error {
	raw, err := packet.Encode(*pkt)
	if err != nil {
		return wrapErr("pubsub", "encode", err)
	}
	// Strip the trailing newline Encode adds for the TCP adapter; the
	// pub/sub wire format is a bare JSON object (spec.md §6.1).
	if n := len(raw); n > 0 && raw[n-1] == '\n' {
		raw = raw[:n-1]
	}

	dialCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()
	if err := t.client.Publish(dialCtx, channel, raw).Err(); err != nil {
		t.logger.Warn("pubsub publish failed", logging.KeyChannel, channel, logging.KeyError, err)
		return wrapErr("pubsub", "publish to "+channel, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on channel and decodes each
// incoming message into a packet. Malformed messages are logged and
// dropped, never surfaced to the router (spec.md §7 propagation policy).
func (t *PubSubTransport) Subscribe(ctx context.Context, channel string) (<-chan *packet.Packet, error) {
	sub := t.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		return nil, wrapErr("pubsub", "subscribe to "+channel, err)
	}

	out := make(chan *packet.Packet, 64)
	redisCh := sub.Channel()

	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-redisCh:
				if !ok {
					return
				}
				pkt, err := packet.Decode([]byte(msg.Payload))
				if err != nil {
					t.logger.Warn("dropping malformed packet", logging.KeyChannel, channel, logging.KeyError, err)
					continue
				}
				select {
				case out <- &pkt:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close releases the underlying Redis client connection pool.
func (t *PubSubTransport) Close() error {
	if err := t.client.Close(); err != nil {
		return wrapErr("pubsub", "close", err)
	}
	return nil
}
