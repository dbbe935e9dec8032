package transport

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/netsim/routelab/internal/logging"
	"github.com/netsim/routelab/internal/packet"
)

// TCPTransport implements Transport as direct point-to-point
// connections: publishing dials the destination's address and writes
// one newline-terminated JSON packet before closing; subscribing
// listens on the local address and reads one packet per line per
// accepted connection (spec.md §6.1).
type TCPTransport struct {
	selfAddr string
	addrBook map[string]string // channel name -> "host:port"
	logger   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewTCPTransport builds a TCP adapter. selfAddr is the local listen
// address; addrBook maps every known channel name (including self) to
// its "host:port".
func NewTCPTransport(selfAddr string, addrBook map[string]string, logger *slog.Logger) *TCPTransport {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &TCPTransport{selfAddr: selfAddr, addrBook: addrBook, logger: logger}
}

// Publish dials addrBook[channel], writes the encoded packet, and
// closes the connection. Connection attempts are bounded by
// ConnectTimeout (spec.md §5 Timeouts).
func (t *TCPTransport) Publish(ctx context.Context, channel string, pkt *packet.Packet) error {
	addr, ok := t.addrBook[channel]
	if !ok {
		return wrapErr("tcp", "unknown channel "+channel, errors.New("not in address book"))
	}

	dialer := net.Dialer{Timeout: ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		t.logger.Warn("tcp dial failed", logging.KeyChannel, channel, logging.KeyError, err)
		return wrapErr("tcp", "dial "+addr, err)
	}
	defer conn.Close()

	raw, err := packet.Encode(*pkt)
	if err != nil {
		return wrapErr("tcp", "encode", err)
	}
	if _, err := conn.Write(raw); err != nil {
		t.logger.Warn("tcp write failed", logging.KeyChannel, channel, logging.KeyError, err)
		return wrapErr("tcp", "write to "+addr, err)
	}
	return nil
}

// Subscribe starts listening on selfAddr and returns a channel of
// decoded packets, one per accepted connection's newline-delimited
// body. Accept blocks are bounded by AcceptPollInterval so the stop
// signal (ctx cancellation) is always observed promptly.
func (t *TCPTransport) Subscribe(ctx context.Context, channel string) (<-chan *packet.Packet, error) {
	ln, err := net.Listen("tcp", t.selfAddr)
	if err != nil {
		return nil, wrapErr("tcp", "listen on "+t.selfAddr, err)
	}
	t.mu.Lock()
	t.listener = ln
	t.mu.Unlock()

	out := make(chan *packet.Packet, 64)

	// Closing the listener is what unblocks a pending Accept; this
	// goroutine is the cancellation path (ctx plays the role of the
	// teacher's stop_event polled every AcceptPollInterval).
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	go func() {
		defer close(out)
		for {
			if tl, ok := ln.(*net.TCPListener); ok {
				_ = tl.SetDeadline(time.Now().Add(AcceptPollInterval))
			}
			conn, err := ln.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var netErr net.Error
				if errors.As(err, &netErr) && netErr.Timeout() {
					continue
				}
				return
			}
			go t.handleConn(ctx, conn, out)
		}
	}()

	return out, nil
}

func (t *TCPTransport) handleConn(ctx context.Context, conn net.Conn, out chan<- *packet.Packet) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		pkt, err := packet.Decode(line)
		if err != nil {
			t.logger.Warn("dropping malformed packet", logging.KeyError, err)
			continue
		}
		select {
		case out <- &pkt:
		case <-ctx.Done():
			return
		}
	}
}

// Close stops the listener, if one is running.
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener == nil {
		return nil
	}
	if err := t.listener.Close(); err != nil {
		return wrapErr("tcp", "close", err)
	}
	return nil
}
