package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// UDP is the reference Transport implementation: one bound UDP socket, one
// handler, and a read loop that dispatches each datagram to it. MTU is the
// caller's concern — UDP does not fragment or reassemble.
type UDP struct {
	conn       net.PacketConn
	listenAddr net.Addr

	mu      sync.RWMutex
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUDP binds a UDP socket at listenAddr (e.g. ":33445") and starts its
// receive loop. The transport is ready to send immediately; it only begins
// delivering to a handler once SetHandler is called.
func NewUDP(listenAddr string) (*UDP, error) {
	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &UDP{
		conn:       conn,
		listenAddr: conn.LocalAddr(),
		ctx:        ctx,
		cancel:     cancel,
	}

	t.wg.Add(1)
	go t.receiveLoop()

	return t, nil
}

// SetHandler installs h as the receiver for every inbound datagram.
func (t *UDP) SetHandler(h Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handler = h
}

// Send writes data to addr as a single UDP datagram.
func (t *UDP) Send(data []byte, addr net.Addr) error {
	_, err := t.conn.WriteTo(data, addr)
	return err
}

// LocalAddr returns the address actually bound, which may differ from the
// requested listenAddr (e.g. ":0" resolves to an ephemeral port).
func (t *UDP) LocalAddr() net.Addr {
	return t.listenAddr
}

// Close stops the receive loop and releases the socket. It blocks until the
// receive loop has observed the shutdown.
func (t *UDP) Close() error {
	t.cancel()
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// receiveLoop reads datagrams until the transport is closed, dispatching
// each to the current handler. Read errors other than timeouts are logged
// and treated as transient; a single malformed or oversized datagram must
// never bring down the loop.
func (t *UDP) receiveLoop() {
	defer t.wg.Done()

	buf := make([]byte, 65507) // largest possible UDP payload

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
		}

		_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

		n, addr, err := t.conn.ReadFrom(buf)
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			select {
			case <-t.ctx.Done():
				return
			default:
			}
			logrus.WithError(err).Debug("transport: read error")
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		t.mu.RLock()
		h := t.handler
		t.mu.RUnlock()

		if h != nil {
			go h(data, addr)
		}
	}
}
