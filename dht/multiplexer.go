package dht

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithp/kademlia/id"
	"github.com/lithp/kademlia/message"
	"github.com/lithp/kademlia/transport"
	"github.com/sirupsen/logrus"
)

// verbHandler answers an inbound request variant and returns the response
// to send back to the requester.
type verbHandler func(req *message.Message) *message.Message

// multiplexer owns the datagram socket, the in-flight request table, and
// the verb dispatch table. It is the single point where inbound frames are
// decoded, fed into the routing table, and either correlated against an
// outstanding request or dispatched to a handler — spec.md §4.4.
type multiplexer struct {
	self      id.ID
	selfIP    string
	selfPort  uint16
	transport transport.Transport
	codec     message.Codec
	table     *RoutingTable
	metrics   *metrics
	log       *logrus.Entry

	mu       sync.Mutex
	inFlight map[message.Nonce]chan *message.Message
	closed   chan struct{}

	handlersMu sync.RWMutex
	handlers   map[message.Type]verbHandler

	// onBucketFull, if set, is invoked whenever observe reports a full
	// bucket. The core contract only requires the receive path not to
	// panic; Node uses this hook to schedule the liveness probe the spec
	// recommends (§9 "Eviction policy") without the multiplexer needing
	// to know about Node.
	onBucketFull func(candidate Peer, incoming Peer)
}

func newMultiplexer(self id.ID, tr transport.Transport, codec message.Codec, table *RoutingTable, m *metrics, log *logrus.Entry) *multiplexer {
	host, portStr, err := net.SplitHostPort(tr.LocalAddr().String())
	var port uint16
	if err == nil {
		if p, convErr := strconv.Atoi(portStr); convErr == nil {
			port = uint16(p)
		}
	}

	mux := &multiplexer{
		self:      self,
		selfIP:    host,
		selfPort:  port,
		transport: tr,
		codec:     codec,
		table:     table,
		metrics:   m,
		log:       log,
		inFlight:  make(map[message.Nonce]chan *message.Message),
		handlers:  make(map[message.Type]verbHandler),
		closed:    make(chan struct{}),
	}
	tr.SetHandler(mux.handleDatagram)
	return mux
}

// shutdown marks the multiplexer closed: every request currently awaiting a
// response completes immediately with ErrShutdown instead of running out
// its own timeout, per spec.md §5 ("drains by completing all outstanding
// slots with a shutdown error").
func (mux *multiplexer) shutdown() {
	close(mux.closed)
}

// handle registers a verb handler for a request type.
func (mux *multiplexer) handle(t message.Type, h verbHandler) {
	mux.handlersMu.Lock()
	defer mux.handlersMu.Unlock()
	mux.handlers[t] = h
}

// handleDatagram is the transport.Handler installed on the socket. It must
// never panic or block the receive loop on a single malformed peer.
func (mux *multiplexer) handleDatagram(data []byte, addr net.Addr) {
	msg, err := mux.codec.Decode(data)
	if err != nil {
		mux.log.WithError(err).WithField("addr", addr).Debug("dht: dropping undecodable frame")
		return
	}

	if msg.Sender.ID.Equal(mux.self) {
		mux.log.WithField("addr", addr).Debug("dht: dropping self-reflected frame")
		return
	}

	result := mux.table.Observe(Peer{ID: msg.Sender.ID, Addr: net.JoinHostPort(msg.Sender.IP, strconv.Itoa(int(msg.Sender.Port)))}, time.Now())
	if result.Full {
		mux.metrics.bucketFullEvents.Inc()
		mux.log.WithFields(logrus.Fields{
			"candidate": result.EvictionCandidate.ID,
			"incoming":  msg.Sender.ID,
		}).Debug("dht: bucket full, surfacing eviction candidate")
		if mux.onBucketFull != nil {
			incoming := Peer{ID: msg.Sender.ID, Addr: net.JoinHostPort(msg.Sender.IP, strconv.Itoa(int(msg.Sender.Port)))}
			go mux.onBucketFull(result.EvictionCandidate, incoming)
		}
	}

	if msg.Type.IsResponse() {
		mux.complete(msg)
		return
	}

	mux.dispatch(msg, addr)
}

// complete resolves the in-flight slot for msg's nonce, if any. A response
// with an unrecognised nonce (already completed, or never sent) is logged
// and dropped, never propagated.
func (mux *multiplexer) complete(msg *message.Message) {
	mux.mu.Lock()
	ch, ok := mux.inFlight[msg.Nonce]
	if ok {
		delete(mux.inFlight, msg.Nonce)
	}
	mux.mu.Unlock()

	if !ok {
		mux.log.WithField("nonce", msg.Nonce).Debug("dht: response with unknown nonce, dropping")
		return
	}
	ch <- msg
}

// dispatch routes a request variant to its registered handler and sends the
// handler's response back to the sender's claimed address.
func (mux *multiplexer) dispatch(req *message.Message, addr net.Addr) {
	mux.handlersMu.RLock()
	h, ok := mux.handlers[req.Type]
	mux.handlersMu.RUnlock()
	if !ok {
		mux.log.WithField("type", req.Type).Warn("dht: no handler registered for request type")
		return
	}

	resp := h(req)
	resp.Nonce = req.Nonce
	resp.Sender = mux.senderDescriptor()

	out, err := mux.codec.Encode(resp)
	if err != nil {
		mux.log.WithError(err).Error("dht: failed to encode response")
		return
	}

	replyAddr := net.JoinHostPort(req.Sender.IP, strconv.Itoa(int(req.Sender.Port)))
	raddr, err := net.ResolveUDPAddr("udp", replyAddr)
	if err != nil {
		mux.log.WithError(err).WithField("addr", replyAddr).Warn("dht: cannot resolve reply address")
		return
	}
	if err := mux.transport.Send(out, raddr); err != nil {
		mux.log.WithError(err).Debug("dht: failed to send response")
	}
}

func (mux *multiplexer) senderDescriptor() message.Peer {
	return message.Peer{IP: mux.selfIP, Port: mux.selfPort, ID: mux.self}
}

// send issues a request to remote and blocks until a matching response
// arrives or timeout elapses. Sending to self is a programmer error, per
// spec.md §4.4.
func (mux *multiplexer) send(ctx context.Context, remote Peer, req *message.Message, timeout time.Duration) (*message.Message, error) {
	if remote.ID.Equal(mux.self) {
		panic("dht: refusing to send to self")
	}

	// traceID is a log-correlation handle independent of the wire nonce:
	// it lets a single outbound RPC's send/timeout/complete lines be
	// grepped together without exposing the protocol nonce as a logging
	// concern.
	traceID := uuid.NewString()
	log := mux.log.WithFields(logrus.Fields{"trace": traceID, "type": req.Type, "remote": remote.ID})

	nonce, err := newNonce()
	if err != nil {
		return nil, fmt.Errorf("dht: generating nonce: %w", err)
	}
	req.Nonce = nonce
	req.Sender = mux.senderDescriptor()

	ch := make(chan *message.Message, 1)
	mux.mu.Lock()
	mux.inFlight[nonce] = ch
	mux.mu.Unlock()
	mux.metrics.inFlightRequests.Inc()

	defer func() {
		mux.mu.Lock()
		delete(mux.inFlight, nonce)
		mux.mu.Unlock()
		mux.metrics.inFlightRequests.Dec()
	}()

	out, err := mux.codec.Encode(req)
	if err != nil {
		return nil, fmt.Errorf("dht: encoding request: %w", err)
	}

	raddr, err := net.ResolveUDPAddr("udp", remote.Addr)
	if err != nil {
		return nil, fmt.Errorf("dht: resolving %s: %w", remote.Addr, err)
	}

	log.Debug("dht: sending request")
	mux.metrics.rpcsSent.Inc()
	if err := mux.transport.Send(out, raddr); err != nil {
		return nil, fmt.Errorf("dht: sending request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		log.Debug("dht: request completed")
		return resp, nil
	case <-timer.C:
		log.Debug("dht: request timed out")
		mux.metrics.rpcTimeouts.Inc()
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-mux.closed:
		return nil, ErrShutdown
	}
}

// newNonce generates a cryptographically random correlation value.
func newNonce() (message.Nonce, error) {
	var n message.Nonce
	_, err := rand.Read(n[:])
	return n, err
}
