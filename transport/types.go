// Package transport: core interfaces shared by every transport
// implementation.
package transport

import "net"

// Handler processes one inbound datagram. data is the raw payload exactly
// as received — framing and decoding are the multiplexer's job, not the
// transport's. addr is the network-level source address, which spec.md §4.4
// calls a stronger witness of reachability than anything a peer claims
// inside its own payload.
type Handler func(data []byte, addr net.Addr)

// Transport is the datagram endpoint contract the DHT core is built
// against. It deliberately has no notion of message types or framing: one
// handler receives every inbound datagram, and Send transmits an opaque
// byte slice. This lets the core run over the reference UDP implementation
// or any other Transport without changing a line of multiplexer or lookup
// code; this module ships only the UDP implementation.
type Transport interface {
	// Send transmits data to addr. MTU and fragmentation are the caller's
	// concern; the transport does not split or reassemble payloads.
	Send(data []byte, addr net.Addr) error

	// SetHandler installs the function invoked for every inbound datagram.
	// It is called once, before the transport starts delivering packets;
	// implementations need not support being re-registered mid-flight.
	SetHandler(h Handler)

	// LocalAddr returns the address the transport is bound to.
	LocalAddr() net.Addr

	// Close releases the underlying socket. After Close, Send must return
	// an error and no further Handler calls will occur.
	Close() error
}
