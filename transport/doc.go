// Package transport defines the datagram transport contract the DHT core
// is built on, plus a reference UDP implementation.
//
// spec.md §1 places the transport itself out of the core's scope: "bind/
// send/receive of opaque payloads to (ip, port)". This package supplies
// exactly that contract (Transport) and nothing protocol-specific — no
// packet types, no handshakes, no encryption. The DHT's message layer
// (package message) owns framing; Transport only ever sees opaque bytes.
//
// # Usage
//
//	t, err := transport.NewUDP(":33445")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
//
//	t.SetHandler(func(data []byte, addr net.Addr) {
//	    // hand data to the multiplexer for decoding
//	})
//
//	err = t.Send(frame, remoteAddr)
//
// # Thread safety
//
// Implementations must allow Send and the receive loop to run concurrently;
// UDP satisfies this with a single handler guarded by a mutex and a
// dedicated read goroutine.
package transport
