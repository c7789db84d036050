// Package dht implements a Kademlia distributed hash table: a 160-bucket
// routing table keyed by XOR distance, a local key/value store, an RPC
// multiplexer over an opaque datagram transport, and the iterative lookup
// engine that ties them together.
//
// A Node is the façade most callers want:
//
//	n, err := dht.New(dht.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := n.Listen(":33445"); err != nil {
//	    log.Fatal(err)
//	}
//	if err := n.Bootstrap(ctx, "bootstrap.example.org:33445", bootstrapID); err != nil {
//	    log.Fatal(err)
//	}
//	n.StoreValue(ctx, key, []byte("hello"))
//	value, err := n.FindValue(ctx, key)
//
// The routing table, value store, wire codec, and transport are each
// independently usable; Node exists to wire sensible defaults together and
// run the background maintenance (periodic bucket refresh, stale-entry
// pruning) a long-lived process needs.
package dht
