package dht

import "errors"

// Sentinel errors surfaced by the public API, per the propagation policy in
// spec.md §7: lower layers absorb per-frame errors (decode, unknown nonce,
// self-reflection on receive); these are the ones a caller can usefully
// branch on.
var (
	// ErrNotRunning is returned when an RPC is attempted before Listen has
	// completed.
	ErrNotRunning = errors.New("dht: node is not listening")

	// ErrTimeout is returned when an outbound request receives no matching
	// response within its budget.
	ErrTimeout = errors.New("dht: request timed out")

	// ErrSelf names the refusal to operate on the local node. No function in
	// this package returns it: sending to, observing, or evicting the local
	// node's own id panics instead, as a programmer error.
	ErrSelf = errors.New("dht: refusing to operate on self")

	// ErrBootstrapFailed is returned when the initial PING to a bootstrap
	// peer never receives a response after the configured retries.
	ErrBootstrapFailed = errors.New("dht: bootstrap failed")

	// ErrNotFound is returned by FindValue when the iterative lookup
	// converges without any peer returning FOUND_VALUE.
	ErrNotFound = errors.New("dht: value not found")

	// ErrUnknownPeer is returned by Evict when asked to remove an id that
	// is not present in the routing table.
	ErrUnknownPeer = errors.New("dht: no such peer in routing table")

	// ErrShutdown is returned to every in-flight request when the node is
	// closed, instead of letting each one run out its own timeout.
	ErrShutdown = errors.New("dht: node is shutting down")
)
