package dht

import (
	"context"
	"testing"
	"time"

	"github.com/lithp/kademlia/id"
	"github.com/stretchr/testify/require"
)

// TestLookup_IterativeDiscovery reproduces the literal scenario: a chain of
// routing edges A->H1->H2->F, where A only directly knows H1. A node lookup
// for F's id must terminate with F (and H2) present in A's routing table.
func TestLookup_IterativeDiscovery(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 2 * time.Second

	a := mustNewListeningNode(t, cfg)
	h1 := mustNewListeningNode(t, cfg)
	h2 := mustNewListeningNode(t, cfg)
	f := mustNewListeningNode(t, cfg)
	defer a.Close()
	defer h1.Close()
	defer h2.Close()
	defer f.Close()

	now := time.Now()
	a.table.Observe(Peer{ID: h1.self, Addr: h1.transport.LocalAddr().String()}, now)
	h1.table.Observe(Peer{ID: h2.self, Addr: h2.transport.LocalAddr().String()}, now)
	h2.table.Observe(Peer{ID: f.self, Addr: f.transport.LocalAddr().String()}, now)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result := a.lookup(ctx, f.self, false)
	require.True(t, containsPeerID(result.shortlist, f.self), "lookup must discover F")

	known := a.table.ClosestTo(a.self, a.table.Size())
	require.True(t, containsPeerID(known, f.self), "F must end up in A's routing table")
	require.True(t, containsPeerID(known, h2.self), "H2 must end up in A's routing table")
}

func containsPeerID(peers []Peer, target id.ID) bool {
	for _, p := range peers {
		if p.ID.Equal(target) {
			return true
		}
	}
	return false
}

func mustNewListeningNode(t *testing.T, cfg Config) *Node {
	t.Helper()
	n, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, n.Listen("127.0.0.1:0"))
	return n
}
