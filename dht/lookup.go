package dht

import (
	"context"
	"sort"
	"sync"

	"github.com/lithp/kademlia/id"
	"github.com/lithp/kademlia/message"
	"golang.org/x/sync/errgroup"
)

// lookupResult is the outcome of an iterative lookup: the converged
// shortlist, and — in value mode — the value if any queried peer returned
// FOUND_VALUE.
type lookupResult struct {
	shortlist []Peer
	value     []byte
	found     bool
}

// lookup drives the iterative parallel search of spec.md §4.6 toward
// target. When findValue is true it terminates early on FOUND_VALUE;
// otherwise it runs to convergence and returns the k closest peers found.
func (n *Node) lookup(ctx context.Context, target id.ID, findValue bool) lookupResult {
	shortlist := n.table.ClosestTo(target, n.cfg.K)
	queried := make(map[id.ID]bool)
	failed := make(map[id.ID]bool)

	toQuery := selectToQuery(shortlist, queried, n.cfg.Alpha)

	for len(toQuery) > 0 {
		n.metrics.lookupRounds.Inc()

		for _, p := range toQuery {
			queried[p.ID] = true
		}

		roundCtx, cancel := context.WithCancel(ctx)
		var mu sync.Mutex
		var neighbors []Peer
		var foundValue []byte
		var found bool

		g, gctx := errgroup.WithContext(roundCtx)
		for _, peer := range toQuery {
			peer := peer
			g.Go(func() error {
				resp, err := n.queryPeer(gctx, peer, target, findValue)
				if err != nil {
					// Timed-out or failed peers are treated as empty
					// responses and silently drop out of contention.
					mu.Lock()
					failed[peer.ID] = true
					mu.Unlock()
					return nil
				}

				mu.Lock()
				defer mu.Unlock()

				if resp.Type == message.FoundValue {
					found = true
					foundValue = resp.Value
					cancel()
					return nil
				}
				for _, np := range resp.Neighbors {
					neighbors = append(neighbors, messageToPeer(np))
				}
				return nil
			})
		}
		_ = g.Wait()
		cancel()

		if findValue && found {
			return lookupResult{value: foundValue, found: true}
		}

		var live, fresh []Peer
		for _, p := range shortlist {
			if !failed[p.ID] {
				live = append(live, p)
			}
		}
		for _, p := range neighbors {
			if !failed[p.ID] {
				fresh = append(fresh, p)
			}
		}
		shortlist = mergeShortlist(live, fresh, n.self, target, n.cfg.K)
		toQuery = selectToQuery(shortlist, queried, n.cfg.Alpha)
	}

	return lookupResult{shortlist: shortlist}
}

// queryPeer sends the appropriate RPC for the lookup mode and feeds the
// peer into the routing table as a byproduct of the response handling in
// the multiplexer's receive path.
func (n *Node) queryPeer(ctx context.Context, peer Peer, target id.ID, findValue bool) (*message.Message, error) {
	reqType := message.FindNode
	if findValue {
		reqType = message.FindValue
	}
	req := &message.Message{Type: reqType, Key: target}
	return n.mux.send(ctx, peer, req, n.cfg.RequestTimeout)
}

// selectToQuery picks up to alpha shortlist entries not yet in queried.
func selectToQuery(shortlist []Peer, queried map[id.ID]bool, alpha int) []Peer {
	var out []Peer
	for _, p := range shortlist {
		if queried[p.ID] {
			continue
		}
		out = append(out, p)
		if len(out) >= alpha {
			break
		}
	}
	return out
}

// mergeShortlist folds newly discovered neighbors into the running
// shortlist, drops self and duplicates, sorts by distance to target, and
// truncates to k.
func mergeShortlist(shortlist []Peer, neighbors []Peer, self, target id.ID, k int) []Peer {
	seen := make(map[id.ID]bool, len(shortlist))
	merged := make([]Peer, 0, len(shortlist)+len(neighbors))

	for _, p := range shortlist {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}
	for _, p := range neighbors {
		if p.ID.Equal(self) || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		merged = append(merged, p)
	}

	sort.Slice(merged, func(a, b int) bool {
		da := id.Distance(merged[a].ID, target)
		db := id.Distance(merged[b].ID, target)
		return id.Less(da, db)
	})

	if len(merged) > k {
		merged = merged[:k]
	}
	return merged
}

// refreshBucket performs the random-id-in-bucket node lookup used by
// bootstrap and periodic maintenance (spec.md §4.7) to keep a bucket's
// peers fresh.
func (n *Node) refreshBucket(ctx context.Context, bucketIndex int) {
	target := id.RandomInBucket(n.self, bucketIndex)
	n.lookup(ctx, target, false)
}
