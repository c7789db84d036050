// Package dht implements Kademlia routing, local value storage, and the
// iterative lookup engine described in doc.go.
//
// This file provides the routing table: 160 k-buckets organized by XOR
// distance from the local node, supplying candidate peers for every lookup
// and for outbound traffic in general.
package dht

import (
	"sort"
	"sync"
	"time"

	"github.com/lithp/kademlia/id"
)

// Entry is one routing-table record: a known peer plus the bookkeeping the
// table needs to run the k-bucket discipline and background maintenance.
type Entry struct {
	Peer     Peer
	LastSeen time.Time

	// Successes and Failures tally liveness probes issued against this
	// peer (see Node.probeAndEvict) and are readable through EntryFor.
	// The eviction decision itself does not consult them: it rests on the
	// outcome of the single probe just issued.
	Successes int
	Failures  int
}

// Peer identifies a remote node by its 160-bit id and the network address it
// was last observed at.
type Peer struct {
	ID   id.ID
	Addr string
}

// bucket is an ordered sequence of entries, least-recently-seen at index 0,
// most-recently-seen at the back.
type bucket struct {
	entries      []Entry
	lastActivity time.Time
}

func (b *bucket) indexOf(target id.ID) int {
	for i := range b.entries {
		if b.entries[i].Peer.ID.Equal(target) {
			return i
		}
	}
	return -1
}

// RoutingTable is the self-centred, 160-bucket k-bucket table. It is safe
// for concurrent use.
type RoutingTable struct {
	self id.ID
	k    int

	mu      sync.RWMutex
	buckets [id.Bits]bucket
}

// NewRoutingTable builds an empty table for self with bucket capacity k.
func NewRoutingTable(self id.ID, k int) *RoutingTable {
	return &RoutingTable{self: self, k: k}
}

// ObserveResult reports what Observe did, so a caller can act on the
// no-room case by probing the eviction candidate before retrying.
type ObserveResult struct {
	// Inserted is true if peer was added or an existing entry was bumped.
	Inserted bool
	// Full is true if the target bucket had no room; EvictionCandidate
	// names the least-recently-seen entry the caller should probe.
	Full              bool
	EvictionCandidate Peer
}

// Observe is the routing table's only mutator: bump on existing membership,
// append on free space, else signal full and surface the bucket's oldest
// entry as the eviction candidate. A peer is never inserted over a live
// long-lived entry, even if the incoming peer is fresh — Kademlia prefers
// proven peers to new ones.
func (rt *RoutingTable) Observe(peer Peer, now time.Time) ObserveResult {
	if peer.ID.Equal(rt.self) {
		panic("dht: Observe called with self id")
	}

	i := id.BucketIndex(rt.self, peer.ID)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[i]
	b.lastActivity = now

	if idx := b.indexOf(peer.ID); idx >= 0 {
		entry := b.entries[idx]
		entry.Peer = peer
		entry.LastSeen = now
		b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
		b.entries = append(b.entries, entry)
		return ObserveResult{Inserted: true}
	}

	if len(b.entries) < rt.k {
		b.entries = append(b.entries, Entry{Peer: peer, LastSeen: now})
		return ObserveResult{Inserted: true}
	}

	return ObserveResult{
		Full:              true,
		EvictionCandidate: b.entries[0].Peer,
	}
}

// RecordProbe tallies the outcome of a liveness probe against target,
// without affecting its position in the bucket. It is a no-op if target is
// not currently held (e.g. it was evicted concurrently).
func (rt *RoutingTable) RecordProbe(target id.ID, success bool) {
	i := id.BucketIndex(rt.self, target)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[i]
	idx := b.indexOf(target)
	if idx < 0 {
		return
	}
	if success {
		b.entries[idx].Successes++
	} else {
		b.entries[idx].Failures++
	}
}

// Evict removes the entry for target from its bucket. Returns ErrUnknownPeer
// if no such entry exists.
func (rt *RoutingTable) Evict(target id.ID) error {
	i := id.BucketIndex(rt.self, target)

	rt.mu.Lock()
	defer rt.mu.Unlock()

	b := &rt.buckets[i]
	idx := b.indexOf(target)
	if idx < 0 {
		return ErrUnknownPeer
	}
	b.entries = append(b.entries[:idx], b.entries[idx+1:]...)
	return nil
}

// ClosestTo returns up to n known peers ordered by ascending XOR distance to
// target, via the distance-centred outward bucket walk: the bucket
// containing target necessarily holds our closest known peers, and the walk
// then visits the buckets at ±1, ±2, … from it. Neither the entries within
// a bucket nor the buckets of the walk are in distance order for an
// arbitrary target, so the collected peers are sorted before truncation.
func (rt *RoutingTable) ClosestTo(target id.ID, n int) []Peer {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	order := rt.bucketWalkOrder(target)

	out := make([]Peer, 0, n)
	for _, i := range order {
		b := &rt.buckets[i]
		if len(b.entries) == 0 {
			continue
		}

		batch := make([]Peer, len(b.entries))
		for j, e := range b.entries {
			batch[j] = e.Peer
		}
		sort.Slice(batch, func(a, c int) bool {
			da := id.Distance(batch[a].ID, target)
			dc := id.Distance(batch[c].ID, target)
			return id.Less(da, dc)
		})

		out = append(out, batch...)
		if len(out) >= n {
			break
		}
	}

	sort.Slice(out, func(a, c int) bool {
		return id.Less(id.Distance(out[a].ID, target), id.Distance(out[c].ID, target))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// bucketWalkOrder computes the distance-centred ±1, ±2, … permutation of
// bucket indices for target, or the plain 0..159 order when target is self.
func (rt *RoutingTable) bucketWalkOrder(target id.ID) []int {
	if target.Equal(rt.self) {
		order := make([]int, id.Bits)
		for i := range order {
			order[i] = i
		}
		return order
	}

	center := id.BucketIndex(rt.self, target)
	order := make([]int, 0, id.Bits)
	order = append(order, center)
	for offset := 1; center-offset >= 0 || center+offset < id.Bits; offset++ {
		if center-offset >= 0 {
			order = append(order, center-offset)
		}
		if center+offset < id.Bits {
			order = append(order, center+offset)
		}
	}
	return order
}

// FirstOccupiedBucket returns the smallest bucket index that holds at least
// one entry, or -1 if the table is empty. Used to skip refreshing buckets
// nearer than any known peer.
func (rt *RoutingTable) FirstOccupiedBucket() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for i := range rt.buckets {
		if len(rt.buckets[i].entries) > 0 {
			return i
		}
	}
	return -1
}

// PruneStale removes entries not seen within maxAge and returns them. This
// is a supplemental maintenance operation beyond observe/evict: a
// background sweep catches peers that went quiet without ever contending
// for the last slot in their bucket.
func (rt *RoutingTable) PruneStale(maxAge time.Duration, now time.Time) []Peer {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	var removed []Peer
	for i := range rt.buckets {
		b := &rt.buckets[i]
		kept := b.entries[:0:0]
		for _, e := range b.entries {
			if now.Sub(e.LastSeen) > maxAge {
				removed = append(removed, e.Peer)
				continue
			}
			kept = append(kept, e)
		}
		b.entries = kept
	}
	return removed
}

// EntryFor returns the routing table's record for target, if present.
func (rt *RoutingTable) EntryFor(target id.ID) (Entry, bool) {
	i := id.BucketIndex(rt.self, target)

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	b := &rt.buckets[i]
	idx := b.indexOf(target)
	if idx < 0 {
		return Entry{}, false
	}
	return b.entries[idx], true
}

// StaleBuckets returns the indices of non-empty buckets whose last Observe
// predates maxAge — candidates for the periodic refresh lookup.
func (rt *RoutingTable) StaleBuckets(maxAge time.Duration, now time.Time) []int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	var stale []int
	for i := range rt.buckets {
		b := &rt.buckets[i]
		if len(b.entries) == 0 {
			continue
		}
		if b.lastActivity.IsZero() || now.Sub(b.lastActivity) > maxAge {
			stale = append(stale, i)
		}
	}
	return stale
}

// Size returns the total number of entries held across all buckets.
func (rt *RoutingTable) Size() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	n := 0
	for i := range rt.buckets {
		n += len(rt.buckets[i].entries)
	}
	return n
}
