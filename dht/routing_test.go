package dht

import (
	"testing"
	"time"

	"github.com/lithp/kademlia/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// peerInBucket returns an id guaranteed to land in bucket index bi relative
// to self, by flipping exactly bit bi (counting from the LSB, matching
// id.BucketIndex's convention). variant selects among several such ids by
// additionally flipping a bit strictly below bi, which cannot change the
// highest differing bit and therefore cannot change the bucket.
func peerInBucket(self id.ID, bi int, variant int) id.ID {
	b := self
	arrIdx := id.Size - 1 - bi/8
	b[arrIdx] ^= 1 << uint(bi%8)

	if variant > 0 && bi > 0 {
		low := (variant - 1) % bi
		lowIdx := id.Size - 1 - low/8
		b[lowIdx] ^= 1 << uint(low%8)
	}
	return b
}

func TestRoutingTable_ObserveBumpsExisting(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 20)

	peer := Peer{ID: peerInBucket(self, 30, 0), Addr: "10.0.0.1:1"}
	now := time.Now()

	res := rt.Observe(peer, now)
	assert.True(t, res.Inserted)

	peer.Addr = "10.0.0.1:2"
	res = rt.Observe(peer, now.Add(time.Second))
	assert.True(t, res.Inserted)
	assert.False(t, res.Full)
	assert.Equal(t, 1, rt.Size())

	closest := rt.ClosestTo(peer.ID, 1)
	require.Len(t, closest, 1)
	assert.Equal(t, "10.0.0.1:2", closest[0].Addr)
}

func TestRoutingTable_ObserveSignalsFullWithoutInserting(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 2)

	bucketIdx := 40
	p1 := Peer{ID: peerInBucket(self, bucketIdx, 1), Addr: "a"}
	p2 := Peer{ID: peerInBucket(self, bucketIdx, 2), Addr: "b"}
	p3 := Peer{ID: peerInBucket(self, bucketIdx, 3), Addr: "c"}

	now := time.Now()
	require.True(t, rt.Observe(p1, now).Inserted)
	require.True(t, rt.Observe(p2, now.Add(time.Second)).Inserted)

	res := rt.Observe(p3, now.Add(2*time.Second))
	assert.False(t, res.Inserted)
	assert.True(t, res.Full)
	assert.Equal(t, p1.ID, res.EvictionCandidate.ID, "least-recently-seen entry must be surfaced")
	assert.Equal(t, 2, rt.Size(), "full bucket must not grow past k")
}

func TestRoutingTable_EvictThenReobserveSucceeds(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 2)
	bucketIdx := 40

	p1 := Peer{ID: peerInBucket(self, bucketIdx, 1), Addr: "a"}
	p2 := Peer{ID: peerInBucket(self, bucketIdx, 2), Addr: "b"}
	p3 := Peer{ID: peerInBucket(self, bucketIdx, 3), Addr: "c"}

	now := time.Now()
	rt.Observe(p1, now)
	rt.Observe(p2, now)

	require.NoError(t, rt.Evict(p1.ID))
	assert.ErrorIs(t, rt.Evict(p1.ID), ErrUnknownPeer)

	res := rt.Observe(p3, now)
	assert.True(t, res.Inserted)
	assert.Equal(t, 2, rt.Size())
}

func TestRoutingTable_ClosestToOrdersByDistanceAcrossBuckets(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 20)

	now := time.Now()
	var all []Peer
	for _, bi := range []int{80, 81, 79, 120, 3} {
		p := Peer{ID: peerInBucket(self, bi, 0), Addr: "x"}
		all = append(all, p)
		require.True(t, rt.Observe(p, now).Inserted)
	}

	closest := rt.ClosestTo(self, len(all))
	require.Len(t, closest, len(all))

	for i := 1; i < len(closest); i++ {
		d1 := id.Distance(closest[i-1].ID, self)
		d2 := id.Distance(closest[i].ID, self)
		assert.False(t, id.Less(d2, d1), "results must be non-decreasing in distance")
	}
}

func TestRoutingTable_FirstOccupiedBucket(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 20)

	assert.Equal(t, -1, rt.FirstOccupiedBucket())

	rt.Observe(Peer{ID: peerInBucket(self, 90, 0)}, time.Now())
	rt.Observe(Peer{ID: peerInBucket(self, 10, 0)}, time.Now())

	assert.Equal(t, 10, rt.FirstOccupiedBucket())
}

func TestRoutingTable_PruneStaleRemovesOldEntries(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 20)

	old := Peer{ID: id.Generate()}
	fresh := Peer{ID: id.Generate()}

	now := time.Now()
	rt.Observe(old, now.Add(-time.Hour))
	rt.Observe(fresh, now)

	removed := rt.PruneStale(time.Minute, now)
	require.Len(t, removed, 1)
	assert.Equal(t, old.ID, removed[0].ID)
	assert.Equal(t, 1, rt.Size())
}

func TestRoutingTable_RecordProbeTallies(t *testing.T) {
	self := id.Generate()
	rt := NewRoutingTable(self, 20)

	peer := Peer{ID: id.Generate()}
	rt.Observe(peer, time.Now())

	rt.RecordProbe(peer.ID, true)
	rt.RecordProbe(peer.ID, true)
	rt.RecordProbe(peer.ID, false)

	entry, ok := rt.EntryFor(peer.ID)
	require.True(t, ok)
	assert.Equal(t, 2, entry.Successes)
	assert.Equal(t, 1, entry.Failures)

	rt.RecordProbe(id.Generate(), true) // unknown peer: no-op, must not panic
}
