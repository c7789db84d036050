package dht

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lithp/kademlia/id"
	"github.com/lithp/kademlia/message"
	"github.com/lithp/kademlia/store"
	"github.com/lithp/kademlia/transport"
	"github.com/sirupsen/logrus"
)

// Node is the public façade: a self-contained DHT peer with its own
// identity, routing table, value store, and background maintenance. Two or
// more Nodes in the same process never share state.
type Node struct {
	self id.ID
	cfg  Config
	log  *logrus.Entry

	table   *RoutingTable
	values  *store.Store
	codec   message.Codec
	metrics *metrics

	mu        sync.RWMutex
	transport transport.Transport
	mux       *multiplexer
	running   bool

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs a Node with a freshly generated random identity. Call
// Listen before issuing any RPC.
func New(cfg Config) (*Node, error) {
	return NewWithID(id.Generate(), cfg)
}

// NewWithID constructs a Node with a caller-supplied identity, primarily
// for tests that need deterministic ids and literal worked examples.
func NewWithID(self id.ID, cfg Config) (*Node, error) {
	cfg = withDefaults(cfg)

	n := &Node{
		self:    self,
		cfg:     cfg,
		log:     logrus.WithField("node", self.String()[:8]),
		table:   NewRoutingTable(self, cfg.K),
		values:  store.New(),
		codec:   message.NewBinaryCodec(),
		metrics: newMetrics(),
	}
	return n, nil
}

// ID returns the node's 160-bit identity.
func (n *Node) ID() id.ID { return n.self }

// RoutingTableSize returns the number of peers currently held in the
// routing table.
func (n *Node) RoutingTableSize() int { return n.table.Size() }

// Listen binds the datagram transport at addr, wires the multiplexer and
// verb handlers, and starts the background maintenance loop. It must be
// called exactly once before any RPC.
func (n *Node) Listen(addr string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return fmt.Errorf("dht: already listening")
	}

	tr, err := transport.NewUDP(addr)
	if err != nil {
		return fmt.Errorf("dht: binding transport: %w", err)
	}

	mux := newMultiplexer(n.self, tr, n.codec, n.table, n.metrics, n.log)
	mux.onBucketFull = n.probeAndEvict
	registerHandlers(mux, n.table, n.values, n.cfg.K)

	n.transport = tr
	n.mux = mux
	n.running = true

	ctx, cancel := context.WithCancel(context.Background())
	n.bgCancel = cancel
	n.bgWG.Add(1)
	go n.maintenanceLoop(ctx)

	return nil
}

// Close stops the background loop and releases the transport.
func (n *Node) Close() error {
	n.mu.Lock()
	running := n.running
	n.running = false
	cancel := n.bgCancel
	tr := n.transport
	mux := n.mux
	n.mu.Unlock()

	if !running {
		return nil
	}
	if mux != nil {
		mux.shutdown()
	}
	if cancel != nil {
		cancel()
	}
	n.bgWG.Wait()
	if tr != nil {
		return tr.Close()
	}
	return nil
}

// probeAndEvict realises the liveness-probe-before-evict policy spec.md §9
// recommends but does not mandate: the candidate is PINGed once, and only
// evicted — making room for the peer that triggered the full-bucket signal
// — if it fails to answer within the request timeout.
func (n *Node) probeAndEvict(candidate, incoming Peer) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.RequestTimeout)
	defer cancel()

	_, err := n.mux.send(ctx, candidate, &message.Message{Type: message.Ping}, n.cfg.RequestTimeout)
	n.table.RecordProbe(candidate.ID, err == nil)
	if err == nil {
		return
	}

	if evictErr := n.table.Evict(candidate.ID); evictErr != nil {
		return
	}
	n.table.Observe(incoming, time.Now())
}

// Bootstrap joins the network through a single well-known peer: PING it,
// then run a node lookup for our own id to populate nearby buckets, then
// refresh every bucket from the first occupied one outward — spec.md §4.7.
func (n *Node) Bootstrap(ctx context.Context, addr string, bootstrapID id.ID) error {
	if !n.isRunning() {
		return ErrNotRunning
	}

	peer := Peer{ID: bootstrapID, Addr: addr}

	var lastErr error
	backoff := n.cfg.BootstrapBackoff
	for attempt := 0; attempt < n.cfg.BootstrapMaxAttempts; attempt++ {
		pingCtx, cancel := context.WithTimeout(ctx, n.cfg.RequestTimeout)
		_, err := n.mux.send(pingCtx, peer, &message.Message{Type: message.Ping}, n.cfg.RequestTimeout)
		cancel()
		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrBootstrapFailed, ctx.Err())
		}
		backoff *= 2
		if backoff > n.cfg.BootstrapMaxBackoff {
			backoff = n.cfg.BootstrapMaxBackoff
		}
	}
	if lastErr != nil {
		return fmt.Errorf("%w: %v", ErrBootstrapFailed, lastErr)
	}

	n.table.Observe(peer, time.Now())

	n.lookup(ctx, n.self, false)

	first := n.table.FirstOccupiedBucket()
	if first < 0 {
		return nil
	}
	for i := first; i < id.Bits; i++ {
		n.refreshBucket(ctx, i)
	}
	return nil
}

// StoreValue replicates key/value to the k peers closest to key, per
// spec.md §4.7.
func (n *Node) StoreValue(ctx context.Context, key id.ID, value []byte) error {
	if !n.isRunning() {
		return ErrNotRunning
	}

	result := n.lookup(ctx, key, false)

	var wg sync.WaitGroup
	for _, p := range result.shortlist {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			storeCtx, cancel := context.WithTimeout(ctx, n.cfg.RequestTimeout)
			defer cancel()
			_, _ = n.mux.send(storeCtx, p, &message.Message{Type: message.Store, Key: key, Value: value}, n.cfg.RequestTimeout)
		}()
	}
	wg.Wait()
	return nil
}

// FindValue performs a value-mode iterative lookup for key. It returns
// ErrNotFound if the lookup converges without any peer returning the value.
func (n *Node) FindValue(ctx context.Context, key id.ID) ([]byte, error) {
	if !n.isRunning() {
		return nil, ErrNotRunning
	}

	if value, ok := n.values.Get(key); ok {
		return value, nil
	}

	result := n.lookup(ctx, key, true)
	if result.found {
		return result.value, nil
	}
	return nil, ErrNotFound
}

func (n *Node) isRunning() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.running
}

// maintenanceLoop runs the periodic bucket refresh and stale-entry pruning
// named in spec.md §4.7 ("Periodic bucket refresh (background)") and
// SPEC_FULL.md's supplemental stale-peer pruning.
func (n *Node) maintenanceLoop(ctx context.Context) {
	defer n.bgWG.Done()

	ticker := time.NewTicker(n.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.metrics.routingTableSize.Set(float64(n.table.Size()))

			now := time.Now()
			for _, i := range n.table.StaleBuckets(n.cfg.BucketStaleAfter, now) {
				n.refreshBucket(ctx, i)
			}
			n.table.PruneStale(n.cfg.BucketStaleAfter*24, now)
		}
	}
}
