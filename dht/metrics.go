package dht

import "github.com/prometheus/client_golang/prometheus"

// metrics bundles the Prometheus collectors a Node exposes. Every Node gets
// its own registry rather than registering into prometheus.DefaultRegisterer,
// so that running several Nodes in one process (as the test suite does) does
// not collide on metric names.
type metrics struct {
	registry *prometheus.Registry

	inFlightRequests prometheus.Gauge
	routingTableSize prometheus.Gauge
	lookupRounds     prometheus.Counter
	rpcTimeouts      prometheus.Counter
	rpcsSent         prometheus.Counter
	bucketFullEvents prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()

	m := &metrics{
		registry: reg,
		inFlightRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kademlia",
			Name:      "in_flight_requests",
			Help:      "Outbound RPCs awaiting a response.",
		}),
		routingTableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "kademlia",
			Name:      "routing_table_size",
			Help:      "Total peers currently held across all k-buckets.",
		}),
		lookupRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kademlia",
			Name:      "lookup_rounds_total",
			Help:      "Iterative lookup rounds executed.",
		}),
		rpcTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kademlia",
			Name:      "rpc_timeouts_total",
			Help:      "Outbound RPCs that timed out without a response.",
		}),
		rpcsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kademlia",
			Name:      "rpcs_sent_total",
			Help:      "Outbound RPCs sent.",
		}),
		bucketFullEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "kademlia",
			Name:      "bucket_full_total",
			Help:      "Observe calls that found their bucket full.",
		}),
	}

	reg.MustRegister(
		m.inFlightRequests,
		m.routingTableSize,
		m.lookupRounds,
		m.rpcTimeouts,
		m.rpcsSent,
		m.bucketFullEvents,
	)

	return m
}

// Registry exposes the Node's Prometheus registry so a host process can
// serve it (e.g. via promhttp.HandlerFor) alongside its own metrics.
func (n *Node) Registry() *prometheus.Registry {
	return n.metrics.registry
}
