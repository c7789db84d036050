package dht

import (
	"github.com/lithp/kademlia/message"
	"github.com/lithp/kademlia/store"
)

// registerHandlers wires the four verb handlers of spec.md §4.5 into the
// multiplexer's dispatch table. Each handler receives the decoded request
// and returns the reply payload; the multiplexer stamps nonce and sender
// before sending.
func registerHandlers(mux *multiplexer, table *RoutingTable, values *store.Store, k int) {
	mux.handle(message.Ping, func(req *message.Message) *message.Message {
		return &message.Message{Type: message.Pong}
	})

	mux.handle(message.Store, func(req *message.Message) *message.Message {
		values.Put(req.Key, req.Value)
		return &message.Message{Type: message.StoreResponse}
	})

	mux.handle(message.FindNode, func(req *message.Message) *message.Message {
		return &message.Message{
			Type:      message.FindNodeResponse,
			Neighbors: peersToMessage(table.ClosestTo(req.Key, k)),
		}
	})

	mux.handle(message.FindValue, func(req *message.Message) *message.Message {
		if value, ok := values.Get(req.Key); ok {
			return &message.Message{Type: message.FoundValue, Key: req.Key, Value: value}
		}
		return &message.Message{
			Type:      message.FindNodeResponse,
			Neighbors: peersToMessage(table.ClosestTo(req.Key, k)),
		}
	})
}

func peersToMessage(peers []Peer) []message.Peer {
	out := make([]message.Peer, len(peers))
	for i, p := range peers {
		out[i] = peerToMessage(p)
	}
	return out
}
