// Package message defines the wire-level algebra of the DHT protocol: the
// eight tagged message variants (spec.md §4.3), their nonce and sender
// envelope, and the Codec contract that encodes/decodes them to bytes.
//
// Message itself is transport-agnostic; encoding is delegated to a Codec
// implementation (see codec.go for the concrete binary codec this module
// ships). Any codec is acceptable as long as every peer in a network shares
// it — the core only requires round-trip identity (decode(encode(m)) == m).
package message

import (
	"encoding/hex"

	"github.com/lithp/kademlia/id"
)

// Type identifies which of the eight message variants a Message carries.
type Type byte

const (
	Ping Type = iota + 1
	Pong
	Store
	StoreResponse
	FindNode
	FindNodeResponse
	FindValue
	FoundValue
)

// String renders the type for logging.
func (t Type) String() string {
	switch t {
	case Ping:
		return "PING"
	case Pong:
		return "PONG"
	case Store:
		return "STORE"
	case StoreResponse:
		return "STORE_RESPONSE"
	case FindNode:
		return "FIND_NODE"
	case FindNodeResponse:
		return "FIND_NODE_RESPONSE"
	case FindValue:
		return "FIND_VALUE"
	case FoundValue:
		return "FOUND_VALUE"
	default:
		return "UNKNOWN"
	}
}

// IsResponse reports whether t is a response variant, i.e. one the
// multiplexer correlates against an outstanding request by nonce rather
// than dispatching to a verb handler.
func (t Type) IsResponse() bool {
	switch t {
	case Pong, StoreResponse, FindNodeResponse, FoundValue:
		return true
	default:
		return false
	}
}

// Nonce is the opaque per-exchange correlation value stamped on every
// message. Responses echo the request's nonce.
type Nonce [20]byte

// String renders the nonce as hex for logging.
func (n Nonce) String() string {
	return hex.EncodeToString(n[:])
}

// Peer is the (ip, port, id) descriptor carried by every message's Sender
// field, and by the neighbor list of a FIND_NODE_RESPONSE.
type Peer struct {
	IP   string
	Port uint16
	ID   id.ID
}

// Message is the tagged union described by spec.md §4.3. Only the fields
// relevant to Type are meaningful; encoders ignore the rest.
type Message struct {
	Type   Type
	Nonce  Nonce
	Sender Peer

	Key   id.ID  // STORE, FIND_NODE, FIND_VALUE, FOUND_VALUE
	Value []byte // STORE, FOUND_VALUE

	Neighbors []Peer // FIND_NODE_RESPONSE
}

// Codec encodes and decodes Messages to and from wire bytes. Implementations
// must be round-trip identical: Decode(Encode(m)) must equal m for every
// variant.
type Codec interface {
	Encode(m *Message) ([]byte, error)
	Decode(b []byte) (*Message, error)
}
