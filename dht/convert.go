package dht

import (
	"net"
	"strconv"

	"github.com/lithp/kademlia/message"
)

// peerToMessage renders a routing-table Peer as the wire Peer descriptor
// carried in message.Message.Sender / .Neighbors.
func peerToMessage(p Peer) message.Peer {
	host, portStr, err := net.SplitHostPort(p.Addr)
	if err != nil {
		return message.Peer{ID: p.ID}
	}
	port, _ := strconv.Atoi(portStr)
	return message.Peer{IP: host, Port: uint16(port), ID: p.ID}
}

// messageToPeer is the inverse of peerToMessage, used when folding a
// neighbor list or a message sender into the routing table.
func messageToPeer(p message.Peer) Peer {
	return Peer{ID: p.ID, Addr: net.JoinHostPort(p.IP, strconv.Itoa(int(p.Port)))}
}
