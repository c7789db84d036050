package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lithp/kademlia/id"
)

// ErrTruncated is returned when a buffer ends before a length-prefixed field
// it promised is fully read.
var ErrTruncated = errors.New("message: truncated frame")

// BinaryCodec is the reference wire codec: a flat, length-delimited binary
// framing with no external schema dependency. Layout:
//
//	[type(1)][nonce(20)][senderIPLen(1)][senderIP][senderPort(2)][senderID(20)][payload...]
//
// Payload by type:
//
//	PING, PONG, STORE_RESPONSE:    empty
//	STORE, FOUND_VALUE:            [key(20)][valueLen(4)][value]
//	FIND_NODE, FIND_VALUE:         [key(20)]
//	FIND_NODE_RESPONSE:            [count(2)][ipLen(1) ip port(2) id(20)]*
type BinaryCodec struct{}

// NewBinaryCodec returns the reference Codec implementation.
func NewBinaryCodec() Codec {
	return BinaryCodec{}
}

func (BinaryCodec) Encode(m *Message) ([]byte, error) {
	buf := make([]byte, 0, 64+len(m.Value))

	buf = append(buf, byte(m.Type))
	buf = append(buf, m.Nonce[:]...)

	if len(m.Sender.IP) > 255 {
		return nil, fmt.Errorf("message: sender IP too long (%d bytes)", len(m.Sender.IP))
	}
	buf = append(buf, byte(len(m.Sender.IP)))
	buf = append(buf, []byte(m.Sender.IP)...)
	buf = appendUint16(buf, m.Sender.Port)
	buf = append(buf, m.Sender.ID[:]...)

	switch m.Type {
	case Ping, Pong, StoreResponse:
		// no payload

	case Store, FoundValue:
		buf = append(buf, m.Key[:]...)
		buf = appendUint32(buf, uint32(len(m.Value)))
		buf = append(buf, m.Value...)

	case FindNode, FindValue:
		buf = append(buf, m.Key[:]...)

	case FindNodeResponse:
		if len(m.Neighbors) > 0xFFFF {
			return nil, fmt.Errorf("message: too many neighbors (%d)", len(m.Neighbors))
		}
		buf = appendUint16(buf, uint16(len(m.Neighbors)))
		for _, n := range m.Neighbors {
			if len(n.IP) > 255 {
				return nil, fmt.Errorf("message: neighbor IP too long (%d bytes)", len(n.IP))
			}
			buf = append(buf, byte(len(n.IP)))
			buf = append(buf, []byte(n.IP)...)
			buf = appendUint16(buf, n.Port)
			buf = append(buf, n.ID[:]...)
		}

	default:
		return nil, fmt.Errorf("message: unknown type %d", m.Type)
	}

	return buf, nil
}

func (BinaryCodec) Decode(b []byte) (*Message, error) {
	r := &reader{buf: b}

	typeByte, err := r.byte1()
	if err != nil {
		return nil, fmt.Errorf("message: reading type: %w", err)
	}
	m := &Message{Type: Type(typeByte)}

	nonce, err := r.fixed(len(m.Nonce))
	if err != nil {
		return nil, fmt.Errorf("message: reading nonce: %w", err)
	}
	copy(m.Nonce[:], nonce)

	sender, err := r.peer()
	if err != nil {
		return nil, fmt.Errorf("message: reading sender: %w", err)
	}
	m.Sender = sender

	switch m.Type {
	case Ping, Pong, StoreResponse:
		// no payload

	case Store, FoundValue:
		key, err := r.fixed(id.Size)
		if err != nil {
			return nil, fmt.Errorf("message: reading key: %w", err)
		}
		m.Key = id.FromBytes(key)

		valueLen, err := r.uint32()
		if err != nil {
			return nil, fmt.Errorf("message: reading value length: %w", err)
		}
		value, err := r.fixed(int(valueLen))
		if err != nil {
			return nil, fmt.Errorf("message: reading value: %w", err)
		}
		m.Value = append([]byte(nil), value...)

	case FindNode, FindValue:
		key, err := r.fixed(id.Size)
		if err != nil {
			return nil, fmt.Errorf("message: reading key: %w", err)
		}
		m.Key = id.FromBytes(key)

	case FindNodeResponse:
		count, err := r.uint16()
		if err != nil {
			return nil, fmt.Errorf("message: reading neighbor count: %w", err)
		}
		m.Neighbors = make([]Peer, 0, count)
		for i := 0; i < int(count); i++ {
			p, err := r.peer()
			if err != nil {
				return nil, fmt.Errorf("message: reading neighbor %d: %w", i, err)
			}
			m.Neighbors = append(m.Neighbors, p)
		}

	default:
		return nil, fmt.Errorf("message: unknown type %d", m.Type)
	}

	if !r.done() {
		return nil, fmt.Errorf("message: %d trailing bytes after decode", r.remaining())
	}

	return m, nil
}

// reader is a small cursor over a decode buffer, used to keep Decode free of
// repeated bounds-checking boilerplate.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }
func (r *reader) done() bool     { return r.pos == len(r.buf) }

func (r *reader) byte1() (byte, error) {
	b, err := r.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, ErrTruncated
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.fixed(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) peer() (Peer, error) {
	ipLen, err := r.byte1()
	if err != nil {
		return Peer{}, err
	}
	ip, err := r.fixed(int(ipLen))
	if err != nil {
		return Peer{}, err
	}
	port, err := r.uint16()
	if err != nil {
		return Peer{}, err
	}
	idBytes, err := r.fixed(id.Size)
	if err != nil {
		return Peer{}, err
	}
	return Peer{IP: string(ip), Port: port, ID: id.FromBytes(idBytes)}, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}
