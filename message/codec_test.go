package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lithp/kademlia/id"
)

func sampleSender() Peer {
	return Peer{IP: "192.168.1.7", Port: 33445, ID: id.Generate()}
}

func TestBinaryCodec_RoundTrip(t *testing.T) {
	codec := NewBinaryCodec()

	cases := []*Message{
		{Type: Ping, Nonce: Nonce{1}, Sender: sampleSender()},
		{Type: Pong, Nonce: Nonce{2}, Sender: sampleSender()},
		{Type: StoreResponse, Nonce: Nonce{3}, Sender: sampleSender()},
		{Type: Store, Nonce: Nonce{4}, Sender: sampleSender(), Key: id.Generate(), Value: []byte("hello world")},
		{Type: FoundValue, Nonce: Nonce{5}, Sender: sampleSender(), Key: id.Generate(), Value: []byte("")},
		{Type: FindNode, Nonce: Nonce{6}, Sender: sampleSender(), Key: id.Generate()},
		{Type: FindValue, Nonce: Nonce{7}, Sender: sampleSender(), Key: id.Generate()},
		{
			Type: FindNodeResponse, Nonce: Nonce{8}, Sender: sampleSender(),
			Neighbors: []Peer{sampleSender(), sampleSender()},
		},
		{Type: FindNodeResponse, Nonce: Nonce{9}, Sender: sampleSender(), Neighbors: nil},
	}

	for _, m := range cases {
		t.Run(m.Type.String(), func(t *testing.T) {
			encoded, err := codec.Encode(m)
			require.NoError(t, err)

			decoded, err := codec.Decode(encoded)
			require.NoError(t, err)

			assert.Equal(t, m.Type, decoded.Type)
			assert.Equal(t, m.Nonce, decoded.Nonce)
			assert.Equal(t, m.Sender, decoded.Sender)
			assert.Equal(t, m.Key, decoded.Key)
			assert.Equal(t, len(m.Value), len(decoded.Value))
			if len(m.Value) > 0 {
				assert.Equal(t, m.Value, decoded.Value)
			}
			assert.Equal(t, len(m.Neighbors), len(decoded.Neighbors))
			for i := range m.Neighbors {
				assert.Equal(t, m.Neighbors[i], decoded.Neighbors[i])
			}
		})
	}
}

func TestDecode_TruncatedFrame(t *testing.T) {
	codec := NewBinaryCodec()
	_, err := codec.Decode([]byte{byte(Ping)})
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecode_UnknownType(t *testing.T) {
	codec := NewBinaryCodec()
	m := &Message{Type: Ping, Sender: sampleSender()}
	encoded, err := codec.Encode(m)
	require.NoError(t, err)
	encoded[0] = 0xFF

	_, err = codec.Decode(encoded)
	assert.Error(t, err)
}

func TestDecode_TrailingBytesRejected(t *testing.T) {
	codec := NewBinaryCodec()
	m := &Message{Type: Ping, Sender: sampleSender()}
	encoded, err := codec.Encode(m)
	require.NoError(t, err)

	_, err = codec.Decode(append(encoded, 0x00))
	assert.Error(t, err)
}

func TestType_IsResponse(t *testing.T) {
	assert.True(t, Pong.IsResponse())
	assert.True(t, StoreResponse.IsResponse())
	assert.True(t, FindNodeResponse.IsResponse())
	assert.True(t, FoundValue.IsResponse())
	assert.False(t, Ping.IsResponse())
	assert.False(t, Store.IsResponse())
	assert.False(t, FindNode.IsResponse())
	assert.False(t, FindValue.IsResponse())
}
