package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lithp/kademlia/id"
)

func TestPutGet_RoundTrip(t *testing.T) {
	s := New()
	key := id.Generate()

	_, ok := s.Get(key)
	assert.False(t, ok)

	s.Put(key, []byte("hello"))
	v, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), v)
}

func TestPut_Overwrites(t *testing.T) {
	s := New()
	key := id.Generate()

	s.Put(key, []byte("first"))
	s.Put(key, []byte("second"))

	v, ok := s.Get(key)
	assert.True(t, ok)
	assert.Equal(t, []byte("second"), v)
}

func TestGet_ReturnsCopy(t *testing.T) {
	s := New()
	key := id.Generate()
	s.Put(key, []byte("hello"))

	v, _ := s.Get(key)
	v[0] = 'X'

	v2, _ := s.Get(key)
	assert.Equal(t, []byte("hello"), v2)
}

func TestLen(t *testing.T) {
	s := New()
	assert.Equal(t, 0, s.Len())
	s.Put(id.Generate(), []byte("a"))
	s.Put(id.Generate(), []byte("b"))
	assert.Equal(t, 2, s.Len())
}
