package id

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fromUint builds an ID from a small integer, left-padded with zero bytes,
// mirroring the literal binary values used in spec.md's worked examples.
func fromUint(v uint64) ID {
	var out ID
	b := big.NewInt(0).SetUint64(v).Bytes()
	copy(out[Size-len(b):], b)
	return out
}

func TestBucketIndex_WorkedExample(t *testing.T) {
	self := fromUint(0b1000)

	assert.Equal(t, 0, BucketIndex(self, fromUint(0b1001)))
	assert.Equal(t, 1, BucketIndex(self, fromUint(0b1010)))
	assert.Equal(t, 1, BucketIndex(self, fromUint(0b1011)))
	assert.Equal(t, 2, BucketIndex(self, fromUint(0b1100)))
	assert.Equal(t, 3, BucketIndex(self, fromUint(0b0000)))
}

func TestBucketIndex_OppositeHalf(t *testing.T) {
	var self ID // zero
	var allOnes ID
	for i := range allOnes {
		allOnes[i] = 0xFF
	}
	assert.Equal(t, Bits-1, BucketIndex(self, allOnes))
}

func TestBucketIndex_PanicsOnSelf(t *testing.T) {
	self := Generate()
	assert.Panics(t, func() { BucketIndex(self, self) })
}

func TestDistance_Commutative(t *testing.T) {
	a, b := Generate(), Generate()
	assert.Equal(t, Distance(a, b), Distance(b, a))
}

func TestDistance_SelfIsZero(t *testing.T) {
	a := Generate()
	assert.True(t, Distance(a, a).IsZero())
}

func TestLess_OrdersByMagnitude(t *testing.T) {
	small := fromUint(1)
	large := fromUint(2)
	assert.True(t, Less(small, large))
	assert.False(t, Less(large, small))
	assert.False(t, Less(small, small))
}

func TestBucketRange(t *testing.T) {
	low, high := BucketRange(0)
	assert.Equal(t, big.NewInt(1), low)
	assert.Equal(t, big.NewInt(1), high)

	low, high = BucketRange(3)
	assert.Equal(t, big.NewInt(8), low)
	assert.Equal(t, big.NewInt(15), high)
}

func TestRandomInBucket_LandsInRequestedBucket(t *testing.T) {
	self := Generate()
	for i := 0; i < Bits; i += 17 { // sample across the space without 160 iterations
		got := RandomInBucket(self, i)
		require.NotEqual(t, self, got)
		assert.Equal(t, i, BucketIndex(self, got), "bucket %d", i)
	}
}

func TestFromBytes_RoundTrip(t *testing.T) {
	a := Generate()
	got := FromBytes(a[:])
	assert.Equal(t, a, got)
}

func TestFromBytes_PanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() { FromBytes([]byte{1, 2, 3}) })
}
