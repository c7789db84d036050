// Package id implements the 160-bit identifier algebra used throughout the
// DHT: XOR distance, bucket indexing, and the random-identifier-within-bucket
// sampler used by routing table refresh.
//
// Identifiers are semantically unsigned integers in [0, 2^160). They are
// compared and hashed by value; the zero value is a valid (if unlikely)
// identifier, not a sentinel.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the width of an identifier in bytes (160 bits).
const Size = 20

// Bits is the width of an identifier in bits.
const Bits = Size * 8

// ID is a 160-bit unsigned identifier, stored big-endian.
type ID [Size]byte

// Generate returns a cryptographically random identifier, suitable for a
// node's self id at startup.
func Generate() ID {
	var out ID
	if _, err := rand.Read(out[:]); err != nil {
		// crypto/rand.Read on the standard Reader only fails if the OS
		// entropy source is broken beyond recovery; there is nothing a
		// caller could usefully do with a partial identifier.
		panic(fmt.Sprintf("id: failed to read random bytes: %v", err))
	}
	return out
}

// FromBytes copies b into an ID. It panics if b is not exactly Size bytes,
// since a malformed identifier is always a decoding bug in the caller.
func FromBytes(b []byte) ID {
	if len(b) != Size {
		panic(fmt.Sprintf("id: FromBytes got %d bytes, want %d", len(b), Size))
	}
	var out ID
	copy(out[:], b)
	return out
}

// String renders the identifier as lowercase hex.
func (a ID) String() string {
	return hex.EncodeToString(a[:])
}

// Equal reports whether a and b denote the same identifier.
func (a ID) Equal(b ID) bool {
	return a == b
}

// Distance returns the XOR distance between a and b. XOR distance is
// commutative and forms a metric over the identifier space.
func Distance(a, b ID) ID {
	var out ID
	for i := range out {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// Less reports whether distance d1 is strictly smaller than d2, comparing
// both as big-endian unsigned integers.
func Less(d1, d2 ID) bool {
	for i := range d1 {
		if d1[i] != d2[i] {
			return d1[i] < d2[i]
		}
	}
	return false
}

// IsZero reports whether id is the all-zero distance, i.e. a == b.
func (a ID) IsZero() bool {
	return a == ID{}
}

// BitLen returns the position of the highest set bit of id plus one, i.e.
// the number of bits required to represent it. BitLen of the zero value is
// 0.
func (a ID) BitLen() int {
	for i := 0; i < Size; i++ {
		if a[i] == 0 {
			continue
		}
		return (Size-i-1)*8 + bitLenByte(a[i])
	}
	return 0
}

func bitLenByte(b byte) int {
	n := 0
	for b != 0 {
		b >>= 1
		n++
	}
	return n
}

// BucketIndex returns the k-bucket index that other belongs to from self's
// perspective. It is defined iff other != self: the result is the bit
// position of the highest set bit of XOR(self, other), in [0, Bits-1].
//
// BucketIndex panics if self == other; a self-comparison is always a
// programmer error (the routing table never stores self).
func BucketIndex(self, other ID) int {
	if self == other {
		panic("id: BucketIndex called with self == other")
	}
	d := Distance(self, other)
	return d.BitLen() - 1
}

// BucketRange returns the inclusive [low, high] range of XOR distances that
// fall into bucket i, as big.Int so callers can sample within it regardless
// of word size.
func BucketRange(i int) (low, high *big.Int) {
	if i < 0 || i >= Bits {
		panic(fmt.Sprintf("id: bucket index %d out of range [0, %d)", i, Bits))
	}
	low = new(big.Int).Lsh(big.NewInt(1), uint(i))
	high = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(i+1)), big.NewInt(1))
	return low, high
}

// RandomInBucket returns an identifier whose bucket index, from self's
// perspective, is exactly i. It is used by periodic bucket refresh to probe
// a point in the id space that the bucket is responsible for.
func RandomInBucket(self ID, i int) ID {
	low, high := BucketRange(i)
	span := new(big.Int).Sub(high, low)
	span.Add(span, big.NewInt(1))

	offset, err := rand.Int(rand.Reader, span)
	if err != nil {
		panic(fmt.Sprintf("id: failed to sample bucket range: %v", err))
	}
	d := new(big.Int).Add(low, offset)

	dBytes := d.Bytes()
	var dID ID
	copy(dID[Size-len(dBytes):], dBytes)

	return Distance(self, dID)
}
