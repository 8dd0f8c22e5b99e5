package bitutils

import (
	"math/bits"
)

// ReadBit returns the bit at index `idx` in the byte array `b` (big endian)
// The function panics, if the byte slice is too short.
func ReadBit(b []byte, idx int) int {
	byteValue := int(b[idx>>3])
	idx &= 7
	return (byteValue >> (7 - idx)) & 1
}

// WriteBit assigns value `v` to the bit at index `i` in the byte array `b`.
// The function panics, if the byte slice is too short. We follow the common
// convention of converting between integer and boolean/bit values:
//   - int value == 0   <=>   false   <=>   bit 0
//   - int value != 0   <=>   true    <=>   bit 1
func WriteBit(b []byte, i int, value int) {
	if value == 0 {
		ClearBit(b, i)
	} else {
		SetBit(b, i)
	}
}

// SetBit sets the bit at index `i` in the byte array `b`, i.e. it assigns
// value 1 to the bit. The function panics, if the byte slice is too short.
func SetBit(b []byte, i int) {
	byteIndex := i >> 3
	i &= 7
	mask := byte(1 << (7 - i))
	b[byteIndex] |= mask
}

// ClearBit clears the bit at index `i` in the byte slice `b`, i.e. it assigns
// value 0 to the bit. The function panics, if the byte slice is too short.
func ClearBit(b []byte, i int) {
	byteIndex := i >> 3
	i &= 7
	mask := byte(1 << (7 - i))
	b[byteIndex] &= ^mask
}

// MakeBitVector allocates a byte slice of minimal size that can hold numberBits.
func MakeBitVector(numberBits int) []byte {
	return make([]byte, (numberBits+7)>>3)
}

// CopyBits returns the bits [from, to) of `src` packed left-aligned into a new
// bit vector of minimal size. Unused trailing bits of the last byte are zero.
// The function panics, if `src` is too short or from > to.
func CopyBits(src []byte, from, to int) []byte {
	n := to - from
	if n < 0 {
		panic("bitutils: invalid bit range")
	}
	dst := MakeBitVector(n)
	if from&7 == 0 {
		copy(dst, src[from>>3:])
		ClearTrailingBits(dst, n)
		return dst
	}
	for i := 0; i < n; i++ {
		if ReadBit(src, from+i) == 1 {
			SetBit(dst, i)
		}
	}
	return dst
}

// ClearTrailingBits zeroes every bit of `b` at index >= `numberBits`.
func ClearTrailingBits(b []byte, numberBits int) {
	byteIndex := numberBits >> 3
	if byteIndex >= len(b) {
		return
	}
	if rem := numberBits & 7; rem != 0 {
		b[byteIndex] &= ^byte(0xff >> rem)
		byteIndex++
	}
	for ; byteIndex < len(b); byteIndex++ {
		b[byteIndex] = 0
	}
}

// PaddingIsZero returns true if every bit of `b` at index >= `numberBits` is zero.
func PaddingIsZero(b []byte, numberBits int) bool {
	byteIndex := numberBits >> 3
	if byteIndex >= len(b) {
		return true
	}
	if rem := numberBits & 7; rem != 0 {
		if b[byteIndex]&byte(0xff>>rem) != 0 {
			return false
		}
		byteIndex++
	}
	for ; byteIndex < len(b); byteIndex++ {
		if b[byteIndex] != 0 {
			return false
		}
	}
	return true
}

// CommonPrefixLen returns the number of leading bits `a` and `b` have in common,
// looking at most at the first `numberBits` bits.
func CommonPrefixLen(a, b []byte, numberBits int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if x := a[i] ^ b[i]; x != 0 {
			n := i*8 + bits.LeadingZeros8(x)
			if n > numberBits {
				return numberBits
			}
			return n
		}
		if (i+1)*8 >= numberBits {
			return numberBits
		}
	}
	return numberBits
}
