package airdrop

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/jettonkit/airdrop/airdrop/common/bitutils"
)

// MaxKeyWidth is the largest key width [in bits] a trie can operate with.
const MaxKeyWidth = 320

const maxKeyBytes = MaxKeyWidth / 8

// Key is a fixed-width bit string addressing a grant in the trie.
// Keys are values: they are comparable and can be used as map keys.
// Bits beyond the key width are always zero.
type Key struct {
	data  [maxKeyBytes]byte
	width uint16
}

// DummyKey is an arbitrary key value, used in function errors.
var DummyKey Key

// NewKey creates a key of the given width [in bits] from its big-endian packed
// representation. `b` must hold exactly ceil(width/8) bytes and all padding
// bits of the last byte must be zero.
func NewKey(width int, b []byte) (Key, error) {
	if width < 1 || width > MaxKeyWidth {
		return DummyKey, fmt.Errorf("key width must be in [1, %d], got %d", MaxKeyWidth, width)
	}
	if expected := (width + 7) >> 3; len(b) != expected {
		return DummyKey, fmt.Errorf("expecting %d bytes for a %d-bit key but got %d bytes", expected, width, len(b))
	}
	if !bitutils.PaddingIsZero(b, width) {
		return DummyKey, fmt.Errorf("padding bits of a %d-bit key must be zero", width)
	}
	var k Key
	copy(k.data[:], b)
	k.width = uint16(width)
	return k, nil
}

// Width returns the key width in bits.
func (k Key) Width() int { return int(k.width) }

// Bit returns the bit at index `i`, counted from the most significant bit.
func (k Key) Bit(i int) int {
	return bitutils.ReadBit(k.data[:], i)
}

// Bytes returns a copy of the packed key bits (ceil(width/8) bytes).
func (k Key) Bytes() []byte {
	n := (int(k.width) + 7) >> 3
	b := make([]byte, n)
	copy(b, k.data[:n])
	return b
}

// Bits returns the bits [from, to) of the key packed left-aligned.
func (k Key) Bits(from, to int) []byte {
	return bitutils.CopyBits(k.data[:], from, to)
}

// Compare orders keys as unsigned big-endian bit strings. Keys of smaller width
// sort first.
func (k Key) Compare(o Key) int {
	if k.width != o.width {
		if k.width < o.width {
			return -1
		}
		return 1
	}
	return bytes.Compare(k.data[:], o.data[:])
}

// Equals compares this key to another key
func (k Key) Equals(o Key) bool {
	return k == o
}

// CommonPrefixLen returns the number of leading bits shared by both keys.
func (k Key) CommonPrefixLen(o Key) int {
	width := int(k.width)
	if int(o.width) < width {
		width = int(o.width)
	}
	return bitutils.CommonPrefixLen(k.data[:], o.data[:], width)
}

// Prefix returns a key of the same width with all bits at index >= n cleared.
func (k Key) Prefix(n int) Key {
	p := k
	bitutils.ClearTrailingBits(p.data[:], n)
	return p
}

// WithBit returns a copy of the key with bit `i` assigned to `value`.
func (k Key) WithBit(i int, value int) Key {
	p := k
	bitutils.WriteBit(p.data[:], i, value)
	return p
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%d", hex.EncodeToString(k.Bytes()), k.width)
}
