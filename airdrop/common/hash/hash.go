package hash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// HashLen is the default output hash length in bytes
const HashLen = 32

// Hash is the hash type used for all trie nodes and the root commitment
type Hash [HashLen]byte

// DummyHash is an arbitrary hash value, used in function errors.
// DummyHash represents a valid hash value.
var DummyHash Hash

// Domain separation tags, prepended to every hashed node.
const (
	tagLeaf  = byte(0x00)
	tagFork  = byte(0x01)
	tagEmpty = byte(0x02)
)

var emptyTrieRootHash = func() Hash {
	var h Hash
	hasher := sha3.New256()
	_, _ = hasher.Write([]byte{tagEmpty})
	hasher.Sum(h[:0])
	return h
}()

// HashLeaf returns the hash value for leaf nodes.
//
// suffix holds the `suffixLen` key bits below the leaf's parent fork, packed
// left-aligned; encodedGrant is the canonical grant encoding.
func HashLeaf(suffixLen uint16, suffix []byte, encodedGrant []byte) Hash {
	var h Hash
	var header [3]byte
	header[0] = tagLeaf
	binary.BigEndian.PutUint16(header[1:], suffixLen)

	hasher := sha3.New256()
	_, _ = hasher.Write(header[:])
	_, _ = hasher.Write(suffix)
	_, _ = hasher.Write(encodedGrant)
	hasher.Sum(h[:0])
	return h
}

// HashFork returns the hash value for fork nodes.
//
// bit is the discriminating bit position, prefix holds the `prefixLen` key bits
// shared by all keys below the fork that were not consumed by its ancestors.
// left and right are the hashes of the 0-branch and the 1-branch.
func HashFork(bit uint16, prefixLen uint16, prefix []byte, left Hash, right Hash) Hash {
	var h Hash
	var header [5]byte
	header[0] = tagFork
	binary.BigEndian.PutUint16(header[1:], bit)
	binary.BigEndian.PutUint16(header[3:], prefixLen)

	hasher := sha3.New256()
	_, _ = hasher.Write(header[:])
	_, _ = hasher.Write(prefix)
	_, _ = hasher.Write(left[:])
	_, _ = hasher.Write(right[:])
	hasher.Sum(h[:0])
	return h
}

// EmptyTrieRootHash returns the root hash of a trie holding no grants.
// It does not depend on the key width.
func EmptyTrieRootHash() Hash {
	return emptyTrieRootHash
}

// ToHash converts a byte slice into a Hash.
// It returns an error if the slice has an invalid length.
func ToHash(bytes []byte) (Hash, error) {
	var h Hash
	if len(bytes) != len(h) {
		return DummyHash, fmt.Errorf("expecting %d bytes but got %d bytes", len(h), len(bytes))
	}
	copy(h[:], bytes)
	return h, nil
}

// BigInt returns the hash as an unsigned big-endian integer, the form in which
// the root commitment is embedded into the minter contract.
func (h Hash) BigInt() *big.Int {
	return new(big.Int).SetBytes(h[:])
}

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}
