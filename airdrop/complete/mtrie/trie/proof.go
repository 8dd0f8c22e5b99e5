package trie

import (
	"fmt"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/encoding"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
)

// Proof is an inclusion proof of a single (key, grant) pair.
//
// Bits and SiblingHashes are ordered from the root down to the leaf's parent:
// at the i-th fork on the path the key branches at bit position Bits[i] and
// SiblingHashes[i] is the hash of the branch not taken. The fork prefixes are not
// part of the proof, they are the key bits between consecutive fork positions.
type Proof struct {
	Key           airdrop.Key
	Grant         *airdrop.Grant
	Bits          []uint16
	SiblingHashes []hash.Hash
}

func (p *Proof) String() string {
	res := fmt.Sprintf("> key %s, grant: %v, %d forks\n", p.Key, p.Grant, len(p.Bits))
	for i := range p.Bits {
		res += fmt.Sprintf("\t bit %d, sibling %v\n", p.Bits[i], p.SiblingHashes[i])
	}
	return res
}

// Prove returns the inclusion proof for the grant stored under key.
// It returns an error if the trie holds no grant for key.
func (mt *MTrie) Prove(key airdrop.Key) (*Proof, error) {
	if mt.IsEmpty() || key.Width() != mt.width {
		return nil, fmt.Errorf("key %s is not in the trie", key)
	}

	proof := &Proof{Key: key}
	i := mt.root
	for {
		n := mt.store.Node(i)
		if n.IsLeaf() {
			if n.Path() != key {
				return nil, fmt.Errorf("key %s is not in the trie", key)
			}
			proof.Grant = n.Grant().DeepCopy()
			return proof, nil
		}
		if key.Prefix(n.Bit()) != n.Path() {
			return nil, fmt.Errorf("key %s is not in the trie", key)
		}
		proof.Bits = append(proof.Bits, uint16(n.Bit()))
		if key.Bit(n.Bit()) == 0 {
			proof.SiblingHashes = append(proof.SiblingHashes, mt.store.Node(n.RightChild()).Hash())
			i = n.LeftChild()
		} else {
			proof.SiblingHashes = append(proof.SiblingHashes, mt.store.Node(n.LeftChild()).Hash())
			i = n.RightChild()
		}
	}
}

// VerifyProof checks that the proof commits the proven grant under the proven
// key to a trie with the given root hash.
func VerifyProof(rootHash hash.Hash, proof *Proof) bool {
	if proof == nil || len(proof.Bits) != len(proof.SiblingHashes) {
		return false
	}
	if proof.Grant.Validate() != nil {
		return false
	}
	key, width := proof.Key, proof.Key.Width()

	// fork positions must be strictly increasing and below the key width
	depths := make([]int, len(proof.Bits)+1)
	for i, b := range proof.Bits {
		bit := int(b)
		if bit < depths[i] || bit >= width {
			return false
		}
		depths[i+1] = bit + 1
	}

	leafDepth := depths[len(proof.Bits)]
	computed := hash.HashLeaf(uint16(width-leafDepth), key.Bits(leafDepth, width), encoding.EncodeGrant(proof.Grant))
	for i := len(proof.Bits) - 1; i >= 0; i-- {
		bit, depth := int(proof.Bits[i]), depths[i]
		prefix := key.Bits(depth, bit)
		if key.Bit(bit) == 0 {
			computed = hash.HashFork(uint16(bit), uint16(bit-depth), prefix, computed, proof.SiblingHashes[i])
		} else {
			computed = hash.HashFork(uint16(bit), uint16(bit-depth), prefix, proof.SiblingHashes[i], computed)
		}
	}
	return computed == rootHash
}
