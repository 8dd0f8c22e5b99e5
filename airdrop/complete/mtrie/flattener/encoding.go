package flattener

import (
	"fmt"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/bitutils"
	"github.com/jettonkit/airdrop/airdrop/common/encoding"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/common/utils"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/node"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/trie"
)

// Serialized trie layout (all integers big endian):
//
//	version (2 bytes) | key width (2 bytes) | leaf count (8 bytes) |
//	nodes in depth-first pre-order, children inline | root hash (32 bytes)
//
// Node layouts:
//
//	leaf:  type (1 byte) | suffix length (2 bytes) | suffix | encoded grant
//	fork:  type (1 byte) | bit (2 bytes) | prefix length (2 bytes) | prefix |
//	       left subtrie | right subtrie
//	empty: type (1 byte), only as the root of a trie without grants
//
// Suffix and prefix bits are packed left-aligned, unused trailing bits are zero.
const encodingVersion = uint16(0)

type nodeType byte

const (
	leafNodeType nodeType = iota
	forkNodeType
	emptyNodeType
)

const (
	encVersionSize   = 2
	encWidthSize     = 2
	encLeafCountSize = 8
	encHeaderSize    = encVersionSize + encWidthSize + encLeafCountSize

	encNodeTypeSize = 1
	encBitSize      = 2
	encBitLenSize   = 2
	encHashSize     = hash.HashLen

	// smallest possible node: a fork with an empty prefix
	encMinNodeSize = encNodeTypeSize + encBitSize + encBitLenSize
)

// EncodeTrie serializes the trie. The output depends only on the trie's
// content, so equal tries always encode to identical bytes.
func EncodeTrie(t *trie.MTrie) []byte {
	buf := make([]byte, 0, estimateSize(t))
	buf = utils.AppendUint16(buf, encodingVersion)
	buf = utils.AppendUint16(buf, uint16(t.Width()))
	buf = utils.AppendUint64(buf, t.LeafCount())

	if t.IsEmpty() {
		buf = utils.AppendUint8(buf, byte(emptyNodeType))
	} else {
		buf = appendNode(buf, t.Store(), t.Root())
	}

	rootHash := t.RootHash()
	return append(buf, rootHash[:]...)
}

func estimateSize(t *trie.MTrie) int {
	keyBytes := (t.Width() + 7) >> 3
	// leaves carry a suffix and a grant, forks a prefix that is usually short
	perLeaf := encNodeTypeSize + encBitLenSize + keyBytes + 32
	perFork := encMinNodeSize + 2
	return encHeaderSize + encNodeTypeSize + encHashSize +
		int(t.LeafCount())*(perLeaf+perFork)
}

func appendNode(buf []byte, store *node.Store, i node.Index) []byte {
	n := store.Node(i)
	if n.IsLeaf() {
		buf = utils.AppendUint8(buf, byte(leafNodeType))
		buf = utils.AppendUint16(buf, uint16(n.SuffixLen()))
		buf = append(buf, n.Suffix()...)
		return encoding.AppendGrant(buf, n.Grant())
	}

	buf = utils.AppendUint8(buf, byte(forkNodeType))
	buf = utils.AppendUint16(buf, uint16(n.Bit()))
	buf = utils.AppendUint16(buf, uint16(n.PrefixLen()))
	buf = append(buf, n.Prefix()...)
	buf = appendNode(buf, store, n.LeftChild())
	return appendNode(buf, store, n.RightChild())
}

// DecodeTrie reconstructs a trie from its serialized form.
//
// The input must be exactly one serialized trie. Truncated or trailing data,
// unknown versions or node types, inconsistent bit positions or lengths, non-zero
// padding bits, non-canonical grants, a wrong leaf count and a root hash that
// does not match the decoded content are reported as airdrop.MalformedInputError.
func DecodeTrie(input []byte) (*trie.MTrie, error) {
	version, rest, err := utils.ReadUint16(input)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read version: %w", err)
	}
	if version != encodingVersion {
		return nil, airdrop.NewMalformedInputErrorf("unsupported encoding version %d", version)
	}

	width, rest, err := utils.ReadUint16(rest)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read key width: %w", err)
	}
	if width < 1 || int(width) > airdrop.MaxKeyWidth {
		return nil, airdrop.NewMalformedInputErrorf("key width %d is out of range [1, %d]", width, airdrop.MaxKeyWidth)
	}

	leafCount, rest, err := utils.ReadUint64(rest)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read leaf count: %w", err)
	}

	// The leaf count is untrusted: cap the preallocation by what the input can hold.
	capacity := uint64(len(rest) / encMinNodeSize)
	if leafCount > 0 && 2*leafCount-1 < capacity {
		capacity = 2*leafCount - 1
	}

	d := &decoder{
		rest:  rest,
		width: int(width),
		store: node.NewStore(int(capacity)),
	}

	var decoded *trie.MTrie
	if leafCount == 0 {
		nType, rest, err := utils.ReadUint8(d.rest)
		if err != nil {
			return nil, airdrop.NewMalformedInputErrorf("cannot read root node type: %w", err)
		}
		if nodeType(nType) != emptyNodeType {
			return nil, airdrop.NewMalformedInputErrorf("trie with zero leaves must have an empty root, got node type %d", nType)
		}
		d.rest = rest
		decoded, err = trie.NewEmptyMTrie(d.width)
		if err != nil {
			return nil, airdrop.NewMalformedInputErrorf("%w", err)
		}
	} else {
		zeroKey, err := airdrop.NewKey(d.width, bitutils.MakeBitVector(d.width))
		if err != nil {
			return nil, airdrop.NewMalformedInputErrorf("%w", err)
		}
		root, err := d.decodeNode(zeroKey, 0)
		if err != nil {
			return nil, err
		}
		decoded, err = trie.NewMTrie(d.store, root, d.width)
		if err != nil {
			return nil, airdrop.NewMalformedInputErrorf("%w", err)
		}
		if decoded.LeafCount() != leafCount {
			return nil, airdrop.NewMalformedInputErrorf("header declares %d leaves, but %d were decoded", leafCount, decoded.LeafCount())
		}
	}

	encRootHash, rest, err := utils.ReadSlice(d.rest, encHashSize)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read root hash: %w", err)
	}
	if len(rest) != 0 {
		return nil, airdrop.NewMalformedInputErrorf("%d trailing bytes after root hash", len(rest))
	}
	rootHash, err := hash.ToHash(encRootHash)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("%w", err)
	}
	if rootHash != decoded.RootHash() {
		return nil, airdrop.NewMalformedInputErrorf("root hash mismatch: serialized %v, computed %v", rootHash, decoded.RootHash())
	}

	return decoded, nil
}

type decoder struct {
	rest  []byte
	width int
	store *node.Store
}

// decodeNode decodes the subtrie at the current position. All keys below it
// start with the first `depth` bits of `path`; the remaining bits of `path` are zero.
func (d *decoder) decodeNode(path airdrop.Key, depth int) (node.Index, error) {
	nType, rest, err := utils.ReadUint8(d.rest)
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read node type at depth %d: %w", depth, err)
	}
	d.rest = rest

	switch nodeType(nType) {
	case leafNodeType:
		return d.decodeLeaf(path, depth)
	case forkNodeType:
		return d.decodeFork(path, depth)
	case emptyNodeType:
		return node.NoIndex, airdrop.NewMalformedInputErrorf("empty node at depth %d in a non-empty trie", depth)
	default:
		return node.NoIndex, airdrop.NewMalformedInputErrorf("unknown node type %d at depth %d", nType, depth)
	}
}

func (d *decoder) decodeLeaf(path airdrop.Key, depth int) (node.Index, error) {
	suffixLen, rest, err := utils.ReadUint16(d.rest)
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read leaf suffix length: %w", err)
	}
	if int(suffixLen) != d.width-depth {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("leaf at depth %d has suffix length %d, expected %d", depth, suffixLen, d.width-depth)
	}

	key, rest, err := readBits(rest, path, depth, int(suffixLen))
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read leaf suffix: %w", err)
	}

	grant, rest, err := encoding.DecodeGrant(rest)
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot decode grant of key %s: %w", key, err)
	}
	d.rest = rest

	return d.store.NewLeaf(key, grant, depth), nil
}

func (d *decoder) decodeFork(path airdrop.Key, depth int) (node.Index, error) {
	bit, rest, err := utils.ReadUint16(d.rest)
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read fork bit: %w", err)
	}
	if int(bit) < depth || int(bit) >= d.width {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("fork at depth %d has bit %d outside of [%d, %d)", depth, bit, depth, d.width)
	}

	prefixLen, rest, err := utils.ReadUint16(rest)
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read fork prefix length: %w", err)
	}
	if int(prefixLen) != int(bit)-depth {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("fork at depth %d and bit %d has prefix length %d, expected %d", depth, bit, prefixLen, int(bit)-depth)
	}

	prefix, rest, err := readBits(rest, path, depth, int(prefixLen))
	if err != nil {
		return node.NoIndex, airdrop.NewMalformedInputErrorf("cannot read fork prefix: %w", err)
	}
	d.rest = rest

	fork := d.store.ReserveFork(prefix, depth, int(bit))
	lChild, err := d.decodeNode(prefix, int(bit)+1)
	if err != nil {
		return node.NoIndex, err
	}
	rChild, err := d.decodeNode(prefix.WithBit(int(bit), 1), int(bit)+1)
	if err != nil {
		return node.NoIndex, err
	}
	d.store.SetForkChildren(fork, lChild, rChild)
	return fork, nil
}

// readBits reads `n` packed bits from the input and writes them into `path`
// starting at bit position `from`.
func readBits(input []byte, path airdrop.Key, from int, n int) (airdrop.Key, []byte, error) {
	packed, rest, err := utils.ReadSlice(input, (n+7)>>3)
	if err != nil {
		return airdrop.DummyKey, rest, err
	}
	if !bitutils.PaddingIsZero(packed, n) {
		return airdrop.DummyKey, rest, fmt.Errorf("padding bits of a %d-bit field are not zero", n)
	}

	b := path.Bytes()
	for i := 0; i < n; i++ {
		if bitutils.ReadBit(packed, i) == 1 {
			bitutils.SetBit(b, from+i)
		}
	}
	key, err := airdrop.NewKey(path.Width(), b)
	if err != nil {
		return airdrop.DummyKey, rest, err
	}
	return key, rest, nil
}
