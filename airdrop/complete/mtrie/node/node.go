package node

import (
	"fmt"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/encoding"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
)

// Index addresses a node within its Store.
type Index uint32

// NoIndex marks the absence of a node (e.g. the root of an empty trie).
const NoIndex = ^Index(0)

// Kind distinguishes the two node variants.
type Kind uint8

const (
	// KindLeaf nodes hold exactly one grant.
	KindLeaf Kind = iota
	// KindFork nodes hold a discriminating bit and exactly two children.
	KindFork
)

func (k Kind) String() string {
	switch k {
	case KindLeaf:
		return "leaf"
	case KindFork:
		return "fork"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Node is a vertex of the compressed binary trie.
//
// DEFINITIONS and CONVENTIONS:
//   - DEPTH of a node is the number of key bits consumed by its ancestors. The root
//     has depth 0; a child of a fork at bit b has depth b+1.
//   - A leaf's SUFFIX are the key bits [depth, width) of its key.
//   - A fork's PREFIX are the key bits [depth, bit), shared by every key below it.
//     Keys below the left child have bit `bit` == 0, keys below the right child 1.
//
// Nodes are created by the trie builder or the flattener and are never modified
// once their hash has been computed.
type Node struct {
	kind  Kind
	depth uint16
	// bit is the discriminating bit position (forks only).
	bit uint16
	// path is the full key for leaves; for forks it is the shared prefix with
	// all bits at index >= bit cleared.
	path   airdrop.Key
	grant  *airdrop.Grant
	lChild Index
	rChild Index
	// leafCount is the number of leaves in the subtrie rooted at this node.
	leafCount uint64
	// maxDepth is the number of edges on the longest path down to a leaf.
	maxDepth uint16
	hashValue hash.Hash
}

// Kind returns the node variant.
func (n *Node) Kind() Kind { return n.kind }

// IsLeaf returns true if the node is a leaf.
func (n *Node) IsLeaf() bool { return n.kind == KindLeaf }

// Depth returns the number of key bits consumed by the node's ancestors.
func (n *Node) Depth() int { return int(n.depth) }

// Bit returns the discriminating bit position of a fork.
// For leaves it returns the key width.
func (n *Node) Bit() int {
	if n.kind == KindLeaf {
		return n.path.Width()
	}
	return int(n.bit)
}

// Path returns the leaf key, or the fork prefix with all bits >= Bit() cleared.
func (n *Node) Path() airdrop.Key { return n.path }

// Grant returns the grant stored in a leaf (nil for forks).
func (n *Node) Grant() *airdrop.Grant { return n.grant }

// LeftChild returns the index of the 0-branch of a fork.
func (n *Node) LeftChild() Index { return n.lChild }

// RightChild returns the index of the 1-branch of a fork.
func (n *Node) RightChild() Index { return n.rChild }

// LeafCount returns the number of leaves below (and including) this node.
func (n *Node) LeafCount() uint64 { return n.leafCount }

// MaxDepth returns the length of the longest branch from this node to a leaf.
func (n *Node) MaxDepth() uint16 { return n.maxDepth }

// Hash returns the cached hash of the node.
func (n *Node) Hash() hash.Hash { return n.hashValue }

// Suffix returns the packed leaf suffix bits [depth, width).
func (n *Node) Suffix() []byte {
	return n.path.Bits(int(n.depth), n.path.Width())
}

// SuffixLen returns the number of leaf suffix bits.
func (n *Node) SuffixLen() int {
	return n.path.Width() - int(n.depth)
}

// Prefix returns the packed fork prefix bits [depth, bit).
func (n *Node) Prefix() []byte {
	return n.path.Bits(int(n.depth), int(n.bit))
}

// PrefixLen returns the number of fork prefix bits.
func (n *Node) PrefixLen() int {
	return int(n.bit) - int(n.depth)
}

// Store is an append-only arena holding all nodes of one trie. Children are
// referenced by index, so sibling subtries can be processed independently.
type Store struct {
	nodes []Node
}

// NewStore returns an empty store with room for `capacity` nodes.
func NewStore(capacity int) *Store {
	return &Store{nodes: make([]Node, 0, capacity)}
}

// Len returns the number of nodes in the store.
func (s *Store) Len() int { return len(s.nodes) }

// Node returns the node at index i. The function panics if i is out of range.
func (s *Store) Node(i Index) *Node { return &s.nodes[i] }

// NewLeaf appends a leaf holding `grant` under `key` at the given depth.
// The hash is not computed here; see ComputeHash.
func (s *Store) NewLeaf(key airdrop.Key, grant *airdrop.Grant, depth int) Index {
	s.nodes = append(s.nodes, Node{
		kind:      KindLeaf,
		depth:     uint16(depth),
		path:      key,
		grant:     grant,
		lChild:    NoIndex,
		rChild:    NoIndex,
		leafCount: 1,
	})
	return Index(len(s.nodes) - 1)
}

// ReserveFork appends a fork placeholder and returns its index. Reserving the
// slot before the children are built keeps the store in depth-first pre-order.
// The fork must be completed with SetForkChildren.
func (s *Store) ReserveFork(prefix airdrop.Key, depth int, bit int) Index {
	s.nodes = append(s.nodes, Node{
		kind:   KindFork,
		depth:  uint16(depth),
		bit:    uint16(bit),
		path:   prefix.Prefix(bit),
		lChild: NoIndex,
		rChild: NoIndex,
	})
	return Index(len(s.nodes) - 1)
}

// SetForkChildren links both children to a reserved fork and derives the
// fork's aggregate counters. The hash is not computed here; see ComputeHash.
func (s *Store) SetForkChildren(fork Index, left Index, right Index) {
	n := &s.nodes[fork]
	l, r := &s.nodes[left], &s.nodes[right]
	n.lChild = left
	n.rChild = right
	n.leafCount = l.leafCount + r.leafCount
	n.maxDepth = l.maxDepth
	if r.maxDepth > n.maxDepth {
		n.maxDepth = r.maxDepth
	}
	n.maxDepth++
}

// SetHash stores the computed hash of node i.
// Distinct nodes may be updated concurrently.
func (s *Store) SetHash(i Index, h hash.Hash) {
	s.nodes[i].hashValue = h
}

// ComputeHash computes the hash of node i from its content and the cached
// hashes of its children.
func (s *Store) ComputeHash(i Index) hash.Hash {
	return computeHash(s, &s.nodes[i])
}

func computeHash(s *Store, n *Node) hash.Hash {
	if n.kind == KindLeaf {
		return hash.HashLeaf(uint16(n.SuffixLen()), n.Suffix(), encoding.EncodeGrant(n.grant))
	}
	l, r := s.nodes[n.lChild].hashValue, s.nodes[n.rChild].hashValue
	return hash.HashFork(n.bit, uint16(n.PrefixLen()), n.Prefix(), l, r)
}

// VerifyCachedHash verifies the hashes of all nodes in the subtrie rooted at
// node i. It returns an error naming the first node whose cached hash does
// not match its content.
func (s *Store) VerifyCachedHash(i Index) error {
	n := &s.nodes[i]
	if n.kind == KindFork {
		if err := s.VerifyCachedHash(n.lChild); err != nil {
			return err
		}
		if err := s.VerifyCachedHash(n.rChild); err != nil {
			return err
		}
	}
	if computed := computeHash(s, n); computed != n.hashValue {
		return fmt.Errorf("%v node %d at depth %d has cached hash %v, but its content hashes to %v",
			n.kind, i, n.depth, n.hashValue, computed)
	}
	return nil
}

// FmtStr provides formatted string representation of the subtrie rooted at node i
func (s *Store) FmtStr(i Index, prefix string, subpath string) string {
	n := &s.nodes[i]
	if n.kind == KindLeaf {
		return fmt.Sprintf("%v%v: (%v, %v)[%v]\n", prefix, subpath, n.path, n.grant, n.hashValue)
	}
	left := s.FmtStr(n.lChild, prefix+"\t", "0")
	right := s.FmtStr(n.rChild, prefix+"\t", "1")
	return fmt.Sprintf("%v%v: fork at bit %d [%v]\n%v%v", prefix, subpath, n.bit, n.hashValue, left, right)
}
