package trie

import (
	"fmt"
	"math/big"
	"runtime"
	"sort"

	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/node"
)

// parallelHashThreshold is the minimal number of leaves both sibling subtries
// must hold before they are hashed concurrently.
const parallelHashThreshold = 4096

// MTrie is an immutable compressed binary Merkle trie mapping fixed-width keys
// to grants.
//
// The shape of an MTrie is a pure function of its key set: keys are sorted and
// recursively partitioned at the first bit position where the remaining keys
// disagree. A subtrie holding a single key collapses into a leaf. Consequently
// the root hash depends only on the set of (key, grant) pairs, never on the order
// in which they were supplied.
//
// All nodes live in an index-addressed node.Store owned by the trie.
// Tries are never mutated after construction, so all methods are concurrency safe.
type MTrie struct {
	store *node.Store
	root  node.Index
	width int
}

type leafEntry struct {
	key   airdrop.Key
	grant *airdrop.Grant
}

// NewEmptyMTrie returns an empty trie for keys of the given width [in bits].
func NewEmptyMTrie(width int) (*MTrie, error) {
	if width < 1 || width > airdrop.MaxKeyWidth {
		return nil, fmt.Errorf("trie's key width [in bits] must be in [1, %d], got %d", airdrop.MaxKeyWidth, width)
	}
	return &MTrie{
		store: node.NewStore(0),
		root:  node.NoIndex,
		width: width,
	}, nil
}

// NewMTrie wraps a fully linked node store into a trie and computes all node
// hashes. The store must not be modified afterwards.
func NewMTrie(store *node.Store, root node.Index, width int) (*MTrie, error) {
	mt, err := NewEmptyMTrie(width)
	if err != nil {
		return nil, err
	}
	if root == node.NoIndex {
		return mt, nil
	}
	if int(root) >= store.Len() {
		return nil, fmt.Errorf("root index %d is out of range (%d nodes)", root, store.Len())
	}
	mt.store = store
	mt.root = root
	hashSubtries(store, root)
	return mt, nil
}

// Build constructs the canonical trie holding all given entries.
//
// Every key must have the given width and every grant must satisfy its
// invariants. Keys must be pairwise distinct: a repeated key fails the build with
// an airdrop.DuplicateKeyError. Grants are copied; the caller keeps ownership
// of the input. The build is all-or-nothing.
func Build(width int, entries []airdrop.Entry) (*MTrie, error) {
	mt, err := NewEmptyMTrie(width)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return mt, nil
	}

	grants := make([]airdrop.Grant, len(entries))
	leaves := make([]leafEntry, len(entries))
	for i := range entries {
		e := &entries[i]
		if e.Key.Width() != width {
			return nil, fmt.Errorf("key %s has width %d, trie expects %d", e.Key, e.Key.Width(), width)
		}
		if err := e.Grant.Validate(); err != nil {
			return nil, fmt.Errorf("invalid grant for key %s: %w", e.Key, err)
		}
		grants[i] = *e.Grant.DeepCopy()
		leaves[i] = leafEntry{key: e.Key, grant: &grants[i]}
	}

	slices.SortFunc(leaves, func(a, b leafEntry) int {
		return a.key.Compare(b.key)
	})
	for i := 1; i < len(leaves); i++ {
		if leaves[i].key == leaves[i-1].key {
			return nil, airdrop.NewDuplicateKeyError(leaves[i].key)
		}
	}

	store := node.NewStore(2*len(leaves) - 1)
	root := build(store, leaves, 0)
	return NewMTrie(store, root, width)
}

// build creates the subtrie for the sorted, distinct leaves, all of which agree
// on their first `depth` bits. Nodes are appended in depth-first pre-order.
func build(store *node.Store, leaves []leafEntry, depth int) node.Index {
	if len(leaves) == 1 {
		return store.NewLeaf(leaves[0].key, leaves[0].grant, depth)
	}

	// As leaves are sorted, the bits shared by the first and the last key are
	// shared by all keys in between.
	first, last := leaves[0].key, leaves[len(leaves)-1].key
	bit := first.CommonPrefixLen(last)

	// first has bit 0 and last has bit 1 at position `bit`, so both partitions are non-empty
	split := sort.Search(len(leaves), func(i int) bool {
		return leaves[i].key.Bit(bit) == 1
	})

	fork := store.ReserveFork(first, depth, bit)
	lChild := build(store, leaves[:split], bit+1)
	rChild := build(store, leaves[split:], bit+1)
	store.SetForkChildren(fork, lChild, rChild)
	return fork
}

// hashSubtries computes the hashes of all nodes below (and including) root,
// bottom-up. Sibling subtries are independent, large ones are hashed concurrently.
func hashSubtries(store *node.Store, root node.Index) {
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	hashSubtrie(store, root, g)
	_ = g.Wait()
}

func hashSubtrie(store *node.Store, i node.Index, g *errgroup.Group) {
	n := store.Node(i)
	if !n.IsLeaf() {
		lChild, rChild := n.LeftChild(), n.RightChild()
		parallel := store.Node(lChild).LeafCount() >= parallelHashThreshold &&
			store.Node(rChild).LeafCount() >= parallelHashThreshold

		done := make(chan struct{})
		if parallel && g.TryGo(func() error {
			defer close(done)
			hashSubtrie(store, lChild, g)
			return nil
		}) {
			hashSubtrie(store, rChild, g)
			<-done
		} else {
			hashSubtrie(store, lChild, g)
			hashSubtrie(store, rChild, g)
		}
	}
	store.SetHash(i, store.ComputeHash(i))
}

// RootHash returns the trie's root hash, the commitment to its full content.
// An empty trie has hash.EmptyTrieRootHash().
func (mt *MTrie) RootHash() hash.Hash {
	if mt.IsEmpty() {
		return hash.EmptyTrieRootHash()
	}
	return mt.store.Node(mt.root).Hash()
}

// Width returns the key width [in bits] the trie operates with.
func (mt *MTrie) Width() int { return mt.width }

// IsEmpty returns true if the trie holds no grants.
func (mt *MTrie) IsEmpty() bool { return mt.root == node.NoIndex }

// LeafCount returns the number of grants in the trie.
func (mt *MTrie) LeafCount() uint64 {
	if mt.IsEmpty() {
		return 0
	}
	return mt.store.Node(mt.root).LeafCount()
}

// NodeCount returns the number of nodes in the trie.
func (mt *MTrie) NodeCount() int {
	if mt.IsEmpty() {
		return 0
	}
	return mt.store.Len()
}

// MaxDepth returns the length of the longest branch from root to leaf.
func (mt *MTrie) MaxDepth() uint16 {
	if mt.IsEmpty() {
		return 0
	}
	return mt.store.Node(mt.root).MaxDepth()
}

// Root returns the index of the root node, node.NoIndex for an empty trie.
func (mt *MTrie) Root() node.Index { return mt.root }

// RootNode returns the trie's root node, nil for an empty trie.
func (mt *MTrie) RootNode() *node.Node {
	if mt.IsEmpty() {
		return nil
	}
	return mt.store.Node(mt.root)
}

// Store returns the node store backing the trie. It must not be modified.
func (mt *MTrie) Store() *node.Store { return mt.store }

// Get returns the grant stored under the given key.
func (mt *MTrie) Get(key airdrop.Key) (*airdrop.Grant, bool) {
	if mt.IsEmpty() || key.Width() != mt.width {
		return nil, false
	}
	i := mt.root
	for {
		n := mt.store.Node(i)
		if n.IsLeaf() {
			if n.Path() != key {
				return nil, false
			}
			return n.Grant().DeepCopy(), true
		}
		if key.Prefix(n.Bit()) != n.Path() {
			return nil, false
		}
		if key.Bit(n.Bit()) == 0 {
			i = n.LeftChild()
		} else {
			i = n.RightChild()
		}
	}
}

// Entries returns all (key, grant) pairs of the trie in ascending key order.
func (mt *MTrie) Entries() []airdrop.Entry {
	entries := make([]airdrop.Entry, 0, mt.LeafCount())
	if mt.IsEmpty() {
		return entries
	}
	var walk func(i node.Index)
	walk = func(i node.Index) {
		n := mt.store.Node(i)
		if n.IsLeaf() {
			entries = append(entries, airdrop.NewEntry(n.Path(), *n.Grant().DeepCopy()))
			return
		}
		walk(n.LeftChild())
		walk(n.RightChild())
	}
	walk(mt.root)
	return entries
}

// LeafDepths returns the number of forks above every leaf in ascending key
// order, which is the length of the leaf's inclusion proof.
func (mt *MTrie) LeafDepths() []int {
	depths := make([]int, 0, mt.LeafCount())
	if mt.IsEmpty() {
		return depths
	}
	var walk func(i node.Index, forks int)
	walk = func(i node.Index, forks int) {
		n := mt.store.Node(i)
		if n.IsLeaf() {
			depths = append(depths, forks)
			return
		}
		walk(n.LeftChild(), forks+1)
		walk(n.RightChild(), forks+1)
	}
	walk(mt.root, 0)
	return depths
}

// TotalAmount returns the sum of all granted amounts.
func (mt *MTrie) TotalAmount() *big.Int {
	total := new(big.Int)
	if mt.IsEmpty() {
		return total
	}
	for i := 0; i < mt.store.Len(); i++ {
		if n := mt.store.Node(node.Index(i)); n.IsLeaf() {
			total.Add(total, n.Grant().Amount)
		}
	}
	return total
}

// Equals compares two tries for structural equality: same key width, same
// fork positions, same leaf placement and the same grants.
func (mt *MTrie) Equals(o *MTrie) bool {
	if o == nil {
		return false
	}
	if mt.width != o.width || mt.IsEmpty() != o.IsEmpty() {
		return false
	}
	if mt.IsEmpty() {
		return true
	}
	return equalSubtries(mt.store, mt.root, o.store, o.root)
}

func equalSubtries(s1 *node.Store, i1 node.Index, s2 *node.Store, i2 node.Index) bool {
	n1, n2 := s1.Node(i1), s2.Node(i2)
	if n1.Kind() != n2.Kind() || n1.Depth() != n2.Depth() || n1.Bit() != n2.Bit() || n1.Path() != n2.Path() {
		return false
	}
	if n1.IsLeaf() {
		return n1.Grant().Equals(n2.Grant())
	}
	return equalSubtries(s1, n1.LeftChild(), s2, n2.LeftChild()) &&
		equalSubtries(s1, n1.RightChild(), s2, n2.RightChild())
}

// String returns the trie's string representation.
func (mt *MTrie) String() string {
	trieStr := fmt.Sprintf("Trie root hash: %v\n", mt.RootHash())
	if mt.IsEmpty() {
		return trieStr
	}
	return trieStr + mt.store.FmtStr(mt.root, "", "")
}

// IsAValidTrie verifies the cached hashes of all nodes of the trie.
func (mt *MTrie) IsAValidTrie() bool {
	if mt.IsEmpty() {
		return true
	}
	return mt.store.VerifyCachedHash(mt.root) == nil
}
