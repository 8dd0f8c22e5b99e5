package trie_test

import (
	"encoding/hex"
	"math/big"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	"github.com/jettonkit/airdrop/airdrop/common/utils"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/node"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/trie"
)

const (
	// ReferenceImplKeyWidth is the key width in reference implementation: 16 bits.
	// Please do NOT CHANGE.
	ReferenceImplKeyWidth = 16
)

// Test_EmptyTrie checks the root hash of an empty trie.
// The expected value is coming from a reference implementation in python and is hard-coded here.
func Test_EmptyTrie(t *testing.T) {
	emptyTrie, err := trie.NewEmptyMTrie(ReferenceImplKeyWidth)
	require.NoError(t, err)

	expectedRootHashHex := "0a1e2736777f80a62beb2df72b649878481c0ca10194b832b5136befbae54017"
	require.Equal(t, expectedRootHashHex, emptyTrie.RootHash().String())
	require.True(t, emptyTrie.IsEmpty())
	require.Equal(t, uint64(0), emptyTrie.LeafCount())
	require.Equal(t, 0, emptyTrie.NodeCount())
	require.Nil(t, emptyTrie.RootNode())
	require.Equal(t, 0, emptyTrie.TotalAmount().Sign())
	require.Empty(t, emptyTrie.Entries())

	// building from no entries gives the same trie, independent of the width
	built, err := trie.Build(keycodec.TONKeyWidth, nil)
	require.NoError(t, err)
	require.Equal(t, expectedRootHashHex, built.RootHash().String())
}

func Test_InvalidWidth(t *testing.T) {
	for _, width := range []int{-1, 0, airdrop.MaxKeyWidth + 1} {
		_, err := trie.NewEmptyMTrie(width)
		require.Error(t, err)
		_, err = trie.Build(width, nil)
		require.Error(t, err)
	}
}

// Test_TrieWithSingleGrant checks the root hash of a trie holding a single
// grant. The root is a leaf at depth 0.
// The expected value is coming from a reference implementation in python and is hard-coded here.
func Test_TrieWithSingleGrant(t *testing.T) {
	key := utils.KeyByUint16(ReferenceImplKeyWidth, 0x1234)
	mt, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{utils.EntryFixture(key, 100)})
	require.NoError(t, err)

	expectedRootHashHex := "de1135eee5ca3552b07d1e605ed2f0efd05515cd6425ca71fda4ecb366888def"
	require.Equal(t, expectedRootHashHex, mt.RootHash().String())

	root := mt.RootNode()
	require.True(t, root.IsLeaf())
	require.Equal(t, 0, root.Depth())
	require.Equal(t, ReferenceImplKeyWidth, root.SuffixLen())
	require.Equal(t, uint64(1), mt.LeafCount())
	require.Equal(t, 1, mt.NodeCount())
	require.Equal(t, uint16(0), mt.MaxDepth())
}

// Test_TrieWithThreeGrants tests the root hash and the shape of a trie holding
// the keys 0x0000, 0x4000 and 0x8000.
// The expected value is coming from a reference implementation in python and is hard-coded here.
func Test_TrieWithThreeGrants(t *testing.T) {
	entries := []airdrop.Entry{
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x0000), 100),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x8000), 250),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x4000), 75),
	}
	mt, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)

	expectedRootHashHex := "168dcd9275e37617aa720f23c3f6596f32700d10d44fb9dbb7b91d54578d6eac"
	require.Equal(t, expectedRootHashHex, mt.RootHash().String())

	require.Equal(t, uint64(3), mt.LeafCount())
	require.Equal(t, 5, mt.NodeCount())
	require.Equal(t, uint16(2), mt.MaxDepth())
	require.Equal(t, "425", mt.TotalAmount().String())

	// root forks at bit 0 with an empty prefix
	store := mt.Store()
	root := mt.RootNode()
	require.Equal(t, node.KindFork, root.Kind())
	require.Equal(t, 0, root.Bit())
	require.Equal(t, 0, root.PrefixLen())

	// 0x8000 is alone on the 1-branch and keeps 15 suffix bits
	right := store.Node(root.RightChild())
	require.True(t, right.IsLeaf())
	require.Equal(t, 1, right.Depth())
	require.Equal(t, 15, right.SuffixLen())

	// 0x0000 and 0x4000 split at bit 1
	left := store.Node(root.LeftChild())
	require.Equal(t, node.KindFork, left.Kind())
	require.Equal(t, 1, left.Depth())
	require.Equal(t, 1, left.Bit())
	require.Equal(t, 0, left.PrefixLen())
	require.Equal(t, 14, store.Node(left.LeftChild()).SuffixLen())
	require.Equal(t, 14, store.Node(left.RightChild()).SuffixLen())

	require.True(t, mt.IsAValidTrie())
}

// Test_TrieWithTONAddresses tests the root hash of a trie keyed by 267-bit TON
// addresses, in both the hex and the decimal form embedded into the minter.
// The expected value is coming from a reference implementation in python and is hard-coded here.
func Test_TrieWithTONAddresses(t *testing.T) {
	codec := keycodec.TONCodec{}
	nano := big.NewInt(1_000_000_000)
	grant := func(tokens int64) airdrop.Grant {
		return *airdrop.NewGrant(new(big.Int).Mul(big.NewInt(tokens), nano), utils.FixtureStartFrom, utils.FixtureExpireAt)
	}
	var entries []airdrop.Entry
	for _, e := range []struct {
		address string
		tokens  int64
	}{
		{"0:1111111111111111111111111111111111111111111111111111111111111111", 100},
		{"0:2222222222222222222222222222222222222222222222222222222222222222", 250},
		{"-1:3333333333333333333333333333333333333333333333333333333333333333", 75},
	} {
		key, err := codec.Encode(e.address)
		require.NoError(t, err)
		entries = append(entries, airdrop.NewEntry(key, grant(e.tokens)))
	}

	mt, err := trie.Build(codec.Width(), entries)
	require.NoError(t, err)

	require.Equal(t, "80542b28097d5de6bc0e5344894f17e4efeace2ceed956dcf07af8b83a603871", mt.RootHash().String())
	require.Equal(t, "58044757626589644211754877244395494855837276017129865889032876196817748899953", mt.RootHash().BigInt().String())
}

// Test_TrieWithManyGrants tests the root hash of a trie holding 1024 grants.
// Key i is (i * 7919) mod 2^16 and carries amount i; the grant of key 0 is zero.
// The expected value is coming from a reference implementation in python and is hard-coded here.
func Test_TrieWithManyGrants(t *testing.T) {
	entries := make([]airdrop.Entry, 0, 1024)
	for i := 0; i < 1024; i++ {
		key := utils.KeyByUint16(ReferenceImplKeyWidth, uint16(i*7919))
		entries = append(entries, utils.EntryFixture(key, int64(i)))
	}
	mt, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)

	require.Equal(t, "817567d209f7f3c596cd02f7ae31a092db5f3af562f2ced962d18f58cb834eb8", mt.RootHash().String())
	require.Equal(t, uint64(1024), mt.LeafCount())
	require.Equal(t, 2*1024-1, mt.NodeCount())
	require.Equal(t, "523776", mt.TotalAmount().String())
}

// Test_OrderIndependence checks that the trie only depends on the set of entries,
// never on the order they are supplied in.
func Test_OrderIndependence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		width := rapid.IntRange(8, 64).Draw(t, "width")
		n := rapid.IntRange(1, 200).Draw(t, "n")
		entries := utils.RandomEntries(n, width)

		reference, err := trie.Build(width, entries)
		require.NoError(t, err)

		permutation := rapid.Permutation(entries).Draw(t, "permutation")
		permuted, err := trie.Build(width, permutation)
		require.NoError(t, err)

		require.Equal(t, reference.RootHash(), permuted.RootHash())
		require.True(t, reference.Equals(permuted))
	})
}

// Test_BuildDoesNotRetainInput checks that modifying the input after the build
// leaves the trie untouched.
func Test_BuildDoesNotRetainInput(t *testing.T) {
	entries := utils.RandomEntries(50, 32)
	mt, err := trie.Build(32, entries)
	require.NoError(t, err)
	rootHash := mt.RootHash()

	for i := range entries {
		entries[i].Grant.Amount.Add(entries[i].Grant.Amount, big.NewInt(1))
	}
	require.Equal(t, rootHash, mt.RootHash())
	require.True(t, mt.IsAValidTrie())
}

func Test_DuplicateKeys(t *testing.T) {
	key := utils.KeyByUint16(ReferenceImplKeyWidth, 0xabcd)
	entries := []airdrop.Entry{
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x0001), 1),
		utils.EntryFixture(key, 2),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0xffff), 3),
		utils.EntryFixture(key, 4),
	}
	mt, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.Nil(t, mt)
	require.True(t, airdrop.IsDuplicateKeyError(err))

	var dupErr airdrop.DuplicateKeyError
	require.ErrorAs(t, err, &dupErr)
	require.Equal(t, key, dupErr.Key)

	// identical grants under the same key are still rejected
	entries[3] = utils.EntryFixture(key, 2)
	_, err = trie.Build(ReferenceImplKeyWidth, entries)
	require.True(t, airdrop.IsDuplicateKeyError(err))
}

func Test_InvalidEntries(t *testing.T) {
	key := utils.KeyByUint16(ReferenceImplKeyWidth, 0x0100)

	t.Run("negative amount", func(t *testing.T) {
		entry := utils.EntryFixture(key, -1)
		_, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{entry})
		require.True(t, airdrop.IsInvalidGrantError(err))
	})

	t.Run("empty claim window", func(t *testing.T) {
		entry := airdrop.NewEntry(key, *airdrop.NewGrant(big.NewInt(1), utils.FixtureStartFrom, utils.FixtureStartFrom))
		_, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{entry})
		require.True(t, airdrop.IsInvalidGrantError(err))
	})

	t.Run("missing amount", func(t *testing.T) {
		entry := airdrop.NewEntry(key, airdrop.Grant{StartFrom: 1, ExpireAt: 2})
		_, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{entry})
		require.True(t, airdrop.IsInvalidGrantError(err))
	})

	t.Run("key width mismatch", func(t *testing.T) {
		entry := utils.EntryFixture(utils.KeyByUint16(24, 0x0100), 1)
		_, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{entry})
		require.Error(t, err)
		require.False(t, airdrop.IsInvalidGrantError(err))
	})
}

func Test_Get(t *testing.T) {
	const width = 40
	entries := utils.RandomEntries(300, width)
	mt, err := trie.Build(width, entries)
	require.NoError(t, err)

	for _, e := range entries {
		grant, ok := mt.Get(e.Key)
		require.True(t, ok)
		require.True(t, e.Grant.Equals(grant))
	}

	present := make(map[airdrop.Key]struct{}, len(entries))
	for _, e := range entries {
		present[e.Key] = struct{}{}
	}
	for _, key := range utils.RandomKeys(300, width) {
		if _, ok := present[key]; ok {
			continue
		}
		_, ok := mt.Get(key)
		require.False(t, ok)
	}

	// keys of a different width are never found
	_, ok := mt.Get(utils.KeyByUint16(48, 0))
	require.False(t, ok)

	// the returned grant is a copy
	grant, ok := mt.Get(entries[0].Key)
	require.True(t, ok)
	grant.Amount.SetInt64(-5)
	again, _ := mt.Get(entries[0].Key)
	require.True(t, entries[0].Grant.Equals(again))
}

func Test_Entries(t *testing.T) {
	const width = 24
	entries := utils.RandomEntries(200, width)
	mt, err := trie.Build(width, entries)
	require.NoError(t, err)

	listed := mt.Entries()
	require.Len(t, listed, len(entries))
	for i := 1; i < len(listed); i++ {
		require.Equal(t, -1, listed[i-1].Key.Compare(listed[i].Key))
	}

	// the listed entries rebuild the very same trie
	rebuilt, err := trie.Build(width, listed)
	require.NoError(t, err)
	require.True(t, mt.Equals(rebuilt))

	byKey := func(entries []airdrop.Entry) map[string]string {
		m := make(map[string]string, len(entries))
		for _, e := range entries {
			m[e.Key.String()] = e.Grant.String()
		}
		return m
	}
	if diff := cmp.Diff(byKey(entries), byKey(listed)); diff != "" {
		t.Fatalf("entries differ (-built +listed):\n%s", diff)
	}
}

func Test_Equals(t *testing.T) {
	entries := []airdrop.Entry{
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x0f00), 1),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0xf000), 2),
	}
	mt1, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)
	mt2, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)
	require.True(t, mt1.Equals(mt2))
	require.False(t, mt1.Equals(nil))

	entries[1] = utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0xf000), 3)
	mt3, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)
	require.False(t, mt1.Equals(mt3))
	require.NotEqual(t, mt1.RootHash(), mt3.RootHash())

	empty16, err := trie.NewEmptyMTrie(16)
	require.NoError(t, err)
	empty32, err := trie.NewEmptyMTrie(32)
	require.NoError(t, err)
	require.False(t, empty16.Equals(empty32))
	require.Equal(t, empty16.RootHash(), empty32.RootHash())
}

// Test_GrantChangesRootHash checks that every component of a grant is committed to.
func Test_GrantChangesRootHash(t *testing.T) {
	key := utils.KeyByUint16(ReferenceImplKeyWidth, 0x0042)
	build := func(g *airdrop.Grant) hash.Hash {
		mt, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{airdrop.NewEntry(key, *g)})
		require.NoError(t, err)
		return mt.RootHash()
	}
	reference := build(utils.GrantFixture(10))
	require.NotEqual(t, reference, build(utils.GrantFixture(11)))
	require.NotEqual(t, reference, build(airdrop.NewGrant(big.NewInt(10), utils.FixtureStartFrom+1, utils.FixtureExpireAt)))
	require.NotEqual(t, reference, build(airdrop.NewGrant(big.NewInt(10), utils.FixtureStartFrom, utils.FixtureExpireAt+1)))
}

// Test_ClaimScenario builds the same three grants in two orders, then changes
// one amount by a single token.
func Test_ClaimScenario(t *testing.T) {
	codec := keycodec.TONCodec{}
	keyOf := func(address string) airdrop.Key {
		key, err := codec.Encode(address)
		require.NoError(t, err)
		return key
	}
	a := keyOf("0:1111111111111111111111111111111111111111111111111111111111111111")
	b := keyOf("0:2222222222222222222222222222222222222222222222222222222222222222")
	c := keyOf("-1:3333333333333333333333333333333333333333333333333333333333333333")
	entry := func(key airdrop.Key, amount int64) airdrop.Entry {
		return airdrop.NewEntry(key, *airdrop.NewGrant(big.NewInt(amount), 1000, 2000))
	}

	build := func(entries ...airdrop.Entry) hash.Hash {
		mt, err := trie.Build(codec.Width(), entries)
		require.NoError(t, err)
		return mt.RootHash()
	}
	first := build(entry(a, 100), entry(b, 250), entry(c, 75))
	second := build(entry(c, 75), entry(a, 100), entry(b, 250))
	changed := build(entry(a, 100), entry(b, 251), entry(c, 75))

	require.Equal(t, first, second)
	require.NotEqual(t, first, changed)
}

// Test_ParallelHashing builds a trie large enough for sibling subtries to be
// hashed concurrently and checks every cached hash.
func Test_ParallelHashing(t *testing.T) {
	const width = 64
	entries := utils.RandomEntries(20_000, width)
	mt, err := trie.Build(width, entries)
	require.NoError(t, err)
	require.True(t, mt.IsAValidTrie())
	require.Equal(t, uint64(len(entries)), mt.LeafCount())

	// rehashing the same store gives the same root
	rehashed, err := trie.NewMTrie(mt.Store(), mt.Root(), width)
	require.NoError(t, err)
	require.Equal(t, mt.RootHash(), rehashed.RootHash())

	// and so does a build from a shuffled copy
	rand.Shuffle(len(entries), func(i, j int) { entries[i], entries[j] = entries[j], entries[i] })
	shuffled, err := trie.Build(width, entries)
	require.NoError(t, err)
	require.Equal(t, mt.RootHash(), shuffled.RootHash())
}

func Test_String(t *testing.T) {
	mt, err := trie.Build(ReferenceImplKeyWidth, []airdrop.Entry{
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x0000), 100),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x8000), 250),
	})
	require.NoError(t, err)
	s := mt.String()
	require.Contains(t, s, mt.RootHash().String())
	require.Contains(t, s, "fork at bit 0")
	require.Contains(t, s, hex.EncodeToString([]byte{0x80, 0x00}))
}

// Test_LeafDepths checks that every leaf depth is the length of its inclusion proof.
func Test_LeafDepths(t *testing.T) {
	emptyTrie, err := trie.NewEmptyMTrie(ReferenceImplKeyWidth)
	require.NoError(t, err)
	require.Empty(t, emptyTrie.LeafDepths())

	entries := []airdrop.Entry{
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x0000), 100),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x8000), 250),
		utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, 0x4000), 75),
	}
	mt, err := trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 1}, mt.LeafDepths())

	entries = entries[:0]
	for i := 0; i < 300; i++ {
		entries = append(entries, utils.EntryFixture(utils.KeyByUint16(ReferenceImplKeyWidth, uint16(i*7919)), 1))
	}
	mt, err = trie.Build(ReferenceImplKeyWidth, entries)
	require.NoError(t, err)

	depths := mt.LeafDepths()
	require.Len(t, depths, 300)
	maxDepth := 0
	for i, e := range mt.Entries() {
		proof, err := mt.Prove(e.Key)
		require.NoError(t, err)
		require.Equal(t, len(proof.Bits), depths[i])
		if depths[i] > maxDepth {
			maxDepth = depths[i]
		}
	}
	require.Equal(t, int(mt.MaxDepth()), maxDepth)
}
