package utils

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/bitutils"
)

const (
	// FixtureStartFrom is the claim window start of all grant fixtures.
	FixtureStartFrom = int64(1_700_000_000)
	// FixtureExpireAt is the claim window end of all grant fixtures (30 days later).
	FixtureExpireAt = FixtureStartFrom + 30*24*60*60
)

// KeyByUint16 returns a key of the given width (at least 16 bits) whose first
// two bytes hold inp (big endian); all other bits are zero.
func KeyByUint16(width int, inp uint16) airdrop.Key {
	b := bitutils.MakeBitVector(width)
	binary.BigEndian.PutUint16(b, inp)
	bitutils.ClearTrailingBits(b, width)
	return mustKey(width, b)
}

// KeyByBits returns the key spelled out by a string of '0' and '1' characters.
func KeyByBits(bits string) airdrop.Key {
	b := bitutils.MakeBitVector(len(bits))
	for i, c := range bits {
		switch c {
		case '1':
			bitutils.SetBit(b, i)
		case '0':
		default:
			panic(fmt.Sprintf("invalid bit %q in %q", c, bits))
		}
	}
	return mustKey(len(bits), b)
}

// GrantFixture returns a grant of the given amount within the fixture claim window.
func GrantFixture(amount int64) *airdrop.Grant {
	return airdrop.NewGrant(big.NewInt(amount), FixtureStartFrom, FixtureExpireAt)
}

// EntryFixture returns an entry with a fixture grant of the given amount.
func EntryFixture(key airdrop.Key, amount int64) airdrop.Entry {
	return airdrop.NewEntry(key, *GrantFixture(amount))
}

// RandomKey returns a random key of the given width.
func RandomKey(width int) airdrop.Key {
	b := bitutils.MakeBitVector(width)
	rand.Read(b)
	bitutils.ClearTrailingBits(b, width)
	return mustKey(width, b)
}

// RandomKeys generates n random (no repetition) keys of the given width.
// The width must allow for n distinct keys.
func RandomKeys(n int, width int) []airdrop.Key {
	keys := make([]airdrop.Key, 0, n)
	alreadySelected := make(map[airdrop.Key]struct{}, n)
	for len(keys) < n {
		key := RandomKey(width)
		// deduplicate
		if _, found := alreadySelected[key]; !found {
			keys = append(keys, key)
			alreadySelected[key] = struct{}{}
		}
	}
	return keys
}

// RandomGrant returns a grant with a random amount of up to 12 bytes and a
// random claim window.
func RandomGrant() *airdrop.Grant {
	amount := make([]byte, rand.Intn(13))
	rand.Read(amount)
	start := rand.Int63n(1 << 40)
	return airdrop.NewGrant(new(big.Int).SetBytes(amount), start, start+1+rand.Int63n(1<<30))
}

// RandomEntries returns n entries with distinct random keys and random grants.
func RandomEntries(n int, width int) []airdrop.Entry {
	keys := RandomKeys(n, width)
	entries := make([]airdrop.Entry, 0, n)
	for _, key := range keys {
		entries = append(entries, airdrop.NewEntry(key, *RandomGrant()))
	}
	return entries
}

func mustKey(width int, b []byte) airdrop.Key {
	key, err := airdrop.NewKey(width, b)
	if err != nil {
		panic(err)
	}
	return key
}
