package airdrop

import (
	"fmt"
	"math/big"
)

// MaxAmountBitLen is the largest amount magnitude [in bits] a grant can hold.
const MaxAmountBitLen = 0xffff * 8

// Grant is the value stored per key: an allocated amount together with the
// window during which it can be claimed.
type Grant struct {
	// Amount in the smallest token unit. Must not be negative.
	Amount *big.Int
	// StartFrom is the Unix timestamp from which the grant becomes claimable.
	StartFrom int64
	// ExpireAt is the Unix timestamp after which the grant is no longer claimable.
	ExpireAt int64
}

// NewGrant returns a new grant
func NewGrant(amount *big.Int, startFrom, expireAt int64) *Grant {
	return &Grant{Amount: amount, StartFrom: startFrom, ExpireAt: expireAt}
}

// Validate checks the grant invariants: a non-negative amount and
// ExpireAt > StartFrom.
func (g *Grant) Validate() error {
	if g == nil {
		return NewInvalidGrantErrorf("grant is nil")
	}
	if g.Amount == nil {
		return NewInvalidGrantErrorf("grant amount is missing")
	}
	if g.Amount.Sign() < 0 {
		return NewInvalidGrantErrorf("grant amount %s is negative", g.Amount)
	}
	if g.Amount.BitLen() > MaxAmountBitLen {
		return NewInvalidGrantErrorf("grant amount exceeds %d bits", MaxAmountBitLen)
	}
	if g.ExpireAt <= g.StartFrom {
		return NewInvalidGrantErrorf("grant expires at %d, which is not after its start %d", g.ExpireAt, g.StartFrom)
	}
	return nil
}

// Equals compares this grant to another grant
func (g *Grant) Equals(other *Grant) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.StartFrom != other.StartFrom || g.ExpireAt != other.ExpireAt {
		return false
	}
	if g.Amount == nil || other.Amount == nil {
		return g.Amount == other.Amount
	}
	return g.Amount.Cmp(other.Amount) == 0
}

// DeepCopy returns a copy of the grant that shares no memory with the original.
func (g *Grant) DeepCopy() *Grant {
	if g == nil {
		return nil
	}
	c := &Grant{StartFrom: g.StartFrom, ExpireAt: g.ExpireAt}
	if g.Amount != nil {
		c.Amount = new(big.Int).Set(g.Amount)
	}
	return c
}

func (g *Grant) String() string {
	if g == nil {
		return "<nil>"
	}
	return fmt.Sprintf("amount: %v, start_from: %d, expire_at: %d", g.Amount, g.StartFrom, g.ExpireAt)
}

// Entry is a (key, grant) pair handed to the trie builder.
type Entry struct {
	Key   Key
	Grant Grant
}

// NewEntry returns a new entry
func NewEntry(key Key, grant Grant) Entry {
	return Entry{Key: key, Grant: grant}
}
