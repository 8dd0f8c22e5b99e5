// Package encoding provides the canonical byte serialization of grants.
// The same encoding is hashed into leaf nodes and written by the flattener.
package encoding

import (
	"fmt"
	"math/big"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/utils"
)

// MaxAmountByteSize is the largest encodable amount magnitude in bytes.
const MaxAmountByteSize = airdrop.MaxAmountBitLen / 8

// Grant encoding:
//
//	amount length (2 bytes) | amount (big endian, no leading zero bytes) |
//	start_from (8 bytes)    | expire_at (8 bytes)
//
// A zero amount is encoded with length 0.
const encodedGrantFixedSize = 2 + 8 + 8

// EncodedGrantLength returns the number of bytes EncodeGrant produces.
func EncodedGrantLength(g *airdrop.Grant) int {
	return encodedGrantFixedSize + len(g.Amount.Bytes())
}

// EncodeGrant encodes a grant into a byte slice.
// The grant must satisfy its invariants (see airdrop.Grant.Validate).
func EncodeGrant(g *airdrop.Grant) []byte {
	buffer := make([]byte, 0, EncodedGrantLength(g))
	return AppendGrant(buffer, g)
}

// AppendGrant appends the encoded grant to the buffer.
func AppendGrant(buffer []byte, g *airdrop.Grant) []byte {
	buffer = utils.AppendShortData(buffer, g.Amount.Bytes())
	buffer = utils.AppendUint64(buffer, uint64(g.StartFrom))
	buffer = utils.AppendUint64(buffer, uint64(g.ExpireAt))
	return buffer
}

// DecodeGrant decodes a grant from the beginning of the input and returns the
// remaining bytes. Non-canonical encodings (leading zero amount bytes) and
// grants violating their invariants are rejected.
func DecodeGrant(input []byte) (*airdrop.Grant, []byte, error) {
	amountBytes, rest, err := utils.ReadShortData(input)
	if err != nil {
		return nil, rest, fmt.Errorf("error decoding grant amount: %w", err)
	}
	if len(amountBytes) > 0 && amountBytes[0] == 0 {
		return nil, rest, fmt.Errorf("error decoding grant amount: amount has leading zero bytes")
	}

	startFrom, rest, err := utils.ReadUint64(rest)
	if err != nil {
		return nil, rest, fmt.Errorf("error decoding grant start: %w", err)
	}

	expireAt, rest, err := utils.ReadUint64(rest)
	if err != nil {
		return nil, rest, fmt.Errorf("error decoding grant expiry: %w", err)
	}

	g := &airdrop.Grant{
		Amount:    new(big.Int).SetBytes(amountBytes),
		StartFrom: int64(startFrom),
		ExpireAt:  int64(expireAt),
	}
	if err := g.Validate(); err != nil {
		return nil, rest, fmt.Errorf("error decoding grant: %w", err)
	}
	return g, rest, nil
}
