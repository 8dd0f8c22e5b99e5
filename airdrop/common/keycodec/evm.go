package keycodec

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/jettonkit/airdrop/airdrop"
)

const (
	EVMCodecName = "evm"

	// EVMKeyWidth is the width of a 20-byte account address.
	EVMKeyWidth = common.AddressLength * 8
)

// EVMCodec encodes hex account addresses. Mixed-case input must carry a valid
// EIP-55 checksum, all-lower and all-upper case input is accepted as is.
type EVMCodec struct{}

var _ Codec = EVMCodec{}

func (EVMCodec) Name() string { return EVMCodecName }

func (EVMCodec) Width() int { return EVMKeyWidth }

func (EVMCodec) Encode(identifier string) (airdrop.Key, error) {
	if !common.IsHexAddress(identifier) {
		return airdrop.DummyKey, airdrop.NewInvalidIdentifierErrorf(identifier, "not a %d-byte hex address", common.AddressLength)
	}
	address := common.HexToAddress(identifier)

	digits := strings.TrimPrefix(strings.TrimPrefix(identifier, "0x"), "0X")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) {
		if address.Hex()[2:] != digits {
			return airdrop.DummyKey, airdrop.NewInvalidIdentifierErrorf(identifier, "invalid checksum, expected %s", address.Hex())
		}
	}

	return airdrop.NewKey(EVMKeyWidth, address.Bytes())
}

// Decode returns the checksummed hex form of the address.
func (c EVMCodec) Decode(key airdrop.Key) (string, error) {
	if err := checkWidth(c, key); err != nil {
		return "", err
	}
	return common.BytesToAddress(key.Bytes()).Hex(), nil
}
