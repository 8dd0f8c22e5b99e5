package keycodec

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/xssnick/tonutils-go/address"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/bitutils"
)

const (
	TONCodecName = "ton"

	// TONKeyWidth is the width of a standard internal address serialized as a
	// dictionary key: addr_std tag (2 bits), anycast flag (1 bit),
	// workchain (8 bits) and account hash (256 bits).
	TONKeyWidth = 2 + 1 + 8 + 256

	tonHashSize = 32
	// base64 of flags, workchain, hash and CRC16
	tonFriendlyTextSize = 48

	workchainOffset = 3
	hashOffset      = workchainOffset + 8
)

// TONCodec encodes standard TON account addresses. It accepts the raw form
// "<workchain>:<hex hash>" as well as the user-friendly base64 / base64url form
// with its CRC16 checksum, parsed with tonutils-go.
type TONCodec struct{}

var _ Codec = TONCodec{}

func (TONCodec) Name() string { return TONCodecName }

func (TONCodec) Width() int { return TONKeyWidth }

// TONAddress is a parsed standard TON address.
type TONAddress struct {
	Workchain  int8
	Hash       [tonHashSize]byte
	Bounceable bool
	TestOnly   bool
}

// Raw returns the raw "<workchain>:<hex hash>" form.
func (a TONAddress) Raw() string {
	return fmt.Sprintf("%d:%s", a.Workchain, hex.EncodeToString(a.Hash[:]))
}

// Friendly returns the user-friendly url-safe base64 form.
func (a TONAddress) Friendly() string {
	addr := address.NewAddress(0, byte(a.Workchain), a.Hash[:])
	addr.SetBounce(a.Bounceable)
	addr.SetTestnetOnly(a.TestOnly)
	return addr.String()
}

// ParseTONAddress parses an address in raw or user-friendly form.
func ParseTONAddress(s string) (TONAddress, error) {
	if strings.Contains(s, ":") {
		return parseRawTONAddress(s)
	}
	return parseFriendlyTONAddress(s)
}

func parseRawTONAddress(s string) (TONAddress, error) {
	wcStr, hashStr, _ := strings.Cut(s, ":")
	// the parser truncates workchains to a byte, out of range values must not wrap
	if _, err := strconv.ParseInt(wcStr, 10, 8); err != nil {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "workchain is not a signed byte: %w", err)
	}
	if len(hashStr) != 2*tonHashSize {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "account hash must have %d hex characters, got %d", 2*tonHashSize, len(hashStr))
	}
	addr, err := address.ParseRawAddr(s)
	if err != nil {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "cannot parse raw address: %w", err)
	}
	a := fromTONUtils(addr)
	a.Bounceable = true
	return a, nil
}

func parseFriendlyTONAddress(s string) (TONAddress, error) {
	if len(s) != tonFriendlyTextSize {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "user-friendly address must have %d characters, got %d", tonFriendlyTextSize, len(s))
	}
	addr, err := address.ParseAddr(s)
	if err != nil {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "cannot parse user-friendly address: %w", err)
	}
	// Re-rendering yields the url-safe form with known flags only, so any
	// difference to the input means flag bits the parser ignored.
	if canonical := urlSafe.Replace(s); addr.String() != canonical {
		return TONAddress{}, airdrop.NewInvalidIdentifierErrorf(s, "unknown address flags, expected %s", addr.String())
	}
	return fromTONUtils(addr), nil
}

var urlSafe = strings.NewReplacer("+", "-", "/", "_")

func fromTONUtils(addr *address.Address) TONAddress {
	a := TONAddress{
		Workchain:  int8(addr.Workchain()),
		Bounceable: addr.IsBounceable(),
		TestOnly:   addr.IsTestnetOnly(),
	}
	copy(a.Hash[:], addr.Data())
	return a
}

// Encode converts an address into its 267-bit dictionary key. The bounceable
// and test-only flags of user-friendly addresses do not take part in the key.
func (c TONCodec) Encode(identifier string) (airdrop.Key, error) {
	a, err := ParseTONAddress(identifier)
	if err != nil {
		return airdrop.DummyKey, err
	}
	return c.KeyOf(a), nil
}

// KeyOf returns the dictionary key of a parsed address.
func (TONCodec) KeyOf(a TONAddress) airdrop.Key {
	b := bitutils.MakeBitVector(TONKeyWidth)
	// addr_std$10 anycast:nothing$0
	bitutils.SetBit(b, 0)
	writeBits(b, workchainOffset, []byte{byte(a.Workchain)}, 8)
	writeBits(b, hashOffset, a.Hash[:], 8*tonHashSize)

	k, err := airdrop.NewKey(TONKeyWidth, b)
	if err != nil {
		// all inputs are fixed-size, this cannot happen
		panic(fmt.Sprintf("building TON key failed: %v", err))
	}
	return k
}

// Decode returns the raw form of the address a key was built from.
func (c TONCodec) Decode(key airdrop.Key) (string, error) {
	a, err := c.AddressOf(key)
	if err != nil {
		return "", err
	}
	return a.Raw(), nil
}

// AddressOf recovers the address from its dictionary key.
func (c TONCodec) AddressOf(key airdrop.Key) (TONAddress, error) {
	var a TONAddress
	if err := checkWidth(c, key); err != nil {
		return a, err
	}
	if key.Bit(0) != 1 || key.Bit(1) != 0 {
		return a, fmt.Errorf("key %s does not hold a standard address", key)
	}
	if key.Bit(2) != 0 {
		return a, fmt.Errorf("key %s holds an anycast address, which is not supported", key)
	}
	a.Workchain = int8(key.Bits(workchainOffset, hashOffset)[0])
	copy(a.Hash[:], key.Bits(hashOffset, TONKeyWidth))
	a.Bounceable = true
	return a, nil
}

// writeBits writes the first n bits of src into dst starting at bit offset.
func writeBits(dst []byte, offset int, src []byte, n int) {
	for i := 0; i < n; i++ {
		bitutils.WriteBit(dst, offset+i, bitutils.ReadBit(src, i))
	}
}
