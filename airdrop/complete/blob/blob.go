// Package blob stores a built grant trie together with its build metadata in a
// single self-checking file. The file is what gets published next to the
// minter contract: claimants fetch it to derive their inclusion proofs.
package blob

import (
	"bytes"
	"fmt"
	"hash/crc32"
	"math/big"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/common/utils"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/flattener"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/trie"
	utilsio "github.com/jettonkit/airdrop/utils/io"
)

// Blob layout (all integers big endian):
//
//	magic "AIRDROP1" (8 bytes) | metadata length (4 bytes) | metadata (CBOR) |
//	trie length (8 bytes) | serialized trie | CRC32 of all preceding bytes (4 bytes)
const Magic = "AIRDROP1"

const (
	encMagicSize     = len(Magic)
	encMetaLenSize   = 4
	encTrieLenSize   = 8
	encCRC32SumSize  = crc32.Size
	maxMetadataBytes = 1 << 20
)

var crc32Table = crc32.MakeTable(crc32.Castagnoli)

var encMode = func() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

var decMode = func() cbor.DecMode {
	mode, err := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxNestedLevels:   4,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return mode
}()

// Metadata describes how a trie was built. It is informational except for the
// fields that must agree with the trie: width, leaf count, total supply and root.
type Metadata struct {
	BuildID     string `cbor:"1,keyasint"`
	CreatedAt   int64  `cbor:"2,keyasint"`
	Codec       string `cbor:"3,keyasint"`
	Width       uint16 `cbor:"4,keyasint"`
	LeafCount   uint64 `cbor:"5,keyasint"`
	TotalSupply string `cbor:"6,keyasint"`
	RootHash    []byte `cbor:"7,keyasint"`
	Network     string `cbor:"8,keyasint,omitempty"`
}

// Blob is a trie together with its metadata.
type Blob struct {
	Metadata Metadata
	Trie     *trie.MTrie
}

// New wraps a trie into a blob with freshly generated metadata.
func New(t *trie.MTrie, codec string, network string, createdAt time.Time) *Blob {
	rootHash := t.RootHash()
	return &Blob{
		Metadata: Metadata{
			BuildID:     uuid.New().String(),
			CreatedAt:   createdAt.Unix(),
			Codec:       codec,
			Width:       uint16(t.Width()),
			LeafCount:   t.LeafCount(),
			TotalSupply: t.TotalAmount().String(),
			RootHash:    rootHash[:],
			Network:     network,
		},
		Trie: t,
	}
}

// TotalSupplyInt parses the metadata's total supply.
func (m Metadata) TotalSupplyInt() (*big.Int, error) {
	supply, ok := new(big.Int).SetString(m.TotalSupply, 10)
	if !ok || supply.Sign() < 0 {
		return nil, fmt.Errorf("invalid total supply %q", m.TotalSupply)
	}
	return supply, nil
}

// Root returns the metadata's root hash.
func (m Metadata) Root() (hash.Hash, error) {
	return hash.ToHash(m.RootHash)
}

// validate checks that the metadata agrees with the trie it describes.
func (b *Blob) validate() error {
	m, t := b.Metadata, b.Trie
	if _, err := uuid.Parse(m.BuildID); err != nil {
		return fmt.Errorf("invalid build id %q: %w", m.BuildID, err)
	}
	if int(m.Width) != t.Width() {
		return fmt.Errorf("metadata declares key width %d, trie has %d", m.Width, t.Width())
	}
	if m.LeafCount != t.LeafCount() {
		return fmt.Errorf("metadata declares %d grants, trie holds %d", m.LeafCount, t.LeafCount())
	}
	supply, err := m.TotalSupplyInt()
	if err != nil {
		return err
	}
	if total := t.TotalAmount(); supply.Cmp(total) != 0 {
		return fmt.Errorf("metadata declares total supply %v, grants sum up to %v", supply, total)
	}
	root, err := m.Root()
	if err != nil {
		return fmt.Errorf("invalid root hash in metadata: %w", err)
	}
	if root != t.RootHash() {
		return fmt.Errorf("metadata declares root hash %v, trie has %v", root, t.RootHash())
	}
	return nil
}

// Encode serializes the blob.
func Encode(b *Blob) ([]byte, error) {
	if err := b.validate(); err != nil {
		return nil, fmt.Errorf("inconsistent blob: %w", err)
	}

	encMeta, err := encMode.Marshal(b.Metadata)
	if err != nil {
		return nil, fmt.Errorf("cannot encode metadata: %w", err)
	}
	encTrie := flattener.EncodeTrie(b.Trie)

	buf := make([]byte, 0, encMagicSize+encMetaLenSize+len(encMeta)+encTrieLenSize+len(encTrie)+encCRC32SumSize)
	buf = append(buf, Magic...)
	buf = utils.AppendUint32(buf, uint32(len(encMeta)))
	buf = append(buf, encMeta...)
	buf = utils.AppendUint64(buf, uint64(len(encTrie)))
	buf = append(buf, encTrie...)
	return utils.AppendUint32(buf, crc32.Checksum(buf, crc32Table)), nil
}

// Decode reconstructs a blob. Any defect of the input, including a checksum
// mismatch and metadata contradicting the trie, is an airdrop.MalformedInputError.
func Decode(data []byte) (*Blob, error) {
	if len(data) < encMagicSize+encCRC32SumSize {
		return nil, airdrop.NewMalformedInputErrorf("blob of %d bytes is too short", len(data))
	}
	body, encSum := data[:len(data)-encCRC32SumSize], data[len(data)-encCRC32SumSize:]
	expectedSum, _, _ := utils.ReadUint32(encSum)
	if sum := crc32.Checksum(body, crc32Table); sum != expectedSum {
		return nil, airdrop.NewMalformedInputErrorf("blob checksum mismatch: expected %08x, got %08x", expectedSum, sum)
	}

	magic, rest, _ := utils.ReadSlice(body, encMagicSize)
	if !bytes.Equal(magic, []byte(Magic)) {
		return nil, airdrop.NewMalformedInputErrorf("not an airdrop blob: magic %x", magic)
	}

	metaLen, rest, err := utils.ReadUint32(rest)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read metadata length: %w", err)
	}
	if metaLen > maxMetadataBytes {
		return nil, airdrop.NewMalformedInputErrorf("metadata length %d exceeds %d bytes", metaLen, maxMetadataBytes)
	}
	encMeta, rest, err := utils.ReadSlice(rest, int(metaLen))
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read metadata: %w", err)
	}
	var meta Metadata
	if err := decMode.Unmarshal(encMeta, &meta); err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot decode metadata: %w", err)
	}

	trieLen, rest, err := utils.ReadUint64(rest)
	if err != nil {
		return nil, airdrop.NewMalformedInputErrorf("cannot read trie length: %w", err)
	}
	if trieLen != uint64(len(rest)) {
		return nil, airdrop.NewMalformedInputErrorf("trie length %d does not match the remaining %d bytes", trieLen, len(rest))
	}
	t, err := flattener.DecodeTrie(rest)
	if err != nil {
		return nil, err
	}

	b := &Blob{Metadata: meta, Trie: t}
	if err := b.validate(); err != nil {
		return nil, airdrop.NewMalformedInputErrorf("inconsistent blob: %w", err)
	}
	return b, nil
}

// WriteFile atomically writes the blob to path. The target is either replaced
// by the complete blob or left untouched.
func WriteFile(path string, b *Blob, logger zerolog.Logger) (err error) {
	encoded, err := Encode(b)
	if err != nil {
		return err
	}

	lock := utilsio.NewFileLock(path)
	if err := lock.Lock(); err != nil {
		return err
	}
	defer func() {
		unlockErr := lock.Unlock()
		// Return unlock error if there isn't any prior error to return.
		if err == nil {
			err = unlockErr
		}
	}()

	writer, err := utilsio.NewSyncOnCloseRenameFile(path, logger)
	if err != nil {
		return fmt.Errorf("could not create writer for %s: %w", path, err)
	}
	if _, err := writer.Write(encoded); err != nil {
		writer.Abort()
		return fmt.Errorf("could not write blob: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("could not store blob: %w", err)
	}

	logger.Info().
		Str("file", path).
		Str("build_id", b.Metadata.BuildID).
		Str("root_hash", b.Trie.RootHash().String()).
		Uint64("grants", b.Trie.LeafCount()).
		Int("bytes", len(encoded)).
		Msg("airdrop blob stored")
	return nil
}

// ReadFile reads and fully validates the blob stored at path.
func ReadFile(path string, logger zerolog.Logger) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read blob %s: %w", path, err)
	}
	b, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("could not decode blob %s: %w", path, err)
	}

	logger.Debug().
		Str("file", path).
		Str("build_id", b.Metadata.BuildID).
		Str("root_hash", b.Trie.RootHash().String()).
		Msg("airdrop blob loaded")
	return b, nil
}
