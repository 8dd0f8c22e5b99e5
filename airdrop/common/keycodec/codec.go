// Package keycodec maps external account identifiers onto the fixed-width keys
// the grant trie is addressed by.
package keycodec

import (
	"fmt"
	"sort"

	"github.com/jettonkit/airdrop/airdrop"
)

// Codec converts between an identifier domain and trie keys.
//
// Encode is total, deterministic and injective over the identifiers it accepts,
// and fails with an airdrop.InvalidIdentifierError on anything else.
// Decode is its left inverse: Decode(Encode(id)) is the canonical form of id.
type Codec interface {
	// Name returns the codec name used in configuration and blob metadata.
	Name() string
	// Width returns the width [in bits] of every key the codec produces.
	Width() int
	Encode(identifier string) (airdrop.Key, error)
	Decode(key airdrop.Key) (string, error)
}

var codecs = map[string]Codec{
	TONCodecName: TONCodec{},
	EVMCodecName: EVMCodec{},
}

// ByName returns the codec registered under the given name.
func ByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, fmt.Errorf("unsupported key codec %q (supported: %v)", name, Names())
	}
	return c, nil
}

// Names returns the names of all supported codecs, sorted.
func Names() []string {
	names := make([]string, 0, len(codecs))
	for name := range codecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkWidth(c Codec, key airdrop.Key) error {
	if key.Width() != c.Width() {
		return fmt.Errorf("%s codec expects %d-bit keys, got %d bits", c.Name(), c.Width(), key.Width())
	}
	return nil
}
