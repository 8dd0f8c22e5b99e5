package module

import (
	"time"
)

// AirdropMetrics collects statistics about preparing an airdrop: how many
// participants were read and accepted, what the built trie looks like and
// how large the published blob is.
type AirdropMetrics interface {
	// ParticipantsRead records the number of rows read from the participant list.
	ParticipantsRead(count int)

	// ParticipantsRejected records the number of rows that could not be turned into grants.
	ParticipantsRejected(count int)

	// TrieBuilt records the shape of the built trie and how long the build took.
	TrieBuilt(grants uint64, nodes int, maxDepth uint16, duration time.Duration)

	// TotalSupply records the sum of all grants in the smallest token unit.
	TotalSupply(supply float64)

	// BlobWritten records the size of the stored blob.
	BlobWritten(sizeBytes int)
}
