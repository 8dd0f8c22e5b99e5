package metrics

import (
	"time"

	"github.com/jettonkit/airdrop/module"
)

type NoopCollector struct{}

var _ module.AirdropMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) ParticipantsRead(count int)                                           {}
func (nc *NoopCollector) ParticipantsRejected(count int)                                       {}
func (nc *NoopCollector) TrieBuilt(grants uint64, nodes int, maxDepth uint16, _ time.Duration) {}
func (nc *NoopCollector) TotalSupply(supply float64)                                           {}
func (nc *NoopCollector) BlobWritten(sizeBytes int)                                            {}
