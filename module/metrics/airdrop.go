package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jettonkit/airdrop/module"
)

// AirdropCollector implements metric collection for airdrop preparation.
type AirdropCollector struct {
	participantsRead     prometheus.Gauge
	participantsRejected prometheus.Gauge
	grants               prometheus.Gauge
	nodes                prometheus.Gauge
	maxDepth             prometheus.Gauge
	buildDuration        prometheus.Histogram
	totalSupply          prometheus.Gauge
	blobSize             prometheus.Gauge
}

var _ module.AirdropMetrics = (*AirdropCollector)(nil)

func NewAirdropCollector(registerer prometheus.Registerer) *AirdropCollector {
	participantsRead := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemImport,
		Name:      "participants_read",
		Help:      "number of rows read from the participant list",
	})
	participantsRejected := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemImport,
		Name:      "participants_rejected",
		Help:      "number of participant rows that could not be turned into grants",
	})
	grants := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemTrie,
		Name:      "grants",
		Help:      "number of grants committed to by the trie",
	})
	nodes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemTrie,
		Name:      "nodes",
		Help:      "number of trie nodes",
	})
	maxDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemTrie,
		Name:      "max_depth",
		Help:      "length of the longest branch of the trie",
	})
	buildDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemTrie,
		Name:      "build_duration_seconds",
		Help:      "time it took to build and hash the trie",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30},
	})
	totalSupply := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemTrie,
		Name:      "total_supply",
		Help:      "sum of all granted amounts, in the smallest token unit",
	})
	blobSize := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceAirdrop,
		Subsystem: subsystemBlob,
		Name:      "size_bytes",
		Help:      "size of the stored airdrop blob",
	})
	registerer.MustRegister(participantsRead, participantsRejected, grants, nodes, maxDepth, buildDuration, totalSupply, blobSize)

	return &AirdropCollector{
		participantsRead:     participantsRead,
		participantsRejected: participantsRejected,
		grants:               grants,
		nodes:                nodes,
		maxDepth:             maxDepth,
		buildDuration:        buildDuration,
		totalSupply:          totalSupply,
		blobSize:             blobSize,
	}
}

func (c *AirdropCollector) ParticipantsRead(count int) {
	c.participantsRead.Set(float64(count))
}

func (c *AirdropCollector) ParticipantsRejected(count int) {
	c.participantsRejected.Set(float64(count))
}

func (c *AirdropCollector) TrieBuilt(grants uint64, nodes int, maxDepth uint16, duration time.Duration) {
	c.grants.Set(float64(grants))
	c.nodes.Set(float64(nodes))
	c.maxDepth.Set(float64(maxDepth))
	c.buildDuration.Observe(duration.Seconds())
}

func (c *AirdropCollector) TotalSupply(supply float64) {
	c.totalSupply.Set(supply)
}

func (c *AirdropCollector) BlobWritten(sizeBytes int) {
	c.blobSize.Set(float64(sizeBytes))
}
