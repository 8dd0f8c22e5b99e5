package prepare

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	"github.com/jettonkit/airdrop/airdrop/complete/blob"
	"github.com/jettonkit/airdrop/airdrop/deploy"
	mockdeploy "github.com/jettonkit/airdrop/airdrop/deploy/mock"
	"github.com/jettonkit/airdrop/module/metrics"
	mockmodule "github.com/jettonkit/airdrop/module/mock"
	"github.com/jettonkit/airdrop/utils/unittest"
)

const participantList = `name,address,amount
alice,0:1111111111111111111111111111111111111111111111111111111111111111,100
bob,EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N,250.5
carol,-1:3333333333333333333333333333333333333333333333333333333333333333,0.000000001
`

func testConfig(dir string, csv string) Config {
	return Config{
		CSV:         csv,
		Output:      filepath.Join(dir, "out", "airdrop.blob"),
		Codec:       keycodec.TONCodecName,
		StartFrom:   time.Unix(1_700_000_000, 0),
		Duration:    30 * 24 * time.Hour,
		Decimals:    9,
		Admin:       "EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N",
		MetadataURI: "https://example.org/jetton.json",
		Network:     deploy.NetworkTestnet,
	}
}

func manifestPath(dir string) string {
	return filepath.Join(dir, "out", "manifest.yaml")
}

func TestPrepareAirdrop(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))
		deployer := deploy.NewManifestDeployer(manifestPath(dir), unittest.Logger())

		collector := mockmodule.NewAirdropMetrics(t)
		collector.On("ParticipantsRead", 3).Once()
		collector.On("ParticipantsRejected", 0).Once()
		collector.On("TrieBuilt", uint64(3), 5, uint16(2), mock.AnythingOfType("time.Duration")).Once()
		collector.On("TotalSupply", float64(350500000001)).Once()
		collector.On("BlobWritten", mock.AnythingOfType("int")).Once()

		b, err := PrepareAirdrop(context.Background(), cfg, deployer, collector, unittest.Logger())
		require.NoError(t, err)
		require.Equal(t, uint64(3), b.Metadata.LeafCount)
		require.Equal(t, "350500000001", b.Metadata.TotalSupply)
		require.Equal(t, "testnet", b.Metadata.Network)

		stored, err := blob.ReadFile(cfg.Output, unittest.Logger())
		require.NoError(t, err)
		require.Equal(t, b.Metadata, stored.Metadata)
		require.True(t, b.Trie.Equals(stored.Trie))

		for _, e := range stored.Trie.Entries() {
			assert.Equal(t, int64(1_700_000_000), e.Grant.StartFrom)
			assert.Equal(t, int64(1_702_592_000), e.Grant.ExpireAt)
		}

		data, err := os.ReadFile(manifestPath(dir))
		require.NoError(t, err)
		manifest, err := deploy.ReadManifest(data)
		require.NoError(t, err)
		assert.Equal(t, b.Trie.RootHash().String(), manifest.MerkleRoot)
		assert.Equal(t, b.Trie.RootHash().BigInt().String(), manifest.MerkleRootInt)
		assert.Equal(t, b.Metadata.BuildID, manifest.BuildID)
		assert.Equal(t, "350500000001", manifest.TotalSupply)
		assert.Equal(t, cfg.Output, manifest.Blob)

		info, err := os.Stat(cfg.Output)
		require.NoError(t, err)
		collector.AssertCalled(t, "BlobWritten", int(info.Size()))
	})
}

func TestPrepareAirdropDeploysBuiltTrie(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))

		var deployed deploy.Params
		deployer := mockdeploy.NewDeployer(t)
		deployer.On("Deploy", mock.Anything, mock.MatchedBy(func(p deploy.Params) bool {
			return p.Validate() == nil
		})).
			Run(func(args mock.Arguments) { deployed = args.Get(1).(deploy.Params) }).
			Return(&deploy.Result{}, nil).
			Once()

		b, err := PrepareAirdrop(context.Background(), cfg, deployer, metrics.NewNoopCollector(), unittest.Logger())
		require.NoError(t, err)

		assert.Equal(t, deploy.NewParams(deploy.NetworkTestnet, keycodec.TONCodecName, cfg.Admin, cfg.MetadataURI,
			b.Trie.RootHash(), "350500000001", b.Metadata.BuildID, cfg.Output), deployed)
		assert.True(t, fileExists(cfg.Output))
	})
}

func TestPrepareAirdropFailedDeployment(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))
		deployErr := errors.New("minter rejected")

		deployer := mockdeploy.NewDeployer(t)
		deployer.On("Deploy", mock.Anything, mock.Anything).Return(nil, deployErr).Once()

		_, err := PrepareAirdrop(context.Background(), cfg, deployer, metrics.NewNoopCollector(), unittest.Logger())
		require.ErrorIs(t, err, deployErr)
	})
}

func TestPrepareAirdropWithoutDeployment(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))
		cfg.Admin = ""
		cfg.MetadataURI = ""

		_, err := PrepareAirdrop(context.Background(), cfg, nil, metrics.NewNoopCollector(), unittest.Logger())
		require.NoError(t, err)

		entries, err := os.ReadDir(filepath.Dir(cfg.Output))
		require.NoError(t, err)
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		// the blob and its lock file
		require.ElementsMatch(t, []string{"airdrop.blob", "airdrop.blob.lock"}, names)
	})
}

func TestPrepareAirdropIsDeterministic(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		csv := unittest.WriteFile(t, dir, "participants.csv", participantList)
		first, err := PrepareAirdrop(context.Background(), testConfig(filepath.Join(dir, "a"), csv), nil, metrics.NewNoopCollector(), unittest.Logger())
		require.NoError(t, err)

		// same participants in a different order
		reordered := "address,amount,name\n" +
			"-1:3333333333333333333333333333333333333333333333333333333333333333,0.000000001,carol\n" +
			"0:83dfd552e63729b472fcbcc8c45ebcc6691702558b68ec7527e1ba403a0f31a8,250.500,bob\n" +
			"0:1111111111111111111111111111111111111111111111111111111111111111,100,alice\n"
		csv = unittest.WriteFile(t, dir, "reordered.csv", reordered)
		second, err := PrepareAirdrop(context.Background(), testConfig(filepath.Join(dir, "b"), csv), nil, metrics.NewNoopCollector(), unittest.Logger())
		require.NoError(t, err)

		require.Equal(t, first.Trie.RootHash(), second.Trie.RootHash())
		require.NotEqual(t, first.Metadata.BuildID, second.Metadata.BuildID)
	})
}

func TestPrepareAirdropErrors(t *testing.T) {
	testCases := map[string]func(cfg *Config){
		"unknown codec":               func(cfg *Config) { cfg.Codec = "solana" },
		"deployment without admin":    func(cfg *Config) { cfg.Admin = "" },
		"deployment without metadata": func(cfg *Config) { cfg.MetadataURI = "" },
		"metadata not a url":          func(cfg *Config) { cfg.MetadataURI = "jetton.json" },
		"admin of other format":       func(cfg *Config) { cfg.Admin = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed" },
		"unknown network":             func(cfg *Config) { cfg.Network = "devnet" },
		"missing participant list":    func(cfg *Config) { cfg.CSV += ".missing" },
		"empty claim window":          func(cfg *Config) { cfg.Duration = 0 },
		"participants of other format": func(cfg *Config) {
			cfg.Codec = keycodec.EVMCodecName
			cfg.Admin = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
		},
		"memory scale out of range": func(cfg *Config) { cfg.MemoryScale = 2 },
	}
	for name, tamper := range testCases {
		t.Run(name, func(t *testing.T) {
			unittest.RunWithTempDir(t, func(dir string) {
				cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))
				tamper(&cfg)
				// no expectations, the deployer must not be called
				deployer := mockdeploy.NewDeployer(t)

				_, err := PrepareAirdrop(context.Background(), cfg, deployer, metrics.NewNoopCollector(), unittest.Logger())
				require.Error(t, err)
				require.False(t, fileExists(cfg.Output))
			})
		})
	}
}

func TestPrepareAirdropReportsRejectedParticipants(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		list := participantList + "mallory,0:xyz,5\ntrent,EQCD39VS5jcptHL8vMjEXrzGaRcCVYto7HUn4bpAOg8xqB2N,1\n"
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", list))

		collector := mockmodule.NewAirdropMetrics(t)
		collector.On("ParticipantsRead", 5).Once()
		collector.On("ParticipantsRejected", 2).Once()

		_, err := PrepareAirdrop(context.Background(), cfg, nil, collector, unittest.Logger())
		require.Error(t, err)
		require.False(t, fileExists(cfg.Output))
	})
}

func TestPrepareAirdropReportsUnreadableRows(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		list := participantList + "dave,0:1111\neve\n"
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", list))

		// rows with a wrong field count never reach the encoder
		collector := mockmodule.NewAirdropMetrics(t)
		collector.On("ParticipantsRejected", 2).Once()

		_, err := PrepareAirdrop(context.Background(), cfg, nil, collector, unittest.Logger())
		require.Error(t, err)
		require.False(t, fileExists(cfg.Output))
	})
}

func TestPrepareAirdropHonorsContext(t *testing.T) {
	unittest.RunWithTempDir(t, func(dir string) {
		cfg := testConfig(dir, unittest.WriteFile(t, dir, "participants.csv", participantList))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := PrepareAirdrop(ctx, cfg, mockdeploy.NewDeployer(t), metrics.NewNoopCollector(), unittest.Logger())
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, fileExists(cfg.Output))
	})
}

func TestMemoryCheck(t *testing.T) {
	require.NoError(t, checkMemory(1_000_000, 0))
	require.NoError(t, checkMemory(10, 10*bytesPerGrant))
	require.Error(t, checkMemory(11, 10*bytesPerGrant))

	_, err := allowedMemory(0)
	require.Error(t, err)
	_, err = allowedMemory(1.5)
	require.Error(t, err)
	_, err = allowedMemory(1)
	require.NoError(t, err)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
