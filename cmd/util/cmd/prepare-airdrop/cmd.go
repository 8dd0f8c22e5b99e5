package prepare

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pbnjay/memory"
	"github.com/pkg/profile"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/hash"
	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	"github.com/jettonkit/airdrop/airdrop/complete/blob"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/trie"
	"github.com/jettonkit/airdrop/airdrop/deploy"
	"github.com/jettonkit/airdrop/airdrop/importer"
	"github.com/jettonkit/airdrop/cmd/util/cmd/common"
	"github.com/jettonkit/airdrop/module"
	"github.com/jettonkit/airdrop/module/metrics"
)

var (
	flagCSV         string
	flagOutput      string
	flagCodec       string
	flagStartFrom   common.TimeArg
	flagDuration    time.Duration
	flagDecimals    int
	flagAdmin       string
	flagMetadataURI string
	flagNetwork     string
	flagManifest    string
	flagMetricsFile string
	flagMemoryScale float64
	flagProfileDir  string
)

// prepare-airdrop reads the participant list, builds the grant trie, stores it
// as blob and, if a manifest is requested, describes the minter deployment
// committing to the trie's root hash.
var Cmd = &cobra.Command{
	Use:   "prepare-airdrop",
	Short: "build the grant trie of an airdrop from a participant list",
	Run:   run,
}

func init() {
	Cmd.Flags().StringVar(&flagCSV, "csv", "", "participant list (CSV with columns name, address, amount)")
	_ = Cmd.MarkFlagRequired("csv")

	Cmd.Flags().StringVar(&flagOutput, "output", "airdrop.blob", "file the serialized grant trie is written to")

	Cmd.Flags().StringVar(&flagCodec, "codec", keycodec.TONCodecName,
		fmt.Sprintf("address format of the participants, one of %v", keycodec.Names()))

	Cmd.Flags().Var(&flagStartFrom, "start-from",
		"start of the claim window, Unix seconds or RFC 3339 (default: now)")
	Cmd.Flags().DurationVar(&flagDuration, "duration", importer.DefaultClaimDuration, "length of the claim window")
	Cmd.Flags().IntVar(&flagDecimals, "decimals", airdrop.NanoDecimals, "number of decimals of the token")

	Cmd.Flags().StringVar(&flagAdmin, "admin", "", "admin address of the minter contract")
	Cmd.Flags().StringVar(&flagMetadataURI, "metadata-uri", "", "URI of the token metadata")
	Cmd.Flags().StringVar(&flagNetwork, "network", deploy.NetworkTestnet, "network to deploy to (mainnet, testnet)")
	Cmd.Flags().StringVar(&flagManifest, "manifest", "",
		"write a deployment manifest to this file (requires --admin and --metadata-uri)")

	Cmd.Flags().StringVar(&flagMetricsFile, "metrics-file", "", "write prometheus metrics of this run to this file")
	Cmd.Flags().Float64Var(&flagMemoryScale, "memory-scale", 0.8,
		"share of the physical memory the trie build may use, 0 disables the check")
	Cmd.Flags().StringVar(&flagProfileDir, "profile-dir", "", "write a CPU profile of this run to this directory")
}

// Config holds all inputs of an airdrop preparation.
type Config struct {
	CSV         string
	Output      string
	Codec       string
	StartFrom   time.Time
	Duration    time.Duration
	Decimals    int
	Admin       string
	MetadataURI string
	Network     string
	// MemoryScale is the share of the physical memory the trie build may
	// use, zero skips the check.
	MemoryScale float64
}

func run(*cobra.Command, []string) {
	stopProfile := func() {}
	if flagProfileDir != "" {
		p := profile.Start(profile.CPUProfile, profile.ProfilePath(flagProfileDir), profile.NoShutdownHook, profile.Quiet)
		stopProfile = p.Stop
	}

	cfg := Config{
		CSV:         flagCSV,
		Output:      flagOutput,
		Codec:       flagCodec,
		StartFrom:   flagStartFrom.OrNow(),
		Duration:    flagDuration,
		Decimals:    flagDecimals,
		Admin:       flagAdmin,
		MetadataURI: flagMetadataURI,
		Network:     flagNetwork,
		MemoryScale: flagMemoryScale,
	}

	var deployer deploy.Deployer
	if flagManifest != "" {
		deployer = deploy.NewManifestDeployer(flagManifest, log.Logger)
	}

	var collector module.AirdropMetrics = metrics.NewNoopCollector()
	registry := prometheus.NewRegistry()
	if flagMetricsFile != "" {
		collector = metrics.NewAirdropCollector(registry)
	}

	b, err := PrepareAirdrop(context.Background(), cfg, deployer, collector, log.Logger)
	stopProfile()

	if flagMetricsFile != "" {
		if writeErr := prometheus.WriteToTextfile(flagMetricsFile, registry); writeErr != nil {
			log.Error().Err(writeErr).Str("file", flagMetricsFile).Msg("cannot write metrics")
		}
	}
	if err != nil {
		log.Fatal().Err(err).Msg("cannot prepare airdrop")
	}

	root := b.Trie.RootHash()
	log.Info().
		Str("root_hash", root.String()).
		Str("root_hash_int", root.BigInt().String()).
		Str("total_supply", b.Metadata.TotalSupply).
		Uint64("grants", b.Metadata.LeafCount).
		Msg("airdrop prepared")
}

// PrepareAirdrop runs the whole preparation pipeline: read participants, encode
// them into grants, build the trie, store it and, if a deployer is given,
// deploy the minter committing to the trie. All inputs are checked before
// anything is written, a nil deployer skips the deployment.
func PrepareAirdrop(ctx context.Context, cfg Config, deployer deploy.Deployer, collector module.AirdropMetrics, logger zerolog.Logger) (*blob.Blob, error) {
	codec, err := keycodec.ByName(cfg.Codec)
	if err != nil {
		return nil, err
	}
	if deployer != nil {
		if err := checkDeployParams(cfg, codec); err != nil {
			return nil, err
		}
	}

	participants, err := readParticipants(cfg.CSV)
	if err != nil {
		var rejected *multierror.Error
		if errors.As(err, &rejected) {
			collector.ParticipantsRejected(len(rejected.Errors))
		}
		return nil, err
	}
	collector.ParticipantsRead(len(participants))
	logger.Info().Int("participants", len(participants)).Str("file", cfg.CSV).Msg("participant list read")

	window, err := importer.NewWindow(cfg.StartFrom, cfg.Duration)
	if err != nil {
		return nil, err
	}
	entries, totalSupply, err := importer.ToEntries(participants, codec, window, cfg.Decimals, logger)
	if err != nil {
		var rejected *multierror.Error
		if errors.As(err, &rejected) {
			collector.ParticipantsRejected(len(rejected.Errors))
		}
		return nil, fmt.Errorf("invalid participants: %w", err)
	}
	collector.ParticipantsRejected(0)

	if cfg.MemoryScale != 0 {
		allowed, err := allowedMemory(cfg.MemoryScale)
		if err != nil {
			return nil, err
		}
		if err := checkMemory(len(entries), allowed); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	t, err := trie.Build(codec.Width(), entries)
	if err != nil {
		return nil, fmt.Errorf("cannot build grant trie: %w", err)
	}
	collector.TrieBuilt(t.LeafCount(), t.NodeCount(), t.MaxDepth(), time.Since(start))
	if t.TotalAmount().Cmp(totalSupply) != 0 {
		return nil, fmt.Errorf("grant trie holds %v tokens, expected %v", t.TotalAmount(), totalSupply)
	}
	supply, _ := new(big.Float).SetInt(totalSupply).Float64()
	collector.TotalSupply(supply)

	logger.Info().
		Str("root_hash", t.RootHash().String()).
		Uint64("grants", t.LeafCount()).
		Int("nodes", t.NodeCount()).
		Uint16("max_depth", t.MaxDepth()).
		Dur("duration", time.Since(start)).
		Msg("grant trie built")

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("preparation aborted: %w", err)
	}
	b := blob.New(t, codec.Name(), cfg.Network, time.Now())
	if err := blob.WriteFile(cfg.Output, b, logger); err != nil {
		return nil, err
	}
	if info, err := os.Stat(cfg.Output); err == nil {
		collector.BlobWritten(int(info.Size()))
	}

	if deployer == nil {
		return b, nil
	}
	params := deploy.NewParams(cfg.Network, codec.Name(), cfg.Admin, cfg.MetadataURI,
		t.RootHash(), b.Metadata.TotalSupply, b.Metadata.BuildID, cfg.Output)
	if _, err := deployer.Deploy(ctx, params); err != nil {
		return nil, fmt.Errorf("cannot deploy airdrop: %w", err)
	}
	return b, nil
}

// checkDeployParams validates the user supplied deployment parameters. The
// trie derived ones are placeholders here, they are only known after the build.
func checkDeployParams(cfg Config, codec keycodec.Codec) error {
	if cfg.Admin == "" || cfg.MetadataURI == "" {
		return fmt.Errorf("a deployment requires the admin address and the metadata URI")
	}
	draft := deploy.NewParams(cfg.Network, codec.Name(), cfg.Admin, cfg.MetadataURI,
		hash.DummyHash, "0", uuid.Nil.String(), cfg.Output)
	return draft.Validate()
}

// bytesPerGrant estimates the memory held per grant during a build: the leaf,
// its share of the forks, the key and the amount.
const bytesPerGrant = 1024

// allowedMemory returns the share of the physical memory a build may use.
func allowedMemory(scaleFactor float64) (uint64, error) {
	if scaleFactor <= 0 || scaleFactor > 1 {
		return 0, fmt.Errorf("memory scale factor must be greater than 0 and less than or equal to 1: %f", scaleFactor)
	}
	return uint64(math.Floor(float64(memory.TotalMemory()) * scaleFactor)), nil
}

// checkMemory rejects builds that would not fit into allowed bytes. Zero
// means the physical memory is unknown.
func checkMemory(grants int, allowed uint64) error {
	if allowed == 0 {
		return nil
	}
	if needed := uint64(grants) * bytesPerGrant; needed > allowed {
		return fmt.Errorf("building %d grants needs about %d bytes, only %d are allowed", grants, needed, allowed)
	}
	return nil
}

func readParticipants(path string) ([]importer.Participant, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open participant list: %w", err)
	}
	defer file.Close()

	participants, err := importer.ReadParticipants(file)
	if err != nil {
		return nil, fmt.Errorf("cannot read participant list %s: %w", path, err)
	}
	return participants, nil
}
