package inspect

import (
	"fmt"
	"io"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jettonkit/airdrop/airdrop"
	"github.com/jettonkit/airdrop/airdrop/common/keycodec"
	"github.com/jettonkit/airdrop/airdrop/complete/blob"
	"github.com/jettonkit/airdrop/airdrop/complete/mtrie/trie"
)

var (
	flagBlob     string
	flagList     bool
	flagProve    string
	flagDecimals int
)

var Cmd = &cobra.Command{
	Use:   "inspect-airdrop",
	Short: "verify an airdrop blob and print its content",
	Run:   run,
}

func init() {
	Cmd.Flags().StringVar(&flagBlob, "blob", "airdrop.blob", "airdrop blob to inspect")
	Cmd.Flags().BoolVar(&flagList, "list", false, "print every grant")
	Cmd.Flags().StringVar(&flagProve, "prove", "", "print and verify the inclusion proof of this address")
	Cmd.Flags().IntVar(&flagDecimals, "decimals", airdrop.NanoDecimals, "number of decimals of the token")
}

func run(cmd *cobra.Command, _ []string) {
	err := Inspect(cmd.OutOrStdout(), flagBlob, flagList, flagProve, flagDecimals, log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot inspect airdrop")
	}
}

// Inspect loads and verifies the blob and writes a report to out.
func Inspect(out io.Writer, path string, list bool, prove string, decimals int, logger zerolog.Logger) error {
	b, err := blob.ReadFile(path, logger)
	if err != nil {
		return err
	}
	if !b.Trie.IsAValidTrie() {
		return fmt.Errorf("blob %s holds a trie with inconsistent hashes", path)
	}
	codec, err := keycodec.ByName(b.Metadata.Codec)
	if err != nil {
		return fmt.Errorf("blob %s: %w", path, err)
	}

	m := b.Metadata
	supply, err := m.TotalSupplyInt()
	if err != nil {
		return err
	}
	root := b.Trie.RootHash()
	// counts are printed with digit grouping
	p := message.NewPrinter(language.English)
	fmt.Fprintf(out, "build id:      %s\n", m.BuildID)
	fmt.Fprintf(out, "created at:    %s\n", time.Unix(m.CreatedAt, 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(out, "network:       %s\n", m.Network)
	fmt.Fprintf(out, "codec:         %s (%d bit keys)\n", m.Codec, m.Width)
	p.Fprintf(out, "grants:        %d\n", m.LeafCount)
	fmt.Fprintf(out, "total supply:  %s\n", airdrop.FormatAmount(supply, decimals))
	fmt.Fprintf(out, "root hash:     %s\n", root)
	fmt.Fprintf(out, "root (int):    %s\n", root.BigInt())
	p.Fprintf(out, "trie nodes:    %d, max depth %d\n", b.Trie.NodeCount(), b.Trie.MaxDepth())
	if !b.Trie.IsEmpty() {
		mean, median, err := proofForks(b.Trie)
		if err != nil {
			return err
		}
		p.Fprintf(out, "proof forks:   mean %.2f, median %.1f\n", mean, median)
	}

	if list {
		for _, e := range b.Trie.Entries() {
			address, err := codec.Decode(e.Key)
			if err != nil {
				return fmt.Errorf("cannot decode key %s: %w", e.Key, err)
			}
			fmt.Fprintf(out, "%s %s [%d, %d)\n", address, airdrop.FormatAmount(e.Grant.Amount, decimals), e.Grant.StartFrom, e.Grant.ExpireAt)
		}
	}

	if prove != "" {
		key, err := codec.Encode(prove)
		if err != nil {
			return err
		}
		proof, err := b.Trie.Prove(key)
		if err != nil {
			return err
		}
		if !trie.VerifyProof(root, proof) {
			return fmt.Errorf("inclusion proof of %s does not verify against root %s", prove, root)
		}
		fmt.Fprint(out, proof.String())
	}

	logger.Info().Str("blob", path).Str("root_hash", root.String()).Msg("airdrop blob verified")
	return nil
}

// proofForks returns the mean and the median number of forks in the
// inclusion proofs of all grants.
func proofForks(t *trie.MTrie) (float64, float64, error) {
	depths := stats.LoadRawData(t.LeafDepths())
	mean, err := stats.Mean(depths)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot compute mean proof size: %w", err)
	}
	median, err := stats.Median(depths)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot compute median proof size: %w", err)
	}
	return mean, median, nil
}
