package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jettonkit/airdrop/cmd/util/cmd/common"
	inspect "github.com/jettonkit/airdrop/cmd/util/cmd/inspect-airdrop"
	prepare "github.com/jettonkit/airdrop/cmd/util/cmd/prepare-airdrop"
)

var (
	flagConfigFile string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:               "util",
	Short:             "utility functions for preparing and inspecting airdrops",
	PersistentPreRunE: initConfig,
	SilenceUsage:      true,
}

var RootCmd = rootCmd

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "",
		"config file (yaml, json or toml) providing defaults for any flag")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info",
		"log level (panic, fatal, error, warn, info, debug, trace)")

	addCommands()
}

func addCommands() {
	rootCmd.AddCommand(prepare.Cmd)
	rootCmd.AddCommand(inspect.Cmd)
}

func initConfig(cmd *cobra.Command, _ []string) error {
	conf, err := common.NewConfig(flagConfigFile)
	if err != nil {
		return err
	}
	if err := common.BindFlags(cmd.Flags(), conf); err != nil {
		return err
	}

	level, err := zerolog.ParseLevel(flagLogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.Logger = zerolog.New(zerolog.NewConsoleWriter()).
		Level(level).
		With().
		Timestamp().
		Logger()
	return nil
}
