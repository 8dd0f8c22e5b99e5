package common

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding flags, e.g.
// AIRDROP_LOG_LEVEL overrides --log-level.
const EnvPrefix = "AIRDROP"

// NewConfig returns a viper store reading the given config file (if any) and
// environment variables.
func NewConfig(configFile string) (*viper.Viper, error) {
	conf := viper.New()
	conf.SetEnvPrefix(EnvPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	conf.AutomaticEnv()

	if configFile != "" {
		conf.SetConfigFile(configFile)
		if err := conf.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("cannot read config file %s: %w", configFile, err)
		}
	}
	return conf, nil
}

// BindFlags assigns every flag not set on the command line the value configured
// in the config file or the environment. Explicit flags always win.
func BindFlags(flags *pflag.FlagSet, conf *viper.Viper) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil || f.Changed || !conf.IsSet(f.Name) {
			return
		}
		if setErr := flags.Set(f.Name, conf.GetString(f.Name)); setErr != nil {
			err = fmt.Errorf("invalid configured value for %s: %w", f.Name, setErr)
		}
	})
	return err
}
