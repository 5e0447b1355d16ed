// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the rebib CLI.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/rebib/internal/logging"
	"github.com/pdiddy/rebib/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured from the log.* settings before any command runs.
var logger = zerolog.Nop()

// rootConfig mirrors the layout of rebib.yaml.
type rootConfig struct {
	Log     types.LoggingConfig `mapstructure:"log"`
	Resolve types.ResolveConfig `mapstructure:"resolve"`
}

// rootCmd is the base command for the rebib CLI.
var rootCmd = &cobra.Command{
	Use:   "rebib",
	Short: "Enrich BibTeX entries with authoritative records from DBLP",
	Long: `rebib looks up every entry of a BibTeX bibliography in the DBLP index,
replaces entries it can match with DBLP's record (restricted to title,
booktitle, year, journal, and school), and leaves the rest untouched.

Settings come from flags, REBIB_* environment variables, and rebib.yaml in
the working directory or ~/.config/rebib/.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger = logging.New(cfg.Log, os.Stderr)
		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug().Str("file", used).Msg("using config file")
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./rebib.yaml or ~/.config/rebib/rebib.yaml)")
	pf.String("log-level", "info", "log level: trace, debug, info, warn, error")
	pf.String("log-format", "console", "log format: console or json")

	viper.BindPFlag("log.level", pf.Lookup("log-level"))
	viper.BindPFlag("log.format", pf.Lookup("log-format"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rebib")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "rebib"))
		}
	}

	viper.SetEnvPrefix("REBIB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	_ = viper.ReadInConfig()
}

// loadConfig decodes every setting, with resolve defaults applied first.
func loadConfig() (rootConfig, error) {
	cfg := rootConfig{Resolve: types.DefaultResolveConfig()}
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
