package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/inodb/bcfscan/internal/region"
)

const configName = ".bcfscan.yaml"

var (
	cfgFile string
	verbose bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bcfscan",
		Short: "Stream and extract records from BCF files",
		Long: `bcfscan reads BCF (binary VCF) files record by record.

It can print selected INFO and FORMAT fields as TSV or VCF text, summarize a
file, show its header, and load extracted rows into a DuckDB database.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/"+configName+")")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err}
	})

	root.AddCommand(newViewCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newHeaderCmd())
	root.AddCommand(newLoadCmd())
	root.AddCommand(newConfigCmd())

	return root
}

// initConfig reads the config file and BCFSCAN_* environment variables.
// A missing default config file is not an error.
func initConfig() error {
	viper.SetEnvPrefix("BCFSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.SetConfigFile(filepath.Join(home, configName))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && (errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// newLogger builds the CLI logger: warnings and errors on stderr, debug
// output with --verbose or log.level=debug.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	if lvl := viper.GetString("log.level"); lvl != "" {
		level, err := zapcore.ParseLevel(lvl)
		if err != nil {
			return nil, &usageError{fmt.Errorf("invalid log.level %q: %w", lvl, err)}
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	return cfg.Build()
}

// bindFlags binds the named flags of cmd to same-named viper keys, so
// config and environment values apply when the flag is not given.
func bindFlags(cmd *cobra.Command, names ...string) error {
	for _, name := range names {
		key := strings.ReplaceAll(name, "-", "_")
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

// loadRegions combines --regions and --regions-file into a filter. It
// returns nil when neither is given.
func loadRegions(list, bedFile string) (*region.Set, error) {
	if list == "" && bedFile == "" {
		return nil, nil
	}
	ivs, err := region.Parse(list)
	if err != nil {
		return nil, &usageError{err}
	}
	if bedFile != "" {
		bed, err := region.ReadBEDFile(bedFile)
		if err != nil {
			return nil, fmt.Errorf("reading regions file: %w", err)
		}
		ivs = append(ivs, bed...)
	}
	return region.NewSet(ivs), nil
}
