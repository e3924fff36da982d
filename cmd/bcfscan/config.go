package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// configKeys lists the settings bcfscan reads and how their values parse.
var configKeys = map[string]func(string) (any, error){
	"workers":     parseInt,
	"max_invalid": parseInt,
	"batch_size":  parseInt,
	"db":          func(s string) (any, error) { return s, nil },
	"no_cache":    func(s string) (any, error) { return strconv.ParseBool(s) },
	"log.level": func(s string) (any, error) {
		if _, err := zapcore.ParseLevel(s); err != nil {
			return nil, err
		}
		return s, nil
	},
}

func parseInt(s string) (any, error) { return strconv.Atoi(s) }

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persistent settings",
		Long: "Settings are read from ~/" + configName + " (or --config) and may be\n" +
			"overridden per run with BCFSCAN_<KEY> environment variables or flags.",
		Example: `  bcfscan config
  bcfscan config set workers 4
  bcfscan config set db /data/v.duckdb
  bcfscan config get max_invalid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printSettings(cmd.OutOrStdout())
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting",
		Args:  exactFiles(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return storeSetting(cmd.OutOrStdout(), args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  exactFiles(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val := viper.Get(args[0])
			if val == nil {
				return fmt.Errorf("key %q is not set", args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), val)
			return nil
		},
	})
	return cmd
}

func printSettings(w io.Writer) error {
	settings := viper.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintf(w, "# nothing set; known keys: %v\n", knownKeys())
		return nil
	}
	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = w.Write(out)
	return err
}

func storeSetting(w io.Writer, key, raw string) error {
	parse, ok := configKeys[key]
	if !ok {
		return &usageError{fmt.Errorf("unknown key %q (known: %v)", key, knownKeys())}
	}
	val, err := parse(raw)
	if err != nil {
		return &usageError{fmt.Errorf("invalid value for %s: %w", key, err)}
	}
	viper.Set(key, val)

	path := viper.ConfigFileUsed()
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(home, configName)
	}
	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(w, "%s = %v (%s)\n", key, val, path)
	return nil
}

func knownKeys() []string {
	keys := make([]string, 0, len(configKeys))
	for k := range configKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
