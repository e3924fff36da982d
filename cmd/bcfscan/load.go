package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/duckdb"
	"github.com/inodb/bcfscan/internal/extract"
)

func newLoadCmd() *cobra.Command {
	var (
		infoFields   string
		formatFields string
		regions      string
		regionsFile  string
		force        bool
	)

	cmd := &cobra.Command{
		Use:   "load <file.bcf>",
		Short: "Load extracted records into a DuckDB database",
		Long: `Extract the selected fields of every record and append them to the
variants, info_values and sample_values tables. Files already loaded and
unchanged since are skipped unless --force is given.`,
		Example: `  bcfscan load --info DP,AF --format GT input.bcf
  bcfscan load --db /data/variants.duckdb input.bcf`,
		Args: exactFiles(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, "db", "workers", "max-invalid", "batch-size")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			dbPath := viper.GetString("db")
			if dbPath == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return fmt.Errorf("cannot determine home directory: %w", err)
				}
				dbPath = filepath.Join(home, ".bcfscan", "variants.duckdb")
			}
			regionSet, err := loadRegions(regions, regionsFile)
			if err != nil {
				return err
			}
			opts := extract.Options{
				Workers:    viper.GetInt("workers"),
				MaxInvalid: viper.GetInt("max_invalid"),
				Regions:    regionSet,
			}
			sel := extract.ParseSelection(infoFields, formatFields)
			return runLoad(cmd.OutOrStdout(), args[0], dbPath, sel, opts, viper.GetInt("batch_size"), force)
		},
	}

	cmd.Flags().String("db", "", "DuckDB database path (default: ~/.bcfscan/variants.duckdb)")
	cmd.Flags().StringVar(&infoFields, "info", "", "Comma-separated INFO fields to store")
	cmd.Flags().StringVar(&formatFields, "format", "", "Comma-separated FORMAT fields to store")
	cmd.Flags().BoolVar(&force, "force", false, "Reload even if the file is unchanged")
	cmd.Flags().StringVarP(&regions, "regions", "r", "", "Comma-separated regions chr:start-end (1-based, inclusive)")
	cmd.Flags().StringVarP(&regionsFile, "regions-file", "R", "", "BED file of regions to keep")
	cmd.Flags().Int("workers", 0, "Extraction workers (0: one per CPU)")
	cmd.Flags().Int("max-invalid", 0, "Invalid records to skip before failing (-1: unlimited)")
	cmd.Flags().Int("batch-size", 10000, "Rows per appender batch")

	return cmd
}

func runLoad(w io.Writer, path, dbPath string, sel extract.Selection, opts extract.Options, batchSize int, force bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	fp, err := duckdb.StatFile(abs)
	if err != nil {
		return err
	}

	store, err := duckdb.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if !force {
		loaded, err := store.SourceLoaded(fp)
		if err != nil {
			return err
		}
		if loaded {
			fmt.Fprintf(w, "%s is already loaded in %s\n", path, dbPath)
			return nil
		}
	}

	r, err := bcf.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetLogger(logger)

	// Rows go to a staging source so a failed reload keeps the previous load.
	staging := abs + "#loading"
	if err := store.DeleteSource(staging); err != nil {
		return err
	}

	ex := extract.NewExtractor(r.Header(), sel)
	ex.SetLogger(logger)
	loader := store.NewLoader(staging, sel, r.Header().Samples(), batchSize)

	sum, err := ex.ExtractAll(r, opts, loader.Add)
	if err == nil {
		err = loader.Flush()
	}
	if err != nil {
		if cleanupErr := store.DeleteSource(staging); cleanupErr != nil {
			logger.Warn("could not remove staged rows", zap.String("source", staging), zap.Error(cleanupErr))
		}
		return err
	}
	if err := store.ReplaceSource(staging, abs); err != nil {
		return err
	}
	if err := store.RecordSource(fp, loader.Written()); err != nil {
		return err
	}

	logger.Info("load finished",
		zap.String("path", abs),
		zap.String("db", dbPath),
		zap.Int64("rows", loader.Written()),
		zap.Int64("invalid", sum.Invalid))
	fmt.Fprintf(w, "Loaded %d records from %s into %s\n", loader.Written(), path, dbPath)
	return nil
}
