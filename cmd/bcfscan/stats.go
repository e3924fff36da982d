package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/stats"
)

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <file.bcf>",
		Short: "Summarize record counts of a BCF file",
		Long: `Count records per contig, multi-allelic and filtered sites, and invalid
records. Results are cached next to the file in <file>.stats and reused
until the file changes.`,
		Args: exactFiles(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, "no-cache")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), args[0], !viper.GetBool("no_cache"))
		},
	}
	cmd.Flags().Bool("no-cache", false, "Ignore and do not write the stats cache")
	return cmd
}

func runStats(w io.Writer, path string, useCache bool) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	cache := stats.NewCache(path)
	var st *stats.FileStats
	if useCache && cache.Valid() {
		st, err = cache.Load()
		if err != nil {
			logger.Warn("ignoring unreadable stats cache", zap.Error(err))
			st = nil
		} else {
			logger.Debug("using cached stats", zap.String("path", path))
		}
	}

	if st == nil {
		r, err := bcf.Open(path)
		if err != nil {
			return err
		}
		r.SetLogger(logger)
		st, err = stats.Collect(r)
		r.Close()
		if err != nil {
			return err
		}
		if useCache {
			if err := cache.Write(st); err != nil {
				logger.Warn("could not write stats cache", zap.Error(err))
			}
		}
	}

	fmt.Fprintf(w, "file:         %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
	fmt.Fprintf(w, "records:      %s\n", humanize.Comma(st.Records))
	fmt.Fprintf(w, "invalid:      %s\n", humanize.Comma(st.Invalid))
	fmt.Fprintf(w, "unresolved:   %s\n", humanize.Comma(st.Unresolved))
	fmt.Fprintf(w, "samples:      %d\n", st.Samples)
	fmt.Fprintf(w, "info fields:  %d\n", st.InfoFields)
	fmt.Fprintf(w, "fmt fields:   %d\n", st.FmtFields)
	fmt.Fprintf(w, "multiallelic: %s\n", humanize.Comma(st.Multiallele))
	fmt.Fprintf(w, "filtered:     %s\n", humanize.Comma(st.Filtered))
	for _, c := range st.Contigs {
		fmt.Fprintf(w, "%-14s%13s\n", c.Contig, humanize.Comma(c.Records))
	}
	return nil
}
