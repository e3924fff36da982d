package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/extract"
	"github.com/inodb/bcfscan/internal/output"
)

// rowWriter is implemented by the output formatters.
type rowWriter interface {
	WriteHeader() error
	Write(*extract.Row) error
	Flush() error
}

func newViewCmd() *cobra.Command {
	var (
		infoFields   string
		formatFields string
		regions      string
		regionsFile  string
		outputFile   string
		outputFormat string
		limit        int
	)

	cmd := &cobra.Command{
		Use:   "view <file.bcf>",
		Short: "Print records as TSV or VCF text",
		Example: `  bcfscan view input.bcf
  bcfscan view --info DP,MQ0F --format GT,PL input.bcf
  bcfscan view -f vcf -o sites.vcf --limit 1000 input.bcf`,
		Args: exactFiles(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(cmd, "workers", "max-invalid")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			regionSet, err := loadRegions(regions, regionsFile)
			if err != nil {
				return err
			}
			sel := extract.ParseSelection(infoFields, formatFields)
			opts := extract.Options{
				Workers:    viper.GetInt("workers"),
				MaxInvalid: viper.GetInt("max_invalid"),
				Regions:    regionSet,
				Limit:      limit,
			}
			return runView(cmd.OutOrStdout(), args[0], sel, opts, outputFile, outputFormat)
		},
	}

	cmd.Flags().StringVar(&infoFields, "info", "", "Comma-separated INFO fields to extract")
	cmd.Flags().StringVar(&formatFields, "format", "", "Comma-separated FORMAT fields to extract")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVarP(&outputFormat, "output-format", "f", "tab", "Output format: tab, vcf")
	cmd.Flags().IntVar(&limit, "limit", 0, "Stop after this many records (0: all)")
	cmd.Flags().StringVarP(&regions, "regions", "r", "", "Comma-separated regions chr:start-end (1-based, inclusive)")
	cmd.Flags().StringVarP(&regionsFile, "regions-file", "R", "", "BED file of regions to keep")
	cmd.Flags().Int("workers", 0, "Extraction workers (0: one per CPU)")
	cmd.Flags().Int("max-invalid", 0, "Invalid records to skip before failing (-1: unlimited)")

	return cmd
}

func runView(stdout io.Writer, path string, sel extract.Selection, opts extract.Options, outputFile, outputFormat string) error {
	if outputFormat != "tab" && outputFormat != "vcf" {
		return &usageError{fmt.Errorf("unknown output format %q", outputFormat)}
	}
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	r, err := bcf.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	r.SetLogger(logger)

	out := stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var w rowWriter
	switch outputFormat {
	case "tab":
		w = output.NewTabWriter(out, sel.Columns(r.Header().Samples()))
	default:
		w = output.NewVCFWriter(out, r.Header(), sel)
	}

	if err := w.WriteHeader(); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	ex := extract.NewExtractor(r.Header(), sel)
	ex.SetLogger(logger)
	sum, err := ex.ExtractAll(r, opts, w.Write)
	if flushErr := w.Flush(); err == nil && flushErr != nil {
		err = fmt.Errorf("flushing output: %w", flushErr)
	}

	logger.Info("view finished",
		zap.String("path", path),
		zap.Int64("records", sum.Records),
		zap.Int64("invalid", sum.Invalid),
		zap.Int64("failed", sum.Failed))
	return err
}
