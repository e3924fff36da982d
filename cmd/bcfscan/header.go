package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/inodb/bcfscan/internal/bcf"
)

func newHeaderCmd() *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "header <file.bcf>",
		Short: "Show samples, contigs and declared fields",
		Args:  exactFiles(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHeader(cmd.OutOrStdout(), args[0], raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the header text as stored")
	return cmd
}

func runHeader(w io.Writer, path string, raw bool) error {
	r, err := bcf.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()
	h := r.Header()

	if raw {
		_, err := io.WriteString(w, h.Text())
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "format:\tBCF %s (%s), %s\n", r.Version(), r.Compression(), h.Version())
	fmt.Fprintf(tw, "samples:\t%d\t%s\n", h.NSamples(), strings.Join(h.Samples(), ","))
	fmt.Fprintf(tw, "filters:\t%s\n", strings.Join(h.Filters(), ","))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "CONTIG\tLENGTH")
	for _, c := range h.Contigs() {
		fmt.Fprintf(tw, "%s\t%d\n", c.Name, c.Length)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "FIELD\tNAME\tNUMBER\tTYPE\tDESCRIPTION")
	for _, def := range h.InfoFields() {
		fmt.Fprintf(tw, "INFO\t%s\t%s\t%s\t%s\n", def.ID, def.Number, def.Type, def.Description)
	}
	for _, def := range h.FormatFields() {
		fmt.Fprintf(tw, "FORMAT\t%s\t%s\t%s\t%s\n", def.ID, def.Number, def.Type, def.Description)
	}
	return tw.Flush()
}
