package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/bcfscan/internal/bcf"
	"github.com/inodb/bcfscan/internal/extract"
)

// VCFWriter writes extracted rows back out as VCF text. Only the selected
// INFO and FORMAT fields are carried; sample columns are dropped entirely
// when no FORMAT field is selected.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original header lines (## and #CHROM)
	sel         extract.Selection
	flags       map[string]bool // INFO fields declared as Flag
}

// NewVCFWriter creates a new VCF output writer.
func NewVCFWriter(w io.Writer, h *bcf.Header, sel extract.Selection) *VCFWriter {
	flags := make(map[string]bool)
	for _, def := range h.InfoFields() {
		if def.Type == bcf.TypeFlag {
			flags[def.ID] = true
		}
	}
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: h.Lines(),
		sel:         sel,
		flags:       flags,
	}
}

// WriteHeader writes the original header lines.
func (vw *VCFWriter) WriteHeader() error {
	for _, line := range vw.headerLines {
		if strings.HasPrefix(line, "#CHROM") && len(vw.sel.Format) == 0 {
			cols := strings.Split(line, "\t")
			line = strings.Join(cols[:min(len(cols), 8)], "\t")
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

// Write writes a single row as a VCF data line.
func (vw *VCFWriter) Write(row *extract.Row) error {
	fields := row.Fields()[:7]
	fields = append(fields, vw.info(row))

	if len(vw.sel.Format) > 0 {
		fields = append(fields, strings.Join(vw.sel.Format, ":"))
		for _, s := range row.Samples {
			fields = append(fields, strings.Join(s, ":"))
		}
	}

	_, err := vw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

func (vw *VCFWriter) info(row *extract.Row) string {
	var parts []string
	for i, key := range vw.sel.Info {
		v := row.Info[i]
		switch {
		case vw.flags[key]:
			if v == "1" {
				parts = append(parts, key)
			}
		case v != extract.Missing:
			parts = append(parts, key+"="+v)
		}
	}
	if len(parts) == 0 {
		return extract.Missing
	}
	return strings.Join(parts, ";")
}

// Flush flushes any buffered data to the underlying writer.
func (vw *VCFWriter) Flush() error {
	return vw.w.Flush()
}
