// Package output provides row output formatters.
package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/inodb/bcfscan/internal/extract"
)

// TabWriter writes extracted rows in tab-delimited format.
type TabWriter struct {
	w       *bufio.Writer
	columns []string
}

// NewTabWriter creates a new tab-delimited writer for rows with the given
// columns (see extract.Selection.Columns).
func NewTabWriter(w io.Writer, columns []string) *TabWriter {
	return &TabWriter{
		w:       bufio.NewWriter(w),
		columns: columns,
	}
}

// WriteHeader writes the header line.
func (tw *TabWriter) WriteHeader() error {
	_, err := tw.w.WriteString("#" + strings.Join(tw.columns, "\t") + "\n")
	return err
}

// Write writes a single row.
func (tw *TabWriter) Write(row *extract.Row) error {
	_, err := tw.w.WriteString(strings.Join(row.Fields(), "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}
