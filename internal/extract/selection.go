// Package extract flattens BCF records into text rows, optionally across a
// pool of workers.
package extract

import (
	"strings"
)

// Fixed leading columns of every row.
var positionalColumns = []string{"CHROM", "POS", "ID", "REF", "ALT", "QUAL", "FILTER"}

// Selection names the INFO and FORMAT fields to extract.
type Selection struct {
	Info   []string
	Format []string
}

// ParseSelection builds a Selection from comma-separated tag lists. Empty
// entries and duplicates are dropped.
func ParseSelection(info, format string) Selection {
	return Selection{Info: splitList(info), Format: splitList(format)}
}

func splitList(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// IsEmpty reports whether no fields are selected.
func (s Selection) IsEmpty() bool { return len(s.Info) == 0 && len(s.Format) == 0 }

// Columns returns the column names of rows extracted with this selection:
// positional columns, then INFO fields, then SAMPLE:FIELD for each sample.
func (s Selection) Columns(samples []string) []string {
	cols := append([]string(nil), positionalColumns...)
	cols = append(cols, s.Info...)
	for _, sample := range samples {
		for _, f := range s.Format {
			cols = append(cols, sample+":"+f)
		}
	}
	return cols
}
