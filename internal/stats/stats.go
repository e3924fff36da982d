// Package stats summarizes BCF files and caches the summaries beside them.
package stats

import "github.com/inodb/bcfscan/internal/bcf"

// ContigCount is the number of records on one contig.
type ContigCount struct {
	Contig  string
	Records int64
}

// FileStats summarizes one BCF file.
type FileStats struct {
	Records     int64
	Invalid     int64
	Unresolved  int64 // records whose contig or filters are not in the header
	Samples     int
	InfoFields  int
	FmtFields   int
	Contigs     []ContigCount // header order, contigs with records only
	Multiallele int64         // records with more than one alternate allele
	Filtered    int64         // records with a FILTER other than PASS
}

// Collect reads every remaining record of r. Invalid and unresolvable
// records are counted, not returned as errors.
func Collect(r *bcf.Reader) (*FileStats, error) {
	h := r.Header()
	st := &FileStats{
		Samples:    h.NSamples(),
		InfoFields: len(h.InfoFields()),
		FmtFields:  len(h.FormatFields()),
	}
	contigs := h.Contigs()
	index := make(map[string]int, len(contigs))
	for i, c := range contigs {
		index[c.Name] = i
	}
	counts := make([]int64, len(contigs))

	for rec, err := range r.Records() {
		if err != nil {
			if !bcf.IsRecoverable(err) {
				return nil, err
			}
			st.Invalid++
			continue
		}
		st.Records++

		if len(rec.Alleles()) > 2 {
			st.Multiallele++
		}

		contig, err := rec.Contig()
		if err != nil {
			st.Unresolved++
			continue
		}
		counts[index[contig]]++

		filters, err := rec.Filters()
		if err != nil {
			st.Unresolved++
			continue
		}
		for _, f := range filters {
			if f != "PASS" {
				st.Filtered++
				break
			}
		}
	}

	for i, n := range counts {
		if n > 0 {
			st.Contigs = append(st.Contigs, ContigCount{Contig: contigs[i].Name, Records: n})
		}
	}
	return st, nil
}
