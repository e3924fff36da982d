package bcf

import (
	"strconv"
	"strings"
)

// GenotypeAllele is one encoded GT entry: (allele index + 1) << 1 | phased.
type GenotypeAllele int32

// Index returns the allele index, or false for a missing call.
func (a GenotypeAllele) Index() (int, bool) {
	if int32(a) == MissingInt || a>>1 == 0 {
		return 0, false
	}
	return int(a>>1) - 1, true
}

// IsPhased reports whether the allele is phased with the one before it.
func (a GenotypeAllele) IsPhased() bool { return a&1 == 1 }

// Genotype is the called alleles of one sample, in ploidy order.
type Genotype []GenotypeAllele

// IsMissing reports whether no allele was called.
func (g Genotype) IsMissing() bool {
	for _, a := range g {
		if _, ok := a.Index(); ok {
			return false
		}
	}
	return true
}

// String renders the genotype as in VCF text, e.g. "0/1" or "1|0".
func (g Genotype) String() string {
	if len(g) == 0 {
		return "."
	}
	var sb strings.Builder
	for i, a := range g {
		if i > 0 {
			if a.IsPhased() {
				sb.WriteByte('|')
			} else {
				sb.WriteByte('/')
			}
		}
		if idx, ok := a.Index(); ok {
			sb.WriteString(strconv.Itoa(idx))
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

// Genotypes decodes the GT field into one Genotype per sample. Samples of
// lower ploidy are trimmed at the vector-end marker.
func (r *Record) Genotypes() ([]Genotype, error) {
	vals, err := r.FormatField("GT").Integer()
	if err != nil {
		return nil, err
	}
	n := r.NSamples()
	if n == 0 {
		return nil, nil
	}
	ploidy := len(vals) / n
	out := make([]Genotype, n)
	for s := 0; s < n; s++ {
		g := make(Genotype, 0, ploidy)
		for _, v := range vals[s*ploidy : (s+1)*ploidy] {
			if v == VectorEndInt {
				break
			}
			g = append(g, GenotypeAllele(v))
		}
		out[s] = g
	}
	return out, nil
}
