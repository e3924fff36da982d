package extract

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/bcf"
)

// Missing is the text rendering of an absent or undecodable value.
const Missing = "."

// Row is one record flattened to text. Info is aligned with the
// selection's INFO list; Samples holds one slice per sample aligned with
// its FORMAT list.
type Row struct {
	Contig      string
	Pos         int64 // 1-based
	ID          string
	Ref         string
	Alt         []string
	Qual        float32
	QualMissing bool
	Filters     []string
	Info        []string
	Samples     [][]string
}

// Fields returns the row as column values in Selection.Columns order.
func (r *Row) Fields() []string {
	qual := Missing
	if !r.QualMissing {
		qual = formatFloat(r.Qual)
	}
	filter := Missing
	if len(r.Filters) > 0 {
		filter = strings.Join(r.Filters, ";")
	}
	alt := Missing
	if len(r.Alt) > 0 {
		alt = strings.Join(r.Alt, ",")
	}

	out := []string{r.Contig, strconv.FormatInt(r.Pos, 10), r.ID, r.Ref, alt, qual, filter}
	out = append(out, r.Info...)
	for _, s := range r.Samples {
		out = append(out, s...)
	}
	return out
}

// Extractor renders records against one header.
type Extractor struct {
	header *bcf.Header
	sel    Selection
	logger *zap.Logger
}

// NewExtractor creates an extractor for records read with header h.
func NewExtractor(h *bcf.Header, sel Selection) *Extractor {
	return &Extractor{
		header: h,
		sel:    sel,
		logger: zap.NewNop(),
	}
}

// SetLogger sets the logger for field decode diagnostics.
func (e *Extractor) SetLogger(l *zap.Logger) {
	e.logger = l
}

// Selection returns the extractor's field selection.
func (e *Extractor) Selection() Selection { return e.sel }

// Extract flattens rec. Field-level failures render as Missing; only a
// record that cannot be resolved at all is an error.
func (e *Extractor) Extract(rec *bcf.Record) (*Row, error) {
	contig, err := rec.Contig()
	if err != nil {
		return nil, fmt.Errorf("resolve contig: %w", err)
	}
	filters, err := rec.Filters()
	if err != nil {
		return nil, fmt.Errorf("resolve filters: %w", err)
	}

	alleles := rec.Alleles()
	row := &Row{
		Contig:      contig,
		Pos:         int64(rec.Pos()) + 1,
		ID:          rec.ID(),
		Qual:        rec.Qual(),
		QualMissing: rec.IsQualMissing(),
		Filters:     filters,
		Info:        make([]string, len(e.sel.Info)),
	}
	if len(alleles) > 0 {
		row.Ref = alleles[0]
		row.Alt = alleles[1:]
	}

	for i, name := range e.sel.Info {
		row.Info[i] = e.renderInfo(rec, name)
	}

	n := rec.NSamples()
	if len(e.sel.Format) == 0 || n == 0 {
		return row, nil
	}
	row.Samples = make([][]string, n)
	for s := range row.Samples {
		row.Samples[s] = make([]string, len(e.sel.Format))
	}
	for j, name := range e.sel.Format {
		values := e.renderFormat(rec, name, n)
		for s := range n {
			row.Samples[s][j] = values[s]
		}
	}
	return row, nil
}

func (e *Extractor) renderInfo(rec *bcf.Record, name string) string {
	def, ok := e.header.Field(bcf.Info, name)
	if !ok {
		return Missing
	}
	acc := rec.InfoField(name)
	var (
		out string
		err error
	)
	switch def.Type {
	case bcf.TypeFlag:
		var set bool
		if set, err = acc.Flag(); err == nil {
			out = "0"
			if set {
				out = "1"
			}
		}
	case bcf.TypeInteger:
		var v []int32
		if v, err = acc.Integer(); err == nil {
			out = joinInts(v)
		}
	case bcf.TypeFloat:
		var v []float32
		if v, err = acc.Float(); err == nil {
			out = joinFloats(v)
		}
	default:
		var v []string
		if v, err = acc.Strings(); err == nil {
			out = strings.Join(v, ",")
		}
	}
	if err != nil {
		e.logDecode(rec, err)
		return Missing
	}
	if out == "" {
		return Missing
	}
	return out
}

// renderFormat returns one rendered value per sample.
func (e *Extractor) renderFormat(rec *bcf.Record, name string, n int) []string {
	out := make([]string, n)
	for s := range out {
		out[s] = Missing
	}
	def, ok := e.header.Field(bcf.Format, name)
	if !ok {
		return out
	}
	acc := rec.FormatField(name)

	var err error
	switch {
	case name == "GT":
		var gts []bcf.Genotype
		if gts, err = rec.Genotypes(); err == nil {
			for s, g := range gts {
				out[s] = g.String()
			}
		}
	case def.Type == bcf.TypeInteger:
		var v []int32
		if v, err = acc.Integer(); err == nil {
			for s, vals := range perSample(v, n) {
				out[s] = joinInts(trimIntEnd(vals))
			}
		}
	case def.Type == bcf.TypeFloat:
		var v []float32
		if v, err = acc.Float(); err == nil {
			for s, vals := range perSample(v, n) {
				out[s] = joinFloats(trimFloatEnd(vals))
			}
		}
	default:
		var v []string
		if v, err = acc.Strings(); err == nil {
			for s := 0; s < n && s < len(v); s++ {
				out[s] = v[s]
			}
		}
	}
	if err != nil {
		e.logDecode(rec, err)
		return out
	}
	for s := range out {
		if out[s] == "" {
			out[s] = Missing
		}
	}
	return out
}

func (e *Extractor) logDecode(rec *bcf.Record, err error) {
	if errors.Is(err, bcf.ErrNotPresent) {
		return
	}
	e.logger.Debug("field not decoded",
		zap.Uint32("pos", rec.Pos()),
		zap.Error(err))
}

// perSample splits a flattened FORMAT matrix into n equal rows.
func perSample[T any](values []T, n int) [][]T {
	if n == 0 || len(values)%n != 0 {
		return nil
	}
	k := len(values) / n
	out := make([][]T, n)
	for s := range out {
		out[s] = values[s*k : (s+1)*k]
	}
	return out
}

func trimIntEnd(v []int32) []int32 {
	for i, x := range v {
		if x == bcf.VectorEndInt {
			return v[:i]
		}
	}
	return v
}

func trimFloatEnd(v []float32) []float32 {
	for i, x := range v {
		if bcf.IsVectorEndFloat(x) {
			return v[:i]
		}
	}
	return v
}

func joinInts(v []int32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		if x == bcf.MissingInt {
			parts[i] = Missing
		} else {
			parts[i] = strconv.FormatInt(int64(x), 10)
		}
	}
	return strings.Join(parts, ",")
}

func joinFloats(v []float32) string {
	parts := make([]string, len(v))
	for i, x := range v {
		if bcf.IsMissingFloat(x) {
			parts[i] = Missing
		} else {
			parts[i] = formatFloat(x)
		}
	}
	return strings.Join(parts, ",")
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}
