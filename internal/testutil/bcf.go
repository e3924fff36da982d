package testutil

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Compression selects how WriteFile wraps the encoded stream.
type Compression int

const (
	BGZF Compression = iota
	Gzip
	Raw
)

func (c Compression) String() string {
	switch c {
	case BGZF:
		return "bgzf"
	case Gzip:
		return "gzip"
	}
	return "raw"
}

// Sentinels accepted in Field values.
const (
	MissingInt   int32 = math.MinInt32
	VectorEndInt int32 = math.MinInt32 + 1
)

// MissingFloat is the float32 missing sentinel.
var MissingFloat = math.Float32frombits(0x7F800001)

// VectorEndFloat is the float32 end-of-vector sentinel.
var VectorEndFloat = math.Float32frombits(0x7F800002)

const (
	btMissing byte = 0
	btInt8    byte = 1
	btInt16   byte = 2
	btInt32   byte = 3
	btFloat   byte = 5
	btChar    byte = 7
)

// Field is one INFO or FORMAT value. Exactly one of the value slices should
// be set. FORMAT Ints/Floats hold n values per sample, sample-major; FORMAT
// Strings hold one entry per sample.
type Field struct {
	Key     string
	Ints    []int32
	Floats  []float32
	Strings []string
	Flag    bool
}

// Variant is one record to encode.
type Variant struct {
	RID     int32
	Pos     int32
	Rlen    int32 // defaults to len(Alleles[0])
	Qual    float32
	ID      string
	Alleles []string
	Filters []string
	Info    []Field
	Format  []Field
}

type meta struct {
	kind   string
	id     string
	number string
	typ    string
	desc   string
	length int64
}

// Builder assembles a BCF stream.
type Builder struct {
	// ExplicitIDX writes IDX= attributes into the header lines.
	ExplicitIDX bool

	samples []string
	metas   []meta
	dict    map[string]int
	nDict   int
	contigs map[string]int
	records bytes.Buffer
}

// NewBuilder starts a container with the given sample columns.
func NewBuilder(samples ...string) *Builder {
	b := &Builder{
		samples: samples,
		dict:    map[string]int{"PASS": 0},
		nDict:   1,
		contigs: make(map[string]int),
	}
	b.metas = append(b.metas, meta{kind: "FILTER", id: "PASS", desc: "All filters passed"})
	return b
}

func (b *Builder) index(id string) {
	if _, ok := b.dict[id]; !ok {
		b.dict[id] = b.nDict
		b.nDict++
	}
}

// Contig declares a contig.
func (b *Builder) Contig(name string, length int64) *Builder {
	b.contigs[name] = len(b.contigs)
	b.metas = append(b.metas, meta{kind: "contig", id: name, length: length})
	return b
}

// Filter declares a FILTER.
func (b *Builder) Filter(id, desc string) *Builder {
	b.index(id)
	b.metas = append(b.metas, meta{kind: "FILTER", id: id, desc: desc})
	return b
}

// Info declares an INFO field.
func (b *Builder) Info(id, number, typ, desc string) *Builder {
	b.index(id)
	b.metas = append(b.metas, meta{kind: "INFO", id: id, number: number, typ: typ, desc: desc})
	return b
}

// Format declares a FORMAT field.
func (b *Builder) Format(id, number, typ, desc string) *Builder {
	b.index(id)
	b.metas = append(b.metas, meta{kind: "FORMAT", id: id, number: number, typ: typ, desc: desc})
	return b
}

// HeaderText renders the header lines, ending with #CHROM.
func (b *Builder) HeaderText() string {
	var sb strings.Builder
	sb.WriteString("##fileformat=VCFv4.2\n")
	for _, m := range b.metas {
		idx := ""
		switch {
		case b.ExplicitIDX && m.kind == "contig":
			idx = fmt.Sprintf(",IDX=%d", b.contigs[m.id])
		case b.ExplicitIDX:
			idx = fmt.Sprintf(",IDX=%d", b.dict[m.id])
		}
		switch m.kind {
		case "contig":
			fmt.Fprintf(&sb, "##contig=<ID=%s,length=%d%s>\n", m.id, m.length, idx)
		case "FILTER":
			fmt.Fprintf(&sb, "##FILTER=<ID=%s,Description=%q%s>\n", m.id, m.desc, idx)
		default:
			fmt.Fprintf(&sb, "##%s=<ID=%s,Number=%s,Type=%s,Description=%q%s>\n",
				m.kind, m.id, m.number, m.typ, m.desc, idx)
		}
	}
	sb.WriteString("#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	if len(b.samples) > 0 {
		sb.WriteString("\tFORMAT\t")
		sb.WriteString(strings.Join(b.samples, "\t"))
	}
	sb.WriteString("\n")
	return sb.String()
}

// Add encodes one variant. Unknown keys panic, since fixtures are static.
func (b *Builder) Add(v Variant) *Builder {
	var shared, indiv bytes.Buffer

	rlen := v.Rlen
	if rlen == 0 && len(v.Alleles) > 0 {
		rlen = int32(len(v.Alleles[0]))
	}
	putUint32(&shared, uint32(v.RID))
	putUint32(&shared, uint32(v.Pos))
	putUint32(&shared, uint32(rlen))
	putUint32(&shared, math.Float32bits(v.Qual))
	putUint32(&shared, uint32(len(v.Alleles))<<16|uint32(len(v.Info)))
	putUint32(&shared, uint32(len(v.Format))<<24|uint32(len(b.samples)))

	if v.ID == "" || v.ID == "." {
		writeDescriptor(&shared, btChar, 0)
	} else {
		writeChars(&shared, v.ID)
	}
	for _, a := range v.Alleles {
		writeChars(&shared, a)
	}

	filters := make([]int32, len(v.Filters))
	for i, f := range v.Filters {
		filters[i] = int32(b.key(f))
	}
	writeInts(&shared, filters, 1)

	for _, f := range v.Info {
		writeTypedInt(&shared, int32(b.key(f.Key)))
		switch {
		case f.Flag:
			writeDescriptor(&shared, btMissing, 0)
		case f.Ints != nil:
			writeInts(&shared, f.Ints, 1)
		case f.Floats != nil:
			writeFloats(&shared, f.Floats, 1)
		case f.Strings != nil:
			writeChars(&shared, strings.Join(f.Strings, ","))
		default:
			writeDescriptor(&shared, btMissing, 0)
		}
	}

	ns := len(b.samples)
	for _, f := range v.Format {
		writeTypedInt(&indiv, int32(b.key(f.Key)))
		switch {
		case f.Ints != nil:
			writeInts(&indiv, f.Ints, ns)
		case f.Floats != nil:
			writeFloats(&indiv, f.Floats, ns)
		case f.Strings != nil:
			width := 0
			for _, s := range f.Strings {
				width = max(width, len(s))
			}
			writeDescriptor(&indiv, btChar, width)
			for _, s := range f.Strings {
				indiv.WriteString(s)
				indiv.Write(make([]byte, width-len(s)))
			}
		}
	}

	return b.AddRaw(shared.Bytes(), indiv.Bytes())
}

// AddRaw appends a record from pre-encoded blocks.
func (b *Builder) AddRaw(shared, indiv []byte) *Builder {
	putUint32(&b.records, uint32(len(shared)))
	putUint32(&b.records, uint32(len(indiv)))
	b.records.Write(shared)
	b.records.Write(indiv)
	return b
}

// AppendBytes appends arbitrary bytes after the records, for corrupt tails.
func (b *Builder) AppendBytes(p []byte) *Builder {
	b.records.Write(p)
	return b
}

// RecordBytes returns a copy of the encoded records without the header.
func (b *Builder) RecordBytes() []byte {
	return append([]byte(nil), b.records.Bytes()...)
}

func (b *Builder) key(id string) int {
	k, ok := b.dict[id]
	if !ok {
		panic(fmt.Sprintf("testutil: undeclared tag %s", id))
	}
	return k
}

// Bytes returns the uncompressed BCF stream.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	out.WriteString("BCF\x02\x02")
	text := b.HeaderText()
	putUint32(&out, uint32(len(text)+1))
	out.WriteString(text)
	out.WriteByte(0)
	out.Write(b.records.Bytes())
	return out.Bytes()
}

// WriteFile writes the stream to path with the given compression.
func (b *Builder) WriteFile(path string, c Compression) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	data := b.Bytes()
	switch c {
	case BGZF:
		w := bgzf.NewWriter(f, 1)
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	case Gzip:
		w := gzip.NewWriter(f)
		if _, err := w.Write(data); err != nil {
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
	default:
		if _, err := f.Write(data); err != nil {
			return err
		}
	}
	return f.Close()
}

// WriteTemp writes the stream into a fresh temp dir and returns its path.
func (b *Builder) WriteTemp(t testing.TB, c Compression) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bcf")
	if err := b.WriteFile(path, c); err != nil {
		t.Fatalf("write bcf fixture: %v", err)
	}
	return path
}

// WriteTruncated writes the fixture and cuts the file to num/den of its
// length, simulating an interrupted copy.
func (b *Builder) WriteTruncated(t testing.TB, c Compression, num, den int) string {
	t.Helper()
	path := b.WriteTemp(t, c)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read bcf fixture: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)*num/den], 0o644); err != nil {
		t.Fatalf("truncate bcf fixture: %v", err)
	}
	return path
}

// Many builds n records on contig "1" with varying INFO values, large
// enough to span several BGZF blocks when n is in the thousands.
func Many(n int) *Builder {
	b := NewBuilder("S1", "S2")
	b.Contig("1", 249250621)
	b.Info("DP", "1", "Integer", "Raw read depth")
	b.Info("ANN", ".", "String", "Annotation")
	b.Format("GT", "1", "String", "Genotype")
	for i := 0; i < n; i++ {
		b.Add(Variant{
			Pos:     int32(1000 + 7*i),
			Alleles: []string{"A", "G"},
			Info: []Field{
				{Key: "DP", Ints: []int32{int32(i)}},
				{Key: "ANN", Strings: []string{fmt.Sprintf("G|gene%d|%08x", i, uint32(i)*2654435761)}},
			},
			Format: []Field{{Key: "GT", Ints: []int32{2, 4, 4, 5}}},
		})
	}
	return b
}

// Standard builds the 60-record fixture: one sample, contig "1", positions
// 10021..10080, QUAL 0, MQ0F=1.0 on every record, PL of length 3 except the
// last record, which has three alleles (PL of length 6) and SGB=-0.379885.
func Standard() *Builder {
	b := NewBuilder("HG00096")
	b.Contig("1", 249250621)
	b.Contig("2", 243199373)
	b.Filter("LowQual", "Low quality")
	b.Info("DP", "1", "Integer", "Raw read depth")
	b.Info("SGB", "1", "Float", "Segregation based metric.")
	b.Info("MQ0F", "1", "Float", "Fraction of MQ0 reads (smaller is better)")
	b.Info("INDEL", "0", "Flag", "Indicates that the variant is an INDEL.")
	b.Info("DP4", "4", "Integer", "Number of high-quality ref-forward, ref-reverse, alt-forward and alt-reverse bases")
	b.Info("ANN", ".", "String", "Annotation")
	b.Format("GT", "1", "String", "Genotype")
	b.Format("PL", "G", "Integer", "List of Phred-scaled genotype likelihoods")
	b.Format("GQ", "1", "Float", "Genotype quality")

	for i := 0; i < 60; i++ {
		v := Variant{
			Pos:     int32(10021 + i),
			Alleles: []string{"C", "T"},
			Filters: []string{"PASS"},
			Info: []Field{
				{Key: "DP", Ints: []int32{int32(i)}},
				{Key: "MQ0F", Floats: []float32{1}},
				{Key: "DP4", Ints: []int32{int32(i), 1, 300, 40000}},
			},
			Format: []Field{
				{Key: "GT", Ints: []int32{2, 4}},
				{Key: "PL", Ints: []int32{0, 3, 27}},
			},
		}
		if i%10 == 0 {
			v.ID = fmt.Sprintf("rs%d", 1000+i)
			v.Info = append(v.Info, Field{Key: "ANN", Strings: []string{"T|missense", "T|synonymous"}})
		}
		if i == 59 {
			v.Alleles = []string{"A", "C", "G"}
			v.Filters = []string{"LowQual"}
			v.Info = append(v.Info,
				Field{Key: "SGB", Floats: []float32{-0.379885}},
				Field{Key: "INDEL", Flag: true},
			)
			v.Format = []Field{
				{Key: "GT", Ints: []int32{2, 5}},
				{Key: "PL", Ints: []int32{0, 3, 27, 5, 30, 60}},
				{Key: "GQ", Floats: []float32{12.5}},
			}
		}
		b.Add(v)
	}
	return b
}

func putUint32(w *bytes.Buffer, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.Write(buf[:])
}

func writeDescriptor(w *bytes.Buffer, typ byte, n int) {
	if n < 15 {
		w.WriteByte(byte(n)<<4 | typ)
		return
	}
	w.WriteByte(15<<4 | typ)
	writeTypedInt(w, int32(n))
}

func writeTypedInt(w *bytes.Buffer, v int32) {
	writeInts(w, []int32{v}, 1)
}

func writeChars(w *bytes.Buffer, s string) {
	writeDescriptor(w, btChar, len(s))
	w.WriteString(s)
}

// intType picks the narrowest width whose reserved sentinel range is not hit.
func intType(values []int32) byte {
	typ := btInt8
	for _, v := range values {
		if v == MissingInt || v == VectorEndInt {
			continue
		}
		switch {
		case v >= -120 && v <= math.MaxInt8:
		case v >= -32760 && v <= math.MaxInt16:
			typ = max(typ, btInt16)
		default:
			typ = btInt32
		}
	}
	return typ
}

// writeInts writes a typed int vector of len(values)/reps values per
// repetition.
func writeInts(w *bytes.Buffer, values []int32, reps int) {
	n := 0
	if reps > 0 {
		n = len(values) / reps
	}
	typ := intType(values)
	writeDescriptor(w, typ, n)
	for _, v := range values {
		switch typ {
		case btInt8:
			switch v {
			case MissingInt:
				w.WriteByte(0x80)
			case VectorEndInt:
				w.WriteByte(0x81)
			default:
				w.WriteByte(byte(int8(v)))
			}
		case btInt16:
			var buf [2]byte
			switch v {
			case MissingInt:
				binary.LittleEndian.PutUint16(buf[:], 0x8000)
			case VectorEndInt:
				binary.LittleEndian.PutUint16(buf[:], 0x8001)
			default:
				binary.LittleEndian.PutUint16(buf[:], uint16(int16(v)))
			}
			w.Write(buf[:])
		default:
			putUint32(w, uint32(v))
		}
	}
}

func writeFloats(w *bytes.Buffer, values []float32, reps int) {
	n := 0
	if reps > 0 {
		n = len(values) / reps
	}
	writeDescriptor(w, btFloat, n)
	for _, v := range values {
		putUint32(w, math.Float32bits(v))
	}
}
