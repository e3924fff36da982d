package hts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ValueType is a declared header type, numbered as the engine's typed
// getters expect them.
type ValueType int

const (
	TypeFlag ValueType = iota
	TypeInteger
	TypeReal
	TypeString
)

func (t ValueType) String() string {
	switch t {
	case TypeFlag:
		return "Flag"
	case TypeInteger:
		return "Integer"
	case TypeReal:
		return "Float"
	case TypeString:
		return "String"
	}
	return "Unknown"
}

// Category is the header line class a definition belongs to.
type Category int

const (
	CategoryFilter Category = iota
	CategoryInfo
	CategoryFormat
)

func (c Category) String() string {
	switch c {
	case CategoryFilter:
		return "FILTER"
	case CategoryInfo:
		return "INFO"
	case CategoryFormat:
		return "FORMAT"
	}
	return "UNKNOWN"
}

// NumberKind describes how a field's arity is declared.
type NumberKind int

const (
	NumberFixed    NumberKind = iota // Number=<n>
	NumberAllele                     // Number=A, one per alternate allele
	NumberRef                        // Number=R, one per allele including the reference
	NumberGenotype                   // Number=G, one per possible genotype
	NumberVariable                   // Number=.
)

// Number is a declared arity.
type Number struct {
	Kind NumberKind
	N    int // only meaningful for NumberFixed
}

func (n Number) String() string {
	switch n.Kind {
	case NumberAllele:
		return "A"
	case NumberRef:
		return "R"
	case NumberGenotype:
		return "G"
	case NumberVariable:
		return "."
	}
	return strconv.Itoa(n.N)
}

func parseNumber(s string) (Number, error) {
	switch s {
	case "A":
		return Number{Kind: NumberAllele}, nil
	case "R":
		return Number{Kind: NumberRef}, nil
	case "G":
		return Number{Kind: NumberGenotype}, nil
	case ".":
		return Number{Kind: NumberVariable}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Number{}, fmt.Errorf("invalid Number %q", s)
	}
	return Number{Kind: NumberFixed, N: n}, nil
}

func parseValueType(s string) (ValueType, error) {
	switch s {
	case "Integer":
		return TypeInteger, nil
	case "Float":
		return TypeReal, nil
	case "String", "Character":
		return TypeString, nil
	case "Flag":
		return TypeFlag, nil
	}
	return 0, fmt.Errorf("invalid Type %q", s)
}

// FieldDef is an INFO or FORMAT declaration.
type FieldDef struct {
	ID          string
	Category    Category
	Number      Number
	Type        ValueType
	Description string
}

// TagDef is one entry of the shared FILTER/INFO/FORMAT dictionary.
type TagDef struct {
	ID     string
	Idx    int
	Filter bool
	Info   *FieldDef
	Format *FieldDef
}

// Contig is one entry of the contig dictionary.
type Contig struct {
	Name   string
	Length int64
	Idx    int
}

// Header is the parsed header of an open container.
type Header struct {
	text    string
	version string

	tags    map[string]*TagDef
	byIdx   []*TagDef
	contigs []*Contig
	byName  map[string]*Contig
	samples []string
	lines   []string

	destroyed bool
}

// ReadHeader reads and parses the header. It must be called exactly once,
// immediately after Open.
func ReadHeader(f *File) (*Header, error) {
	if f.closed {
		return nil, ErrClosed
	}
	if f.headerRead {
		return nil, fmt.Errorf("hts: header already read")
	}
	f.headerRead = true

	magic := make([]byte, len(bcfMagic)+1)
	if _, err := io.ReadFull(f.r, magic); err != nil {
		return nil, fmt.Errorf("read bcf magic: %w", err)
	}
	if !bytes.Equal(magic[:len(bcfMagic)], bcfMagic) {
		return nil, ErrUnrecognizedFormat
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(f.r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	lText := binary.LittleEndian.Uint32(lenBuf[:])
	if lText > maxBlockSize {
		return nil, fmt.Errorf("header length %d: %w", lText, ErrRecordTooLarge)
	}

	text := make([]byte, lText)
	if _, err := io.ReadFull(f.r, text); err != nil {
		return nil, fmt.Errorf("read header text: %w", err)
	}
	if i := bytes.IndexByte(text, 0); i >= 0 {
		text = text[:i]
	}

	return ParseHeader(string(text))
}

// ParseHeader parses VCF-style header text into dictionaries.
func ParseHeader(text string) (*Header, error) {
	h := &Header{
		text:   text,
		tags:   make(map[string]*TagDef),
		byName: make(map[string]*Contig),
	}

	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) == 0 || !strings.HasPrefix(lines[0], "##fileformat=") {
		return nil, &ParseError{Line: 1, Message: "expected ##fileformat line"}
	}
	h.version = strings.TrimPrefix(strings.TrimRight(lines[0], "\r"), "##fileformat=")

	// PASS always occupies index 0 of the string dictionary.
	if _, err := h.addTag("PASS", -1); err != nil {
		return nil, err
	}
	h.byIdx[0].Filter = true

	sawChrom := false
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		lineNo := i + 1
		if line == "" {
			continue
		}
		h.lines = append(h.lines, line)

		if strings.HasPrefix(line, "#CHROM") {
			cols := strings.Split(line, "\t")
			if len(cols) > 9 {
				h.samples = append([]string(nil), cols[9:]...)
			}
			sawChrom = true
			break
		}
		if !strings.HasPrefix(line, "##") {
			return nil, &ParseError{Line: lineNo, Message: "expected meta line or #CHROM"}
		}
		if i == 0 {
			continue
		}

		if err := h.parseMetaLine(line[2:]); err != nil {
			return nil, &ParseError{Line: lineNo, Message: err.Error()}
		}
	}

	if !sawChrom {
		return nil, &ParseError{Line: len(lines), Message: "no #CHROM header line found"}
	}
	return h, nil
}

func (h *Header) parseMetaLine(line string) error {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return fmt.Errorf("meta line without '='")
	}
	switch key {
	case "INFO", "FORMAT", "FILTER", "contig":
	default:
		return nil
	}

	attrs, err := parseStructured(value)
	if err != nil {
		return err
	}
	id := attrs["ID"]
	if id == "" {
		return fmt.Errorf("%s line without ID", key)
	}

	idx := -1
	if s, ok := attrs["IDX"]; ok {
		idx, err = strconv.Atoi(s)
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid IDX %q", s)
		}
	}

	if key == "contig" {
		return h.addContig(id, attrs["length"], idx)
	}

	tag, err := h.addTag(id, idx)
	if err != nil {
		return err
	}
	if key == "FILTER" {
		tag.Filter = true
		return nil
	}

	def := &FieldDef{ID: id, Description: attrs["Description"]}
	if def.Type, err = parseValueType(attrs["Type"]); err != nil {
		return err
	}
	if def.Number, err = parseNumber(attrs["Number"]); err != nil {
		return err
	}
	if key == "INFO" {
		def.Category = CategoryInfo
		tag.Info = def
	} else {
		def.Category = CategoryFormat
		tag.Format = def
	}
	return nil
}

// addTag returns the dictionary entry for id, creating it at idx (or the next
// free index when idx is negative).
func (h *Header) addTag(id string, idx int) (*TagDef, error) {
	if tag, ok := h.tags[id]; ok {
		if idx >= 0 && idx != tag.Idx {
			return nil, fmt.Errorf("tag %s declared with IDX %d and %d", id, tag.Idx, idx)
		}
		return tag, nil
	}
	if idx < 0 {
		idx = len(h.tags)
		for idx < len(h.byIdx) && h.byIdx[idx] != nil {
			idx++
		}
	}
	for len(h.byIdx) <= idx {
		h.byIdx = append(h.byIdx, nil)
	}
	if h.byIdx[idx] != nil {
		return nil, fmt.Errorf("IDX %d used by both %s and %s", idx, h.byIdx[idx].ID, id)
	}
	tag := &TagDef{ID: id, Idx: idx}
	h.byIdx[idx] = tag
	h.tags[id] = tag
	return tag, nil
}

func (h *Header) addContig(name, length string, idx int) error {
	if _, ok := h.byName[name]; ok {
		return fmt.Errorf("duplicate contig %s", name)
	}
	c := &Contig{Name: name}
	if length != "" {
		n, err := strconv.ParseInt(length, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid contig length %q", length)
		}
		c.Length = n
	}
	if idx < 0 {
		idx = len(h.byName)
		for idx < len(h.contigs) && h.contigs[idx] != nil {
			idx++
		}
	}
	for len(h.contigs) <= idx {
		h.contigs = append(h.contigs, nil)
	}
	if h.contigs[idx] != nil {
		return fmt.Errorf("contig IDX %d used by both %s and %s", idx, h.contigs[idx].Name, name)
	}
	c.Idx = idx
	h.contigs[idx] = c
	h.byName[name] = c
	return nil
}

// parseStructured parses the <key=value,...> body of a structured meta line.
// Quoted values may contain commas and backslash escapes.
func parseStructured(s string) (map[string]string, error) {
	if len(s) < 2 || s[0] != '<' || s[len(s)-1] != '>' {
		return nil, fmt.Errorf("structured value must be enclosed in <>")
	}
	s = s[1 : len(s)-1]

	attrs := make(map[string]string)
	for len(s) > 0 {
		eq := strings.IndexByte(s, '=')
		if eq <= 0 {
			return nil, fmt.Errorf("malformed attribute %q", s)
		}
		key := s[:eq]
		s = s[eq+1:]

		var value string
		if strings.HasPrefix(s, `"`) {
			var b strings.Builder
			i := 1
			closed := false
			for ; i < len(s); i++ {
				c := s[i]
				if c == '\\' && i+1 < len(s) {
					i++
					b.WriteByte(s[i])
					continue
				}
				if c == '"' {
					closed = true
					i++
					break
				}
				b.WriteByte(c)
			}
			if !closed {
				return nil, fmt.Errorf("unterminated quote in %s", key)
			}
			value = b.String()
			s = s[i:]
		} else {
			end := strings.IndexByte(s, ',')
			if end < 0 {
				end = len(s)
			}
			value = s[:end]
			s = s[end:]
		}
		attrs[key] = value

		if len(s) > 0 {
			if s[0] != ',' {
				return nil, fmt.Errorf("expected ',' after %s", key)
			}
			s = s[1:]
		}
	}
	return attrs, nil
}

// DestroyHeader drops the header's dictionaries. Lookups on a destroyed
// header report every tag as undefined and every contig as unknown.
func DestroyHeader(h *Header) {
	h.destroyed = true
	h.tags = nil
	h.byIdx = nil
	h.byName = nil
	h.contigs = nil
}

// Destroyed reports whether DestroyHeader has been called.
func (h *Header) Destroyed() bool { return h.destroyed }

// Text returns the raw header text.
func (h *Header) Text() string { return h.text }

// Version returns the ##fileformat value.
func (h *Header) Version() string { return h.version }

// Lines returns the header lines, ending with the #CHROM line.
func (h *Header) Lines() []string { return append([]string(nil), h.lines...) }

// Samples returns the sample names in column order.
func (h *Header) Samples() []string { return append([]string(nil), h.samples...) }

// NSamples returns the number of samples.
func (h *Header) NSamples() int { return len(h.samples) }

// Tag looks up a FILTER/INFO/FORMAT dictionary entry by ID.
func (h *Header) Tag(id string) (*TagDef, bool) {
	t, ok := h.tags[id]
	return t, ok
}

// TagByIndex looks up a dictionary entry by its index.
func (h *Header) TagByIndex(idx int) (*TagDef, bool) {
	if idx < 0 || idx >= len(h.byIdx) || h.byIdx[idx] == nil {
		return nil, false
	}
	return h.byIdx[idx], true
}

// Contigs returns the contig dictionary in index order. Gaps left by sparse
// IDX values are omitted.
func (h *Header) Contigs() []Contig {
	out := make([]Contig, 0, len(h.contigs))
	for _, c := range h.contigs {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// ContigByIndex resolves a record's reference id.
func (h *Header) ContigByIndex(rid int) (Contig, bool) {
	if rid < 0 || rid >= len(h.contigs) || h.contigs[rid] == nil {
		return Contig{}, false
	}
	return *h.contigs[rid], true
}

// Fields returns the INFO or FORMAT declarations in dictionary order.
func (h *Header) Fields(cat Category) []FieldDef {
	var out []FieldDef
	for _, t := range h.byIdx {
		if t == nil {
			continue
		}
		switch {
		case cat == CategoryInfo && t.Info != nil:
			out = append(out, *t.Info)
		case cat == CategoryFormat && t.Format != nil:
			out = append(out, *t.Format)
		}
	}
	return out
}

// Filters returns the declared FILTER IDs in dictionary order.
func (h *Header) Filters() []string {
	var out []string
	for _, t := range h.byIdx {
		if t != nil && t.Filter {
			out = append(out, t.ID)
		}
	}
	return out
}
