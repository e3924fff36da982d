package bcf

import (
	"sync/atomic"

	"github.com/inodb/bcfscan/internal/hts"
)

// Declaration types re-exported from the engine.
type (
	FieldDef  = hts.FieldDef
	Contig    = hts.Contig
	Number    = hts.Number
	ValueType = hts.ValueType
)

// Declared value types.
const (
	TypeFlag    = hts.TypeFlag
	TypeInteger = hts.TypeInteger
	TypeFloat   = hts.TypeReal
	TypeString  = hts.TypeString
)

// Header is the immutable metadata of an open container. It is shared by
// the Reader and every Record read from it, and is released when the
// Reader is closed; after that, field decoding on derived Records fails
// with ErrUnset wrapping ErrClosed.
type Header struct {
	handle   *headerHandle
	released atomic.Bool
}

func newHeader(h *headerHandle) *Header {
	return &Header{handle: h}
}

// release marks the header unusable and frees the engine handle.
func (h *Header) release() {
	h.released.Store(true)
	h.handle.destroy()
}

// Released reports whether the owning Reader has been closed.
func (h *Header) Released() bool { return h.released.Load() }

// Version returns the ##fileformat value, e.g. "VCFv4.2".
func (h *Header) Version() string { return h.handle.hdr.Version() }

// Text returns the raw header text.
func (h *Header) Text() string { return h.handle.hdr.Text() }

// Lines returns the header lines up to and including #CHROM.
func (h *Header) Lines() []string { return h.handle.hdr.Lines() }

// Samples returns the sample names in column order.
func (h *Header) Samples() []string { return h.handle.hdr.Samples() }

// NSamples returns the number of samples.
func (h *Header) NSamples() int { return h.handle.hdr.NSamples() }

// Contigs returns the contig dictionary. It is empty once released.
func (h *Header) Contigs() []Contig { return h.handle.hdr.Contigs() }

// Filters returns the declared FILTER IDs, PASS first.
func (h *Header) Filters() []string { return h.handle.hdr.Filters() }

// InfoFields returns the INFO declarations in dictionary order.
func (h *Header) InfoFields() []FieldDef { return h.handle.hdr.Fields(hts.CategoryInfo) }

// FormatFields returns the FORMAT declarations in dictionary order.
func (h *Header) FormatFields() []FieldDef { return h.handle.hdr.Fields(hts.CategoryFormat) }

// Field looks up the declaration of name in the given category.
func (h *Header) Field(cat Category, name string) (FieldDef, bool) {
	tag, ok := h.handle.hdr.Tag(name)
	if !ok {
		return FieldDef{}, false
	}
	def := tag.Info
	if cat.engine() == hts.CategoryFormat {
		def = tag.Format
	}
	if def == nil {
		return FieldDef{}, false
	}
	return *def, true
}
