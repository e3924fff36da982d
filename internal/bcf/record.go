package bcf

import (
	"errors"
	"fmt"

	"github.com/inodb/bcfscan/internal/hts"
)

// ErrUnknownContig is returned by Record.Contig when the record's reference
// id is not in the header's contig dictionary.
var ErrUnknownContig = errors.New("bcf: reference id not in contig dictionary")

// Record is one variant site. A Record is bound to the Header of the Reader
// that filled it; INFO and FORMAT fields are decoded on demand through that
// header. The zero value is an unbound record ready to be passed to
// Reader.Read.
//
// A Record owns its bytes: subsequent reads into other records do not
// affect it. Reading into the same Record again replaces its contents.
type Record struct {
	inner  *hts.Record
	header *Header
}

// NewRecord returns an unbound record.
func NewRecord() *Record {
	return &Record{inner: &hts.Record{}}
}

func (r *Record) engine() *hts.Record {
	if r.inner == nil {
		r.inner = &hts.Record{}
	}
	return r.inner
}

// bound returns the live engine header or an Unset error.
func (r *Record) bound() (*hts.Header, error) {
	if r.header == nil {
		return nil, &FieldError{Kind: Unset}
	}
	if r.header.Released() {
		return nil, &FieldError{Kind: Unset, Err: ErrClosed}
	}
	return r.header.handle.hdr, nil
}

// Header returns the header the record was read with, or nil.
func (r *Record) Header() *Header { return r.header }

// RID returns the 0-based reference sequence id.
func (r *Record) RID() (int, error) {
	if _, err := r.bound(); err != nil {
		return 0, err
	}
	return int(r.inner.RID()), nil
}

// Contig resolves the reference id against the header.
func (r *Record) Contig() (string, error) {
	h, err := r.bound()
	if err != nil {
		return "", err
	}
	c, ok := h.ContigByIndex(int(r.inner.RID()))
	if !ok {
		return "", fmt.Errorf("rid %d: %w", r.inner.RID(), ErrUnknownContig)
	}
	return c.Name, nil
}

// Pos returns the 0-based position. It stays available after the Reader is
// closed.
func (r *Record) Pos() uint32 { return uint32(r.engine().Pos()) }

// End returns the 0-based exclusive end of the reference span.
func (r *Record) End() uint32 { return uint32(r.engine().Pos() + r.engine().Rlen()) }

// Qual returns the site quality. A missing quality is the float missing
// marker; see IsQualMissing.
func (r *Record) Qual() float32 { return r.engine().Qual() }

// IsQualMissing reports whether QUAL was ".".
func (r *Record) IsQualMissing() bool { return hts.IsMissingFloat32(r.engine().Qual()) }

// ID returns the variant identifier, "." when unset.
func (r *Record) ID() string {
	if r.inner == nil {
		return "."
	}
	return r.inner.ID()
}

// Alleles returns the reference allele followed by the alternates.
func (r *Record) Alleles() []string { return r.engine().Alleles() }

// NSamples returns the number of samples stored in the record.
func (r *Record) NSamples() int { return r.engine().NSamples() }

// Filters returns the applied FILTER IDs. An empty result means the filter
// column was ".".
func (r *Record) Filters() ([]string, error) {
	h, err := r.bound()
	if err != nil {
		return nil, err
	}
	ids := r.inner.FilterIDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		tag, ok := h.TagByIndex(int(id))
		if !ok {
			return nil, fmt.Errorf("filter index %d not in header", id)
		}
		out = append(out, tag.ID)
	}
	return out, nil
}

// InfoField returns an accessor for the named INFO field.
func (r *Record) InfoField(name string) FieldAccessor {
	return FieldAccessor{rec: r, name: name, category: Info}
}

// FormatField returns an accessor for the named FORMAT field.
func (r *Record) FormatField(name string) FieldAccessor {
	return FieldAccessor{rec: r, name: name, category: Format}
}

// InfoNames returns the tags of the INFO fields present on the record.
func (r *Record) InfoNames() ([]string, error) {
	return r.names(r.engine().InfoKeys())
}

// FormatNames returns the tags of the FORMAT fields present on the record.
func (r *Record) FormatNames() ([]string, error) {
	return r.names(r.engine().FormatKeys())
}

func (r *Record) names(keys []int) ([]string, error) {
	h, err := r.bound()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if tag, ok := h.TagByIndex(k); ok {
			out = append(out, tag.ID)
		}
	}
	return out, nil
}

// reset unbinds the record ahead of a read.
func (r *Record) reset() {
	r.engine().Reset()
	r.header = nil
}
