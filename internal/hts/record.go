package hts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// maxBlockSize bounds a single shared or per-sample block. Larger lengths
// only occur in corrupt streams and would otherwise drive huge allocations.
const maxBlockSize = 1 << 28

// fixedSharedSize is the width of the fixed fields at the start of the
// shared block.
const fixedSharedSize = 24

// tagValue locates one INFO or FORMAT value vector inside a record block.
type tagValue struct {
	key  int
	typ  byte
	n    int
	data []byte
}

// Record is one variant. ReadRecord fills it in place; the record owns its
// bytes, so it stays valid after later reads.
type Record struct {
	rid     int32
	pos     int32
	rlen    int32
	qual    float32
	nSample int

	id      string
	alleles []string
	filters []int32
	info    []tagValue
	format  []tagValue

	shared []byte
	indiv  []byte
}

// Reset clears the record for reuse.
func (r *Record) Reset() {
	*r = Record{}
}

// RID returns the reference sequence id.
func (r *Record) RID() int32 { return r.rid }

// Pos returns the 0-based position.
func (r *Record) Pos() int32 { return r.pos }

// Rlen returns the length of the reference allele span.
func (r *Record) Rlen() int32 { return r.rlen }

// Qual returns the quality, possibly the missing sentinel.
func (r *Record) Qual() float32 { return r.qual }

// NSamples returns the sample count stored in the record.
func (r *Record) NSamples() int { return r.nSample }

// ID returns the variant identifier, "." when unset.
func (r *Record) ID() string { return r.id }

// Alleles returns the reference allele followed by the alternates.
func (r *Record) Alleles() []string { return append([]string(nil), r.alleles...) }

// FilterIDs returns the dictionary indices of the applied filters.
func (r *Record) FilterIDs() []int32 { return append([]int32(nil), r.filters...) }

// InfoKeys returns the dictionary indices of the INFO fields present.
func (r *Record) InfoKeys() []int {
	keys := make([]int, len(r.info))
	for i, v := range r.info {
		keys[i] = v.key
	}
	return keys
}

// FormatKeys returns the dictionary indices of the FORMAT fields present.
func (r *Record) FormatKeys() []int {
	keys := make([]int, len(r.format))
	for i, v := range r.format {
		keys[i] = v.key
	}
	return keys
}

// ReadRecord advances the stream by one record. It returns StatusOK,
// StatusEOF when the stream ends cleanly at a record boundary, or
// StatusError with the cause available from f.Err(). A short or failing
// underlying stream is reported once; every later call returns StatusEOF.
func ReadRecord(f *File, h *Header, r *Record) int {
	if f.closed {
		f.err = ErrClosed
		return StatusError
	}
	if f.eof {
		return StatusEOF
	}
	f.err = nil

	var lens [8]byte
	n, err := io.ReadFull(f.r, lens[:])
	if err == io.EOF && n == 0 {
		f.eof = true
		return StatusEOF
	}
	index := f.records
	f.records++
	if err != nil {
		return f.streamFailed(index, fmt.Errorf("read block lengths: %w", err))
	}

	lShared := binary.LittleEndian.Uint32(lens[0:4])
	lIndiv := binary.LittleEndian.Uint32(lens[4:8])
	if lShared > maxBlockSize || lIndiv > maxBlockSize {
		f.err = &RecordError{Index: index, Err: fmt.Errorf("%w: shared=%d indiv=%d", ErrRecordTooLarge, lShared, lIndiv)}
		return StatusError
	}

	r.Reset()
	buf := make([]byte, int(lShared)+int(lIndiv))
	if _, err := io.ReadFull(f.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return f.streamFailed(index, fmt.Errorf("read record blocks: %w", err))
	}
	r.shared = buf[:lShared]
	r.indiv = buf[lShared:]

	if err := r.scan(h); err != nil {
		f.err = &RecordError{Index: index, Err: err}
		return StatusError
	}
	return StatusOK
}

// streamFailed records a failure of the underlying byte stream. Nothing
// after it can be framed, so later reads report StatusEOF.
func (f *File) streamFailed(index int64, err error) int {
	f.err = &RecordError{Index: index, Err: err}
	f.eof = true
	return StatusError
}

// scan decodes the fixed fields and locates every INFO and FORMAT vector.
// Values themselves are converted only when a getter asks for them.
func (r *Record) scan(h *Header) error {
	if len(r.shared) < fixedSharedSize {
		return fmt.Errorf("shared block of %d bytes is shorter than fixed fields", len(r.shared))
	}
	c := &cursor{buf: r.shared}
	r.rid, _ = c.int32()
	r.pos, _ = c.int32()
	r.rlen, _ = c.int32()
	qualBits, _ := c.uint32()
	r.qual = math.Float32frombits(qualBits)
	nAlleleInfo, _ := c.uint32()
	nFmtSample, _ := c.uint32()

	nInfo := int(nAlleleInfo & 0xffff)
	nAllele := int(nAlleleInfo >> 16)
	nFmt := int(nFmtSample >> 24)
	r.nSample = int(nFmtSample & 0xffffff)

	if r.nSample != h.NSamples() {
		return fmt.Errorf("%w: record has %d, header has %d", ErrSampleMismatch, r.nSample, h.NSamples())
	}

	typ, _, data, err := c.typedVector(1)
	if err != nil {
		return fmt.Errorf("read ID: %w", err)
	}
	r.id = "."
	if typ == btChar && len(trimNul(data)) > 0 {
		r.id = string(trimNul(data))
	}

	r.alleles = make([]string, 0, nAllele)
	for i := 0; i < nAllele; i++ {
		typ, _, data, err := c.typedVector(1)
		if err != nil {
			return fmt.Errorf("read allele %d: %w", i, err)
		}
		if typ != btChar && typ != btMissing {
			return fmt.Errorf("allele %d has non-character type %d", i, typ)
		}
		r.alleles = append(r.alleles, string(trimNul(data)))
	}

	typ, n, data, err := c.typedVector(1)
	if err != nil {
		return fmt.Errorf("read FILTER: %w", err)
	}
	if n > 0 && !isIntType(typ) {
		return fmt.Errorf("FILTER has non-integer type %d", typ)
	}
	for i := 0; i < n; i++ {
		r.filters = append(r.filters, rawInt(typ, data[i*typeSize(typ):]))
	}

	r.info = make([]tagValue, 0, nInfo)
	for i := 0; i < nInfo; i++ {
		key, err := c.typedInt()
		if err != nil {
			return fmt.Errorf("read INFO key %d: %w", i, err)
		}
		typ, n, data, err := c.typedVector(1)
		if err != nil {
			return fmt.Errorf("read INFO value %d: %w", i, err)
		}
		r.info = append(r.info, tagValue{key: key, typ: typ, n: n, data: data})
	}

	ic := &cursor{buf: r.indiv}
	r.format = make([]tagValue, 0, nFmt)
	for i := 0; i < nFmt; i++ {
		key, err := ic.typedInt()
		if err != nil {
			return fmt.Errorf("read FORMAT key %d: %w", i, err)
		}
		typ, n, data, err := ic.typedVector(r.nSample)
		if err != nil {
			return fmt.Errorf("read FORMAT value %d: %w", i, err)
		}
		r.format = append(r.format, tagValue{key: key, typ: typ, n: n, data: data})
	}
	return nil
}

func trimNul(b []byte) []byte {
	for len(b) > 0 && b[len(b)-1] == 0 {
		b = b[:len(b)-1]
	}
	return b
}
