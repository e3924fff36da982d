package bcf

import (
	"errors"
	"iter"

	"go.uber.org/zap"

	"github.com/inodb/bcfscan/internal/hts"
)

// Reader streams records from a BCF container. A Reader is not safe for
// concurrent use; Records it returns may be decoded from other goroutines
// while the Reader is open.
type Reader struct {
	path      string
	container *containerHandle
	header    *Header
	logger    *zap.Logger

	eof      bool
	closed   bool
	nRead    int64
	nInvalid int64
}

// Open opens the container at path and reads its header. On failure no
// handle is left open.
func Open(path string) (*Reader, error) {
	c, err := openContainer(path, "r")
	if err != nil {
		return nil, err
	}
	h, err := readHeader(c)
	if err != nil {
		c.close()
		return nil, err
	}
	return &Reader{
		path:      path,
		container: c,
		header:    newHeader(h),
		logger:    zap.NewNop(),
	}, nil
}

// SetLogger sets the logger for skipped-record warnings.
func (r *Reader) SetLogger(l *zap.Logger) {
	r.logger = l
}

// Path returns the path the Reader was opened with.
func (r *Reader) Path() string { return r.path }

// Header returns the container header.
func (r *Reader) Header() *Header { return r.header }

// Compression reports how the container is compressed.
func (r *Reader) Compression() hts.Compression { return r.container.file.Compression() }

// Version returns the BCF format version, e.g. "2.2".
func (r *Reader) Version() string { return r.container.file.Version() }

// RecordsRead returns the number of records successfully read.
func (r *Reader) RecordsRead() int64 { return r.nRead }

// InvalidRecords returns the number of reads that failed with Invalid.
func (r *Reader) InvalidRecords() int64 { return r.nInvalid }

// Read fills rec with the next record. At the end of the stream it returns
// an error matching ErrNoMoreRecord, and keeps doing so. A failed read
// returns an error matching ErrInvalid and leaves rec unbound.
func (r *Reader) Read(rec *Record) error {
	if r.closed {
		return &ReadError{Kind: Invalid, Err: ErrClosed}
	}
	if r.eof {
		return &ReadError{Kind: NoMoreRecord}
	}
	rec.reset()

	outcome, cause := readNextRecord(r.container, r.header.handle, rec.engine())
	switch outcome {
	case outcomeSuccess:
		rec.header = r.header
		r.nRead++
		return nil
	case outcomeEndOfStream:
		r.eof = true
		return &ReadError{Kind: NoMoreRecord}
	default:
		r.nInvalid++
		return &ReadError{Kind: Invalid, Err: cause}
	}
}

// Records returns a single-pass sequence over the remaining records. Each
// record is freshly allocated. Invalid records are yielded as errors and
// iteration continues with the next one; the sequence ends at the end of
// the stream or after the Reader is found closed.
func (r *Reader) Records() iter.Seq2[*Record, error] {
	return func(yield func(*Record, error) bool) {
		for {
			rec := NewRecord()
			err := r.Read(rec)
			switch {
			case err == nil:
				if !yield(rec, nil) {
					return
				}
			case errors.Is(err, ErrNoMoreRecord):
				return
			case errors.Is(err, ErrClosed):
				yield(nil, err)
				return
			default:
				r.logger.Warn("invalid record",
					zap.String("path", r.path),
					zap.Int64("read", r.nRead),
					zap.Error(err))
				if !yield(nil, err) {
					return
				}
			}
		}
	}
}

// Close closes the container and releases the header. Records read from
// the Reader keep their position and quality but can no longer decode
// fields. Close is idempotent.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	err := r.container.close()
	r.header.release()
	r.logger.Debug("closed reader",
		zap.String("path", r.path),
		zap.Int64("records", r.nRead),
		zap.Int64("invalid", r.nInvalid))
	return err
}
