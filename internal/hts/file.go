// Package hts is the decoding engine for BCF variant containers.
//
// Its surface mirrors a C-style engine: a File handle, a Header handle, a
// Record filled in place by ReadRecord, and integer status codes. Higher
// layers own the handles and translate the status codes into Go errors.
package hts

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bgzf"
	"github.com/klauspost/compress/gzip"
)

// Compression identifies how the container bytes are wrapped on disk.
type Compression int

const (
	Uncompressed Compression = iota
	BGZF
	Gzip
)

func (c Compression) String() string {
	switch c {
	case BGZF:
		return "bgzf"
	case Gzip:
		return "gzip"
	default:
		return "none"
	}
}

var (
	bcfMagic    = []byte("BCF\x02")
	vcfPrefixes = [][]byte{[]byte("##fileformat=VCF"), []byte("#CHROM")}
)

// File is an open BCF container.
type File struct {
	path        string
	mode        string
	compression Compression

	file *os.File
	bg   *bgzf.Reader
	gz   *gzip.Reader
	r    *bufio.Reader

	minor      byte
	headerRead bool
	records    int64
	eof        bool
	err        error
	closed     bool
}

// Open opens the container at path. Only read modes ("r", "rb") are
// supported. Compression is detected from the leading bytes.
func Open(path, mode string) (*File, error) {
	if mode != "r" && mode != "rb" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bcf file: %w", err)
	}

	f := &File{path: path, mode: mode, file: file}
	if err := f.init(); err != nil {
		f.release()
		return nil, err
	}
	return f, nil
}

func (f *File) init() error {
	raw := bufio.NewReader(f.file)

	// gzip header (10 bytes) + XLEN (2) + first subfield id (2)
	head, err := raw.Peek(14)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read container magic: %w", err)
	}

	switch {
	case isBGZF(head):
		f.bg, err = bgzf.NewReader(raw, 1)
		if err != nil {
			return fmt.Errorf("create bgzf reader: %w", err)
		}
		f.compression = BGZF
		f.r = bufio.NewReader(f.bg)
	case len(head) >= 2 && head[0] == 0x1f && head[1] == 0x8b:
		f.gz, err = gzip.NewReader(raw)
		if err != nil {
			return fmt.Errorf("create gzip reader: %w", err)
		}
		f.compression = Gzip
		f.r = bufio.NewReader(f.gz)
	default:
		f.compression = Uncompressed
		f.r = raw
	}

	magic, err := f.r.Peek(len(bcfMagic) + 1)
	if err != nil && err != io.EOF {
		return fmt.Errorf("read bcf magic: %w", err)
	}
	if len(magic) == len(bcfMagic)+1 && bytes.Equal(magic[:len(bcfMagic)], bcfMagic) {
		f.minor = magic[len(bcfMagic)]
		return nil
	}

	probe, _ := f.r.Peek(len(vcfPrefixes[0]))
	for _, p := range vcfPrefixes {
		if bytes.HasPrefix(probe, p) {
			return ErrTextFormat
		}
	}
	return ErrUnrecognizedFormat
}

// isBGZF reports whether head starts a gzip member carrying the BGZF "BC"
// extra subfield.
func isBGZF(head []byte) bool {
	return len(head) >= 14 &&
		head[0] == 0x1f && head[1] == 0x8b && head[2] == 8 &&
		head[3]&0x04 != 0 &&
		head[12] == 'B' && head[13] == 'C'
}

// Path returns the path the file was opened with.
func (f *File) Path() string { return f.path }

// Mode returns the mode the file was opened with.
func (f *File) Mode() string { return f.mode }

// Compression reports how the container is compressed on disk.
func (f *File) Compression() Compression { return f.compression }

// Version returns the BCF format version as "2.<minor>".
func (f *File) Version() string { return fmt.Sprintf("2.%d", f.minor) }

// RecordsRead returns the number of records framed so far, including
// records that failed to scan.
func (f *File) RecordsRead() int64 { return f.records }

// Err returns the cause of the most recent StatusError from ReadRecord.
func (f *File) Err() error { return f.err }

// Close releases the file. Calling Close twice returns ErrClosed.
func Close(f *File) error {
	if f.closed {
		return ErrClosed
	}
	return f.release()
}

func (f *File) release() error {
	f.closed = true
	var firstErr error
	if f.bg != nil {
		if err := f.bg.Close(); err != nil {
			firstErr = fmt.Errorf("close bgzf reader: %w", err)
		}
	}
	if f.gz != nil {
		if err := f.gz.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close gzip reader: %w", err)
		}
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close bcf file: %w", err)
	}
	return firstErr
}
