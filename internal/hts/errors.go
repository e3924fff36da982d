package hts

import (
	"errors"
	"fmt"
)

// Status codes returned by ReadRecord.
const (
	StatusOK    = 0
	StatusEOF   = -1
	StatusError = -2
)

// Status codes returned by the typed field getters. Non-negative values are
// value counts.
const (
	FieldUndefined    = -1
	FieldTypeMismatch = -2
	FieldAbsent       = -3
	FieldBadEncoding  = -4
)

var (
	// ErrUnsupportedMode is returned by Open for anything other than read mode.
	ErrUnsupportedMode = errors.New("hts: unsupported open mode")
	// ErrUnrecognizedFormat is returned when the stream is not a BCF container.
	ErrUnrecognizedFormat = errors.New("hts: not a recognized variant container")
	// ErrTextFormat is returned for VCF text containers, which are not decoded.
	ErrTextFormat = errors.New("hts: VCF text containers are not supported")
	// ErrSampleMismatch is returned when a record's sample count differs from the header.
	ErrSampleMismatch = errors.New("hts: record sample count does not match header")
	// ErrRecordTooLarge guards against absurd block lengths in corrupt streams.
	ErrRecordTooLarge = errors.New("hts: record block exceeds size limit")
	// ErrClosed is returned when a closed file is used.
	ErrClosed = errors.New("hts: file already closed")
)

// ParseError represents an error in the header text with line context.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bcf header parse error at line %d: %s", e.Line, e.Message)
}

// RecordError describes a record that could not be framed or scanned.
type RecordError struct {
	// Index is the 0-based ordinal of the record in the stream.
	Index int64
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("bcf record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
