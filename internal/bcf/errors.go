// Package bcf provides streaming access to BCF variant records.
package bcf

import (
	"errors"
	"fmt"
)

// ErrClosed is returned when a closed Reader, or a Record derived from one,
// is used.
var ErrClosed = errors.New("bcf: reader closed")

// OpenError reports that a container could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// HeaderError reports that an opened container has no valid header.
type HeaderError struct {
	Path string
	Err  error
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("read header of %s: %v", e.Path, e.Err)
}

func (e *HeaderError) Unwrap() error { return e.Err }

// ReadErrorKind classifies a failed record read.
type ReadErrorKind int

const (
	// NoMoreRecord is the normal end of the stream.
	NoMoreRecord ReadErrorKind = iota
	// Invalid means the record could not be decoded. The stream may be out
	// of sync afterwards; further reads are best-effort.
	Invalid
	// Truncated is reserved. The engine reports short reads as Invalid, with
	// io.ErrUnexpectedEOF in the error chain.
	Truncated
)

func (k ReadErrorKind) String() string {
	switch k {
	case NoMoreRecord:
		return "no more record"
	case Invalid:
		return "invalid record"
	case Truncated:
		return "truncated record"
	}
	return fmt.Sprintf("ReadErrorKind(%d)", int(k))
}

// Sentinels for errors.Is matching against *ReadError.
var (
	ErrNoMoreRecord = &ReadError{Kind: NoMoreRecord}
	ErrInvalid      = &ReadError{Kind: Invalid}
	ErrTruncated    = &ReadError{Kind: Truncated}
)

// ReadError is the per-record outcome of a failed read.
type ReadError struct {
	Kind ReadErrorKind
	Err  error
}

func (e *ReadError) Error() string {
	if e.Err == nil {
		return "bcf: " + e.Kind.String()
	}
	return fmt.Sprintf("bcf: %s: %v", e.Kind, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is matches any *ReadError of the same kind, so errors.Is(err,
// ErrNoMoreRecord) works regardless of the wrapped cause.
func (e *ReadError) Is(target error) bool {
	t, ok := target.(*ReadError)
	return ok && t.Kind == e.Kind
}

// FieldErrorKind classifies a failed field decode.
type FieldErrorKind int

const (
	// TypeMismatch means the header declares a different type for the field.
	TypeMismatch FieldErrorKind = iota
	// NotPresent means the field is absent on this record, or not declared.
	NotPresent
	// Unset means the record has no usable header.
	Unset
)

func (k FieldErrorKind) String() string {
	switch k {
	case TypeMismatch:
		return "type mismatch"
	case NotPresent:
		return "not present"
	case Unset:
		return "unset"
	}
	return fmt.Sprintf("FieldErrorKind(%d)", int(k))
}

// Sentinels for errors.Is matching against *FieldError.
var (
	ErrTypeMismatch = &FieldError{Kind: TypeMismatch}
	ErrNotPresent   = &FieldError{Kind: NotPresent}
	ErrUnset        = &FieldError{Kind: Unset}
)

// FieldError describes a failed INFO/FORMAT decode. It never affects the
// enclosing record.
type FieldError struct {
	Kind     FieldErrorKind
	Category Category
	Name     string
	Err      error
}

func (e *FieldError) Error() string {
	msg := "bcf: field " + e.Kind.String()
	if e.Name != "" {
		msg = fmt.Sprintf("bcf: %s/%s: %s", e.Category, e.Name, e.Kind)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FieldError) Unwrap() error { return e.Err }

// Is matches any *FieldError of the same kind.
func (e *FieldError) Is(target error) bool {
	t, ok := target.(*FieldError)
	return ok && t.Kind == e.Kind
}

// IsRecoverable reports whether err is a per-record read failure after
// which the stream may still be read.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrInvalid) && !errors.Is(err, ErrClosed)
}
