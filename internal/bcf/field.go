package bcf

import (
	"errors"
	"strings"

	"github.com/inodb/bcfscan/internal/hts"
)

// Category selects between per-site and per-sample fields.
type Category int

const (
	Info Category = iota
	Format
)

func (c Category) String() string {
	if c == Format {
		return "FORMAT"
	}
	return "INFO"
}

func (c Category) engine() hts.Category {
	if c == Format {
		return hts.CategoryFormat
	}
	return hts.CategoryInfo
}

var (
	errUndeclared   = errors.New("not declared in header")
	errBadEncoding  = errors.New("stored encoding does not match declared type")
	errNoFormatFlag = errors.New("FORMAT fields cannot be flags")
)

// Missing and vector-end markers as they appear in decoded values.
const (
	MissingInt   = hts.MissingInt32
	VectorEndInt = hts.VectorEndInt32
)

// IsMissingFloat reports whether f is the missing-value marker.
func IsMissingFloat(f float32) bool { return hts.IsMissingFloat32(f) }

// IsVectorEndFloat reports whether f is the vector-end padding marker.
func IsVectorEndFloat(f float32) bool { return hts.IsVectorEndFloat32(f) }

// FieldAccessor decodes one named INFO or FORMAT field of a Record. It does
// no work until one of its typed methods is called, and each call decodes
// afresh from the record's buffer.
//
// INFO values stop at the first vector-end marker. FORMAT values are the
// flattened per-sample matrix, n values per sample, with short samples
// padded with vector-end markers.
type FieldAccessor struct {
	rec      *Record
	name     string
	category Category
}

// Name returns the field tag.
func (a FieldAccessor) Name() string { return a.name }

// Category returns INFO or FORMAT.
func (a FieldAccessor) Category() Category { return a.category }

// Integer decodes the field as 32-bit integers.
func (a FieldAccessor) Integer() ([]int32, error) {
	h, err := a.rec.bound()
	if err != nil {
		return nil, a.wrap(err)
	}
	var (
		vals   []int32
		status int
	)
	if a.category == Format {
		vals, status = hts.FormatInt32(h, a.rec.inner, a.name)
	} else {
		vals, status = hts.InfoInt32(h, a.rec.inner, a.name)
	}
	if status < 0 {
		return nil, a.fail(status)
	}
	return vals, nil
}

// Float decodes the field as 32-bit floats. Missing entries keep their
// marker; test them with IsMissingFloat.
func (a FieldAccessor) Float() ([]float32, error) {
	h, err := a.rec.bound()
	if err != nil {
		return nil, a.wrap(err)
	}
	var (
		vals   []float32
		status int
	)
	if a.category == Format {
		vals, status = hts.FormatFloat32(h, a.rec.inner, a.name)
	} else {
		vals, status = hts.InfoFloat32(h, a.rec.inner, a.name)
	}
	if status < 0 {
		return nil, a.fail(status)
	}
	return vals, nil
}

// Strings decodes a String field. INFO values are split on commas; FORMAT
// values yield one string per sample.
func (a FieldAccessor) Strings() ([]string, error) {
	h, err := a.rec.bound()
	if err != nil {
		return nil, a.wrap(err)
	}
	if a.category == Format {
		vals, status := hts.FormatString(h, a.rec.inner, a.name)
		if status < 0 {
			return nil, a.fail(status)
		}
		return vals, nil
	}
	s, status := hts.InfoString(h, a.rec.inner, a.name)
	if status < 0 {
		return nil, a.fail(status)
	}
	if s == "" {
		return []string{}, nil
	}
	return strings.Split(s, ","), nil
}

// Flag reports whether a Flag INFO field is set. An absent flag is false
// with no error.
func (a FieldAccessor) Flag() (bool, error) {
	h, err := a.rec.bound()
	if err != nil {
		return false, a.wrap(err)
	}
	if a.category == Format {
		return false, &FieldError{Kind: TypeMismatch, Category: a.category, Name: a.name, Err: errNoFormatFlag}
	}
	set, status := hts.InfoFlag(h, a.rec.inner, a.name)
	if status < 0 {
		return false, a.fail(status)
	}
	return set, nil
}

func (a FieldAccessor) wrap(err error) error {
	var fe *FieldError
	if errors.As(err, &fe) {
		fe.Category = a.category
		fe.Name = a.name
	}
	return err
}

// fail maps an engine field status to a FieldError.
func (a FieldAccessor) fail(status int) error {
	fe := &FieldError{Category: a.category, Name: a.name}
	switch status {
	case hts.FieldTypeMismatch:
		fe.Kind = TypeMismatch
		if def, ok := a.rec.header.Field(a.category, a.name); ok {
			fe.Err = errors.New("declared as " + def.Type.String())
		}
	case hts.FieldAbsent:
		fe.Kind = NotPresent
	case hts.FieldUndefined:
		fe.Kind = NotPresent
		fe.Err = errUndeclared
	default:
		fe.Kind = TypeMismatch
		fe.Err = errBadEncoding
	}
	return fe
}
