package hts

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Atomic types of the BCF typed-value encoding (low nibble of a descriptor byte).
const (
	btMissing byte = 0
	btInt8    byte = 1
	btInt16   byte = 2
	btInt32   byte = 3
	btFloat   byte = 5
	btChar    byte = 7
)

// Sentinel values used by decoded integer and float vectors.
const (
	MissingInt32   int32 = math.MinInt32
	VectorEndInt32 int32 = math.MinInt32 + 1

	MissingFloatBits   uint32 = 0x7F800001
	VectorEndFloatBits uint32 = 0x7F800002
)

// MissingFloat32 returns the float32 missing-value sentinel.
func MissingFloat32() float32 { return math.Float32frombits(MissingFloatBits) }

// VectorEndFloat32 returns the float32 end-of-vector sentinel.
func VectorEndFloat32() float32 { return math.Float32frombits(VectorEndFloatBits) }

// IsMissingFloat32 reports whether f is the missing-value sentinel.
// NaN compares unequal to itself so the bit pattern is checked instead.
func IsMissingFloat32(f float32) bool { return math.Float32bits(f) == MissingFloatBits }

// IsVectorEndFloat32 reports whether f is the end-of-vector sentinel.
func IsVectorEndFloat32(f float32) bool { return math.Float32bits(f) == VectorEndFloatBits }

var errShortBlock = errors.New("block shorter than its encoded contents")

// typeSize returns the width in bytes of one value of the atomic type.
func typeSize(typ byte) int {
	switch typ {
	case btInt8, btChar:
		return 1
	case btInt16:
		return 2
	case btInt32, btFloat:
		return 4
	}
	return 0
}

func isIntType(typ byte) bool {
	return typ == btInt8 || typ == btInt16 || typ == btInt32
}

// cursor walks a record block. All reads are bounds-checked.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) take(n int) ([]byte, error) {
	if n < 0 || c.remaining() < n {
		return nil, errShortBlock
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) uint32() (uint32, error) {
	b, err := c.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (c *cursor) int32() (int32, error) {
	v, err := c.uint32()
	return int32(v), err
}

// descriptor reads a type descriptor byte and resolves the overflow count.
func (c *cursor) descriptor() (typ byte, n int, err error) {
	b, err := c.take(1)
	if err != nil {
		return 0, 0, err
	}
	typ = b[0] & 0x0f
	n = int(b[0] >> 4)
	if typ != btMissing && typeSize(typ) == 0 {
		return 0, 0, fmt.Errorf("unsupported value type %d", typ)
	}
	if n == 15 {
		n, err = c.typedInt()
		if err != nil {
			return 0, 0, fmt.Errorf("read vector length: %w", err)
		}
		if n < 0 {
			return 0, 0, fmt.Errorf("negative vector length %d", n)
		}
	}
	return typ, n, nil
}

// typedInt reads a typed scalar integer, as used for dictionary keys and
// overflowed vector lengths.
func (c *cursor) typedInt() (int, error) {
	b, err := c.take(1)
	if err != nil {
		return 0, err
	}
	typ, n := b[0]&0x0f, int(b[0]>>4)
	if !isIntType(typ) || n != 1 {
		return 0, fmt.Errorf("expected typed integer scalar, got type %d count %d", typ, n)
	}
	v, err := c.take(typeSize(typ))
	if err != nil {
		return 0, err
	}
	return int(rawInt(typ, v)), nil
}

// typedVector reads a descriptor followed by n values of its type, repeated
// reps times (reps is the sample count for FORMAT data, 1 otherwise).
func (c *cursor) typedVector(reps int) (typ byte, n int, data []byte, err error) {
	typ, n, err = c.descriptor()
	if err != nil {
		return 0, 0, nil, err
	}
	size := n * typeSize(typ)
	if n > 0 && size/n != typeSize(typ) {
		return 0, 0, nil, errShortBlock
	}
	total := size * reps
	if reps > 0 && total/reps != size {
		return 0, 0, nil, errShortBlock
	}
	data, err = c.take(total)
	return typ, n, data, err
}

// rawInt decodes one little-endian integer of the given type without
// sentinel handling.
func rawInt(typ byte, b []byte) int32 {
	switch typ {
	case btInt8:
		return int32(int8(b[0]))
	case btInt16:
		return int32(int16(binary.LittleEndian.Uint16(b)))
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

// widenInt decodes one integer and maps the narrow missing/vector-end
// sentinels onto their int32 equivalents.
func widenInt(typ byte, b []byte) int32 {
	switch typ {
	case btInt8:
		switch v := int8(b[0]); v {
		case math.MinInt8:
			return MissingInt32
		case math.MinInt8 + 1:
			return VectorEndInt32
		default:
			return int32(v)
		}
	case btInt16:
		switch v := int16(binary.LittleEndian.Uint16(b)); v {
		case math.MinInt16:
			return MissingInt32
		case math.MinInt16 + 1:
			return VectorEndInt32
		default:
			return int32(v)
		}
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

func float32At(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
