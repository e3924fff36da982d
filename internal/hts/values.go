package hts

import "strings"

// lookup resolves tag against the header and finds its vector on the record.
// It returns the declared field, the vector (nil when absent) and a status.
func lookup(h *Header, r *Record, tag string, cat Category, want ValueType) (*FieldDef, *tagValue, int) {
	def, ok := h.tags[tag]
	if !ok {
		return nil, nil, FieldUndefined
	}
	field := def.Info
	values := r.info
	if cat == CategoryFormat {
		field = def.Format
		values = r.format
	}
	if field == nil {
		return nil, nil, FieldUndefined
	}
	if field.Type != want && !(cat == CategoryFormat && tag == "GT" && want == TypeInteger) {
		return field, nil, FieldTypeMismatch
	}
	for i := range values {
		if values[i].key == def.Idx {
			return field, &values[i], 0
		}
	}
	return field, nil, FieldAbsent
}

// InfoFlag reports whether a Flag INFO field is set. Absence is not an
// error for flags.
func InfoFlag(h *Header, r *Record, tag string) (bool, int) {
	_, _, status := lookup(h, r, tag, CategoryInfo, TypeFlag)
	switch status {
	case 0:
		return true, 1
	case FieldAbsent:
		return false, 0
	}
	return false, status
}

// InfoInt32 decodes an Integer INFO field. Decoding stops at the first
// vector-end sentinel; missing values are kept as MissingInt32.
func InfoInt32(h *Header, r *Record, tag string) ([]int32, int) {
	_, v, status := lookup(h, r, tag, CategoryInfo, TypeInteger)
	if status != 0 {
		return nil, status
	}
	if v.typ == btMissing {
		return []int32{}, 0
	}
	if !isIntType(v.typ) {
		return nil, FieldBadEncoding
	}
	size := typeSize(v.typ)
	out := make([]int32, 0, v.n)
	for i := 0; i < v.n; i++ {
		x := widenInt(v.typ, v.data[i*size:])
		if x == VectorEndInt32 {
			break
		}
		out = append(out, x)
	}
	return out, len(out)
}

// InfoFloat32 decodes a Float INFO field with the same sentinel rules as
// InfoInt32.
func InfoFloat32(h *Header, r *Record, tag string) ([]float32, int) {
	_, v, status := lookup(h, r, tag, CategoryInfo, TypeReal)
	if status != 0 {
		return nil, status
	}
	if v.typ == btMissing {
		return []float32{}, 0
	}
	if v.typ != btFloat {
		return nil, FieldBadEncoding
	}
	out := make([]float32, 0, v.n)
	for i := 0; i < v.n; i++ {
		x := float32At(v.data[i*4:])
		if IsVectorEndFloat32(x) {
			break
		}
		out = append(out, x)
	}
	return out, len(out)
}

// InfoString decodes a String INFO field. Trailing NUL padding is removed.
func InfoString(h *Header, r *Record, tag string) (string, int) {
	_, v, status := lookup(h, r, tag, CategoryInfo, TypeString)
	if status != 0 {
		return "", status
	}
	if v.typ == btMissing {
		return "", 0
	}
	if v.typ != btChar {
		return "", FieldBadEncoding
	}
	s := string(trimNul(v.data))
	return s, len(s)
}

// FormatInt32 decodes an Integer FORMAT field into n*nSamples values in
// sample-major order. Samples with fewer than n values are padded with
// VectorEndInt32.
func FormatInt32(h *Header, r *Record, tag string) ([]int32, int) {
	_, v, status := lookup(h, r, tag, CategoryFormat, TypeInteger)
	if status != 0 {
		return nil, status
	}
	if v.typ == btMissing {
		return []int32{}, 0
	}
	if !isIntType(v.typ) {
		return nil, FieldBadEncoding
	}
	size := typeSize(v.typ)
	out := make([]int32, v.n*r.nSample)
	for s := 0; s < r.nSample; s++ {
		row := out[s*v.n : (s+1)*v.n]
		src := v.data[s*v.n*size:]
		ended := false
		for j := range row {
			if ended {
				row[j] = VectorEndInt32
				continue
			}
			x := widenInt(v.typ, src[j*size:])
			if x == VectorEndInt32 {
				ended = true
			}
			row[j] = x
		}
	}
	return out, len(out)
}

// FormatFloat32 decodes a Float FORMAT field with the same layout as
// FormatInt32.
func FormatFloat32(h *Header, r *Record, tag string) ([]float32, int) {
	_, v, status := lookup(h, r, tag, CategoryFormat, TypeReal)
	if status != 0 {
		return nil, status
	}
	if v.typ == btMissing {
		return []float32{}, 0
	}
	if v.typ != btFloat {
		return nil, FieldBadEncoding
	}
	vectorEnd := VectorEndFloat32()
	out := make([]float32, v.n*r.nSample)
	for s := 0; s < r.nSample; s++ {
		row := out[s*v.n : (s+1)*v.n]
		src := v.data[s*v.n*4:]
		ended := false
		for j := range row {
			if ended {
				row[j] = vectorEnd
				continue
			}
			x := float32At(src[j*4:])
			if IsVectorEndFloat32(x) {
				ended = true
			}
			row[j] = x
		}
	}
	return out, len(out)
}

// FormatString decodes a String FORMAT field into one string per sample.
func FormatString(h *Header, r *Record, tag string) ([]string, int) {
	_, v, status := lookup(h, r, tag, CategoryFormat, TypeString)
	if status != 0 {
		return nil, status
	}
	out := make([]string, r.nSample)
	if v.typ == btMissing {
		return out, len(out)
	}
	if v.typ != btChar {
		return nil, FieldBadEncoding
	}
	for s := range out {
		out[s] = strings.TrimRight(string(v.data[s*v.n:(s+1)*v.n]), "\x00")
	}
	return out, len(out)
}
