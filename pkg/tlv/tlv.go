package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// TLV errors.
var (
	ErrTruncated = errors.New("tlv: truncated record")
	ErrBadWidth  = errors.New("tlv: invalid integer width")
)

// maxFragment is the longest value a single record can carry. As in HAP
// TLV8, values are split into 255-byte fragments and a record continues the
// previous one of the same type only when that one is exactly 255 bytes.
const maxFragment = 255

// Separator is the record type that delimits list items.
const Separator byte = 0x00

// Item is a decoded record with fragments joined.
type Item struct {
	Type  byte
	Value []byte
}

// Decode splits data into records, joining fragmented values.
func Decode(data []byte) ([]Item, error) {
	var items []Item
	lastLen := -1
	for i := 0; i < len(data); {
		if i+2 > len(data) {
			return nil, fmt.Errorf("%w: header at offset %d", ErrTruncated, i)
		}
		t, n := data[i], int(data[i+1])
		i += 2
		if i+n > len(data) {
			return nil, fmt.Errorf("%w: type %d needs %d bytes at offset %d", ErrTruncated, t, n, i)
		}
		v := data[i : i+n]
		i += n
		if lastLen == maxFragment && len(items) > 0 && items[len(items)-1].Type == t {
			prev := &items[len(items)-1]
			prev.Value = append(prev.Value, v...)
		} else {
			items = append(items, Item{Type: t, Value: append([]byte(nil), v...)})
		}
		lastLen = n
	}
	return items, nil
}

// Encode serialises records, fragmenting long values.
func Encode(items []Item) []byte {
	var b Builder
	for _, it := range items {
		b.Add(it.Type, it.Value)
	}
	return b.Bytes()
}

// Find returns the value of the first record of type t.
func Find(items []Item, t byte) ([]byte, bool) {
	for _, it := range items {
		if it.Type == t {
			return it.Value, true
		}
	}
	return nil, false
}

// List groups records into list entries delimited by Separator records.
func List(items []Item) [][]Item {
	var out [][]Item
	var cur []Item
	for _, it := range items {
		if it.Type == Separator && len(it.Value) == 0 {
			out = append(out, cur)
			cur = nil
			continue
		}
		cur = append(cur, it)
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}

// Uint decodes a little-endian integer of width 1, 2, 4 or 8.
func Uint(v []byte) (uint64, error) {
	switch len(v) {
	case 1:
		return uint64(v[0]), nil
	case 2:
		return uint64(binary.LittleEndian.Uint16(v)), nil
	case 4:
		return uint64(binary.LittleEndian.Uint32(v)), nil
	case 8:
		return binary.LittleEndian.Uint64(v), nil
	default:
		return 0, fmt.Errorf("%w: %d bytes", ErrBadWidth, len(v))
	}
}

// PutUint encodes n little-endian in the smallest of 1, 2, 4 or 8 bytes.
func PutUint(n uint64) []byte {
	switch {
	case n <= math.MaxUint8:
		return []byte{byte(n)}
	case n <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(nil, uint16(n))
	case n <= math.MaxUint32:
		return binary.LittleEndian.AppendUint32(nil, uint32(n))
	default:
		return binary.LittleEndian.AppendUint64(nil, n)
	}
}

// PutUintWidth encodes n little-endian in exactly width bytes.
func PutUintWidth(n uint64, width int) ([]byte, error) {
	switch width {
	case 1:
		return []byte{byte(n)}, nil
	case 2:
		return binary.LittleEndian.AppendUint16(nil, uint16(n)), nil
	case 4:
		return binary.LittleEndian.AppendUint32(nil, uint32(n)), nil
	case 8:
		return binary.LittleEndian.AppendUint64(nil, n), nil
	default:
		return nil, fmt.Errorf("%w: %d bytes", ErrBadWidth, width)
	}
}

// Float decodes a little-endian float32 (4 bytes) or float64 (8 bytes).
func Float(v []byte) (float64, error) {
	switch len(v) {
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v))), nil
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(v)), nil
	default:
		return 0, fmt.Errorf("%w: float of %d bytes", ErrBadWidth, len(v))
	}
}

// PutFloat32 encodes f as a little-endian float32.
func PutFloat32(f float64) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(float32(f)))
}

// Builder accumulates encoded records.
type Builder struct {
	buf []byte
}

// Add appends a record, splitting values longer than 255 bytes.
func (b *Builder) Add(t byte, v []byte) *Builder {
	if len(v) == 0 {
		b.buf = append(b.buf, t, 0)
		return b
	}
	for len(v) > 0 {
		n := len(v)
		if n > maxFragment {
			n = maxFragment
		}
		b.buf = append(b.buf, t, byte(n))
		b.buf = append(b.buf, v[:n]...)
		v = v[n:]
	}
	return b
}

// Uint appends an integer record of minimal width.
func (b *Builder) Uint(t byte, n uint64) *Builder {
	return b.Add(t, PutUint(n))
}

// Float32 appends a float32 record.
func (b *Builder) Float32(t byte, f float64) *Builder {
	return b.Add(t, PutFloat32(f))
}

// Nested appends the records of nb as the value of a record of type t.
func (b *Builder) Nested(t byte, nb *Builder) *Builder {
	return b.Add(t, nb.Bytes())
}

// Separator appends a list delimiter.
func (b *Builder) Separator() *Builder {
	b.buf = append(b.buf, Separator, 0)
	return b
}

// Bytes returns the encoded records.
func (b *Builder) Bytes() []byte {
	return append([]byte(nil), b.buf...)
}

// Len returns the encoded length.
func (b *Builder) Len() int {
	return len(b.buf)
}
