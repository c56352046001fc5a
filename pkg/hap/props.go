package hap

import (
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

// ErrInvalidValue is returned when a value cannot be represented in a format.
var ErrInvalidValue = errors.New("invalid value for format")

// DefaultMaxLen is the maximum string length when Props.MaxLen is not set.
const DefaultMaxLen = 64

// Format is the declared value format of a characteristic.
type Format string

const (
	FormatBool   Format = "bool"
	FormatUInt8  Format = "uint8"
	FormatUInt16 Format = "uint16"
	FormatUInt32 Format = "uint32"
	FormatUInt64 Format = "uint64"
	FormatInt    Format = "int"
	FormatFloat  Format = "float"
	FormatString Format = "string"
	FormatTLV8   Format = "tlv8"
	FormatData   Format = "data"
)

// Integral returns true for the integer formats.
func (f Format) Integral() bool {
	switch f {
	case FormatUInt8, FormatUInt16, FormatUInt32, FormatUInt64, FormatInt:
		return true
	default:
		return false
	}
}

// Numeric returns true for integer and float formats.
func (f Format) Numeric() bool {
	return f.Integral() || f == FormatFloat
}

// maxIntegral is the largest float64 that still converts to a positive int.
// uint64 values are held as int, so they are capped here.
const maxIntegral = 1<<63 - 1024

// bounds returns the natural range of a numeric format.
func (f Format) bounds() (float64, float64) {
	switch f {
	case FormatUInt8:
		return 0, math.MaxUint8
	case FormatUInt16:
		return 0, math.MaxUint16
	case FormatUInt32:
		return 0, math.MaxUint32
	case FormatUInt64:
		return 0, maxIntegral
	case FormatInt:
		return math.MinInt32, math.MaxInt32
	default:
		return -math.MaxFloat64, math.MaxFloat64
	}
}

// Perm is a characteristic permission as declared by the host.
type Perm string

const (
	PermRead          Perm = "pr"
	PermWrite         Perm = "pw"
	PermNotify        Perm = "ev"
	PermAdditional    Perm = "aa"
	PermTimedWrite    Perm = "tw"
	PermHidden        Perm = "hd"
	PermWriteResponse Perm = "wr"
)

// Clamp records how Normalize adjusted a value.
type Clamp uint8

const (
	ClampNone Clamp = iota
	ClampMin
	ClampMax
	ClampTruncated
)

// String returns the log marker for the adjustment.
func (c Clamp) String() string {
	switch c {
	case ClampMin:
		return "min"
	case ClampMax:
		return "max"
	case ClampTruncated:
		return "truncated"
	default:
		return ""
	}
}

// Props are the declared properties of a characteristic.
type Props struct {
	Format   Format   `json:"format"`
	Perms    []Perm   `json:"perms,omitempty"`
	Unit     string   `json:"unit,omitempty"`
	MinValue *float64 `json:"minValue,omitempty"`
	MaxValue *float64 `json:"maxValue,omitempty"`
	MinStep  *float64 `json:"minStep,omitempty"`
	MaxLen   int      `json:"maxLen,omitempty"`
}

// Float returns a pointer to v, for use in Props literals.
func Float(v float64) *float64 { return &v }

// Has returns true if the permission is declared.
func (p Props) Has(perm Perm) bool {
	for _, q := range p.Perms {
		if q == perm {
			return true
		}
	}
	return false
}

// Readable returns true if the host may read the value.
func (p Props) Readable() bool { return p.Has(PermRead) }

// Writable returns true if the host may write the value.
func (p Props) Writable() bool { return p.Has(PermWrite) }

// Notify returns true if the host may subscribe to changes.
func (p Props) Notify() bool { return p.Has(PermNotify) }

// WriteResponse returns true if a write must be answered with a value.
func (p Props) WriteResponse() bool { return p.Has(PermWriteResponse) }

// Merge returns p with the set fields of o applied on top.
func (p Props) Merge(o Props) Props {
	if o.Format != "" {
		p.Format = o.Format
	}
	if o.Perms != nil {
		p.Perms = append([]Perm(nil), o.Perms...)
	}
	if o.Unit != "" {
		p.Unit = o.Unit
	}
	if o.MinValue != nil {
		p.MinValue = Float(*o.MinValue)
	}
	if o.MaxValue != nil {
		p.MaxValue = Float(*o.MaxValue)
	}
	if o.MinStep != nil {
		p.MinStep = Float(*o.MinStep)
	}
	if o.MaxLen != 0 {
		p.MaxLen = o.MaxLen
	}
	return p
}

// Normalize applies the format constraints to v.
// Integral values are returned as int, float values as float64.
// NaN and infinite values are rejected.
func (p Props) Normalize(v any) (any, Clamp, error) {
	if v == nil {
		return nil, ClampNone, nil
	}
	switch {
	case p.Format.Numeric():
		f, ok := ToFloat64(v)
		if !ok {
			return v, ClampNone, fmt.Errorf("%w: %s: %v", ErrInvalidValue, p.Format, v)
		}
		if p.Format.Integral() {
			f = math.Round(f)
		}
		min, max := p.Format.bounds()
		if p.MinValue != nil {
			min = *p.MinValue
		}
		if p.MaxValue != nil {
			max = *p.MaxValue
		}
		clamp := ClampNone
		if f < min {
			f, clamp = min, ClampMin
		} else if f > max {
			f, clamp = max, ClampMax
		}
		if p.Format.Integral() {
			return int(f), clamp, nil
		}
		return f, clamp, nil

	case p.Format == FormatString:
		s, ok := v.(string)
		if !ok {
			return v, ClampNone, fmt.Errorf("%w: string: %v", ErrInvalidValue, v)
		}
		maxLen := p.MaxLen
		if maxLen <= 0 {
			maxLen = DefaultMaxLen
		}
		if utf8.RuneCountInString(s) > maxLen {
			return string([]rune(s)[:maxLen]), ClampTruncated, nil
		}
		return s, ClampNone, nil

	default:
		return v, ClampNone, nil
	}
}

// ToFloat64 converts any Go numeric value to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
