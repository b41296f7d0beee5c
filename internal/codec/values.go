package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"goasterix/internal/spec"
)

// ValueKind discriminates which payload field of a Value is meaningful.
type ValueKind int

// Value kinds.
const (
	ValueRaw    ValueKind = iota // Uint holds uninterpreted bits
	ValueInt                     // Int holds a signed integer
	ValueFloat                   // Float holds a scaled quantity
	ValueString                  // Str holds a decoded string
	ValueBytes                   // Bytes holds opaque content
	ValueGroup                   // Fields holds named subvalues
	ValueList                    // Items holds repetitive elements
)

func (k ValueKind) String() string {
	switch k {
	case ValueRaw:
		return "raw"
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueString:
		return "string"
	case ValueBytes:
		return "bytes"
	case ValueGroup:
		return "group"
	case ValueList:
		return "list"
	}
	return "unknown"
}

// Value is one decoded field value. Kind selects the payload; the other
// fields are zero.
type Value struct {
	Kind   ValueKind
	Uint   uint64
	Int    int64
	Float  float64
	Str    string
	Label  string // table label, when the table defines one
	Unit   string // quantity unit
	Bytes  []byte
	Fields []Field
	Items  []Value
}

// Field is a named value inside a Group, Extended or Compound item, or
// one item of a record.
type Field struct {
	Name  string
	Value Value
}

// RawValue returns a Value holding uninterpreted bits.
func RawValue(v uint64) Value {
	return Value{Kind: ValueRaw, Uint: v}
}

// IntValue returns a Value holding a signed integer.
func IntValue(v int64) Value {
	return Value{Kind: ValueInt, Int: v}
}

// FloatValue returns a Value holding a scaled quantity.
func FloatValue(v float64) Value {
	return Value{Kind: ValueFloat, Float: v}
}

// StringValue returns a Value holding a string.
func StringValue(s string) Value {
	return Value{Kind: ValueString, Str: s}
}

// BytesValue returns a Value holding opaque bytes.
func BytesValue(b []byte) Value {
	return Value{Kind: ValueBytes, Bytes: b}
}

// GroupValue returns a Value holding named subvalues.
func GroupValue(fields ...Field) Value {
	return Value{Kind: ValueGroup, Fields: fields}
}

// ListValue returns a Value holding repetitive elements.
func ListValue(items ...Value) Value {
	return Value{Kind: ValueList, Items: items}
}

// Field returns the named subvalue of a group value.
func (v Value) Field(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Number returns the value as a float64 for raw, integer and quantity
// kinds.
func (v Value) Number() (float64, bool) {
	switch v.Kind {
	case ValueRaw:
		return float64(v.Uint), true
	case ValueInt:
		return float64(v.Int), true
	case ValueFloat:
		return v.Float, true
	}
	return 0, false
}

// String renders the value for display.
func (v Value) String() string {
	switch v.Kind {
	case ValueRaw:
		if v.Label != "" {
			return fmt.Sprintf("%d (%s)", v.Uint, v.Label)
		}
		return strconv.FormatUint(v.Uint, 10)
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if v.Unit != "" {
			return s + " " + v.Unit
		}
		return s
	case ValueString:
		return strconv.Quote(v.Str)
	case ValueBytes:
		return fmt.Sprintf("0x%x", v.Bytes)
	case ValueGroup:
		parts := make([]string, 0, len(v.Fields))
		for _, f := range v.Fields {
			parts = append(parts, f.Name+"="+f.Value.String())
		}
		return "{" + strings.Join(parts, " ") + "}"
	case ValueList:
		parts := make([]string, 0, len(v.Items))
		for _, it := range v.Items {
			parts = append(parts, it.String())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "?"
}

// icao6Chars maps ICAO 6-bit character codes to characters: 1..26 are
// letters, 32 is space, 48..57 are digits. Everything else is undefined.
const icao6Chars = "?ABCDEFGHIJKLMNOPQRSTUVWXYZ????? ???????????????0123456789??????"

func signExtend(raw uint64, bits int) int64 {
	shift := uint(64 - bits)
	return int64(raw<<shift) >> shift
}

// rawRange returns the representable raw integer range for a field width.
func rawRange(bits int, signed bool) (float64, float64) {
	if signed {
		max := math.Ldexp(1, bits-1)
		return -max, max - 1
	}
	return 0, math.Ldexp(1, bits) - 1
}

// decodeContent reads one element's bits and interprets them under the
// content rule. A nil rule reads raw bits.
func decodeContent(r *Reader, bits int, rule spec.ContentRule) (Value, error) {
	switch c := rule.(type) {
	case nil, *spec.Raw:
		if bits > 64 {
			if bits%8 != 0 {
				return Value{}, fmt.Errorf("raw field of %d bits is too wide", bits)
			}
			b, err := r.ReadBytes(bits / 8)
			if err != nil {
				return Value{}, err
			}
			return BytesValue(b), nil
		}
		raw, err := r.ReadBits(bits)
		if err != nil {
			return Value{}, err
		}
		return RawValue(raw), nil

	case *spec.Table:
		raw, err := r.ReadBits(bits)
		if err != nil {
			return Value{}, err
		}
		v := RawValue(raw)
		if label, ok := c.Label(int64(raw)); ok {
			v.Label = label
		}
		return v, nil

	case *spec.String:
		return decodeString(r, bits, c.Encoding)

	case *spec.Integer:
		raw, err := r.ReadBits(bits)
		if err != nil {
			return Value{}, err
		}
		if c.Signed {
			return IntValue(signExtend(raw, bits)), nil
		}
		return IntValue(int64(raw)), nil

	case *spec.Quantity:
		raw, err := r.ReadBits(bits)
		if err != nil {
			return Value{}, err
		}
		var n int64
		if c.Signed {
			n = signExtend(raw, bits)
		} else {
			n = int64(raw)
		}
		v := FloatValue(float64(n) * c.LSB())
		v.Unit = c.Unit
		return v, nil

	case *spec.Bds:
		b, err := r.ReadBytes(bits / 8)
		if err != nil {
			return Value{}, err
		}
		return BytesValue(b), nil

	case *spec.Dependent:
		return decodeContent(r, bits, c.Default)

	default:
		return Value{}, fmt.Errorf("unhandled content rule %T", rule)
	}
}

func decodeString(r *Reader, bits int, enc spec.StringEncoding) (Value, error) {
	var sb strings.Builder
	switch enc {
	case spec.ASCII:
		for i := 0; i < bits/8; i++ {
			ch, err := r.ReadBits(8)
			if err != nil {
				return Value{}, err
			}
			sb.WriteByte(byte(ch))
		}
	case spec.ICAO6Bit:
		for i := 0; i < bits/6; i++ {
			ch, err := r.ReadBits(6)
			if err != nil {
				return Value{}, err
			}
			sb.WriteByte(icao6Chars[ch])
		}
	case spec.Octal:
		for i := 0; i < bits/3; i++ {
			d, err := r.ReadBits(3)
			if err != nil {
				return Value{}, err
			}
			sb.WriteByte('0' + byte(d))
		}
	default:
		return Value{}, fmt.Errorf("unhandled string encoding %v", enc)
	}
	return StringValue(sb.String()), nil
}

// encodeContent writes one element's bits from a value under the content
// rule. field names the item for error reporting.
func encodeContent(w *Writer, bits int, rule spec.ContentRule, v Value, field string, strict bool) error {
	switch c := rule.(type) {
	case nil, *spec.Raw:
		return encodeRaw(w, bits, v, field)

	case *spec.Table:
		raw, err := tableRaw(c, v, field)
		if err != nil {
			return err
		}
		w.WriteBits(raw, bits)
		return nil

	case *spec.String:
		if v.Kind != ValueString {
			return fmt.Errorf("%s: expected string value, got %s", field, v.Kind)
		}
		return encodeString(w, bits, c.Encoding, v.Str, field)

	case *spec.Integer:
		if v.Kind != ValueInt && v.Kind != ValueRaw {
			return fmt.Errorf("%s: expected integer value, got %s", field, v.Kind)
		}
		n := v.Int
		if v.Kind == ValueRaw {
			n = int64(v.Uint)
		}
		min, max := rawRange(bits, c.Signed)
		if float64(n) < min || float64(n) > max {
			return &RangeError{Field: field, Value: float64(n), Min: min, Max: max}
		}
		if strict {
			for _, con := range c.Constraints {
				if !con.Check(float64(n)) {
					return &RangeError{Field: field, Value: float64(n), Min: min, Max: max}
				}
			}
		}
		w.WriteBits(uint64(n)&widthMask(bits), bits)
		return nil

	case *spec.Quantity:
		if v.Kind != ValueFloat && v.Kind != ValueInt {
			return fmt.Errorf("%s: expected quantity value, got %s", field, v.Kind)
		}
		val := v.Float
		if v.Kind == ValueInt {
			val = float64(v.Int)
		}
		// Inverse of value = raw * scale / 2^f, rounded half away from
		// zero to the nearest representable raw integer.
		raw := math.Round(val / c.LSB())
		min, max := rawRange(bits, c.Signed)
		if raw < min || raw > max {
			return &RangeError{Field: field, Value: val, Min: min * c.LSB(), Max: max * c.LSB()}
		}
		if strict {
			for _, con := range c.Constraints {
				if !con.Check(val) {
					return &RangeError{Field: field, Value: val, Min: min * c.LSB(), Max: max * c.LSB()}
				}
			}
		}
		w.WriteBits(uint64(int64(raw))&widthMask(bits), bits)
		return nil

	case *spec.Bds:
		if v.Kind != ValueBytes {
			return fmt.Errorf("%s: expected bytes value, got %s", field, v.Kind)
		}
		if len(v.Bytes)*8 != bits {
			return fmt.Errorf("%s: BDS register needs %d bytes, got %d", field, bits/8, len(v.Bytes))
		}
		w.WriteBytes(v.Bytes)
		return nil

	case *spec.Dependent:
		return encodeContent(w, bits, c.Default, v, field, strict)

	default:
		return fmt.Errorf("unhandled content rule %T", rule)
	}
}

func encodeRaw(w *Writer, bits int, v Value, field string) error {
	switch v.Kind {
	case ValueRaw:
		if bits < 64 && v.Uint > uint64(1)<<uint(bits)-1 {
			min, max := rawRange(bits, false)
			return &RangeError{Field: field, Value: float64(v.Uint), Min: min, Max: max}
		}
		w.WriteBits(v.Uint, bits)
		return nil
	case ValueBytes:
		if len(v.Bytes)*8 != bits {
			return fmt.Errorf("%s: raw field needs %d bytes, got %d", field, bits/8, len(v.Bytes))
		}
		w.WriteBytes(v.Bytes)
		return nil
	default:
		return fmt.Errorf("%s: expected raw value, got %s", field, v.Kind)
	}
}

func tableRaw(t *spec.Table, v Value, field string) (uint64, error) {
	switch v.Kind {
	case ValueRaw:
		return v.Uint, nil
	case ValueInt:
		if v.Int < 0 {
			return 0, fmt.Errorf("%s: negative table value %d", field, v.Int)
		}
		return uint64(v.Int), nil
	case ValueString:
		raw, ok := t.Value(v.Str)
		if !ok {
			return 0, fmt.Errorf("%s: no table entry labelled %q", field, v.Str)
		}
		return uint64(raw), nil
	default:
		return 0, fmt.Errorf("%s: expected table value, got %s", field, v.Kind)
	}
}

func encodeString(w *Writer, bits int, enc spec.StringEncoding, s string, field string) error {
	switch enc {
	case spec.ASCII:
		chars := bits / 8
		if len(s) > chars {
			return fmt.Errorf("%s: %q does not fit in %d characters", field, s, chars)
		}
		for i := 0; i < chars; i++ {
			ch := byte(' ')
			if i < len(s) {
				ch = s[i]
			}
			w.WriteBits(uint64(ch), 8)
		}
	case spec.ICAO6Bit:
		chars := bits / 6
		if len(s) > chars {
			return fmt.Errorf("%s: %q does not fit in %d characters", field, s, chars)
		}
		for i := 0; i < chars; i++ {
			ch := byte(' ')
			if i < len(s) {
				ch = s[i]
			}
			code, err := icao6Code(ch)
			if err != nil {
				return fmt.Errorf("%s: %w", field, err)
			}
			w.WriteBits(uint64(code), 6)
		}
	case spec.Octal:
		digits := bits / 3
		if len(s) > digits {
			return fmt.Errorf("%s: %q does not fit in %d octal digits", field, s, digits)
		}
		s = strings.Repeat("0", digits-len(s)) + s
		for i := 0; i < digits; i++ {
			d := s[i]
			if d < '0' || d > '7' {
				return fmt.Errorf("%s: %q is not an octal digit", field, string(d))
			}
			w.WriteBits(uint64(d-'0'), 3)
		}
	default:
		return fmt.Errorf("unhandled string encoding %v", enc)
	}
	return nil
}

func icao6Code(ch byte) (byte, error) {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A' + 1, nil
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 1, nil
	case ch == ' ':
		return 32, nil
	case ch >= '0' && ch <= '9':
		return ch, nil
	}
	return 0, fmt.Errorf("character %q has no ICAO 6-bit code", string(ch))
}

func widthMask(bits int) uint64 {
	if bits >= 64 {
		return math.MaxUint64
	}
	return uint64(1)<<uint(bits) - 1
}
