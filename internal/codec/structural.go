package codec

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"goasterix/internal/spec"
)

// Codec encodes and decodes records of one compiled category. The
// default mode is strict: a subfield that overruns an Extended item's FX
// boundary fails with a SchemaError and advisory constraints are
// enforced on encode. Lenient mode reproduces the legacy behavior of
// clamping oversized subfields to the FX boundary and ignoring
// constraints. A Codec holds no per-call state and is safe for
// concurrent use.
type Codec struct {
	cat     *spec.Category
	lenient bool
	logger  *logrus.Logger
}

// New returns a Codec for a compiled category. logger may be nil for a
// silent codec.
func New(cat *spec.Category, logger *logrus.Logger, lenient bool) *Codec {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Codec{cat: cat, lenient: lenient, logger: logger}
}

// Category returns the compiled category this codec serves.
func (c *Codec) Category() *spec.Category {
	return c.cat
}

func (c *Codec) decodeVariation(r *Reader, v spec.Variation, name string) (Value, error) {
	switch vr := v.(type) {
	case *spec.Element:
		return decodeContent(r, vr.Bits, vr.Content)
	case *spec.Group:
		return c.decodeGroup(r, vr.Items, name)
	case *spec.Extended:
		return c.decodeExtended(r, vr, name)
	case *spec.Repetitive:
		return c.decodeRepetitive(r, vr, name)
	case *spec.Explicit:
		return c.decodeExplicit(r, vr, name)
	case *spec.Compound:
		return c.decodeCompound(r, vr, name)
	default:
		return Value{}, fmt.Errorf("%s: unhandled variation %T", name, v)
	}
}

func (c *Codec) decodeGroup(r *Reader, items []*spec.Subitem, name string) (Value, error) {
	var fields []Field
	for _, it := range items {
		if it == nil {
			continue
		}
		if it.Spare {
			if _, err := r.ReadBits(it.Bits); err != nil {
				return Value{}, fmt.Errorf("%s: %w", name, err)
			}
			continue
		}
		fv, err := c.decodeSubitem(r, it, name)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Name: it.Name, Value: fv})
	}
	return Value{Kind: ValueGroup, Fields: fields}, nil
}

func (c *Codec) decodeSubitem(r *Reader, it *spec.Subitem, parent string) (Value, error) {
	name := parent + "/" + it.Name
	v, err := c.decodeVariation(r, it.Variation, name)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

// decodeExtended walks FX-chained chunks. Within each chunk, subfields
// are consumed in declared order until the chunk's data bits run out;
// the chunk's last bit is the FX continuation flag. When the wire keeps
// extending after the declared subfields are exhausted, the layout of
// the last populated chunk repeats, which is how FX-chained repetitive
// items work.
func (c *Codec) decodeExtended(r *Reader, ext *spec.Extended, name string) (Value, error) {
	var fields []Field
	idx := 0
	chunkBits := ext.FirstBits
	repeatStart, repeatChunkBits := 0, ext.FirstBits
	for {
		if idx < len(ext.Items) {
			repeatStart, repeatChunkBits = idx, chunkBits
		}
		dataBits := chunkBits - 1
		for idx < len(ext.Items) && dataBits > 0 {
			it := ext.Items[idx]
			if it == nil {
				idx++
				continue
			}
			n, err := it.BitLength()
			if err != nil {
				return Value{}, fmt.Errorf("%s: %w", name, err)
			}
			if n == 0 {
				idx++
				continue
			}
			clamped := false
			if n > dataBits {
				if !c.lenient {
					return Value{}, &spec.SchemaError{
						Item:   name,
						Reason: fmt.Sprintf("subfield %s (%d bits) overruns the FX boundary", it.Name, n),
					}
				}
				c.logger.WithFields(logrus.Fields{
					"item":      name,
					"subfield":  it.Name,
					"declared":  n,
					"available": dataBits,
				}).Debug("Clamping oversized subfield to FX boundary")
				n = dataBits
				clamped = true
			}

			var fv Value
			if it.Spare {
				_, err = r.ReadBits(n)
			} else if el, ok := it.Variation.(*spec.Element); ok && !clamped {
				fv, err = decodeContent(r, el.Bits, el.Content)
			} else if clamped {
				// Lossy mode: the truncated range reads as raw bits.
				fv, err = decodeContent(r, n, nil)
			} else {
				fv, err = c.decodeVariation(r, it.Variation, name+"/"+it.Name)
			}
			if err != nil {
				return Value{}, fmt.Errorf("%s/%s: %w", name, it.Name, err)
			}
			if !it.Spare {
				fields = append(fields, Field{Name: it.Name, Value: fv})
			}
			dataBits -= n
			idx++
		}

		// Unassigned bits between the last subfield and FX are padding.
		if dataBits > 0 {
			if _, err := r.ReadBits(dataBits); err != nil {
				return Value{}, fmt.Errorf("%s: %w", name, err)
			}
		}
		fx, err := r.ReadBits(1)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", name, err)
		}
		if fx == 0 {
			break
		}
		if idx >= len(ext.Items) {
			idx, chunkBits = repeatStart, repeatChunkBits
		} else {
			chunkBits = ext.ExtentBits
		}
	}
	return Value{Kind: ValueGroup, Fields: fields}, nil
}

// decodeRepetitive reads the one-octet repetition count and then that
// many fixed-size elements.
func (c *Codec) decodeRepetitive(r *Reader, rep *spec.Repetitive, name string) (Value, error) {
	count, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}
	items := make([]Value, 0, count)
	for i := 0; i < int(count); i++ {
		var v Value
		switch el := rep.Element.(type) {
		case *spec.Element:
			v, err = decodeContent(r, el.Bits, el.Content)
		case *spec.Group:
			v, err = c.decodeGroup(r, el.Items, name)
		default:
			err = fmt.Errorf("repetition of %T is not supported", rep.Element)
		}
		if err != nil {
			return Value{}, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		items = append(items, v)
	}
	return Value{Kind: ValueList, Items: items}, nil
}

// decodeExplicit reads the length octet, which counts itself, then the
// payload. With a registered expansion definition the payload decodes
// through it; otherwise it stays opaque.
func (c *Codec) decodeExplicit(r *Reader, ex *spec.Explicit, name string) (Value, error) {
	ln, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}
	if ln == 0 {
		return Value{}, fmt.Errorf("%s: explicit length octet is zero", name)
	}
	payload, err := r.ReadBytes(int(ln) - 1)
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}
	if ex.Definition != nil {
		v, err := c.decodeVariation(NewReader(payload), ex.Definition.Variation, name)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", name, err)
		}
		return v, nil
	}
	return BytesValue(payload), nil
}

// decodeCompound reads the item's own FSPEC, then the present subitems
// in declared order.
func (c *Codec) decodeCompound(r *Reader, cp *spec.Compound, name string) (Value, error) {
	var present []int
	var err error
	if cp.FspecBits > 0 {
		present, _, err = readFixedFSPEC(r, cp.FspecBits)
	} else {
		present, _, err = readFSPEC(r)
	}
	if err != nil {
		return Value{}, fmt.Errorf("%s: %w", name, err)
	}

	var fields []Field
	for _, slot := range present {
		if slot > len(cp.Items) || cp.Items[slot-1] == nil {
			return Value{}, fmt.Errorf("%s: presence bit %d set for an undefined subfield", name, slot)
		}
		it := cp.Items[slot-1]
		fv, err := c.decodeSubitem(r, it, name)
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, Field{Name: it.Name, Value: fv})
	}
	return Value{Kind: ValueGroup, Fields: fields}, nil
}

func (c *Codec) encodeVariation(w *Writer, v spec.Variation, val Value, name string) error {
	switch vr := v.(type) {
	case *spec.Element:
		return encodeContent(w, vr.Bits, vr.Content, val, name, !c.lenient)
	case *spec.Group:
		return c.encodeGroup(w, vr.Items, val, name)
	case *spec.Extended:
		return c.encodeExtended(w, vr, val, name)
	case *spec.Repetitive:
		return c.encodeRepetitive(w, vr, val, name)
	case *spec.Explicit:
		return c.encodeExplicit(w, vr, val, name)
	case *spec.Compound:
		return c.encodeCompound(w, vr, val, name)
	default:
		return fmt.Errorf("%s: unhandled variation %T", name, v)
	}
}

// encodeGroup packs subitems MSB-first in declared order. Members absent
// from the value encode as zero bits, the wire default.
func (c *Codec) encodeGroup(w *Writer, items []*spec.Subitem, val Value, name string) error {
	if val.Kind != ValueGroup {
		return fmt.Errorf("%s: expected group value, got %s", name, val.Kind)
	}
	for _, it := range items {
		if it == nil {
			continue
		}
		n, err := it.BitLength()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if it.Spare {
			w.WriteBits(0, n)
			continue
		}
		fv, ok := val.Field(it.Name)
		if !ok {
			w.WriteBits(0, n)
			continue
		}
		if err := c.encodeVariation(w, it.Variation, fv, name+"/"+it.Name); err != nil {
			return err
		}
	}
	return nil
}

// encodeExtended emits chunks up to the last subfield that carries a
// value; intermediate subfields without values encode as zero bits. FX
// is set on every chunk except the last.
func (c *Codec) encodeExtended(w *Writer, ext *spec.Extended, val Value, name string) error {
	if val.Kind != ValueGroup {
		return fmt.Errorf("%s: expected group value, got %s", name, val.Kind)
	}
	last := -1
	for i, it := range ext.Items {
		if it == nil || it.Spare {
			continue
		}
		if _, ok := val.Field(it.Name); ok {
			last = i
		}
	}
	for _, f := range val.Fields {
		if !extendedHasItem(ext, f.Name) {
			return fmt.Errorf("%s: no subfield named %s", name, f.Name)
		}
	}
	if single := soleSubitem(ext); single != nil && len(val.Fields) > 1 {
		// FX-chained repetition: one chunk per value.
		reps := make([]Value, len(val.Fields))
		for i, f := range val.Fields {
			reps[i] = f.Value
		}
		return c.encodeExtendedRepeats(w, ext, single, reps, name)
	}
	if dup := duplicateName(val.Fields); dup != "" {
		return fmt.Errorf("%s: subfield %s given twice", name, dup)
	}

	idx := 0
	chunkBits := ext.FirstBits
	for {
		dataBits := chunkBits - 1
		for idx <= last && dataBits > 0 {
			it := ext.Items[idx]
			if it == nil {
				idx++
				continue
			}
			n, err := it.BitLength()
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if n == 0 {
				idx++
				continue
			}
			if n > dataBits {
				if !c.lenient {
					return &spec.SchemaError{
						Item:   name,
						Reason: fmt.Sprintf("subfield %s (%d bits) overruns the FX boundary", it.Name, n),
					}
				}
				n = dataBits
			}
			if it.Spare {
				w.WriteBits(0, n)
			} else if fv, ok := val.Field(it.Name); ok {
				if err := c.encodeExtendedItem(w, it, fv, n, name); err != nil {
					return err
				}
			} else {
				w.WriteBits(0, n)
			}
			dataBits -= n
			idx++
		}
		if dataBits > 0 {
			w.WriteBits(0, dataBits)
		}
		if idx <= last {
			w.WriteBits(1, 1)
			chunkBits = ext.ExtentBits
			continue
		}
		w.WriteBits(0, 1)
		return nil
	}
}

// encodeExtendedItem writes one Extended subfield in width bits, which
// is smaller than the declared size only in lenient clamping mode.
func (c *Codec) encodeExtendedItem(w *Writer, it *spec.Subitem, fv Value, width int, parent string) error {
	name := parent + "/" + it.Name
	if el, ok := it.Variation.(*spec.Element); ok {
		if width == el.Bits {
			return encodeContent(w, el.Bits, el.Content, fv, name, !c.lenient)
		}
		tmp := NewWriter()
		if err := encodeContent(tmp, el.Bits, el.Content, fv, name, !c.lenient); err != nil {
			return err
		}
		keepHigh(w, tmp, width)
		return nil
	}
	declared, err := it.BitLength()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if width == declared {
		return c.encodeVariation(w, it.Variation, fv, name)
	}
	tmp := NewWriter()
	if err := c.encodeVariation(tmp, it.Variation, fv, name); err != nil {
		return err
	}
	keepHigh(w, tmp, width)
	return nil
}

// keepHigh copies the first width bits of tmp into w.
func keepHigh(w *Writer, tmp *Writer, width int) {
	r := NewReader(tmp.Bytes())
	for width > 0 {
		n := width
		if n > 64 {
			n = 64
		}
		bits, _ := r.ReadBits(n)
		w.WriteBits(bits, n)
		width -= n
	}
}

func extendedHasItem(ext *spec.Extended, name string) bool {
	for _, it := range ext.Items {
		if it != nil && !it.Spare && it.Name == name {
			return true
		}
	}
	return false
}

// encodeExtendedRepeats emits one chunk per value for a layout holding
// a single subfield, the FX-chained repetitive pattern.
func (c *Codec) encodeExtendedRepeats(w *Writer, ext *spec.Extended, it *spec.Subitem, reps []Value, name string) error {
	chunkBits := ext.FirstBits
	for i, fv := range reps {
		dataBits := chunkBits - 1
		n, err := it.BitLength()
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if n > dataBits {
			if !c.lenient {
				return &spec.SchemaError{
					Item:   name,
					Reason: fmt.Sprintf("subfield %s (%d bits) overruns the FX boundary", it.Name, n),
				}
			}
			n = dataBits
		}
		if err := c.encodeExtendedItem(w, it, fv, n, name); err != nil {
			return err
		}
		if dataBits > n {
			w.WriteBits(0, dataBits-n)
		}
		if i < len(reps)-1 {
			w.WriteBits(1, 1)
		} else {
			w.WriteBits(0, 1)
		}
		chunkBits = ext.ExtentBits
	}
	return nil
}

// soleSubitem returns the only subitem of an Extended layout, or nil
// when the layout has several slots or any spare padding.
func soleSubitem(ext *spec.Extended) *spec.Subitem {
	var found *spec.Subitem
	for _, it := range ext.Items {
		if it == nil {
			continue
		}
		if it.Spare || found != nil {
			return nil
		}
		found = it
	}
	return found
}

func duplicateName(fields []Field) string {
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return f.Name
		}
		seen[f.Name] = true
	}
	return ""
}

// encodeRepetitive writes the one-octet repetition count followed by the
// elements.
func (c *Codec) encodeRepetitive(w *Writer, rep *spec.Repetitive, val Value, name string) error {
	if val.Kind != ValueList {
		return fmt.Errorf("%s: expected list value, got %s", name, val.Kind)
	}
	if len(val.Items) > 255 {
		return &RangeError{Field: name, Value: float64(len(val.Items)), Min: 0, Max: 255}
	}
	w.WriteBits(uint64(len(val.Items)), 8)
	for i, item := range val.Items {
		var err error
		switch el := rep.Element.(type) {
		case *spec.Element:
			err = encodeContent(w, el.Bits, el.Content, item, fmt.Sprintf("%s[%d]", name, i), !c.lenient)
		case *spec.Group:
			err = c.encodeGroup(w, el.Items, item, fmt.Sprintf("%s[%d]", name, i))
		default:
			err = fmt.Errorf("repetition of %T is not supported", rep.Element)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// encodeExplicit writes the inclusive length octet and the payload.
func (c *Codec) encodeExplicit(w *Writer, ex *spec.Explicit, val Value, name string) error {
	var payload []byte
	if ex.Definition != nil {
		tmp := NewWriter()
		if err := c.encodeVariation(tmp, ex.Definition.Variation, val, name); err != nil {
			return err
		}
		payload = tmp.Bytes()
	} else {
		if val.Kind != ValueBytes {
			return fmt.Errorf("%s: expected bytes value, got %s", name, val.Kind)
		}
		payload = val.Bytes
	}
	if len(payload)+1 > 255 {
		return &RangeError{Field: name, Value: float64(len(payload) + 1), Min: 1, Max: 255}
	}
	w.WriteBits(uint64(len(payload)+1), 8)
	w.WriteBytes(payload)
	return nil
}

// encodeCompound writes the item's own FSPEC for the present subitems,
// then the subitems in declared order.
func (c *Codec) encodeCompound(w *Writer, cp *spec.Compound, val Value, name string) error {
	if val.Kind != ValueGroup {
		return fmt.Errorf("%s: expected group value, got %s", name, val.Kind)
	}
	var frns []int
	var ordered []*spec.Subitem
	for i, it := range cp.Items {
		if it == nil || it.Spare {
			continue
		}
		if _, ok := val.Field(it.Name); ok {
			frns = append(frns, i+1)
			ordered = append(ordered, it)
		}
	}
	for _, f := range val.Fields {
		if !compoundHasItem(cp, f.Name) {
			return fmt.Errorf("%s: no subfield named %s", name, f.Name)
		}
	}

	var fspec []byte
	var err error
	if cp.FspecBits > 0 {
		fspec, err = EncodeFixedFSPEC(frns, cp.FspecBits)
	} else {
		fspec, err = EncodeFSPEC(frns)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	w.WriteBytes(fspec)

	for _, it := range ordered {
		fv, _ := val.Field(it.Name)
		if err := c.encodeVariation(w, it.Variation, fv, name+"/"+it.Name); err != nil {
			return err
		}
	}
	return nil
}

func compoundHasItem(cp *spec.Compound, name string) bool {
	for _, it := range cp.Items {
		if it != nil && !it.Spare && it.Name == name {
			return true
		}
	}
	return false
}
