package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goasterix/internal/spec"
)

func element(bits int) *spec.Element {
	return &spec.Element{Bits: bits, Content: &spec.Raw{}}
}

func sub(name string, bits int) *spec.Subitem {
	return &spec.Subitem{Name: name, Variation: element(bits)}
}

func spare(bits int) *spec.Subitem {
	return &spec.Subitem{Spare: true, Bits: bits}
}

// reportStatus is an FX-chained layout in the shape of a target report
// descriptor: one primary chunk and one extension chunk of one octet each.
func reportStatus() *spec.Extended {
	return &spec.Extended{
		FirstBits:  8,
		ExtentBits: 8,
		Items: []*spec.Subitem{
			sub("TYP", 3), sub("SIM", 1), sub("RDP", 1), sub("SPI", 1), sub("RAB", 1),
			sub("TST", 1), sub("ERR", 1), sub("XPP", 1), sub("ME", 1), sub("MI", 1), sub("FOEFRI", 2),
		},
	}
}

// TestDecodeGroup tests fixed-length composite decoding
func TestDecodeGroup(t *testing.T) {
	c := New(nil, nil, false)
	group := &spec.Group{Items: []*spec.Subitem{sub("SAC", 8), sub("SIC", 8)}}

	v, err := c.decodeVariation(NewReader([]byte{0x0C, 0x22}), group, "010")
	require.NoError(t, err)
	require.Equal(t, ValueGroup, v.Kind)

	sac, _ := v.Field("SAC")
	sic, _ := v.Field("SIC")
	assert.Equal(t, uint64(12), sac.Uint)
	assert.Equal(t, uint64(34), sic.Uint)
}

// TestGroupSpares tests that spare bits are skipped on decode and zeroed
// on encode
func TestGroupSpares(t *testing.T) {
	c := New(nil, nil, false)
	group := &spec.Group{Items: []*spec.Subitem{sub("V", 1), spare(3), sub("CODE", 12)}}

	v, err := c.decodeVariation(NewReader([]byte{0x8F, 0xAC}), group, "070")
	require.NoError(t, err)
	assert.Len(t, v.Fields, 2)

	code, _ := v.Field("CODE")
	assert.Equal(t, uint64(0xFAC), code.Uint)

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, group, v, "070"))
	assert.Equal(t, []byte{0x8F, 0xAC}, w.Bytes())
}

// TestEncodeGroup_MissingField tests that absent members encode as zeros
func TestEncodeGroup_MissingField(t *testing.T) {
	c := New(nil, nil, false)
	group := &spec.Group{Items: []*spec.Subitem{sub("SAC", 8), sub("SIC", 8)}}

	w := NewWriter()
	val := GroupValue(Field{Name: "SAC", Value: RawValue(12)})
	require.NoError(t, c.encodeVariation(w, group, val, "010"))
	assert.Equal(t, []byte{0x0C, 0x00}, w.Bytes())

	err := c.encodeVariation(NewWriter(), group, RawValue(1), "010")
	assert.Error(t, err, "group items need group values")
}

// TestDecodeExtended tests FX-chained decoding across chunks
func TestDecodeExtended(t *testing.T) {
	c := New(nil, nil, false)
	ext := reportStatus()

	// FX clear after the first chunk: only the primary part decodes.
	v, err := c.decodeVariation(NewReader([]byte{0x40}), ext, "020")
	require.NoError(t, err)
	assert.Len(t, v.Fields, 5)
	typ, _ := v.Field("TYP")
	assert.Equal(t, uint64(2), typ.Uint)

	// FX set: the extension chunk follows.
	v, err = c.decodeVariation(NewReader([]byte{0x41, 0x20}), ext, "020")
	require.NoError(t, err)
	assert.Len(t, v.Fields, 11)
	xpp, _ := v.Field("XPP")
	assert.Equal(t, uint64(1), xpp.Uint)
}

// TestExtendedRoundTrip tests that encoding stops at the last valued chunk
func TestExtendedRoundTrip(t *testing.T) {
	c := New(nil, nil, false)
	ext := reportStatus()

	w := NewWriter()
	val := GroupValue(Field{Name: "TYP", Value: RawValue(2)})
	require.NoError(t, c.encodeVariation(w, ext, val, "020"))
	assert.Equal(t, []byte{0x40}, w.Bytes())

	w = NewWriter()
	val = GroupValue(
		Field{Name: "TYP", Value: RawValue(2)},
		Field{Name: "XPP", Value: RawValue(1)},
	)
	require.NoError(t, c.encodeVariation(w, ext, val, "020"))
	assert.Equal(t, []byte{0x41, 0x20}, w.Bytes())
}

// TestExtendedOverrun tests the FX boundary check in both modes
func TestExtendedOverrun(t *testing.T) {
	ext := &spec.Extended{FirstBits: 8, ExtentBits: 8, Items: []*spec.Subitem{sub("WIDE", 10)}}

	// Strict mode refuses the layout.
	strict := New(nil, nil, false)
	_, err := strict.decodeVariation(NewReader([]byte{0x54}), ext, "BAD")
	require.Error(t, err)
	var schemaErr *spec.SchemaError
	assert.True(t, errors.As(err, &schemaErr))

	err = strict.encodeVariation(NewWriter(), ext, GroupValue(Field{Name: "WIDE", Value: RawValue(1)}), "BAD")
	assert.True(t, errors.As(err, &schemaErr))

	// Lenient mode clamps the subfield to the chunk and reads raw bits.
	lenient := New(nil, nil, true)
	v, err := lenient.decodeVariation(NewReader([]byte{0x54}), ext, "BAD")
	require.NoError(t, err)
	wide, _ := v.Field("WIDE")
	assert.Equal(t, uint64(42), wide.Uint)

	w := NewWriter()
	err = lenient.encodeVariation(w, ext, GroupValue(Field{Name: "WIDE", Value: RawValue(1)}), "BAD")
	require.NoError(t, err)
	assert.Len(t, w.Bytes(), 1)
}

// TestExtendedRepeats tests the FX-chained repetition of a sole subfield
func TestExtendedRepeats(t *testing.T) {
	c := New(nil, nil, false)
	ext := &spec.Extended{FirstBits: 8, ExtentBits: 8, Items: []*spec.Subitem{sub("SPD", 7)}}

	// Three chunks, FX set on all but the last: the layout repeats.
	v, err := c.decodeVariation(NewReader([]byte{0x03, 0x05, 0x06}), ext, "REP")
	require.NoError(t, err)
	require.Len(t, v.Fields, 3)
	for i, expected := range []uint64{1, 2, 3} {
		assert.Equal(t, "SPD", v.Fields[i].Name)
		assert.Equal(t, expected, v.Fields[i].Value.Uint)
	}

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, ext, v, "REP"))
	assert.Equal(t, []byte{0x03, 0x05, 0x06}, w.Bytes())
}

// TestEncodeExtended_BadFields tests subfield name validation
func TestEncodeExtended_BadFields(t *testing.T) {
	c := New(nil, nil, false)
	ext := reportStatus()

	err := c.encodeVariation(NewWriter(), ext, GroupValue(Field{Name: "NOPE", Value: RawValue(1)}), "020")
	assert.Error(t, err)

	val := GroupValue(
		Field{Name: "TYP", Value: RawValue(1)},
		Field{Name: "TYP", Value: RawValue(2)},
	)
	err = c.encodeVariation(NewWriter(), ext, val, "020")
	assert.Error(t, err, "a multi-slot layout cannot repeat a subfield")
}

// TestRepetitive tests the count-prefixed repetition shape
func TestRepetitive(t *testing.T) {
	c := New(nil, nil, false)
	rep := &spec.Repetitive{Element: element(8)}

	v, err := c.decodeVariation(NewReader([]byte{0x02, 0x01, 0x02}), rep, "250")
	require.NoError(t, err)
	require.Equal(t, ValueList, v.Kind)
	require.Len(t, v.Items, 2)
	assert.Equal(t, uint64(1), v.Items[0].Uint)
	assert.Equal(t, uint64(2), v.Items[1].Uint)

	// A zero count is an empty list, not an error.
	v, err = c.decodeVariation(NewReader([]byte{0x00}), rep, "250")
	require.NoError(t, err)
	assert.Empty(t, v.Items)

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, rep, ListValue(RawValue(1), RawValue(2)), "250"))
	assert.Equal(t, []byte{0x02, 0x01, 0x02}, w.Bytes())
}

// TestRepetitiveGroup tests repetition over a composite element
func TestRepetitiveGroup(t *testing.T) {
	c := New(nil, nil, false)
	rep := &spec.Repetitive{Element: &spec.Group{Items: []*spec.Subitem{sub("DOP", 8), sub("AMB", 8)}}}

	v, err := c.decodeVariation(NewReader([]byte{0x01, 0x0C, 0x22}), rep, "040")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	dop, _ := v.Items[0].Field("DOP")
	assert.Equal(t, uint64(12), dop.Uint)

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, rep, v, "040"))
	assert.Equal(t, []byte{0x01, 0x0C, 0x22}, w.Bytes())
}

// TestEncodeRepetitive_CountRange tests the one-octet count bound
func TestEncodeRepetitive_CountRange(t *testing.T) {
	c := New(nil, nil, false)
	rep := &spec.Repetitive{Element: element(8)}

	items := make([]Value, 256)
	for i := range items {
		items[i] = RawValue(0)
	}
	err := c.encodeVariation(NewWriter(), rep, ListValue(items...), "250")

	var rangeErr *RangeError
	assert.True(t, errors.As(err, &rangeErr))
}

// TestExplicit tests length-prefixed opaque payloads
func TestExplicit(t *testing.T) {
	c := New(nil, nil, false)
	ex := &spec.Explicit{}

	// The length octet counts itself.
	v, err := c.decodeVariation(NewReader([]byte{0x03, 0xAA, 0xBB}), ex, "SP")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, v.Bytes)

	_, err = c.decodeVariation(NewReader([]byte{0x00}), ex, "SP")
	assert.Error(t, err, "zero length is impossible")

	_, err = c.decodeVariation(NewReader([]byte{0x05, 0xAA}), ex, "SP")
	var truncated *TruncatedInputError
	assert.True(t, errors.As(err, &truncated))

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, ex, BytesValue([]byte{0xAA, 0xBB}), "SP"))
	assert.Equal(t, []byte{0x03, 0xAA, 0xBB}, w.Bytes())
}

// TestExplicitDefinition tests expansion decoding inside an explicit item
func TestExplicitDefinition(t *testing.T) {
	c := New(nil, nil, false)
	ex := &spec.Explicit{Definition: &spec.DataItem{
		Name:      "RE",
		Variation: &spec.Group{Items: []*spec.Subitem{sub("A", 8), sub("B", 8)}},
	}}

	v, err := c.decodeVariation(NewReader([]byte{0x03, 0x0C, 0x22}), ex, "RE")
	require.NoError(t, err)
	require.Equal(t, ValueGroup, v.Kind)
	a, _ := v.Field("A")
	assert.Equal(t, uint64(12), a.Uint)

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, ex, v, "RE"))
	assert.Equal(t, []byte{0x03, 0x0C, 0x22}, w.Bytes())
}

// TestCompoundChained tests the FX-chained subitem FSPEC
func TestCompoundChained(t *testing.T) {
	c := New(nil, nil, false)
	cp := &spec.Compound{Items: []*spec.Subitem{sub("COM", 8), nil, sub("PSR", 8)}}

	v, err := c.decodeVariation(NewReader([]byte{0xA0, 0x0C, 0x22}), cp, "130")
	require.NoError(t, err)
	require.Len(t, v.Fields, 2)
	com, _ := v.Field("COM")
	psr, _ := v.Field("PSR")
	assert.Equal(t, uint64(12), com.Uint)
	assert.Equal(t, uint64(34), psr.Uint)

	// A presence bit on a permanently absent slot is a decode error.
	_, err = c.decodeVariation(NewReader([]byte{0xC0, 0x0C}), cp, "130")
	assert.Error(t, err)
}

// TestEncodeCompound tests subitem ordering and name validation
func TestEncodeCompound(t *testing.T) {
	c := New(nil, nil, false)
	cp := &spec.Compound{Items: []*spec.Subitem{sub("COM", 8), nil, sub("PSR", 8)}}

	// Input field order does not matter; the wire order is the layout's.
	val := GroupValue(
		Field{Name: "PSR", Value: RawValue(34)},
		Field{Name: "COM", Value: RawValue(12)},
	)
	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, cp, val, "130"))
	assert.Equal(t, []byte{0xA0, 0x0C, 0x22}, w.Bytes())

	err := c.encodeVariation(NewWriter(), cp, GroupValue(Field{Name: "NOPE", Value: RawValue(1)}), "130")
	assert.Error(t, err)
}

// TestCompoundFixedFSPEC tests the fixed-length subitem FSPEC variant
func TestCompoundFixedFSPEC(t *testing.T) {
	c := New(nil, nil, false)
	cp := &spec.Compound{FspecBits: 8, Items: []*spec.Subitem{sub("A", 8), sub("B", 8)}}

	v, err := c.decodeVariation(NewReader([]byte{0xC0, 0x0C, 0x22}), cp, "350")
	require.NoError(t, err)
	require.Len(t, v.Fields, 2)

	w := NewWriter()
	require.NoError(t, c.encodeVariation(w, cp, v, "350"))
	assert.Equal(t, []byte{0xC0, 0x0C, 0x22}, w.Bytes())
}
