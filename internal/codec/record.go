package codec

import (
	"fmt"
	"sort"
)

// Record is one decoded ASTERIX record: the category it came from, the
// number of octets it occupied on the wire and the decoded items in FRN
// order.
type Record struct {
	Category uint8
	Len      int
	Fields   []RecordField
}

// RecordField is one decoded data item of a record.
type RecordField struct {
	FRN   int
	Name  string
	Value Value
}

// Get returns the value of the named item, e.g. "040".
func (r *Record) Get(name string) (Value, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// DecodeRecord decodes one record from the start of buf and reports how
// many octets it consumed. buf usually extends beyond the record; the
// FSPEC decides which items are read.
func (c *Codec) DecodeRecord(buf []byte) (*Record, int, error) {
	r := NewReader(buf)
	frns, _, err := readFSPEC(r)
	if err != nil {
		return nil, 0, err
	}

	fields := make([]RecordField, 0, len(frns))
	for _, frn := range frns {
		item, ok := c.cat.ItemByFRN(frn)
		if !ok {
			return nil, 0, fmt.Errorf("category %d: FRN %d has no UAP assignment", c.cat.Number, frn)
		}
		v, err := c.decodeVariation(r, item.Variation, item.Name)
		if err != nil {
			return nil, 0, fmt.Errorf("item %s (FRN %d): %w", item.Name, frn, err)
		}
		fields = append(fields, RecordField{FRN: frn, Name: item.Name, Value: v})
	}
	return &Record{Category: c.cat.Number, Len: r.Offset(), Fields: fields}, r.Offset(), nil
}

// EncodeRecord encodes the given items as one record. Items are named by
// their catalogue name and may arrive in any order; the FSPEC and body
// come out in ascending FRN order.
func (c *Codec) EncodeRecord(fields []Field) ([]byte, error) {
	type entry struct {
		frn  int
		name string
		val  Value
	}
	entries := make([]entry, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("category %d: item %s given twice", c.cat.Number, f.Name)
		}
		seen[f.Name] = true
		frn, ok := c.cat.FRN(f.Name)
		if !ok {
			return nil, fmt.Errorf("category %d: item %s is not in the UAP", c.cat.Number, f.Name)
		}
		entries = append(entries, entry{frn: frn, name: f.Name, val: f.Value})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].frn < entries[j].frn })

	frns := make([]int, len(entries))
	for i, e := range entries {
		frns[i] = e.frn
	}
	fspec, err := EncodeFSPEC(frns)
	if err != nil {
		return nil, err
	}

	w := NewWriter()
	w.WriteBytes(fspec)
	for _, e := range entries {
		item, _ := c.cat.Item(e.name)
		if err := c.encodeVariation(w, item.Variation, e.val, item.Name); err != nil {
			return nil, fmt.Errorf("item %s (FRN %d): %w", e.name, e.frn, err)
		}
	}
	if w.Bits()%8 != 0 {
		return nil, fmt.Errorf("category %d: record body is not octet aligned (%d bits)", c.cat.Number, w.Bits())
	}
	return w.Bytes(), nil
}
